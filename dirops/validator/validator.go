package validator

import (
	"context"

	"github.com/accountops/dirops/dirops/domainerr"
)

// ErrorSpec is the domain-error template a rule failure is reported with.
// The caller fixes the ID, kind, field and message up front; the validator
// only decides whether the rule passed.
type ErrorSpec struct {
	ID      int64
	Kind    domainerr.Kind
	Field   string
	Message string
}

func (s ErrorSpec) domainError() *domainerr.Error {
	return domainerr.New(s.ID, s.Kind, s.Field, s.Message)
}

// Validator checks a named rule against the given arguments. A failing rule
// rejects with the domain error described by spec; transport failures
// propagate as-is.
type Validator interface {
	Check(ctx context.Context, rule string, args []string, spec ErrorSpec) error
}
