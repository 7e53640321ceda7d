package domainerr

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a business-rule violation.
type Kind string

const (
	// NotValid marks a request rejected by a precondition or validation
	// rule, such as a duplicate key or a weak password.
	NotValid Kind = "not_valid"

	// NotFound marks an edit or delete aimed at a key that does not exist.
	NotFound Kind = "not_found"
)

// Error is a structured business-rule failure. The ID is a fixed literal
// assigned per call site and is only used to correlate log entries; it is
// never computed. Transport and parse failures are not represented by this
// type and propagate as plain errors.
type Error struct {
	ID         int64
	Kind       Kind
	Attributes map[string]string
}

func New(id int64, kind Kind, field, message string) *Error {
	return &Error{
		ID:         id,
		Kind:       kind,
		Attributes: map[string]string{field: message},
	}
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Attributes))
	for name := range e.Attributes {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "domain error %d (%s)", e.ID, e.Kind)
	for _, name := range fields {
		fmt.Fprintf(&b, ": %s: %s", name, e.Attributes[name])
	}
	return b.String()
}
