package validator

import (
	"context"

	cr "github.com/accountops/dirops/dirops/commandrunner"
)

// ScriptValidator runs validation rules through an external check script
// invoked as `<script> <rule> <args...>`. A zero exit means the rule
// passed; a non-zero exit means it failed.
type ScriptValidator struct {
	Runner cr.CommandRunner
	Script string
}

func (v *ScriptValidator) Check(ctx context.Context, rule string, args []string, spec ErrorSpec) error {
	result, err := v.Runner.Run(ctx, cr.CommandConfig{
		Command: v.Script,
		Args:    append([]string{rule}, args...),
	})
	if err == nil {
		return nil
	}
	if result.ExitCode != 0 {
		return spec.domainError()
	}
	return err
}
