package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cr "github.com/accountops/dirops/dirops/commandrunner"
	"github.com/accountops/dirops/dirops/domainerr"
)

type fakeRunner struct {
	result cr.CommandResult
	err    error
	calls  []cr.CommandConfig
}

func (f *fakeRunner) Run(_ context.Context, config cr.CommandConfig) (cr.CommandResult, error) {
	f.calls = append(f.calls, config)
	return f.result, f.err
}

func weakPasswordSpec() ErrorSpec {
	return ErrorSpec{
		ID:      1508246480331,
		Kind:    domainerr.NotValid,
		Field:   "password",
		Message: "password does not meet strength requirements",
	}
}

func TestCheckPasses(t *testing.T) {
	runner := &fakeRunner{}
	v := &ScriptValidator{Runner: runner, Script: "/usr/lib/dirops/check-field"}

	err := v.Check(context.Background(), "password-strength", []string{"hunter2"}, weakPasswordSpec())

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "/usr/lib/dirops/check-field", runner.calls[0].Command)
	assert.Equal(t, []string{"password-strength", "hunter2"}, runner.calls[0].Args)
}

func TestCheckRuleFailure(t *testing.T) {
	runner := &fakeRunner{
		result: cr.CommandResult{ExitCode: 1},
		err:    errors.New("exit status 1"),
	}
	v := &ScriptValidator{Runner: runner, Script: "/usr/lib/dirops/check-field"}

	err := v.Check(context.Background(), "password-strength", []string{"abc"}, weakPasswordSpec())

	var domainErr *domainerr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, int64(1508246480331), domainErr.ID)
	assert.Equal(t, domainerr.NotValid, domainErr.Kind)
	assert.Equal(t, "password does not meet strength requirements", domainErr.Attributes["password"])
}

func TestCheckTransportFailure(t *testing.T) {
	transportErr := errors.New("ssh: handshake failed")
	runner := &fakeRunner{err: transportErr}
	v := &ScriptValidator{Runner: runner, Script: "/usr/lib/dirops/check-field"}

	err := v.Check(context.Background(), "password-strength", []string{"abc"}, weakPasswordSpec())

	var domainErr *domainerr.Error
	assert.False(t, errors.As(err, &domainErr))
	assert.Equal(t, transportErr, err)
}
