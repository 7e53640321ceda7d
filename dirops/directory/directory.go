// Package directory exposes user and group management as a single facade
// over three narrow collaborators: a command runner that executes the fixed
// directory scripts, a signaler that requests mutations from the subsystem
// that owns them, and a validator for field rules.
//
// The facade itself never mutates anything. Reads re-invoke the external
// scripts on every call; mutations re-read current state, check the key
// precondition, and emit one named signal. The read and the emission are
// not atomic: two concurrent creates for the same key can both pass the
// duplicate check. The mutation subsystem remains the single arbiter of
// truth.
package directory

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	cr "github.com/accountops/dirops/dirops/commandrunner"
	"github.com/accountops/dirops/dirops/signalbus"
	"github.com/accountops/dirops/dirops/validator"
	"github.com/accountops/dirops/logger"
)

// Signal names the mutation subsystem listens for. Account creation rides
// the modify signal; the new-account marker in the parameter list tells the
// subsystem to upsert.
const (
	SignalGroupCreate = "group-create"
	SignalGroupModify = "group-modify"
	SignalGroupDelete = "group-delete"
	SignalUserModify  = "user-modify"
	SignalUserDelete  = "user-delete"
)

// PasswordStrengthRule is the validation rule consulted before a new
// account is requested.
const PasswordStrengthRule = "password-strength"

// Log-correlation identifiers, one fixed literal per failure site.
const (
	errIDGroupExists        int64 = 1150823484726
	errIDEditGroupMissing   int64 = 1150823501843
	errIDDeleteGroupMissing int64 = 1150823512095
	errIDUserExists         int64 = 1508246471920
	errIDWeakPassword       int64 = 1508246480331
	errIDEditUserMissing    int64 = 1508246489717
	errIDDeleteUserMissing  int64 = 1508246496389
)

// DefaultTimeout bounds read queries when the caller's context carries no
// deadline.
const DefaultTimeout = 5 * time.Second

// Scripts holds the fixed paths of the external scripts the facade shells
// out to.
type Scripts struct {
	Users       string
	UserGroups  string
	Groups      string
	GenPassword string
}

// Directory is the facade. It is safe for concurrent use; operations share
// no state beyond the external system they query.
type Directory struct {
	runner    cr.CommandRunner
	signaler  signalbus.Signaler
	validator validator.Validator
	scripts   Scripts
	timeout   time.Duration
	log       logger.Logger
}

type Option func(*Directory)

// WithTimeout overrides the default read-query timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Directory) {
		d.timeout = timeout
	}
}

// WithLogger replaces the default stderr logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Directory) {
		d.log = l
	}
}

func New(runner cr.CommandRunner, signaler signalbus.Signaler, v validator.Validator, scripts Scripts, opts ...Option) *Directory {
	d := &Directory{
		runner:    runner,
		signaler:  signaler,
		validator: v,
		scripts:   scripts,
		timeout:   DefaultTimeout,
		log:       logger.New(slog.LevelInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// emit hands the parameter list to the signaler. The first element is
// always the record's key.
func (d *Directory) emit(ctx context.Context, event string, params []string) error {
	d.log.Debug("Emitting signal", "event", event, "key", params[0])
	return d.signaler.Emit(ctx, event, params)
}

// RandomPassword invokes the password generator and passes its output
// through, trimmed of surrounding whitespace. No parsing is applied.
func (d *Directory) RandomPassword(ctx context.Context) (string, error) {
	result, err := d.runner.Run(ctx, cr.CommandConfig{Command: d.scripts.GenPassword})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.STDOUT), nil
}

// runQuery invokes a list/query script with the structured-output flag and
// the chosen timeout, optionally scoped to one entity.
func (d *Directory) runQuery(ctx context.Context, script, entity string) (string, error) {
	timeout := d.queryTimeout(ctx)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-t", strconv.Itoa(timeoutSeconds(timeout)), "-s"}
	if entity != "" {
		args = append(args, entity)
	}

	result, err := d.runner.Run(ctx, cr.CommandConfig{Command: script, Args: args})
	if err != nil {
		return "", err
	}
	return result.STDOUT, nil
}

// queryTimeout prefers the caller's deadline when one is set.
func (d *Directory) queryTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
	}
	return d.timeout
}

// timeoutSeconds renders a timeout as the whole seconds the scripts expect
// for their -t flag, rounding up so a sub-second deadline still allows one
// attempt.
func timeoutSeconds(timeout time.Duration) int {
	secs := int((timeout + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
