package commandrunner

import (
	"context"
	"time"
)

// CommandConfig describes a single invocation of an external directory
// script: the fixed script path plus its positional arguments and flags.
type CommandConfig struct {
	Command string
	Args    []string
}

// CommandResult encapsulates the outcome of one invocation.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandRunner executes external commands, locally or remotely. A non-zero
// exit or a transport failure is reported through the returned error; the
// result still carries whatever output and exit code were observed.
type CommandRunner interface {
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)
}
