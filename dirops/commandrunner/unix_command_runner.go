package commandrunner

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/accountops/dirops/common"
)

// SSHDialer establishes an SSH connection to a remote host.
type SSHDialer interface {
	Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)
}

// UnixCommandRunner runs commands on the local system when Hostname is
// local, and over SSH otherwise.
type UnixCommandRunner struct {
	Hostname  string
	SSHClient SSHDialer
	common.Credentials
}

func (r *UnixCommandRunner) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if r.isLocal() {
		slog.Debug("Running local command", "command", config.Command)
		return r.RunLocal(ctx, config)
	}

	slog.Debug("Running remote command", "hostname", r.Hostname, "command", config.Command)
	return r.RunRemote(ctx, config)
}

func (r *UnixCommandRunner) RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, config.Command, config.Args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return CommandResult{
		Command:   config.Command,
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  time.Since(start),
		Timestamp: start,
	}, err
}

func (r *UnixCommandRunner) RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if r.SSHClient == nil {
		return CommandResult{}, errors.New("SSHClient is not initialized")
	}

	sshConfig, err := r.getSSHConfig()
	if err != nil {
		return CommandResult{}, err
	}

	dialTimeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
	}

	client, err := r.SSHClient.Dial("tcp", r.Hostname+":22", sshConfig, dialTimeout)
	if err != nil {
		return CommandResult{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	cmdStr := config.Command
	if len(config.Args) > 0 {
		cmdStr += " " + strings.Join(config.Args, " ")
	}

	start := time.Now()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmdStr)
	}()

	select {
	case err := <-done:
		result := CommandResult{
			Command:   cmdStr,
			STDOUT:    stdout.String(),
			STDERR:    stderr.String(),
			ExitCode:  getExitCode(err),
			Duration:  time.Since(start),
			Timestamp: start,
		}
		if err != nil {
			slog.Error("Remote command failed", "command", cmdStr, "error", err, "stderr", result.STDERR)
		}
		return result, err

	case <-ctx.Done():
		slog.Error("Remote command timed out", "command", cmdStr)
		return CommandResult{}, ctx.Err()
	}
}

func (r *UnixCommandRunner) getSSHConfig() (*ssh.ClientConfig, error) {
	var authMethod ssh.AuthMethod

	if r.Password != "" {
		slog.Debug("Using password authentication", "hostname", r.Hostname)
		authMethod = ssh.Password(r.Password)
	} else {
		slog.Debug("Using public key authentication", "hostname", r.Hostname)
		var keyManager SSHKeyManager
		if r.KeyPassphrase != "" {
			keyManager = FileSSHKeyManager{}
		} else {
			keyManager = AgentSSHKeyManager{}
		}

		keys, err := keyManager.ReadPrivateKeys(r.KeyPassphrase)
		if err != nil {
			return nil, err
		}

		authMethod = ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			return keys, nil
		})
	}

	return &ssh.ClientConfig{
		User:            r.User,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, nil
}

func (r *UnixCommandRunner) isLocal() bool {
	return r.Hostname == "" || r.Hostname == "localhost" || r.Hostname == "127.0.0.1"
}

func getExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		status := exitError.Sys().(syscall.WaitStatus)
		return status.ExitStatus()
	}
	var sshExitError *ssh.ExitError
	if errors.As(err, &sshExitError) {
		return sshExitError.ExitStatus()
	}
	return 0
}
