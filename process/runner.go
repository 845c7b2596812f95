// Package process runs external programs and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command describes one invocation of an external program.
type Command struct {
	Program string
	Args    []string
	Dir     string
	// Env is merged over the current process environment.
	Env map[string]string
}

func (command Command) String() string {
	return strings.TrimSpace(command.Program + " " + strings.Join(command.Args, " "))
}

// Result holds the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes commands. A non-zero exit code is not an error.
type Runner interface {
	Run(ctx context.Context, command Command) (Result, error)
}

// LaunchError is returned when the program could not be started at all.
type LaunchError struct {
	Program string
	Dir     string
	Err     error
}

func (err *LaunchError) Error() string {
	return fmt.Sprintf("cannot launch %s in %s: %v", err.Program, err.Dir, err.Err)
}

func (err *LaunchError) Unwrap() error {
	return err.Err
}

// ExitError reports a command that ran but exited with a non-zero status.
type ExitError struct {
	Command Command
	Result  Result
}

func (err *ExitError) Error() string {
	stderr := strings.TrimSpace(err.Result.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s exited with code %d", err.Command, err.Result.ExitCode)
	}

	return fmt.Sprintf("%s exited with code %d: %s", err.Command, err.Result.ExitCode, stderr)
}

// Check converts a non-zero exit into an *ExitError.
func Check(command Command, result Result) error {
	if result.ExitCode == 0 {
		return nil
	}

	return &ExitError{Command: command, Result: result}
}

// OSRunner runs commands through os/exec.
type OSRunner struct{}

func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func (runner *OSRunner) Run(ctx context.Context, command Command) (Result, error) {
	cmd := exec.CommandContext(ctx, command.Program, command.Args...)
	cmd.Dir = command.Dir

	if len(command.Env) > 0 {
		// Later entries win for duplicate keys.
		env := append([]string{}, os.Environ()...)
		for key, value := range command.Env {
			env = append(env, key+"="+value)
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}

		return Result{}, &LaunchError{Program: command.Program, Dir: command.Dir, Err: err}
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
