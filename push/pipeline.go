// Package push clones eligible repositories, commits a fresh marker file and
// force-pushes it back.
package push

import (
	"agp/config"
	"agp/constants"
	"agp/process"
	"agp/vcs"
	"agp/vcs/repository"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// StepError names the pipeline step that failed for a repository.
type StepError struct {
	Repository string
	Step       string
	Err        error
	token      string
}

func (err *StepError) Error() string {
	return scrub(fmt.Sprintf("%s: %s: %v", err.Repository, err.Step, err.Err), err.token)
}

func (err *StepError) Unwrap() error {
	return err.Err
}

// Pipeline runs the clone, commit and push sequence for one repository at a time.
// A single Pipeline is safe for concurrent use on distinct repositories.
type Pipeline struct {
	runner     process.Runner
	host       vcs.Vcs
	username   string
	token      string
	scratchDir string
	bot        config.Bot
	timeout    time.Duration
	now        func() time.Time
}

func NewPipeline(runner process.Runner, host vcs.Vcs, config *config.Config) *Pipeline {
	return &Pipeline{
		runner:     runner,
		host:       host,
		username:   config.Username,
		token:      config.Token,
		scratchDir: config.ScratchDir,
		bot:        config.Bot,
		timeout:    config.Timeout,
		now:        time.Now,
	}
}

func (pipeline *Pipeline) stepError(repo repository.Descriptor, step string, err error) error {
	return &StepError{Repository: repo.FullName, Step: step, Err: err, token: pipeline.token}
}

// git runs one git command and turns a non-zero exit or an expired deadline into an error.
func (pipeline *Pipeline) git(ctx context.Context, dir string, args ...string) error {
	command := process.Command{
		Program: "git",
		Args:    args,
		Dir:     dir,
		Env:     map[string]string{"GIT_TERMINAL_PROMPT": "0"},
	}

	result, err := pipeline.runner.Run(ctx, command)
	if err != nil {
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	display := command
	display.Args = make([]string, len(args))
	for i, arg := range args {
		display.Args[i] = scrub(arg, pipeline.token)
	}
	result.Stderr = scrub(result.Stderr, pipeline.token)
	result.Stdout = scrub(result.Stdout, pipeline.token)

	return process.Check(display, result)
}

// PushOnce writes a timestamped marker into repo and force-pushes it. The
// descriptor is returned unchanged on success.
func (pipeline *Pipeline) PushOnce(ctx context.Context, repo repository.Descriptor) (repository.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, pipeline.timeout)
	defer cancel()

	logger := log.With().Str("repository", repo.FullName).Logger()

	workdir := filepath.Join(pipeline.scratchDir, repo.Name)
	cloneUrl := pipeline.host.CloneUrl(repo, pipeline.username, pipeline.token)

	logger.Info().Str("path", workdir).Str("clone_url", safeUrl(cloneUrl)).Msg("Cloning repository")
	err := pipeline.git(ctx, pipeline.scratchDir, "clone", "--depth=1", cloneUrl, repo.Name)
	if err != nil {
		return repo, pipeline.stepError(repo, "clone", err)
	}

	err = os.MkdirAll(filepath.Join(workdir, constants.MARKER_DIR), 0o755)
	if err != nil {
		return repo, pipeline.stepError(repo, "prepare", err)
	}

	stamp := timestamp(pipeline.now())
	err = writeMarker(workdir, stamp)
	if err != nil {
		return repo, pipeline.stepError(repo, "write marker", err)
	}

	steps := []struct {
		name string
		args []string
	}{
		{"config email", []string{"config", "user.email", pipeline.bot.Email}},
		{"config name", []string{"config", "user.name", pipeline.bot.Name}},
		{"add", []string{"add", "-A"}},
		{"commit", []string{"commit", "-m", commitMessage(stamp)}},
		{"push", []string{"push", "--force"}},
	}

	for _, step := range steps {
		logger.Debug().Strs("args", step.args).Msg("Running git")

		err := pipeline.git(ctx, workdir, step.args...)
		if err != nil {
			return repo, pipeline.stepError(repo, step.name, err)
		}
	}

	logger.Info().Str("timestamp", stamp).Msg("Pushed marker")

	return repo, nil
}

// IsTimeout reports whether err was caused by the per-repository deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
