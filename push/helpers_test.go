package push

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agp/config"
	"agp/process"
	"agp/vcs"
	"agp/vcs/repository"
)

// recordingRunner records every command and simulates git: clone creates the
// target directory, and failures can be injected per repository and subcommand.
type recordingRunner struct {
	mtx      sync.Mutex
	commands []process.Command

	// failures maps "<dir base>/<subcommand>" to the result returned instead of success.
	failures map[string]process.Result
	launch   map[string]error
	block    map[string]bool
	delay    time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

var _ process.Runner = (*recordingRunner)(nil)

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{
		failures: map[string]process.Result{},
		launch:   map[string]error{},
		block:    map[string]bool{},
	}
}

func (runner *recordingRunner) Run(ctx context.Context, command process.Command) (process.Result, error) {
	runner.mtx.Lock()
	runner.commands = append(runner.commands, command)
	runner.mtx.Unlock()

	active := runner.active.Add(1)
	defer runner.active.Add(-1)
	for {
		peak := runner.maxActive.Load()
		if active <= peak || runner.maxActive.CompareAndSwap(peak, active) {
			break
		}
	}

	subcommand := command.Args[0]
	dir := filepath.Base(command.Dir)
	if subcommand == "clone" {
		dir = command.Args[len(command.Args)-1]
	}
	key := dir + "/" + subcommand

	if err, ok := runner.launch[key]; ok {
		return process.Result{}, err
	}

	if runner.block[key] {
		<-ctx.Done()
		return process.Result{ExitCode: -1}, nil
	}

	if runner.delay > 0 {
		time.Sleep(runner.delay)
	}

	if result, ok := runner.failures[key]; ok {
		return result, nil
	}

	if subcommand == "clone" {
		err := os.MkdirAll(filepath.Join(command.Dir, dir), 0o755)
		if err != nil {
			return process.Result{}, err
		}
	}

	return process.Result{}, nil
}

func (runner *recordingRunner) recorded() []process.Command {
	runner.mtx.Lock()
	defer runner.mtx.Unlock()

	return append([]process.Command{}, runner.commands...)
}

func (runner *recordingRunner) recordedFor(name string) []string {
	lines := []string{}
	for _, command := range runner.recorded() {
		if filepath.Base(command.Dir) == name || (command.Args[0] == "clone" && command.Args[len(command.Args)-1] == name) {
			lines = append(lines, strings.Join(command.Args, " "))
		}
	}

	return lines
}

type stubHost struct {
	repos    []repository.Descriptor
	listErr  error
	optedOut map[string]bool
	probeErr error
}

var _ vcs.Vcs = (*stubHost)(nil)

func (host *stubHost) GetConfig() *config.Host {
	return &config.Host{Name: "stub", Type: config.HOST_GITHUB, BaseUrl: "https://github.com"}
}

func (host *stubHost) ListRepositories(context.Context, string) ([]repository.Descriptor, error) {
	return host.repos, host.listErr
}

func (host *stubHost) ProbeFile(_ context.Context, repo repository.Descriptor, _ string) (vcs.Presence, error) {
	if host.probeErr != nil {
		return vcs.PresenceUnknown, host.probeErr
	}
	if host.optedOut[repo.FullName] {
		return vcs.PresenceFound, nil
	}

	return vcs.PresenceAbsent, nil
}

func (host *stubHost) CloneUrl(repo repository.Descriptor, username, token string) string {
	if token == "" {
		return "git@github.com:" + repo.FullName + ".git"
	}

	return "https://" + username + ":" + token + "@github.com/" + repo.FullName + ".git"
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Username = "alice"
	cfg.Token = "s3cr3t-token"
	cfg.ScratchDir = filepath.Join(t.TempDir(), "scratch")
	cfg.Concurrency = 4
	cfg.Timeout = time.Minute

	return cfg
}

func repo(name string) repository.Descriptor {
	return repository.Descriptor{Name: name, FullName: "alice/" + name, DefaultBranch: "main"}
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 14, 9, 26, 53, 0, time.Local)
}
