package push

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agp/config"
	"agp/constants"
	"agp/process"
	"agp/vcs"
	"agp/vcs/repository"
)

func newTestBatch(t *testing.T, host *stubHost, runner *recordingRunner, mutate ...func(cfg *config.Config)) (*Batch, *bytes.Buffer) {
	t.Helper()

	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}

	pipeline := NewPipeline(runner, host, cfg)
	pipeline.now = fixedClock

	out := &bytes.Buffer{}
	return NewBatch(host, pipeline, cfg, out), out
}

func TestBatchRunIsolatesFailures(t *testing.T) {
	runner := newRecordingRunner()
	runner.failures["r2/commit"] = process.Result{ExitCode: 1, Stderr: "commit hook rejected\n"}

	host := &stubHost{repos: []repository.Descriptor{repo("r1"), repo("r2")}}
	batch, out := newTestBatch(t, host, runner)

	report, err := batch.Run(context.Background(), "alice")
	require.ErrorIs(t, err, ErrSomeFailed)

	require.Equal(t, []string{"r1"}, report.Succeeded)
	require.Len(t, report.Failed, 1)
	require.ErrorContains(t, report.Failed["r2"], "commit hook rejected")

	require.Len(t, runner.recordedFor("r1"), 6)
	require.Len(t, runner.recordedFor("r2"), 5)

	require.Contains(t, out.String(), "-- AGP for alice --\n")
	require.Contains(t, out.String(), "Done -- r1\n")
	require.Contains(t, out.String(), "Failed -- r2: ")
	require.NotContains(t, out.String(), "Done -- r2")
}

func TestBatchRunSkipsIneligible(t *testing.T) {
	archived := repo("old")
	archived.Archived = true

	runner := newRecordingRunner()
	host := &stubHost{
		repos:    []repository.Descriptor{repo("r1"), archived, repo("quiet")},
		optedOut: map[string]bool{"alice/quiet": true},
	}
	batch, _ := newTestBatch(t, host, runner)

	report, err := batch.Run(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"r1"}, report.Eligible)
	require.Equal(t, []string{"r1"}, report.Succeeded)
	require.Empty(t, runner.recordedFor("old"))
	require.Empty(t, runner.recordedFor("quiet"))
}

func TestBatchRunFatalErrors(t *testing.T) {
	testCases := []struct {
		name string
		host *stubHost
	}{
		{
			name: "listing",
			host: &stubHost{listErr: &vcs.HTTPError{URI: "api", Status: 500}},
		},
		{
			name: "probe",
			host: &stubHost{
				repos:    []repository.Descriptor{repo("r1")},
				probeErr: &vcs.HTTPError{URI: "raw", Err: errors.New("connection refused")},
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			runner := newRecordingRunner()
			batch, _ := newTestBatch(t, testCase.host, runner)

			report, err := batch.Run(context.Background(), "alice")
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrSomeFailed)
			require.Nil(t, report)
			require.Empty(t, runner.recorded())
		})
	}
}

func TestBatchRunResetsScratch(t *testing.T) {
	runner := newRecordingRunner()
	host := &stubHost{}
	batch, _ := newTestBatch(t, host, runner)

	stale := filepath.Join(batch.scratchDir, "leftover", "file")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	_, err := batch.Run(context.Background(), "alice")
	require.NoError(t, err)

	entries, err := os.ReadDir(batch.scratchDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBatchRunDryRun(t *testing.T) {
	runner := newRecordingRunner()
	host := &stubHost{repos: []repository.Descriptor{repo("r1"), repo("r2")}}
	batch, out := newTestBatch(t, host, runner)

	ctx := context.WithValue(context.Background(), constants.DRY_RUN, true)
	report, err := batch.Run(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"r1", "r2"}, report.Eligible)
	require.Empty(t, report.Succeeded)
	require.Empty(t, runner.recorded())
	require.Contains(t, out.String(), "Would push -- r1\n")
	require.Contains(t, out.String(), "Would push -- r2\n")
}

func TestBatchRunBoundsConcurrency(t *testing.T) {
	runner := newRecordingRunner()
	runner.delay = 10 * time.Millisecond

	repos := []repository.Descriptor{}
	for _, name := range strings.Fields("a b c d e f g h") {
		repos = append(repos, repo(name))
	}
	host := &stubHost{repos: repos}

	batch, _ := newTestBatch(t, host, runner, func(cfg *config.Config) { cfg.Concurrency = 2 })

	report, err := batch.Run(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, report.Succeeded, len(repos))
	require.LessOrEqual(t, runner.maxActive.Load(), int32(2))
}

func TestBatchRunTimeoutDoesNotBlockSiblings(t *testing.T) {
	runner := newRecordingRunner()
	runner.block["slow/clone"] = true

	host := &stubHost{repos: []repository.Descriptor{repo("slow"), repo("fast")}}
	batch, _ := newTestBatch(t, host, runner, func(cfg *config.Config) { cfg.Timeout = 100 * time.Millisecond })

	report, err := batch.Run(context.Background(), "alice")
	require.ErrorIs(t, err, ErrSomeFailed)
	require.Equal(t, []string{"fast"}, report.Succeeded)
	require.True(t, IsTimeout(report.Failed["slow"]))
}
