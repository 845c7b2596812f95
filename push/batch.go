package push

import (
	"agp/config"
	"agp/constants"
	"agp/vcs"
	"agp/vcs/repository"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrSomeFailed = errors.New("some repositories failed")

// Report collects the outcome of every pipeline launched by a run.
type Report struct {
	Eligible  []string
	Succeeded []string
	Failed    map[string]error
}

type Batch struct {
	host        vcs.Vcs
	pipeline    *Pipeline
	scratchDir  string
	concurrency int

	outMtx sync.Mutex
	out    io.Writer
}

func NewBatch(host vcs.Vcs, pipeline *Pipeline, config *config.Config, out io.Writer) *Batch {
	return &Batch{
		host:        host,
		pipeline:    pipeline,
		scratchDir:  config.ScratchDir,
		concurrency: config.Concurrency,
		out:         out,
	}
}

func (batch *Batch) printf(format string, args ...any) {
	batch.outMtx.Lock()
	defer batch.outMtx.Unlock()

	fmt.Fprintf(batch.out, format+"\n", args...)
}

func (batch *Batch) resetScratch() error {
	err := os.RemoveAll(batch.scratchDir)
	if err != nil {
		return err
	}

	return os.MkdirAll(batch.scratchDir, 0o755)
}

// Run pushes a marker to every eligible repository of username. Listing and
// probing failures abort the run before anything is pushed; a failing pipeline
// only marks its own repository as failed.
func (batch *Batch) Run(ctx context.Context, username string) (*Report, error) {
	logger := vcs.GetLogger(batch.host)

	batch.printf("-- AGP for %s --", username)

	err := batch.resetScratch()
	if err != nil {
		return nil, fmt.Errorf("preparing scratch directory %s: %w", batch.scratchDir, err)
	}

	repos, err := batch.host.ListRepositories(ctx, username)
	if err != nil {
		return nil, err
	}

	eligible, err := vcs.EligibleRepositories(ctx, batch.host, repos, batch.concurrency)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Eligible:  []string{},
		Succeeded: []string{},
		Failed:    map[string]error{},
	}
	for _, repo := range eligible {
		report.Eligible = append(report.Eligible, repo.Name)
	}

	logger.Info().Int("listed", len(repos)).Int("eligible", len(eligible)).Msg("Selected repositories")

	dryRun, _ := ctx.Value(constants.DRY_RUN).(bool)
	if dryRun {
		for _, repo := range eligible {
			batch.printf("Would push -- %s", repo.Name)
		}
		logger.Info().Msg("Would push to the repositories, but dry-run mode is enabled")
		return report, nil
	}

	var reportMtx sync.Mutex
	var group errgroup.Group
	if batch.concurrency > 0 {
		group.SetLimit(batch.concurrency)
	}

	for _, repo := range eligible {
		repo := repo
		group.Go(func() error {
			_, err := batch.pipeline.PushOnce(ctx, repo)

			reportMtx.Lock()
			defer reportMtx.Unlock()

			if err != nil {
				batch.fail(report, repo, err)
			} else {
				report.Succeeded = append(report.Succeeded, repo.Name)
				batch.printf("Done -- %s", repo.Name)
			}

			// Failures stay in the report so siblings keep running.
			return nil
		})
	}
	_ = group.Wait()

	sort.Strings(report.Succeeded)

	if len(report.Failed) > 0 {
		logger.Error().Int("failed", len(report.Failed)).Int("succeeded", len(report.Succeeded)).Send()
		return report, ErrSomeFailed
	}

	logger.Info().Int("succeeded", len(report.Succeeded)).Msg("All repositories pushed")

	return report, nil
}

func (batch *Batch) fail(report *Report, repo repository.Descriptor, err error) {
	logger := vcs.GetLogger(batch.host)
	event := logger.Error().Str("repository", repo.FullName).Err(err)
	if IsTimeout(err) {
		event = event.Bool("timeout", true)
	}
	event.Msg("Push failed")

	report.Failed[repo.Name] = err
	batch.printf("Failed -- %s: %v", repo.Name, err)
}
