package vcs

import (
	"agp/constants"
	"agp/vcs/repository"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Presence is the outcome of probing for a file on a repository's default branch.
type Presence int

const (
	// PresenceUnknown accompanies a probe error; the file may or may not exist.
	PresenceUnknown Presence = iota
	PresenceFound
	PresenceAbsent
)

func (presence Presence) String() string {
	switch presence {
	case PresenceFound:
		return "found"
	case PresenceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// IsEligible reports whether repo should receive a keep-alive push: it must not
// be archived and must not carry the opt-out file on its default branch.
func IsEligible(ctx context.Context, host Vcs, repo repository.Descriptor) (bool, error) {
	if repo.Archived {
		return false, nil
	}

	presence, err := host.ProbeFile(ctx, repo, constants.OPT_OUT_FILE)
	switch presence {
	case PresenceFound:
		return false, nil
	case PresenceAbsent:
		return true, nil
	}

	if err == nil {
		err = fmt.Errorf("probe returned %s", presence)
	}

	return false, fmt.Errorf("probing %s for %s: %w", repo.FullName, constants.OPT_OUT_FILE, err)
}

// EligibleRepositories filters repos concurrently, preserving their order. Any
// probe failure aborts the whole filter.
func EligibleRepositories(ctx context.Context, host Vcs, repos []repository.Descriptor, concurrency int) ([]repository.Descriptor, error) {
	logger := GetLogger(host)

	eligible := make([]bool, len(repos))

	group, groupCtx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		group.SetLimit(concurrency)
	}

	for i, repo := range repos {
		i, repo := i, repo
		group.Go(func() error {
			ok, err := IsEligible(groupCtx, host, repo)
			if err != nil {
				return err
			}

			if !ok {
				logger.Info().Str("repository", repo.FullName).Bool("archived", repo.Archived).Msg("Skipping repository")
			}

			eligible[i] = ok
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := []repository.Descriptor{}
	for i, repo := range repos {
		if eligible[i] {
			result = append(result, repo)
		}
	}

	log.Debug().Int("listed", len(repos)).Int("eligible", len(result)).Msg("Filtered repositories")

	return result, nil
}
