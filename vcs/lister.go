package vcs

import (
	"agp/vcs/repository"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type pageWalker struct {
	fetcher Fetcher
	group   *errgroup.Group

	mtx     sync.Mutex
	visited map[string]struct{}
	seen    map[string]struct{}
	repos   []repository.Descriptor
}

// ListRepositories walks a paginated repository listing starting at firstPage,
// following every next link concurrently. Repositories are deduplicated by
// full name and returned in no particular order.
func ListRepositories(ctx context.Context, fetcher Fetcher, firstPage string) ([]repository.Descriptor, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	walker := &pageWalker{
		fetcher: fetcher,
		group:   group,
		visited: map[string]struct{}{},
		seen:    map[string]struct{}{},
		repos:   []repository.Descriptor{},
	}

	walker.follow(groupCtx, firstPage)

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return walker.repos, nil
}

func (walker *pageWalker) follow(ctx context.Context, uri string) {
	walker.mtx.Lock()
	_, done := walker.visited[uri]
	walker.visited[uri] = struct{}{}
	walker.mtx.Unlock()

	if done {
		return
	}

	walker.group.Go(func() error {
		return walker.visit(ctx, uri)
	})
}

func (walker *pageWalker) visit(ctx context.Context, uri string) error {
	header, body, err := walker.fetcher.Fetch(ctx, uri)
	if err != nil {
		return fmt.Errorf("listing repositories: %w", err)
	}

	page, err := repository.DecodeList(body)
	if err != nil {
		return fmt.Errorf("listing repositories from %s: %w", uri, err)
	}

	log.Debug().Str("uri", uri).Int("count", len(page)).Msg("Fetched repository page")

	walker.mtx.Lock()
	for _, repo := range page {
		if _, ok := walker.seen[repo.FullName]; ok {
			continue
		}
		walker.seen[repo.FullName] = struct{}{}
		walker.repos = append(walker.repos, repo)
	}
	walker.mtx.Unlock()

	for _, next := range ParseNextLinks(header) {
		walker.follow(ctx, next)
	}

	return nil
}
