package vcs

import (
	"agp/config"
	"agp/vcs/repository"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/go-github/v50/github"
)

const githubPageSize = 100

type GitHub struct {
	config *config.Host
	api    Fetcher
	raw    Fetcher
}

func NewGitHubClient(ctx context.Context, config config.Host, token string) (*GitHub, error) {
	logger := GetLoggerForHost(config)

	logger.Info().Msg("Initializing client")

	var client *github.Client
	if token != "" {
		client = github.NewTokenClient(ctx, token)
	} else {
		logger.Warn().Msg("No token, using unauthenticated API access")
		client = github.NewClient(nil)
	}

	// The raw fetcher shares the authenticated transport but not the API rate state.
	return NewGitHub(config, NewGitHubFetcher(client), NewRawFetcher(client.Client())), nil
}

// NewGitHub builds a host listing through api and reading files through raw.
func NewGitHub(config config.Host, api, raw Fetcher) *GitHub {
	return &GitHub{config: &config, api: api, raw: raw}
}

func (this *GitHub) GetConfig() *config.Host {
	return this.config
}

func (this *GitHub) ListRepositories(ctx context.Context, username string) ([]repository.Descriptor, error) {
	firstPage := fmt.Sprintf("%s/users/%s/repos?per_page=%d", this.config.ApiUrl, url.PathEscape(username), githubPageSize)

	repos, err := ListRepositories(ctx, this.api, firstPage)
	if err != nil {
		return nil, err
	}

	logger := GetLogger(this)
	logger.Info().Int("count", len(repos)).Msgf("Found repositories for %s", username)

	return repos, nil
}

func (this *GitHub) ProbeFile(ctx context.Context, repo repository.Descriptor, path string) (Presence, error) {
	uri := fmt.Sprintf("%s/%s/%s/%s", this.config.RawUrl, repo.FullName, repo.DefaultBranch, path)

	_, _, err := this.raw.Fetch(ctx, uri)
	switch {
	case err == nil:
		return PresenceFound, nil
	case errors.Is(err, ErrNotFound):
		return PresenceAbsent, nil
	default:
		return PresenceUnknown, err
	}
}

func (this *GitHub) CloneUrl(repo repository.Descriptor, username, token string) string {
	return cloneUrl(this.config.BaseUrl, repo.FullName, username, token)
}
