package vcs

import (
	"agp/config"
	"agp/vcs/repository"
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Vcs is a forge hosting the repositories to keep alive.
type Vcs interface {
	GetConfig() *config.Host
	// ListRepositories returns every repository owned by username, deduplicated by full name.
	ListRepositories(ctx context.Context, username string) ([]repository.Descriptor, error)
	// ProbeFile checks whether path exists on the default branch of repo.
	// A non-nil error always comes with PresenceUnknown.
	ProbeFile(ctx context.Context, repo repository.Descriptor, path string) (Presence, error)
	// CloneUrl returns an https URL with embedded credentials when token is set,
	// and an ssh URL otherwise.
	CloneUrl(repo repository.Descriptor, username, token string) string
}

func LoadClient(ctx context.Context, host config.Host, token string) (Vcs, error) {
	switch host.Type {
	case config.HOST_GITEA:
		return NewGiteaClient(ctx, host, token)
	case config.HOST_GITHUB:
		return NewGitHubClient(ctx, host, token)
	}

	return nil, fmt.Errorf("unsupported host type: %s", host.Type)
}

func GetLogger(vcs Vcs) zerolog.Logger {
	return GetLoggerForHost(*vcs.GetConfig())
}

func GetLoggerForHost(host config.Host) zerolog.Logger {
	return log.With().Str("host", host.Name).Logger()
}

func cloneUrl(baseUrl string, fullName, username, token string) string {
	parsed, err := url.Parse(baseUrl)
	if err != nil || parsed.Host == "" {
		parsed = &url.URL{Scheme: "https", Host: baseUrl}
	}

	if token == "" {
		return fmt.Sprintf("git@%s:%s.git", parsed.Hostname(), fullName)
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}

	return (&url.URL{
		Scheme: scheme,
		User:   url.UserPassword(username, token),
		Host:   parsed.Host,
		Path:   fmt.Sprintf("%s/%s.git", parsed.Path, fullName),
	}).String()
}
