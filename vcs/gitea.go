package vcs

import (
	"agp/config"
	"agp/vcs/repository"
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"code.gitea.io/sdk/gitea"
)

const giteaPageSize = 50

type Gitea struct {
	config         *config.Host
	client         *gitea.Client
	mutex          *sync.Mutex
	initialContext context.Context
}

func NewGiteaClient(ctx context.Context, config config.Host, token string) (*Gitea, error) {
	logger := GetLoggerForHost(config)

	logger.Info().Msg("Initializing client")

	options := []gitea.ClientOption{gitea.SetContext(ctx)}
	if token != "" {
		options = append(options, gitea.SetToken(token))
	}

	client, err := gitea.NewClient(config.BaseUrl, options...)
	if err != nil {
		return nil, err
	}

	return &Gitea{config: &config, client: client, mutex: &sync.Mutex{}, initialContext: ctx}, nil
}

func (giteaClient *Gitea) withContext(ctx context.Context, cb func(client *gitea.Client) error) error {
	// The client holds a single request context, so calls are serialized while it is swapped.
	giteaClient.mutex.Lock()
	defer giteaClient.mutex.Unlock()

	giteaClient.client.SetContext(ctx)
	defer giteaClient.client.SetContext(giteaClient.initialContext)

	return cb(giteaClient.client)
}

func (giteaClient *Gitea) GetConfig() *config.Host {
	return giteaClient.config
}

func (giteaClient *Gitea) ListRepositories(ctx context.Context, username string) ([]repository.Descriptor, error) {
	logger := GetLogger(giteaClient)

	allRepos := []repository.Descriptor{}
	options := gitea.ListReposOptions{
		ListOptions: gitea.ListOptions{
			Page:     1,
			PageSize: giteaPageSize,
		},
	}

	for {
		var repos []*gitea.Repository
		var resp *gitea.Response

		err := giteaClient.withContext(ctx, func(client *gitea.Client) error {
			var err error
			repos, resp, err = client.ListUserRepos(username, options)
			return err
		})

		if err != nil {
			status := 0
			if resp != nil && resp.Response != nil {
				status = resp.StatusCode
			}
			return nil, &HTTPError{URI: giteaClient.config.BaseUrl, Status: status, Err: err}
		}

		for _, repo := range repos {
			logger.Debug().Msgf("Found repository: %s", repo.FullName)
			allRepos = append(allRepos, repository.Descriptor{
				Name:          repo.Name,
				FullName:      repo.FullName,
				DefaultBranch: repo.DefaultBranch,
				Private:       repo.Private,
				Archived:      repo.Archived,
			})
		}

		if len(repos) == 0 {
			break
		}

		totalCount, err := strconv.Atoi(resp.Header.Get("X-Total-Count"))
		if err != nil {
			// Older servers omit the total, fall back to the Link header.
			if resp.NextPage == 0 {
				break
			}
			options.ListOptions.Page = resp.NextPage
			continue
		}

		if totalCount <= options.ListOptions.Page*options.ListOptions.PageSize {
			break
		}

		options.ListOptions.Page += 1
	}

	allRepos = repository.Dedup(allRepos)
	logger.Info().Int("count", len(allRepos)).Msgf("Found repositories for %s", username)

	return allRepos, nil
}

func (giteaClient *Gitea) ProbeFile(ctx context.Context, repo repository.Descriptor, path string) (Presence, error) {
	owner, name, _ := strings.Cut(repo.FullName, "/")

	var resp *gitea.Response
	err := giteaClient.withContext(ctx, func(client *gitea.Client) error {
		var err error
		_, resp, err = client.GetFile(owner, name, repo.DefaultBranch, path)
		return err
	})

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch {
	case err == nil:
		return PresenceFound, nil
	case status == http.StatusNotFound:
		return PresenceAbsent, nil
	default:
		return PresenceUnknown, &HTTPError{URI: giteaClient.config.BaseUrl + "/" + repo.FullName + "/" + path, Status: status, Err: err}
	}
}

func (giteaClient *Gitea) CloneUrl(repo repository.Descriptor, username, token string) string {
	return cloneUrl(giteaClient.config.BaseUrl, repo.FullName, username, token)
}
