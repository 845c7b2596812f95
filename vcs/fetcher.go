package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v50/github"
	"github.com/rs/zerolog/log"
)

// ErrNotFound matches an *HTTPError whose status is 404.
var ErrNotFound = errors.New("not found")

// HTTPError is a request that failed in transport or returned a non-success status.
// Status is 0 when no response was received.
type HTTPError struct {
	URI    string
	Status int
	Err    error
}

func (err *HTTPError) Error() string {
	if err.Status == 0 {
		return fmt.Sprintf("GET %s: %v", err.URI, err.Err)
	}

	return fmt.Sprintf("GET %s: status %d", err.URI, err.Status)
}

func (err *HTTPError) Unwrap() error {
	return err.Err
}

func (err *HTTPError) Is(target error) bool {
	return target == ErrNotFound && err.Status == http.StatusNotFound
}

// Fetcher performs a single GET and returns the response headers and raw body.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (http.Header, []byte, error)
}

// GitHubFetcher sends requests through a go-github client, which carries
// authentication and tracks the API rate limit between calls.
type GitHubFetcher struct {
	client *github.Client
}

func NewGitHubFetcher(client *github.Client) *GitHubFetcher {
	return &GitHubFetcher{client: client}
}

func (fetcher *GitHubFetcher) Fetch(ctx context.Context, uri string) (http.Header, []byte, error) {
	req, err := fetcher.client.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, nil, &HTTPError{URI: uri, Err: err}
	}

	resp, err := fetcher.client.BareDo(ctx, req)
	if err != nil {
		status := 0
		if resp != nil && resp.Response != nil {
			status = resp.StatusCode
		}

		return nil, nil, &HTTPError{URI: uri, Status: status, Err: err}
	}
	defer resp.Body.Close()

	if resp.Rate.Limit > 0 {
		log.Debug().
			Str("uri", uri).
			Int("remaining", resp.Rate.Remaining).
			Int("limit", resp.Rate.Limit).
			Msg("Rate limit")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &HTTPError{URI: uri, Err: err}
	}

	return resp.Header, body, nil
}

// RawFetcher sends plain requests for file contents on a raw host. It stays
// out of go-github's rate-limit bookkeeping, since raw hosts are not limited
// by the API quota and their responses carry no rate headers.
type RawFetcher struct {
	client *http.Client
}

func NewRawFetcher(client *http.Client) *RawFetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &RawFetcher{client: client}
}

func (fetcher *RawFetcher) Fetch(ctx context.Context, uri string) (http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, nil, &HTTPError{URI: uri, Err: err}
	}

	resp, err := fetcher.client.Do(req)
	if err != nil {
		return nil, nil, &HTTPError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &HTTPError{URI: uri, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &HTTPError{URI: uri, Status: resp.StatusCode}
	}

	return resp.Header, body, nil
}
