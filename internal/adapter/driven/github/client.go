// Package github implements the RemoteSync port by storing the vault file in
// a GitHub repository through the contents API, using the go-github library.
package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RemoteSync = (*Client)(nil)

// Options locates the remote copy of the vault and its credentials.
type Options struct {
	// Repo is the "owner/repo" holding the vault file.
	Repo string
	// Path is the file path inside the repository.
	Path string
	// Branch is optional; the repository default branch is used when empty.
	Branch string
	// TokenFile holds the access token. It is re-read on every request so an
	// external process can refresh it.
	TokenFile string
}

// Client implements the driven.RemoteSync port using the go-github library.
type Client struct {
	gh     *gh.Client
	owner  string
	repo   string
	path   string
	branch string
}

// NewClient creates a new GitHub contents client with the following transport stack:
//  1. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  2. httpcache (ETag-based conditional request caching)
//  3. token file authentication
//  4. go-github (GitHub REST API client)
func NewClient(opts Options) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	cacheTransport.Transport = &tokenFileTransport{path: opts.TokenFile, base: http.DefaultTransport}
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	return newClient(gh.NewClient(rateLimitClient), opts)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
// The token file transport is layered over httpClient's transport.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, opts Options) (*Client, error) {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	authed := *httpClient
	authed.Transport = &tokenFileTransport{path: opts.TokenFile, base: base}

	client := gh.NewClient(&authed)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return newClient(client, opts)
}

func newClient(client *gh.Client, opts Options) (*Client, error) {
	owner, repo, err := splitRepo(opts.Repo)
	if err != nil {
		return nil, err
	}

	path := strings.Trim(opts.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("remote path must not be empty")
	}

	return &Client{
		gh:     client,
		owner:  owner,
		repo:   repo,
		path:   path,
		branch: opts.Branch,
	}, nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits "owner/repo" into its two parts.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
