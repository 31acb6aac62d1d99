package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v44/github"
	"golang.org/x/oauth2"
)

const RETRY_NUM uint64 = 3

type GithubServiceClient interface {
	GetRepository(ctx context.Context, fullName string) (*github.Repository, error)
	Clone(ctx context.Context, token string, cloneURL string, dstDir string) error
	HeadRevision(dstDir string) (string, error)
}

type GitHubRepoService interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
}

type GitHubV3Client struct {
	Repositories GitHubRepoService
	*github.Client
}

type fuzzopsGitHubClient struct {
	defaultToken string
	baseURL      string
	retryer      backoff.BackOff
	logger       logging.Logger
}

func NewGithubClient(defaultToken, baseURL string, logger logging.Logger) *fuzzopsGitHubClient {
	return &fuzzopsGitHubClient{
		defaultToken: defaultToken,
		baseURL:      baseURL,
		retryer:      backoff.WithMaxRetries(backoff.NewExponentialBackOff(), RETRY_NUM),
		logger:       logger,
	}
}

func (g *fuzzopsGitHubClient) newV3Client(ctx context.Context, token string) (*GitHubV3Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: getToken(token, g.defaultToken)},
	))
	client := github.NewClient(httpClient)
	if g.baseURL != "" { // Default: "https://api.github.com/"
		u, err := url.Parse(g.baseURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}
	return &GitHubV3Client{
		Repositories: client.Repositories,
		Client:       client,
	}, nil
}

func getToken(token, defaultToken string) string {
	if token != "" {
		return token
	}
	return defaultToken
}

// GetRepository resolves clone URL and default branch for a project referenced
// as "owner/repo".
func (g *fuzzopsGitHubClient) GetRepository(ctx context.Context, fullName string) (*github.Repository, error) {
	client, err := g.newV3Client(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("create github-v3 client: %w", err)
	}
	return g.getRepository(ctx, client.Repositories, fullName)
}

func (g *fuzzopsGitHubClient) getRepository(ctx context.Context, repository GitHubRepoService, fullName string) (*github.Repository, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid repository name format: %s, expected 'owner/repo'", fullName)
	}
	repo, _, err := repository.Get(ctx, parts[0], parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", fullName, err)
	}
	return repo, nil
}

func (g *fuzzopsGitHubClient) Clone(ctx context.Context, token string, cloneURL string, dstDir string) error {
	operation := func() error {
		opts := &git.CloneOptions{
			URL: cloneURL,
		}
		if t := getToken(token, g.defaultToken); t != "" {
			opts.Auth = &http.BasicAuth{
				Username: "dummy", // anything except an empty string
				Password: t,
			}
		}
		_, err := git.PlainClone(dstDir, false, opts)
		return err
	}

	if err := backoff.RetryNotify(operation, g.retryer, g.newRetryLogger(ctx, "github clone")); err != nil {
		return fmt.Errorf("failed to clone %s to %s: %w", cloneURL, dstDir, err)
	}

	return nil
}

// HeadRevision returns the commit SHA the cloned work tree points at.
func (g *fuzzopsGitHubClient) HeadRevision(dstDir string) (string, error) {
	repo, err := git.PlainOpen(dstDir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository %s: %w", dstDir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD of %s: %w", dstDir, err)
	}
	return head.Hash().String(), nil
}

func (g *fuzzopsGitHubClient) newRetryLogger(ctx context.Context, funcName string) func(error, time.Duration) {
	return func(err error, ti time.Duration) {
		g.logger.Warnf(ctx, "[RetryLogger] %s error: duration=%+v, err=%+v", funcName, ti, err)
	}
}
