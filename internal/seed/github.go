// Package seed fetches initial project context from external sources.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
)

// maxContextBytes caps the seeded document so one giant README cannot bloat
// every processing prompt.
const maxContextBytes = 16 * 1024

// ReadmeFetcher abstracts the GitHub repositories API for testing.
type ReadmeFetcher interface {
	GetReadme(ctx context.Context, owner, repo string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, *github.Response, error)
}

// GitHubSeeder fetches a repository README to seed a project's initial context.
type GitHubSeeder struct {
	repos  ReadmeFetcher
	logger zerolog.Logger
}

// NewGitHubSeeder creates a seeder authenticated with a personal access token.
func NewGitHubSeeder(token string, logger zerolog.Logger) *GitHubSeeder {
	client := github.NewClient(nil).WithAuthToken(token)
	return &GitHubSeeder{
		repos:  client.Repositories,
		logger: logger.With().Str("component", "seed.github").Logger(),
	}
}

// NewGitHubSeederWithAPI creates a seeder with an injected API (useful for testing).
func NewGitHubSeederWithAPI(repos ReadmeFetcher, logger zerolog.Logger) *GitHubSeeder {
	return &GitHubSeeder{
		repos:  repos,
		logger: logger.With().Str("component", "seed.github").Logger(),
	}
}

// FetchContext retrieves the README of an "owner/name" repository.
func (s *GitHubSeeder) FetchContext(ctx context.Context, repo string) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	readme, _, err := s.repos.GetReadme(ctx, owner, name, nil)
	if err != nil {
		return "", fmt.Errorf("fetching README for %s: %w", repo, err)
	}

	content, err := readme.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding README for %s: %w", repo, err)
	}

	if len(content) > maxContextBytes {
		content = content[:maxContextBytes]
	}
	s.logger.Debug().Str("repo", repo).Int("bytes", len(content)).Msg("seeded context from README")
	return content, nil
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(strings.TrimSpace(repo), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: repo must be owner/name, got %q", perrors.ErrInvalidInput, repo)
	}
	return parts[0], parts[1], nil
}
