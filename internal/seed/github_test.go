package seed

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
)

type mockRepos struct {
	owner   string
	repo    string
	content *github.RepositoryContent
	err     error
}

func (m *mockRepos) GetReadme(_ context.Context, owner, repo string, _ *github.RepositoryContentGetOptions) (*github.RepositoryContent, *github.Response, error) {
	m.owner = owner
	m.repo = repo
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.content, nil, nil
}

func readmeContent(text string) *github.RepositoryContent {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	enc := "base64"
	return &github.RepositoryContent{Content: &encoded, Encoding: &enc}
}

func TestFetchContext(t *testing.T) {
	repos := &mockRepos{content: readmeContent("# MyProject\nShips widgets.")}
	s := NewGitHubSeederWithAPI(repos, zerolog.Nop())

	doc, err := s.FetchContext(context.Background(), "acme/myproject")
	require.NoError(t, err)
	assert.Equal(t, "# MyProject\nShips widgets.", doc)
	assert.Equal(t, "acme", repos.owner)
	assert.Equal(t, "myproject", repos.repo)
}

func TestFetchContext_InvalidRepoRef(t *testing.T) {
	s := NewGitHubSeederWithAPI(&mockRepos{}, zerolog.Nop())

	for _, ref := range []string{"", "noslash", "/missing-owner", "missing-name/"} {
		_, err := s.FetchContext(context.Background(), ref)
		assert.ErrorIs(t, err, perrors.ErrInvalidInput, "ref %q", ref)
	}
}

func TestFetchContext_APIFailure(t *testing.T) {
	repos := &mockRepos{err: errors.New("404 Not Found")}
	s := NewGitHubSeederWithAPI(repos, zerolog.Nop())

	_, err := s.FetchContext(context.Background(), "acme/ghost")
	assert.Error(t, err)
}

func TestFetchContext_TruncatesLargeReadme(t *testing.T) {
	big := strings.Repeat("x", maxContextBytes+500)
	repos := &mockRepos{content: readmeContent(big)}
	s := NewGitHubSeederWithAPI(repos, zerolog.Nop())

	doc, err := s.FetchContext(context.Background(), "acme/huge")
	require.NoError(t, err)
	assert.Len(t, doc, maxContextBytes)
}
