package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
	"github.com/shaun/figcode/server/internal/push"
	"golang.org/x/oauth2"
)

const reposPerPage = 30

type Client struct {
	hc *http.Client // optional; for tests
}

func NewClient() *Client {
	return &Client{}
}

// NewClientWithHTTPClient returns a client that uses the given http.Client for API calls (e.g. in tests).
func NewClientWithHTTPClient(hc *http.Client) *Client {
	return &Client{hc: hc}
}

// Session is a GitHub API client bound to one access token.
type Session struct {
	gh *github.Client
}

// Session authenticates every request with token. The injected http.Client, if any,
// is used as the base transport.
func (c *Client) Session(ctx context.Context, token string) *Session {
	if c.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Session{gh: github.NewClient(oauth2.NewClient(ctx, ts))}
}

// APIError is a non-2xx answer from GitHub.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error [%d] %s: %s", e.StatusCode, e.Op, e.Message)
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func wrap(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		msg := ghErr.Message
		if msg == "" {
			msg = http.StatusText(ghErr.Response.StatusCode)
		}
		return &APIError{Op: op, StatusCode: ghErr.Response.StatusCode, Message: msg}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Session) GetUser(ctx context.Context) (*github.User, error) {
	user, _, err := s.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, wrap("get user", err)
	}
	return user, nil
}

// ListRepos returns the most recently updated repositories of the authenticated user.
func (s *Session) ListRepos(ctx context.Context) ([]*github.Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: reposPerPage},
	}
	repos, _, err := s.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, wrap("list repos", err)
	}
	return repos, nil
}

// CreateRepo creates an initialized repository for the authenticated user so it
// already has a default branch to push onto.
func (s *Session) CreateRepo(ctx context.Context, name, description string, private bool) (*github.Repository, error) {
	repo, _, err := s.gh.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(private),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		return nil, wrap("create repo", err)
	}
	return repo, nil
}

func (s *Session) GetBranchHead(ctx context.Context, owner, repo, branch string) (string, error) {
	ref, _, err := s.gh.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
	if err != nil {
		return "", wrap("get ref", err)
	}
	return ref.GetObject().GetSHA(), nil
}

func (s *Session) GetCommitTree(ctx context.Context, owner, repo, commitSHA string) (string, error) {
	commit, _, err := s.gh.Git.GetCommit(ctx, owner, repo, commitSHA)
	if err != nil {
		return "", wrap("get commit", err)
	}
	return commit.GetTree().GetSHA(), nil
}

func (s *Session) CreateBlob(ctx context.Context, owner, repo, content string) (string, error) {
	blob, _, err := s.gh.Git.CreateBlob(ctx, owner, repo, &github.Blob{
		Content:  github.String(content),
		Encoding: github.String("utf-8"),
	})
	if err != nil {
		return "", wrap("create blob", err)
	}
	return blob.GetSHA(), nil
}

func (s *Session) CreateTree(ctx context.Context, owner, repo string, tree *push.GitTree) (string, error) {
	entries := make([]*github.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, &github.TreeEntry{
			Path: github.String(e.Path),
			Mode: github.String(e.Mode),
			Type: github.String(e.Type),
			SHA:  github.String(e.SHA),
		})
	}
	created, _, err := s.gh.Git.CreateTree(ctx, owner, repo, tree.BaseSHA, entries)
	if err != nil {
		return "", wrap("create tree", err)
	}
	return created.GetSHA(), nil
}

func (s *Session) CreateCommit(ctx context.Context, owner, repo, message, treeSHA, parentSHA string) (string, error) {
	commit, _, err := s.gh.Git.CreateCommit(ctx, owner, repo, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(treeSHA)},
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
	}, nil)
	if err != nil {
		return "", wrap("create commit", err)
	}
	return commit.GetSHA(), nil
}

// UpdateBranch moves the branch to commitSHA. It never forces, so GitHub rejects
// anything that is not a fast-forward.
func (s *Session) UpdateBranch(ctx context.Context, owner, repo, branch, commitSHA string) error {
	_, _, err := s.gh.Git.UpdateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	}, false)
	if err != nil {
		return wrap("update ref", err)
	}
	return nil
}

var _ push.GitAPI = (*Session)(nil)
