package push

import (
	"fmt"
	"regexp"

	"github.com/shaun/figcode/server/internal/repopath"
)

const (
	MaxFiles        = 100
	MaxFileBytes    = 500_000
	DefaultBranch   = "main"
	DefaultMessage  = "feat: add generated component"
	blobMode        = "100644"
	blobType        = "blob"
	githubWebPrefix = "https://github.com"
)

var (
	ownerPattern  = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repoPattern   = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
	branchPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,120}$`)
)

// File is one file as submitted by a client.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// FileToCommit is a File whose path passed validation.
type FileToCommit struct {
	Path    repopath.RepoPath
	Content string
}

// Request describes one push transaction.
type Request struct {
	Owner   string
	Repo    string
	Branch  string
	Message string
	Files   []File
}

// ValidationError is returned for requests rejected before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ValidOwner reports whether s looks like a GitHub user or organization login.
func ValidOwner(s string) bool { return ownerPattern.MatchString(s) }

// ValidRepo reports whether s is an acceptable repository name.
func ValidRepo(s string) bool { return repoPattern.MatchString(s) }

// ValidBranch reports whether s is an acceptable branch name.
func ValidBranch(s string) bool { return branchPattern.MatchString(s) }

// Validate checks the whole request and returns the files with parsed paths.
// The first failure wins.
func (r Request) Validate() ([]FileToCommit, error) {
	if !ValidOwner(r.Owner) {
		return nil, invalid("Invalid repository owner.")
	}
	if !ValidRepo(r.Repo) {
		return nil, invalid("Invalid repository name.")
	}
	if r.Branch != "" && !ValidBranch(r.Branch) {
		return nil, invalid("Invalid branch name.")
	}
	if len(r.Files) == 0 {
		return nil, invalid("At least one file is required.")
	}
	if len(r.Files) > MaxFiles {
		return nil, invalid("Too many files. Max is %d.", MaxFiles)
	}
	out := make([]FileToCommit, 0, len(r.Files))
	for _, f := range r.Files {
		p, ok := repopath.Parse(f.Path)
		if !ok {
			return nil, invalid("Invalid file path: %s", f.Path)
		}
		if len(f.Content) > MaxFileBytes {
			return nil, invalid("File too large: %s", f.Path)
		}
		out = append(out, FileToCommit{Path: p, Content: f.Content})
	}
	return out, nil
}

func (r Request) branch() string {
	if r.Branch == "" {
		return DefaultBranch
	}
	return r.Branch
}

func (r Request) message() string {
	if r.Message == "" {
		return DefaultMessage
	}
	return r.Message
}
