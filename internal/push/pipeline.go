// Package push commits a batch of files to a GitHub branch as a single commit.
//
// The sequence is ref → commit → blobs → tree → commit → ref. Every step needs the
// SHA produced by the one before it, so nothing runs concurrently and nothing is
// retried. Objects created before a failure are left for GitHub to garbage-collect.
package push

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"
)

// GitAPI is the subset of the GitHub Git Data API the pipeline needs.
// Implemented by *github.Session; tests use a counting fake.
type GitAPI interface {
	GetBranchHead(ctx context.Context, owner, repo, branch string) (string, error)
	GetCommitTree(ctx context.Context, owner, repo, commitSHA string) (string, error)
	CreateBlob(ctx context.Context, owner, repo, content string) (string, error)
	CreateTree(ctx context.Context, owner, repo string, tree *GitTree) (string, error)
	CreateCommit(ctx context.Context, owner, repo, message, treeSHA, parentSHA string) (string, error)
	UpdateBranch(ctx context.Context, owner, repo, branch, commitSHA string) error
}

type Result struct {
	CommitSHA string `json:"commitSha"`
	CommitURL string `json:"commitUrl"`
}

type Pipeline struct {
	git GitAPI
}

func NewPipeline(git GitAPI) *Pipeline {
	return &Pipeline{git: git}
}

// Push validates req and then commits its files on top of the branch head.
// Validation failures are *ValidationError and never reach the network.
func (p *Pipeline) Push(ctx context.Context, req Request) (*Result, error) {
	files, err := req.Validate()
	if err != nil {
		return nil, err
	}
	owner, repo, branch := req.Owner, req.Repo, req.branch()
	log := logger.WithFields(logger.Fields{"owner": owner, "repo": repo, "branch": branch})

	head, err := p.git.GetBranchHead(ctx, owner, repo, branch)
	if err != nil {
		log.Debugf("[push] ref lookup failed: %v", err)
		return nil, fmt.Errorf("Branch '%s' not found in %s/%s", branch, owner, repo)
	}
	log.Debugf("[push] head %s", head)

	baseTree, err := p.git.GetCommitTree(ctx, owner, repo, head)
	if err != nil {
		return nil, fmt.Errorf("get base commit %s: %w", head, err)
	}

	tree, err := buildTree(ctx, p.git, owner, repo, baseTree, files)
	if err != nil {
		return nil, err
	}
	log.Debugf("[push] created %d blobs", len(tree.Entries))

	treeSHA, err := p.git.CreateTree(ctx, owner, repo, tree)
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}

	commitSHA, err := p.git.CreateCommit(ctx, owner, repo, req.message(), treeSHA, head)
	if err != nil {
		return nil, fmt.Errorf("create commit: %w", err)
	}

	if err := p.git.UpdateBranch(ctx, owner, repo, branch, commitSHA); err != nil {
		return nil, fmt.Errorf("update branch %s: %w", branch, err)
	}

	log.Infof("[push] committed %d files as %s", len(files), commitSHA)
	return &Result{
		CommitSHA: commitSHA,
		CommitURL: fmt.Sprintf("%s/%s/%s/commit/%s", githubWebPrefix, owner, repo, commitSHA),
	}, nil
}
