package push

import (
	"context"
	"fmt"
)

// TreeEntry is one blob reference inside a new tree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
}

// GitTree is the tree object about to be created on top of BaseSHA.
type GitTree struct {
	BaseSHA string
	Entries []TreeEntry
}

func (t *GitTree) addBlob(path, sha string) {
	t.Entries = append(t.Entries, TreeEntry{Path: path, Mode: blobMode, Type: blobType, SHA: sha})
}

// buildTree uploads one blob per file, in order, and stops at the first failure
// so the error names the file that caused it.
func buildTree(ctx context.Context, git GitAPI, owner, repo, baseTree string, files []FileToCommit) (*GitTree, error) {
	tree := &GitTree{BaseSHA: baseTree}
	for _, f := range files {
		sha, err := git.CreateBlob(ctx, owner, repo, f.Content)
		if err != nil {
			return nil, fmt.Errorf("create blob for %s: %w", f.Path, err)
		}
		tree.addBlob(f.Path.String(), sha)
	}
	return tree, nil
}
