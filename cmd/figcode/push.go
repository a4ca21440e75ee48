package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shaun/figcode/server/internal/github"
	"github.com/shaun/figcode/server/internal/push"
	"github.com/shaun/figcode/server/internal/repopath"
)

var (
	pushOwner   string
	pushRepo    string
	pushBranch  string
	pushMessage string
	pushDir     string
	pushToken   string
)

var pushCmd = &cobra.Command{
	Use:   "push <file|glob>...",
	Short: "Commit local files to a GitHub branch in one commit",
	Long: `Push uploads the given files into --dir of the repository and moves the branch
to a new commit on top of its current head. The update is never forced.

The token is read from --token or GITHUB_TOKEN.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVar(&pushOwner, "owner", "", "Repository owner")
	pushCmd.Flags().StringVar(&pushRepo, "repo", "", "Repository name")
	pushCmd.Flags().StringVarP(&pushBranch, "branch", "b", push.DefaultBranch, "Branch to update")
	pushCmd.Flags().StringVarP(&pushMessage, "message", "m", push.DefaultMessage, "Commit message")
	pushCmd.Flags().StringVar(&pushDir, "dir", "src/components", "Target directory inside the repository")
	pushCmd.Flags().StringVar(&pushToken, "token", "", "GitHub access token (or set GITHUB_TOKEN)")
	_ = pushCmd.MarkFlagRequired("owner")
	_ = pushCmd.MarkFlagRequired("repo")
}

func runPush(cmd *cobra.Command, args []string) error {
	token := pushToken
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return errors.New("no GitHub token: pass --token or set GITHUB_TOKEN")
	}

	files, err := collectFiles(args, pushDir)
	if err != nil {
		return err
	}
	logger.Infof("[push] %d file(s) -> %s/%s@%s", len(files), pushOwner, pushRepo, pushBranch)

	session := github.NewClient().Session(cmd.Context(), token)
	res, err := push.NewPipeline(session).Push(cmd.Context(), push.Request{
		Owner:   pushOwner,
		Repo:    pushRepo,
		Branch:  pushBranch,
		Message: pushMessage,
		Files:   files,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.CommitURL)
	return nil
}

// collectFiles expands patterns (doublestar globs allowed) and maps every match
// to <dir>/<base name>. Two matches with the same base name are an error.
func collectFiles(patterns []string, dir string) ([]push.File, error) {
	seen := map[string]string{}
	var files []push.File
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			target, ok := repopath.BuildFilePath(dir, filepath.Base(m))
			if !ok {
				return nil, fmt.Errorf("invalid target path for %s in %q", m, dir)
			}
			if prev, dup := seen[target.String()]; dup {
				if prev == m {
					continue
				}
				return nil, fmt.Errorf("%s and %s both map to %s", prev, m, target)
			}
			seen[target.String()] = m

			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			files = append(files, push.File{Path: target.String(), Content: string(data)})
		}
	}
	return files, nil
}
