package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaun/figcode/server/internal/repopath"
)

var pathCmd = &cobra.Command{
	Use:   "path <directory> [file]",
	Short: "Normalize a target directory, or the file path built from it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			dir, ok := repopath.NormalizeDirectory(args[0])
			if !ok {
				return fmt.Errorf("invalid directory: %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		}
		p, ok := repopath.BuildFilePath(args[0], args[1])
		if !ok {
			return fmt.Errorf("invalid path: %q + %q", args[0], args[1])
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}
