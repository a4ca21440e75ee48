//go:build windows

package sandbox

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessGroup has taskkill walk the child's process tree (npm, node, esbuild)
// and falls back to the direct child when taskkill is unavailable.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	args := treeKillArgs(cmd.Process.Pid)
	if err := exec.Command(args[0], args[1:]...).Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
