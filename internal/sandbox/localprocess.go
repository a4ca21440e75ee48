package sandbox

import (
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

type localProcess struct {
	cmd  *exec.Cmd
	out  *io.PipeReader
	done chan struct{}

	// set before done is closed
	code int
	err  error

	killOnce sync.Once
	killed   atomic.Bool
}

func (p *localProcess) Output() io.Reader { return p.out }

func (p *localProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

func (p *localProcess) Kill() {
	p.killOnce.Do(func() {
		p.killed.Store(true)
		_ = killProcessGroup(p.cmd)
	})
}

// treeKillArgs is the Windows command line that force-kills pid and every
// process it started.
func treeKillArgs(pid int) []string {
	return []string{"taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)}
}
