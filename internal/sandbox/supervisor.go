package sandbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kballard/go-shellquote"
	logger "github.com/sirupsen/logrus"
)

const maxOutputLine = 1 << 20

// command is a parsed, shell-quoted command line such as "npm run dev".
type command struct {
	name string
	args []string
}

func parseCommand(line string) (command, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return command{}, fmt.Errorf("invalid command %q: %w", line, err)
	}
	if len(words) == 0 {
		return command{}, errors.New("empty command")
	}
	return command{name: words[0], args: words[1:]}, nil
}

func (c command) String() string {
	return shellquote.Join(append([]string{c.name}, c.args...)...)
}

func (c command) spawn(ctx context.Context, rt Runtime) (Process, error) {
	proc, err := rt.Spawn(ctx, c.name, c.args...)
	if err != nil {
		return nil, err
	}
	go drain(proc.Output(), c.String())
	return proc, nil
}

// drain logs every output line at debug level. Output is never parsed; it only
// has to be consumed so the process does not block on a full pipe.
func drain(r io.Reader, label string) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for scanner.Scan() {
		logger.Debugf("[sandbox] %s: %s", label, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
	}
}

// waitExit returns the exit code of proc, or ctx's error after killing proc when
// ctx ends first.
func waitExit(ctx context.Context, proc Process) (int, error) {
	type result struct {
		code int
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		code, err := proc.Wait()
		ch <- result{code, err}
	}()
	select {
	case res := <-ch:
		return res.code, res.err
	case <-ctx.Done():
		proc.Kill()
		return -1, ctx.Err()
	}
}

// install runs the dependency install to completion.
func install(ctx context.Context, rt Runtime, c command) error {
	proc, err := c.spawn(ctx, rt)
	if err != nil {
		return err
	}
	code, err := waitExit(ctx, proc)
	if err != nil {
		return fmt.Errorf("%s: %w", c, err)
	}
	if code != 0 {
		return fmt.Errorf("%s failed with code %d", c, code)
	}
	return nil
}

// timeoutText renders whole seconds as "60s" and anything else with
// time.Duration formatting.
func timeoutText(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
