package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/shaun/figcode/server/internal/preview"
)

const (
	mountConcurrency     = 8
	defaultProbeInterval = 200 * time.Millisecond
	waitDelay            = 2 * time.Second
)

// LocalOptions configures a LocalRuntime.
type LocalOptions struct {
	WorkDir       string   // parent of the sandbox root; "" uses the OS temp dir
	Env           []string // extra KEY=VALUE pairs for every process
	ProbeInterval time.Duration
}

// LocalRuntime runs the preview on this host: a private temp directory is the
// filesystem and a reserved loopback port is handed to processes as PORT.
type LocalRuntime struct {
	root     string
	port     int
	env      []string
	interval time.Duration

	mu        sync.Mutex
	nextID    int
	readySubs map[int]func(port int, url string)
	errorSubs map[int]func(err error)
	procs     map[*localProcess]struct{}

	closing      chan struct{}
	teardownOnce sync.Once
	teardownErr  error
}

// NewLocalBooter returns a BootFunc that creates LocalRuntimes.
func NewLocalBooter(opts LocalOptions) BootFunc {
	return func(ctx context.Context) (Runtime, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewLocalRuntime(opts)
	}
}

func NewLocalRuntime(opts LocalOptions) (*LocalRuntime, error) {
	if opts.WorkDir != "" {
		if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
	}
	root, err := os.MkdirTemp(opts.WorkDir, "figcode-preview-")
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox root: %w", err)
	}
	port, err := reservePort()
	if err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}
	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	logger.Debugf("[sandbox] runtime root %s, port %d", root, port)
	return &LocalRuntime{
		root:      root,
		port:      port,
		env:       append(os.Environ(), append([]string{"PORT=" + strconv.Itoa(port)}, opts.Env...)...),
		interval:  interval,
		readySubs: map[int]func(int, string){},
		errorSubs: map[int]func(error){},
		procs:     map[*localProcess]struct{}{},
		closing:   make(chan struct{}),
	}, nil
}

// reservePort asks the kernel for a free loopback port. The listener is closed
// right away, so another process could in theory grab the port first.
func reservePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (r *LocalRuntime) Root() string { return r.root }
func (r *LocalRuntime) Port() int    { return r.port }

// URL is what gets published once the dev server listens.
func (r *LocalRuntime) URL() string {
	return fmt.Sprintf("http://localhost:%d/", r.port)
}

func (r *LocalRuntime) closed() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

func (r *LocalRuntime) Mount(ctx context.Context, tree preview.Tree) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(mountConcurrency)
	for p, contents := range tree.Files() {
		g.Go(func() error {
			return r.WriteFile(ctx, p, contents)
		})
	}
	return g.Wait()
}

// WriteFile writes below the root; paths that try to escape it are resolved
// inside the root instead.
func (r *LocalRuntime) WriteFile(ctx context.Context, path, contents string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed() {
		return errors.New("sandbox runtime is torn down")
	}
	if path == "" {
		return errors.New("empty path")
	}
	full, err := securejoin.SecureJoin(r.root, path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(contents), 0o644)
}

func (r *LocalRuntime) Spawn(ctx context.Context, name string, args ...string) (Process, error) {
	if r.closed() {
		return nil, errors.New("sandbox runtime is torn down")
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.root
	cmd.Env = r.env
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &localProcess{cmd: cmd, out: pr, done: make(chan struct{})}
	r.mu.Lock()
	r.procs[p] = struct{}{}
	r.mu.Unlock()

	go func() {
		err := cmd.Wait()
		p.code = 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				p.code = exitErr.ExitCode()
			} else {
				p.code = -1
				p.err = err
			}
		}
		pw.Close()
		close(p.done)

		r.mu.Lock()
		delete(r.procs, p)
		r.mu.Unlock()
		if p.err != nil && !p.killed.Load() {
			r.emitError(fmt.Errorf("%s: %w", name, p.err))
		}
	}()
	go r.probe(p)

	logger.Debugf("[sandbox] spawned %s (pid %d)", name, cmd.Process.Pid)
	return p, nil
}

// probe polls the reserved port while p runs and emits "server ready" once.
func (r *LocalRuntime) probe(p *localProcess) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(r.port))
	for {
		select {
		case <-p.done:
			return
		case <-r.closing:
			return
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", addr, r.interval)
			if err != nil {
				continue
			}
			conn.Close()
			r.emitReady()
			return
		}
	}
}

func (r *LocalRuntime) emitReady() {
	r.mu.Lock()
	subs := make([]func(int, string), 0, len(r.readySubs))
	for _, fn := range r.readySubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	for _, fn := range subs {
		fn(r.port, r.URL())
	}
}

func (r *LocalRuntime) emitError(err error) {
	r.mu.Lock()
	subs := make([]func(error), 0, len(r.errorSubs))
	for _, fn := range r.errorSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	for _, fn := range subs {
		fn(err)
	}
}

func (r *LocalRuntime) OnServerReady(fn func(port int, url string)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.readySubs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.readySubs, id)
	}
}

func (r *LocalRuntime) OnError(fn func(err error)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.errorSubs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.errorSubs, id)
	}
}

// Teardown kills every process still running and removes the root. Only the
// first call does any work.
func (r *LocalRuntime) Teardown() error {
	r.teardownOnce.Do(func() {
		close(r.closing)
		r.mu.Lock()
		procs := make([]*localProcess, 0, len(r.procs))
		for p := range r.procs {
			procs = append(procs, p)
		}
		r.mu.Unlock()
		for _, p := range procs {
			p.Kill()
			<-p.done
		}
		r.teardownErr = os.RemoveAll(r.root)
		logger.Debugf("[sandbox] runtime %s torn down", r.root)
	})
	return r.teardownErr
}

var _ Runtime = (*LocalRuntime)(nil)
