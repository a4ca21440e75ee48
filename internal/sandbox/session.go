package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/shaun/figcode/server/internal/preview"
)

const (
	DefaultInstallCommand = "npm install"
	DefaultDevCommand     = "npm run dev"
	DefaultReadyTimeout   = 60 * time.Second

	// SupersededMessage is returned to a BootAndMount call that a newer call replaced.
	SupersededMessage = "Preview was replaced by a newer request"
)

// Options configures a Manager. Boot is required.
type Options struct {
	Boot           BootFunc
	Supported      func() bool // defaults to Supported
	InstallCommand string
	DevCommand     string
	ReadyTimeout   time.Duration
	// OnChange receives every status the manager publishes, in the order the
	// statuses were set. It runs on the goroutine that changed the status, must
	// not block and must not call BootAndMount or Close.
	OnChange func(Status)
}

// Manager owns one preview session: a single runtime, at most one dev server,
// and the snapshot of what was last written into the runtime.
type Manager struct {
	boot      BootFunc
	supported func() bool
	install   command
	dev       command
	timeout   time.Duration
	onChange  func(Status)

	publishMu sync.Mutex // orders status writes with their OnChange calls

	mu       sync.Mutex
	status   Status
	gen      uint64
	cancel   context.CancelFunc
	rt       Runtime
	unsubErr func()
	devProc  Process

	flowMu  sync.Mutex // one BootAndMount or Close at a time
	writeMu sync.Mutex
	written *snapshot
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Boot == nil {
		return nil, errors.New("sandbox: boot function is required")
	}
	if opts.Supported == nil {
		opts.Supported = Supported
	}
	if opts.InstallCommand == "" {
		opts.InstallCommand = DefaultInstallCommand
	}
	if opts.DevCommand == "" {
		opts.DevCommand = DefaultDevCommand
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	inst, err := parseCommand(opts.InstallCommand)
	if err != nil {
		return nil, fmt.Errorf("install command: %w", err)
	}
	dev, err := parseCommand(opts.DevCommand)
	if err != nil {
		return nil, fmt.Errorf("dev command: %w", err)
	}
	return &Manager{
		boot:      opts.Boot,
		supported: opts.Supported,
		install:   inst,
		dev:       dev,
		timeout:   opts.ReadyTimeout,
		onChange:  opts.OnChange,
		status:    Idle{},
		written:   newSnapshot(),
	}, nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// PreviewURL returns the live URL, or "" unless the session is ready.
func (m *Manager) PreviewURL() string {
	if r, ok := m.Status().(Ready); ok {
		return r.URL
	}
	return ""
}

// set publishes st if gen is still the current flow. Stale flows are ignored.
func (m *Manager) set(gen uint64, st Status) bool {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.status = st
	m.mu.Unlock()

	switch s := st.(type) {
	case Failed:
		logger.Warnf("[sandbox] preview failed: %s", s.Message)
	case Ready:
		logger.Infof("[sandbox] preview ready at %s", s.URL)
	default:
		logger.Debugf("[sandbox] %s", st.Phase())
	}
	if m.onChange != nil {
		m.onChange(st)
	}
	return true
}

// begin starts a new flow: it supersedes and cancels the previous one.
func (m *Manager) begin(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.cancel != nil {
		m.cancel()
	}
	flowCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	return flowCtx, m.gen, cancel
}

// BootAndMount boots the runtime (once), mounts tree, installs dependencies and
// starts the dev server. It returns Ready or Failed. A call that a newer call
// cancels returns Failed with SupersededMessage and publishes nothing further.
func (m *Manager) BootAndMount(ctx context.Context, tree preview.Tree) Status {
	flowCtx, gen, cancel := m.begin(ctx)
	defer cancel()

	if !m.supported() {
		st := Failed{Message: UnsupportedMessage}
		m.set(gen, st)
		return st
	}

	m.flowMu.Lock()
	defer m.flowMu.Unlock()
	if !m.current(gen) {
		return Failed{Message: SupersededMessage}
	}

	if err := m.run(flowCtx, gen, tree); err != nil {
		if !m.set(gen, Failed{Message: err.Error()}) {
			return Failed{Message: SupersededMessage}
		}
		return Failed{Message: err.Error()}
	}
	if !m.current(gen) {
		return Failed{Message: SupersededMessage}
	}
	return m.Status()
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) run(ctx context.Context, gen uint64, tree preview.Tree) error {
	m.set(gen, Booting{})
	rt, err := m.runtime(ctx)
	if err != nil {
		return err
	}
	m.killDevServer()

	m.set(gen, Mounting{})
	if err := rt.Mount(ctx, tree); err != nil {
		return fmt.Errorf("failed to mount project: %w", err)
	}
	m.written.Reset(tree.Files())

	m.set(gen, Installing{})
	if err := install(ctx, rt, m.install); err != nil {
		return err
	}

	m.set(gen, Starting{})
	ready := make(chan string, 1)
	unsubscribe := rt.OnServerReady(func(_ int, url string) {
		select {
		case ready <- url:
		default:
		}
	})
	defer unsubscribe()

	// The dev server outlives this call.
	proc, err := m.dev.spawn(context.WithoutCancel(ctx), rt)
	if err != nil {
		return fmt.Errorf("failed to start dev server: %w", err)
	}
	m.mu.Lock()
	m.devProc = proc
	m.mu.Unlock()

	exited := make(chan int, 1)
	go func() {
		code, _ := proc.Wait()
		exited <- code
	}()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case url := <-ready:
		m.set(gen, Ready{URL: url})
		return nil
	case <-timer.C:
		return fmt.Errorf("Dev server failed to start within %s", timeoutText(m.timeout))
	case code := <-exited:
		return fmt.Errorf("%s exited with code %d before it was ready", m.dev, code)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runtime returns the booted runtime, booting it on first use.
func (m *Manager) runtime(ctx context.Context) (Runtime, error) {
	m.mu.Lock()
	rt := m.rt
	m.mu.Unlock()
	if rt != nil {
		return rt, nil
	}

	rt, err := m.boot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to boot sandbox: %w", err)
	}
	unsub := rt.OnError(m.fail)
	m.mu.Lock()
	m.rt = rt
	m.unsubErr = unsub
	m.mu.Unlock()
	return rt, nil
}

// fail reports a runtime-level error against whichever flow is current.
func (m *Manager) fail(err error) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.set(gen, Failed{Message: err.Error()})
}

func (m *Manager) killDevServer() {
	m.mu.Lock()
	proc := m.devProc
	m.devProc = nil
	m.mu.Unlock()
	if proc != nil {
		proc.Kill()
		// The old server must release the port before the next one is probed.
		_, _ = proc.Wait()
	}
}

// WriteFiles writes the files whose contents differ from what was last written.
// Without a booted runtime it does nothing.
func (m *Manager) WriteFiles(ctx context.Context, files map[string]string) error {
	m.mu.Lock()
	rt := m.rt
	m.mu.Unlock()
	if rt == nil {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	changed := m.written.Changed(files)
	for _, p := range changed {
		if err := rt.WriteFile(ctx, p, files[p]); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		m.written.Upsert(p, files[p])
	}
	if len(changed) > 0 {
		logger.Debugf("[sandbox] wrote %d changed file(s)", len(changed))
	}
	return nil
}

// Close kills the dev server, tears the runtime down and returns to Idle. The
// next BootAndMount boots a fresh runtime.
func (m *Manager) Close() error {
	_, gen, cancel := m.begin(context.Background())
	defer cancel()

	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	m.killDevServer()
	m.mu.Lock()
	rt, unsub := m.rt, m.unsubErr
	m.rt, m.unsubErr = nil, nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	var err error
	if rt != nil {
		err = rt.Teardown()
	}
	m.written.Reset(nil)
	m.set(gen, Idle{})
	return err
}
