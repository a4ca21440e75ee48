package sandbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaun/figcode/server/internal/preview"
)

func testTree() preview.Tree {
	return preview.FromFiles(map[string]string{
		"package.json":              `{"name":"preview"}`,
		"src/App.tsx":               "export default function App() { return null }",
		"src/components/Button.tsx": "export default function Button() { return null }",
	})
}

type recorder struct {
	mu       sync.Mutex
	phases   []Phase
	statuses []Status
}

func (r *recorder) record(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, st.Phase())
	r.statuses = append(r.statuses, st)
}

func (r *recorder) Last() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return nil
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

func newTestManager(t *testing.T, boot *countingBoot, mod func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		Boot:         boot.Boot,
		Supported:    func() bool { return true },
		ReadyTimeout: time.Second,
	}
	if mod != nil {
		mod(&opts)
	}
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m
}

func TestManager_BootAndMount_ready(t *testing.T) {
	rt := newFakeRuntime()
	boot := &countingBoot{rt: rt}
	rec := &recorder{}
	m := newTestManager(t, boot, func(o *Options) { o.OnChange = rec.record })

	st := m.BootAndMount(context.Background(), testTree())
	assert.Equal(t, Ready{URL: "http://localhost:5173/"}, st)
	assert.Equal(t, "http://localhost:5173/", m.PreviewURL())
	assert.Equal(t, []Phase{PhaseBooting, PhaseMounting, PhaseInstalling, PhaseStarting, PhaseReady}, rec.Phases())
	assert.Equal(t, []string{"npm install", "npm run dev"}, rt.Spawned())
	assert.Equal(t, testTree().Files(), rt.mounted)
	assert.EqualValues(t, 1, boot.boots.Load())
}

func TestManager_BootAndMount_unsupported(t *testing.T) {
	boot := &countingBoot{rt: newFakeRuntime()}
	m := newTestManager(t, boot, func(o *Options) { o.Supported = func() bool { return false } })

	st := m.BootAndMount(context.Background(), testTree())
	assert.Equal(t, Failed{Message: UnsupportedMessage}, st)
	assert.Equal(t, st, m.Status())
	assert.EqualValues(t, 0, boot.boots.Load())
}

func TestManager_BootAndMount_installFails(t *testing.T) {
	rt := newFakeRuntime()
	rt.installCode = 1
	m := newTestManager(t, &countingBoot{rt: rt}, nil)

	st := m.BootAndMount(context.Background(), testTree())
	failed, ok := st.(Failed)
	require.True(t, ok, "got %#v", st)
	assert.Contains(t, failed.Message, "npm install failed with code 1")
	assert.Equal(t, []string{"npm install"}, rt.Spawned())
	assert.Empty(t, m.PreviewURL())
}

func TestManager_BootAndMount_remountKillsPreviousOnce(t *testing.T) {
	rt := newFakeRuntime()
	boot := &countingBoot{rt: rt}
	m := newTestManager(t, boot, nil)

	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))
	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))

	procs := rt.DevProcs()
	require.Len(t, procs, 2)
	assert.EqualValues(t, 1, procs[0].kills.Load())
	assert.EqualValues(t, 0, procs[1].kills.Load())
	assert.EqualValues(t, 1, boot.boots.Load(), "runtime is reused across mounts")

	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))
	procs = rt.DevProcs()
	assert.EqualValues(t, 1, procs[0].kills.Load())
	assert.EqualValues(t, 1, procs[1].kills.Load())
}

func TestManager_BootAndMount_waitsForPreviousDevServer(t *testing.T) {
	rt := newFakeRuntime()
	rt.killDelay = 30 * time.Millisecond
	m := newTestManager(t, &countingBoot{rt: rt}, nil)

	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))
	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))

	assert.Zero(t, rt.LiveAtMount(), "old dev server was still running when the project was remounted")
	procs := rt.DevProcs()
	require.Len(t, procs, 2)
	assert.False(t, procs[0].running())
}

func TestManager_BootAndMount_superseded(t *testing.T) {
	rt := newFakeRuntime()
	rt.readyURL = ""
	rec := &recorder{}
	m := newTestManager(t, &countingBoot{rt: rt}, func(o *Options) { o.OnChange = rec.record })

	first := make(chan Status, 1)
	go func() { first <- m.BootAndMount(context.Background(), testTree()) }()
	require.Eventually(t, func() bool { return m.Status() == Starting{} }, time.Second, 5*time.Millisecond)

	rt.setReadyURL("http://localhost:5173/")
	second := m.BootAndMount(context.Background(), testTree())

	var st Status
	select {
	case st = <-first:
	case <-time.After(time.Second):
		t.Fatal("replaced call did not return")
	}
	assert.Equal(t, Failed{Message: SupersededMessage}, st)
	assert.Equal(t, PhaseError, st.Phase())
	assert.Equal(t, Ready{URL: "http://localhost:5173/"}, second)
	assert.Equal(t, second, m.Status())
	assert.Equal(t, second, rec.Last())

	procs := rt.DevProcs()
	require.Len(t, procs, 2)
	assert.EqualValues(t, 1, procs[0].kills.Load())
}

func TestManager_OnChangeMatchesStatus(t *testing.T) {
	rt := newFakeRuntime()
	rec := &recorder{}
	m := newTestManager(t, &countingBoot{rt: rt}, func(o *Options) { o.OnChange = rec.record })
	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))

	for i := 0; i < 20; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.BootAndMount(context.Background(), testTree())
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				rt.emitError(errors.New("runtime crashed"))
			}
		}()
		wg.Wait()
		require.Equal(t, m.Status(), rec.Last(), "round %d", i)
	}
}

func TestManager_BootAndMount_timeout(t *testing.T) {
	rt := newFakeRuntime()
	rt.readyURL = ""
	m := newTestManager(t, &countingBoot{rt: rt}, func(o *Options) { o.ReadyTimeout = 50 * time.Millisecond })

	st := m.BootAndMount(context.Background(), testTree())
	assert.Equal(t, Failed{Message: "Dev server failed to start within 50ms"}, st)
}

func TestManager_BootAndMount_devServerExits(t *testing.T) {
	rt := newFakeRuntime()
	code := 2
	rt.devExitCode = &code
	m := newTestManager(t, &countingBoot{rt: rt}, nil)

	st := m.BootAndMount(context.Background(), testTree())
	assert.Equal(t, Failed{Message: "npm run dev exited with code 2 before it was ready"}, st)
}

func TestManager_BootAndMount_bootError(t *testing.T) {
	m := newTestManager(t, &countingBoot{err: errors.New("no space left")}, nil)
	st := m.BootAndMount(context.Background(), testTree())
	assert.Equal(t, Failed{Message: "failed to boot sandbox: no space left"}, st)
}

func TestManager_runtimeErrorFails(t *testing.T) {
	rt := newFakeRuntime()
	m := newTestManager(t, &countingBoot{rt: rt}, nil)
	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))

	rt.emitError(errors.New("runtime crashed"))
	assert.Equal(t, Failed{Message: "runtime crashed"}, m.Status())
	assert.Empty(t, m.PreviewURL())
}

func TestManager_BootAndMount_canceledContext(t *testing.T) {
	rt := newFakeRuntime()
	rt.readyURL = ""
	m := newTestManager(t, &countingBoot{rt: rt}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	st := m.BootAndMount(ctx, testTree())
	assert.Equal(t, Failed{Message: context.Canceled.Error()}, st)
}

func TestManager_WriteFiles(t *testing.T) {
	rt := newFakeRuntime()
	m := newTestManager(t, &countingBoot{rt: rt}, nil)
	ctx := context.Background()

	require.NoError(t, m.WriteFiles(ctx, map[string]string{"src/App.tsx": "x"}))
	assert.Empty(t, rt.Writes(), "no runtime yet")

	require.IsType(t, Ready{}, m.BootAndMount(ctx, testTree()))

	require.NoError(t, m.WriteFiles(ctx, testTree().Files()))
	assert.Empty(t, rt.Writes(), "identical contents are skipped")

	files := testTree().Files()
	files["src/components/Button.tsx"] = "export default function Button() { return 1 }"
	files["src/components/Button.css"] = ".btn{}"
	require.NoError(t, m.WriteFiles(ctx, files))
	assert.Equal(t, []string{"src/components/Button.css", "src/components/Button.tsx"}, rt.Writes())

	require.NoError(t, m.WriteFiles(ctx, files))
	assert.Len(t, rt.Writes(), 2)
}

func TestManager_Close(t *testing.T) {
	rt := newFakeRuntime()
	boot := &countingBoot{rt: rt}
	m := newTestManager(t, boot, nil)
	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))

	require.NoError(t, m.Close())
	assert.Equal(t, Idle{}, m.Status())
	assert.True(t, rt.torndown)
	assert.EqualValues(t, 1, rt.DevProcs()[0].kills.Load())

	require.NoError(t, m.WriteFiles(context.Background(), map[string]string{"a": "b"}))
	assert.Empty(t, rt.Writes())

	require.IsType(t, Ready{}, m.BootAndMount(context.Background(), testTree()))
	assert.EqualValues(t, 2, boot.boots.Load())
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(Options{})
	assert.Error(t, err)

	_, err = NewManager(Options{Boot: (&countingBoot{}).Boot, DevCommand: `npm "run`})
	assert.Error(t, err)

	m, err := NewManager(Options{Boot: (&countingBoot{}).Boot})
	require.NoError(t, err)
	assert.Equal(t, DefaultReadyTimeout, m.timeout)
	assert.Equal(t, "npm run dev", m.dev.String())
	assert.Equal(t, Idle{}, m.Status())
}
