package sandbox

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaun/figcode/server/internal/preview"
)

type fakeProcess struct {
	name   string
	output string
	done   chan struct{}
	once   sync.Once
	code   int
	kills  atomic.Int32

	killDelay time.Duration // the process lingers this long after Kill
}

func newFakeProcess(name string) *fakeProcess {
	return &fakeProcess{name: name, output: name + ": started\n", done: make(chan struct{})}
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code = code
		close(p.done)
	})
}

func (p *fakeProcess) Output() io.Reader { return strings.NewReader(p.output) }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

func (p *fakeProcess) Kill() {
	p.kills.Add(1)
	if p.killDelay > 0 {
		time.AfterFunc(p.killDelay, func() { p.exit(-1) })
		return
	}
	p.exit(-1)
}

func (p *fakeProcess) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// fakeRuntime exits "npm install" with installCode and, when readyURL is set,
// announces the dev server as soon as it is spawned.
type fakeRuntime struct {
	mu          sync.Mutex
	installCode int
	readyURL    string
	devExitCode *int
	mounted     map[string]string
	writes      []string
	spawned     []string
	devProcs    []*fakeProcess
	readySubs   map[int]func(int, string)
	errorSubs   map[int]func(error)
	nextID      int
	torndown    bool

	killDelay   time.Duration
	liveAtMount int // dev servers still running when a mount started
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		readyURL:  "http://localhost:5173/",
		mounted:   map[string]string{},
		readySubs: map[int]func(int, string){},
		errorSubs: map[int]func(error){},
	}
}

func (r *fakeRuntime) Mount(_ context.Context, tree preview.Tree) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.devProcs {
		if p.running() {
			r.liveAtMount++
		}
	}
	for p, c := range tree.Files() {
		r.mounted[p] = c
	}
	return nil
}

func (r *fakeRuntime) WriteFile(_ context.Context, path, contents string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, path)
	r.mounted[path] = contents
	return nil
}

func (r *fakeRuntime) Spawn(_ context.Context, name string, args ...string) (Process, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	proc := newFakeProcess(line)

	r.mu.Lock()
	proc.killDelay = r.killDelay
	r.spawned = append(r.spawned, line)
	if line == "npm install" {
		r.mu.Unlock()
		proc.exit(r.installCode)
		return proc, nil
	}
	r.devProcs = append(r.devProcs, proc)
	url := r.readyURL
	exitCode := r.devExitCode
	subs := make([]func(int, string), 0, len(r.readySubs))
	for _, fn := range r.readySubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	if exitCode != nil {
		proc.exit(*exitCode)
		return proc, nil
	}
	if url != "" {
		for _, fn := range subs {
			fn(5173, url)
		}
	}
	return proc, nil
}

func (r *fakeRuntime) OnServerReady(fn func(int, string)) func() {
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

func (r *fakeRuntime) OnError(fn func(error)) func() {
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

func (r *fakeRuntime) emitError(err error) {
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

func (r *fakeRuntime) Teardown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.torndown = true
	return nil
}

func (r *fakeRuntime) setReadyURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readyURL = url
}

func (r *fakeRuntime) LiveAtMount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveAtMount
}

func (r *fakeRuntime) Spawned() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spawned...)
}

func (r *fakeRuntime) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func (r *fakeRuntime) DevProcs() []*fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeProcess(nil), r.devProcs...)
}

// countingBoot hands out rt and counts boots.
type countingBoot struct {
	rt    Runtime
	err   error
	boots atomic.Int32
}

func (b *countingBoot) Boot(context.Context) (Runtime, error) {
	b.boots.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return b.rt, nil
}
