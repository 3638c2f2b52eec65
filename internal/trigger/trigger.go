package trigger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/otaflow/ota-agent/internal/update"
)

// Source identifies what asked for an update cycle.
type Source string

// Known trigger sources.
const (
	SourceMessage  Source = "nats"
	SourceAPI      Source = "api"
	SourceSchedule Source = "schedule"
	SourceCLI      Source = "cli"
)

// Runner runs a single update cycle.
type Runner interface {
	Run(ctx context.Context) update.Outcome
}

// Gate serializes update cycles across all trigger sources.
//
// A trigger received while a cycle is running is dropped.
type Gate struct {
	// Denied, when set, is called for every dropped trigger.
	Denied func(Source)

	runner Runner
	sem    *semaphore.Weighted
	busy   atomic.Bool
	wg     sync.WaitGroup

	mu   sync.Mutex
	last *update.Outcome
}

// NewGate returns a Gate running cycles with the provided runner.
func NewGate(runner Runner) *Gate {
	return &Gate{
		runner: runner,
		sem:    semaphore.NewWeighted(1),
	}
}

// Fire runs a cycle and waits for its outcome.
//
// The boolean is false if another cycle was already running.
func (g *Gate) Fire(ctx context.Context, source Source) (update.Outcome, bool) {
	if !g.acquire(ctx, source) {
		return update.Outcome{}, false
	}

	return g.run(ctx, source), true
}

// Go starts a cycle in the background. It returns false if another cycle was already running.
func (g *Gate) Go(ctx context.Context, source Source) bool {
	if !g.acquire(ctx, source) {
		return false
	}

	g.wg.Add(1)

	go func() {
		defer g.wg.Done()

		g.run(ctx, source)
	}()

	return true
}

// Busy reports whether a cycle is in progress.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Last returns the outcome of the most recent cycle, if any.
func (g *Gate) Last() (update.Outcome, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last == nil {
		return update.Outcome{}, false
	}

	return *g.last, true
}

// Wait blocks until all background cycles have returned.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) acquire(ctx context.Context, source Source) bool {
	if !g.sem.TryAcquire(1) {
		slog.WarnContext(ctx, "Update cycle already in progress, ignoring trigger", slog.String("source", string(source)))

		if g.Denied != nil {
			g.Denied(source)
		}

		return false
	}

	g.busy.Store(true)

	return true
}

func (g *Gate) run(ctx context.Context, source Source) update.Outcome {
	defer func() {
		g.busy.Store(false)
		g.sem.Release(1)
	}()

	slog.DebugContext(ctx, "Update cycle triggered", slog.String("source", string(source)))

	out := g.runner.Run(ctx)

	g.mu.Lock()
	g.last = &out
	g.mu.Unlock()

	return out
}
