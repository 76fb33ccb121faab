package notebook

import (
	"context"
	"sync"
)

// Engine owns a Notebook and runs its cells concurrently. It is safe for use
// from multiple goroutines; every mutation swaps in a new Notebook value under
// the lock, so completions arriving in any order only ever touch their own
// cell.
type Engine struct {
	runner   *Runner
	onChange func(Notebook)

	mu     sync.Mutex
	nb     Notebook
	closed bool
	wg     sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithOnChange registers fn to receive every new snapshot. fn runs with the
// engine locked and must not call back into it.
func WithOnChange(fn func(Notebook)) EngineOption {
	return func(e *Engine) { e.onChange = fn }
}

// WithNotebook starts the engine from an existing notebook.
func WithNotebook(nb Notebook) EngineOption {
	return func(e *Engine) { e.nb = nb.ensure() }
}

// NewEngine returns an engine over a fresh notebook. A nil runner means no
// session is available and RunCell will refuse every request.
func NewEngine(runner *Runner, opts ...EngineOption) *Engine {
	e := &Engine{runner: runner, nb: New()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether cells can be run.
func (e *Engine) Enabled() bool {
	return e.runner != nil
}

// Snapshot returns the current notebook.
func (e *Engine) Snapshot() Notebook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nb
}

// UpdateInput edits the input of an editable cell.
func (e *Engine) UpdateInput(index int, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(e.nb.UpdateInput(index, text))
}

// RunCell starts evaluating the cell at index and returns immediately. It
// reports false, doing nothing, when no session is available, the engine is
// closed, or the cell cannot be run.
func (e *Engine) RunCell(ctx context.Context, index int) bool {
	if e.runner == nil {
		return false
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	next, sub, ok := e.nb.Begin(index)
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.set(next)
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		done := e.runner.Execute(ctx, sub)
		e.complete(done)
	}()
	return true
}

// Wait blocks until every started run has completed.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops the engine from accepting runs. Completions still in flight
// are discarded when they arrive.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

func (e *Engine) complete(c Completion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.set(e.nb.Apply(c))
}

// set must be called with mu held.
func (e *Engine) set(nb Notebook) {
	e.nb = nb
	if e.onChange != nil {
		e.onChange(nb)
	}
}
