package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrCancelled is wrapped by results whose context ended first.
	ErrCancelled = errors.New("job cancelled")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("runner closed")
)

// Task is a unit of background work. It must not touch the live tree.
type Task func(ctx context.Context) (any, error)

// Token identifies a submitted task.
type Token struct {
	ID    uint64
	Key   string
	epoch uint64
}

// Result is the outcome of a task.
type Result struct {
	Token    Token
	Name     string
	Value    any
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds every task. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMaxConcurrent limits how many tasks run at once.
func WithMaxConcurrent(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.sem = make(chan struct{}, n)
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

type job struct {
	name      string
	key       string
	cancel    context.CancelFunc
	cancelled bool
}

// Runner executes tasks in the background.
type Runner struct {
	mu      sync.Mutex
	jobs    map[uint64]*job
	keys    map[string]uint64
	next    uint64
	epoch   uint64
	closed  bool
	results chan Result
	sem     chan struct{}
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		jobs:    make(map[uint64]*job),
		keys:    make(map[string]uint64),
		results: make(chan Result, 16),
		sem:     make(chan struct{}, 4),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Results returns the channel every outcome is delivered on.
func (r *Runner) Results() <-chan Result {
	return r.results
}

// Submit starts task. A non-empty key supersedes any pending task with the
// same key; that task's result will be rejected by Accept.
func (r *Runner) Submit(ctx context.Context, name, key string, task Task) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Token{}, ErrClosed
	}
	r.next++
	tok := Token{ID: r.next, Key: key, epoch: r.epoch}

	if key != "" {
		if prev, ok := r.jobs[r.keys[key]]; ok {
			r.cancelLocked(r.keys[key])
			r.logger.Debug("job superseded", "job", prev.name, "key", key)
		}
		r.keys[key] = tok.ID
	}

	jctx, cancel := context.WithCancel(ctx)
	if r.timeout > 0 {
		var stop context.CancelFunc
		jctx, stop = context.WithTimeout(jctx, r.timeout)
		parent := cancel
		cancel = func() { stop(); parent() }
	}
	r.jobs[tok.ID] = &job{name: name, key: key, cancel: cancel}

	r.wg.Add(1)
	go r.run(jctx, cancel, tok, name, task)
	return tok, nil
}

func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, tok Token, name string, task Task) {
	defer r.wg.Done()
	defer cancel()

	res := Result{Token: tok, Name: name, Started: time.Now()}
	select {
	case r.sem <- struct{}{}:
		res.Value, res.Err = task(ctx)
		<-r.sem
	case <-ctx.Done():
	}
	if ctx.Err() != nil {
		res.Value = nil
		res.Err = fmt.Errorf("%s: %w", name, errors.Join(ErrCancelled, context.Cause(ctx)))
	}
	res.Duration = time.Since(res.Started)
	r.results <- res
}

// Accept reports whether res is still wanted and forgets the task. It must
// be called once for every received result.
func (r *Runner) Accept(res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[res.Token.ID]
	if !ok {
		return false
	}
	delete(r.jobs, res.Token.ID)
	if j.key != "" && r.keys[j.key] == res.Token.ID {
		delete(r.keys, j.key)
	}
	return !j.cancelled && res.Token.epoch == r.epoch
}

// Cancel cancels one task. Its result still arrives and is rejected by Accept.
func (r *Runner) Cancel(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(tok.ID)
}

func (r *Runner) cancelLocked(id uint64) {
	if j, ok := r.jobs[id]; ok && !j.cancelled {
		j.cancelled = true
		j.cancel()
	}
}

// CancelAll cancels every pending task and starts a new epoch.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	for id := range r.jobs {
		r.cancelLocked(id)
	}
}

// Pending returns the number of submitted tasks whose results have not been
// passed to Accept.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Close cancels all tasks, waits for them to finish and closes the result
// channel. Undelivered results are dropped.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.epoch++
	for id := range r.jobs {
		r.cancelLocked(id)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-r.results:
		case <-done:
			close(r.results)
			return
		}
	}
}
