package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/spriteforge/internal/asset/importer"
	"github.com/dshills/spriteforge/internal/engine/history"
	"github.com/dshills/spriteforge/internal/event"
	"github.com/dshills/spriteforge/internal/event/events"
	"github.com/dshills/spriteforge/internal/jobs"
)

// pendingImport is a submitted import whose result has not been applied.
type pendingImport struct {
	name   string
	parent ID
	index  int
}

// ImportRequest describes a background import.
type ImportRequest struct {
	// Name becomes the sprite's name.
	Name string
	// Parent is the container the sprite is grafted into. It is pinned until
	// the result is applied or discarded.
	Parent ID
	// Index is the position under Parent, Append for the end.
	Index int
	// Path is read by the background task when Data is nil and is recorded
	// as the sprite's source.
	Path string
	Data []byte
}

// Import decodes a sprite in the background. The result is applied as one
// history entry by ProcessResults or Wait. A later import with the same
// name and parent supersedes this one.
func (e *Engine) Import(ctx context.Context, req ImportRequest) (jobs.Token, error) {
	if req.Name == "" && req.Path != "" {
		req.Name = strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return jobs.Token{}, ErrClosed
	}
	parent, err := e.tree.Get(req.Parent)
	if err != nil {
		return jobs.Token{}, opError("import", req.Parent, err)
	}
	if parent.Kind.IsLeaf() {
		return jobs.Token{}, opError("import", req.Parent, ErrInvalidParent)
	}
	if err := e.tree.Pin(req.Parent); err != nil {
		return jobs.Token{}, opError("import", req.Parent, err)
	}

	im := e.importer
	key := fmt.Sprintf("%d/%s", req.Parent, req.Name)
	tok, err := e.runner.Submit(ctx, req.Name, key, func(ctx context.Context) (any, error) {
		data := req.Data
		if data == nil {
			var err error
			if data, err = os.ReadFile(req.Path); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return im.Decode(importer.Source{Name: req.Name, Path: req.Path, Data: data})
	})
	if err != nil {
		e.tree.Unpin(req.Parent)
		return jobs.Token{}, opError("import", req.Parent, err)
	}
	e.pending[tok.ID] = pendingImport{name: req.Name, parent: req.Parent, index: req.Index}
	e.logger.Debug("import submitted", "name", req.Name, "parent", req.Parent, "job", tok.ID)
	return tok, nil
}

// CancelImport cancels one pending import. Its result is discarded when it
// arrives.
func (e *Engine) CancelImport(tok jobs.Token) {
	e.runner.Cancel(tok)
}

// CancelImports cancels every pending import.
func (e *Engine) CancelImports() {
	e.runner.CancelAll()
}

// PendingImports returns the number of imports whose results have not been
// applied or discarded.
func (e *Engine) PendingImports() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pending)
}

// ProcessResults applies every import result that has already arrived
// without blocking. Results arriving during a transaction are held until it
// ends. It returns the number of results handled and the joined errors of
// failed imports.
func (e *Engine) ProcessResults() (int, error) {
	for {
		select {
		case res, ok := <-e.runner.Results():
			if !ok {
				return e.drainBacklog()
			}
			e.queue(res)
		default:
			return e.drainBacklog()
		}
	}
}

// Wait blocks until every pending import has been applied or discarded, or
// ctx ends. It returns the joined errors of failed imports.
func (e *Engine) Wait(ctx context.Context) error {
	var errs []error
	for {
		_, err := e.drainBacklog()
		if err != nil {
			errs = append(errs, err)
		}
		if e.PendingImports() == 0 {
			return errors.Join(errs...)
		}
		select {
		case res, ok := <-e.runner.Results():
			if !ok {
				return errors.Join(append(errs, ErrClosed)...)
			}
			e.queue(res)
		case <-ctx.Done():
			return errors.Join(append(errs, fmt.Errorf("wait for imports: %w", context.Cause(ctx)))...)
		}
	}
}

func (e *Engine) queue(res jobs.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backlog = append(e.backlog, res)
}

func (e *Engine) drainBacklog() (int, error) {
	handled := 0
	var errs []error
	for {
		e.mu.Lock()
		if len(e.backlog) == 0 || e.history.Recording() || e.closed {
			e.mu.Unlock()
			return handled, errors.Join(errs...)
		}
		res := e.backlog[0]
		e.backlog = e.backlog[1:]
		n, err := e.applyLocked(res)
		e.mu.Unlock()
		e.emit(n)
		if err != nil {
			errs = append(errs, err)
		}
		handled++
	}
}

// applyLocked grafts one import result or discards it.
func (e *Engine) applyLocked(res jobs.Result) (notice, error) {
	p, tracked := e.pending[res.Token.ID]
	delete(e.pending, res.Token.ID)
	if tracked {
		e.tree.Unpin(p.parent)
	}
	timing := events.Timing{Started: res.Started, Duration: res.Duration}

	if !e.runner.Accept(res) || !tracked {
		e.stats.discarded.Add(1)
		e.logger.Debug("import discarded", "name", res.Name, "job", res.Token.ID)
		return notice{outbox: []any{
			event.NewEvent(events.TopicImportDiscarded, events.ImportDiscarded{Name: res.Name}, source),
		}}, nil
	}
	if res.Err != nil {
		return e.importFailedLocked(res.Name, res.Err, timing)
	}
	d, ok := res.Value.(Detached)
	if !ok {
		return e.importFailedLocked(res.Name, fmt.Errorf("unexpected result %T", res.Value), timing)
	}

	index := p.index
	if n, _ := e.tree.Store().ChildCount(p.parent); index > n {
		index = Append
	}
	cmd := history.NewGraftCommand(fmt.Sprintf("Import %q", p.name), p.parent, index, d)
	cs, err := e.history.Execute(cmd)
	if err != nil {
		return e.importFailedLocked(res.Name, err, timing)
	}
	e.stats.imported.Add(1)
	e.logger.Info("import applied", "name", p.name, "nodes", len(cmd.IDs()), "duration", res.Duration)
	n := e.changedLocked(events.CauseImport, cmd.Description(), cs)
	n.outbox = append(n.outbox, event.NewEvent(events.TopicImportCompleted, events.ImportCompleted{
		Name:   p.name,
		Root:   cmd.ID(),
		Nodes:  len(cmd.IDs()),
		Timing: timing,
	}, source))
	return n, nil
}

func (e *Engine) importFailedLocked(name string, err error, timing events.Timing) (notice, error) {
	e.stats.failed.Add(1)
	e.logger.Warn("import failed", "name", name, "error", err)
	return notice{outbox: []any{
		event.NewEvent(events.TopicImportFailed, events.ImportFailed{Name: name, Err: err.Error(), Timing: timing}, source),
	}}, fmt.Errorf("import %s: %w", name, err)
}
