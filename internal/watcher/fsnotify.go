package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/spriteforge/internal/event"
	"github.com/dshills/spriteforge/internal/event/events"
)

// Watcher delivers debounced changes to source files.
type Watcher struct {
	cfg   config
	match matcher
	fsw   *fsnotify.Watcher

	mu      sync.Mutex
	files   map[string]bool
	dirs    map[string]*dirWatch
	pending map[string]*pending
	seq     uint64
	closed  bool

	events  chan Event
	errors  chan error
	closeCh chan struct{}
	wg      sync.WaitGroup

	delivered atomic.Int64
	coalesced atomic.Int64
	dropped   atomic.Int64
	errCount  atomic.Int64
}

// dirWatch counts the reasons a directory is registered with fsnotify.
type dirWatch struct {
	files int
	all   bool
}

type pending struct {
	op    Op
	gen   uint64
	timer *time.Timer
}

// New creates a watcher. Nothing is watched until Watch is called.
func New(opts ...Option) (*Watcher, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	m, err := newMatcher(cfg.patterns, cfg.ignore)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		cfg:     cfg,
		match:   m,
		fsw:     fsw,
		files:   make(map[string]bool),
		dirs:    make(map[string]*dirWatch),
		pending: make(map[string]*pending),
		events:  make(chan Event, cfg.bufferSize),
		errors:  make(chan error, cfg.bufferSize),
		closeCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch starts watching a source file, or every source file in a directory.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}

	if info.IsDir() {
		if d := w.dirs[abs]; d != nil && d.all {
			return ErrAlreadyWatching
		}
		d, err := w.addDirLocked(abs)
		if err != nil {
			return err
		}
		d.all = true
		return nil
	}

	if w.files[abs] {
		return ErrAlreadyWatching
	}
	if !w.match.source(filepath.Base(abs)) {
		return ErrNotSource
	}
	d, err := w.addDirLocked(filepath.Dir(abs))
	if err != nil {
		return err
	}
	d.files++
	w.files[abs] = true
	w.cfg.logger.Debug("watching source", "path", abs)
	return nil
}

// Unwatch stops watching a file or directory previously passed to Watch.
func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}

	dir := abs
	switch d := w.dirs[abs]; {
	case w.files[abs]:
		delete(w.files, abs)
		dir = filepath.Dir(abs)
		w.dirs[dir].files--
		w.dropPendingLocked(abs)
	case d != nil && d.all:
		d.all = false
		for p := range w.pending {
			if filepath.Dir(p) == abs && !w.files[p] {
				w.dropPendingLocked(p)
			}
		}
	default:
		return ErrNotWatching
	}

	if d := w.dirs[dir]; d.files == 0 && !d.all {
		delete(w.dirs, dir)
		return w.fsw.Remove(dir)
	}
	return nil
}

func (w *Watcher) addDirLocked(dir string) (*dirWatch, error) {
	if d, ok := w.dirs[dir]; ok {
		return d, nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return nil, err
	}
	d := &dirWatch{}
	w.dirs[dir] = d
	return d, nil
}

func (w *Watcher) dropPendingLocked(path string) {
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// Events returns the channel of debounced events. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of fsnotify errors. It is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Watched returns the watched files and directories in sorted order.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files)+len(w.dirs))
	for f := range w.files {
		out = append(out, f)
	}
	for d, dw := range w.dirs {
		if dw.all {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Flush delivers every pending event now instead of after the quiet period.
func (w *Watcher) Flush() {
	w.mu.Lock()
	type due struct {
		path string
		gen  uint64
	}
	var list []due
	for path, p := range w.pending {
		p.timer.Stop()
		list = append(list, due{path, p.gen})
	}
	w.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].path < list[j].path })
	for _, d := range list {
		w.fire(d.path, d.gen)
	}
}

// Stats returns watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		WatchedFiles: len(w.files),
		WatchedDirs:  len(w.dirs),
		Pending:      len(w.pending),
		Delivered:    w.delivered.Load(),
		Coalesced:    w.coalesced.Load(),
		Dropped:      w.dropped.Load(),
		Errors:       w.errCount.Load(),
	}
}

// Close stops the watcher, discards pending events and closes both channels.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for path := range w.pending {
		w.dropPendingLocked(path)
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	close(w.events)
	close(w.errors)
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errCount.Add(1)
			w.cfg.logger.Warn("watch error", "error", err)
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(fe fsnotify.Event) {
	op := convertOp(fe.Op)
	if op == 0 {
		return
	}
	path := filepath.Clean(fe.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.wantedLocked(path) {
		return
	}

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		p.op |= op
		p.gen++
		w.coalesced.Add(1)
		gen := p.gen
		p.timer = time.AfterFunc(w.cfg.debounce, func() { w.fire(path, gen) })
		return
	}
	p := &pending{op: op}
	p.timer = time.AfterFunc(w.cfg.debounce, func() { w.fire(path, 0) })
	w.pending[path] = p
}

func (w *Watcher) wantedLocked(path string) bool {
	if w.files[path] {
		return true
	}
	d := w.dirs[filepath.Dir(path)]
	return d != nil && d.all && w.match.source(filepath.Base(path))
}

// fire delivers the pending event for path if gen is still its latest change.
func (w *Watcher) fire(path string, gen uint64) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok || p.gen != gen || w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.seq++
	ev := Event{Path: path, Op: p.op, Seq: w.seq, Timestamp: time.Now()}
	select {
	case w.events <- ev:
		w.delivered.Add(1)
	default:
		w.dropped.Add(1)
		w.cfg.logger.Warn("watch event dropped", "path", path, "op", ev.Op)
	}
	w.mu.Unlock()

	w.cfg.logger.Debug("source changed", "path", path, "op", ev.Op, "seq", ev.Seq)
	if b := w.cfg.bus; b != nil && b.IsRunning() {
		payload := events.SourceChanged{Path: path, Op: ev.Op.String()}
		_ = b.Publish(context.Background(), event.NewEvent(events.TopicSourceChanged, payload, "watcher"))
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
