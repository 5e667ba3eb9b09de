package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/spriteforge/internal/asset/aseprite"
	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

// Defaults.
const (
	DefaultCacheSize   = 32
	DefaultConcurrency = 4
)

// ErrNoBlobStore indicates an Importer was used without a blob store.
var ErrNoBlobStore = errors.New("importer: nil blob store")

// Source is one input of a batch import.
type Source struct {
	Name string
	// Path is recorded as the sprite's source attribute when set.
	Path string
	Data []byte
}

type cached struct {
	sprite tree.Detached
	pixels map[string][]byte
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
	Cached int
}

// Importer decodes sprites into detached subtrees.
type Importer struct {
	blobs       *blob.Store
	cache       *lru.Cache[uint64, cached]
	concurrency int
	logger      *slog.Logger
	hits        atomic.Uint64
	misses      atomic.Uint64
}

// Option configures an Importer.
type Option func(*Importer)

// WithCacheSize sets the number of decoded files kept. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(im *Importer) {
		if n <= 0 {
			im.cache = nil
			return
		}
		c, err := lru.New[uint64, cached](n)
		if err == nil {
			im.cache = c
		}
	}
}

// WithConcurrency bounds parallel decodes in DecodeAll.
func WithConcurrency(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// New creates an Importer that stores pixel data in blobs.
func New(blobs *blob.Store, opts ...Option) *Importer {
	im := &Importer{
		blobs:       blobs,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
	}
	WithCacheSize(DefaultCacheSize)(im)
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Blobs returns the blob store pixels are written to.
func (im *Importer) Blobs() *blob.Store {
	return im.blobs
}

// Decode converts one file into a Sprite subtree named name.
func (im *Importer) Decode(src Source) (tree.Detached, error) {
	if im.blobs == nil {
		return tree.Detached{}, ErrNoBlobStore
	}
	sum := xxhash.Sum64(src.Data)
	if im.cache != nil {
		if c, ok := im.cache.Get(sum); ok {
			im.hits.Add(1)
			for _, px := range c.pixels {
				im.blobs.Put(px)
			}
			return named(c.sprite, src), nil
		}
	}
	im.misses.Add(1)

	f, err := aseprite.Decode(src.Data)
	if err != nil {
		return tree.Detached{}, fmt.Errorf("import %s: %w", src.Name, err)
	}
	pixels := make(map[string][]byte)
	sprite := Convert(f, func(px []byte) string {
		key := blob.Key(px)
		pixels[key] = px
		return key
	})
	for _, px := range pixels {
		im.blobs.Put(px)
	}
	if im.cache != nil {
		im.cache.Add(sum, cached{sprite: sprite, pixels: pixels})
	}
	im.logger.Debug("sprite decoded",
		"name", src.Name,
		"layers", len(f.Layers),
		"frames", len(f.Frames),
		"blobs", len(pixels))
	return named(sprite, src), nil
}

// DecodeAll decodes sources in parallel. Results keep the input order. The
// first failure cancels the remaining work.
func (im *Importer) DecodeAll(ctx context.Context, srcs []Source) ([]tree.Detached, error) {
	out := make([]tree.Detached, len(srcs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := im.Decode(src)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Import decodes data and returns a new project tree holding the sprite.
func (im *Importer) Import(name string, data []byte) (*tree.Tree, error) {
	d, err := im.Decode(Source{Name: name, Data: data})
	if err != nil {
		return nil, err
	}
	t := tree.New()
	if _, err := t.Graft(t.Root(), tree.Append, d); err != nil {
		return nil, fmt.Errorf("import %s: %w", name, err)
	}
	return t, nil
}

// Stats returns cache counters.
func (im *Importer) Stats() Stats {
	s := Stats{Hits: im.hits.Load(), Misses: im.misses.Load()}
	if im.cache != nil {
		s.Cached = im.cache.Len()
	}
	return s
}

// named returns d with the sprite name and source replaced. The children
// are shared with the cached value and must be treated as read-only.
func named(d tree.Detached, src Source) tree.Detached {
	d.Attrs = d.Attrs.Clone()
	d.Attrs[store.AttrName] = src.Name
	if src.Path != "" {
		d.Attrs[store.AttrSource] = src.Path
	}
	return d
}
