package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

// MaxEntrySize bounds the decompressed size of a single archive entry.
const MaxEntrySize = 256 << 20

// entryLimit is the bound readEntry enforces; tests lower it.
var entryLimit int64 = MaxEntrySize

// modTime is stamped on every entry so equal trees encode to equal bytes.
var modTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Encode packages t and the blobs its frames reference.
func Encode(t *tree.Tree, blobs *blob.Store) ([]byte, error) {
	m, keys, err := buildManifest(t, blobs)
	if err != nil {
		return nil, err
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, &EncodeError{Node: t.Root(), Reason: "manifest", Err: err}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeEntry(zw, ManifestName, raw); err != nil {
		return nil, &EncodeError{Node: t.Root(), Reason: "write manifest", Err: err}
	}
	for _, key := range keys {
		data, _ := blobs.Get(key)
		if err := writeEntry(zw, BlobPrefix+key, data); err != nil {
			return nil, &EncodeError{Node: t.Root(), Reason: "write blob " + key, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &EncodeError{Node: t.Root(), Reason: "close", Err: err}
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modTime,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// buildManifest renumbers t in preorder and collects the referenced blob
// keys in sorted order.
func buildManifest(t *tree.Tree, blobs *blob.Store) (*manifest, []string, error) {
	order, err := t.Subtree(t.Root())
	if err != nil {
		return nil, nil, &EncodeError{Node: t.Root(), Reason: "walk", Err: err}
	}
	local := make(map[store.ID]uint64, len(order))
	for i, id := range order {
		local[id] = uint64(i + 1)
	}

	m := &manifest{Format: Format, Version: Version, Root: 1, Nodes: make([]manifestNode, 0, len(order))}
	seen := make(map[string]bool)
	var keys []string
	for _, id := range order {
		n, err := t.Get(id)
		if err != nil {
			return nil, nil, &EncodeError{Node: id, Reason: "read", Err: err}
		}
		if key := n.Attrs.String(store.AttrPixels); key != "" && !seen[key] {
			if blobs == nil || !blobs.Has(key) {
				return nil, nil, &EncodeError{Node: id, Reason: "missing blob", Err: fmt.Errorf("%s: %w", key, blob.ErrNotFound)}
			}
			seen[key] = true
			keys = append(keys, key)
		}
		mn := manifestNode{ID: local[id], Kind: n.Kind.String()}
		if len(n.Attrs) > 0 {
			mn.Attrs = n.Attrs
		}
		for _, c := range n.Children {
			mn.Children = append(mn.Children, local[c])
		}
		m.Nodes = append(m.Nodes, mn)
	}
	slices.Sort(keys)
	return m, keys, nil
}

// Peek reads the manifest summary of an archive.
func Peek(data []byte) (Info, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, &ParseError{Field: "zip", Reason: "not a zip archive", Err: err}
	}
	raw, err := readManifest(zr)
	if err != nil {
		return Info{}, err
	}
	return peek(raw)
}

// Decode reads an archive into a new tree and blob store.
func Decode(data []byte) (*tree.Tree, *blob.Store, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, &ParseError{Field: "zip", Reason: "not a zip archive", Err: err}
	}
	raw, err := readManifest(zr)
	if err != nil {
		return nil, nil, err
	}
	info, err := peek(raw)
	if err != nil {
		return nil, nil, err
	}
	if info.Version < Version {
		if raw, err = migrate(raw, info.Version); err != nil {
			return nil, nil, &ParseError{Field: "version", Reason: fmt.Sprintf("migrate from %d", info.Version), Err: err}
		}
	}

	var m manifest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, nil, &ParseError{Field: ManifestName, Reason: "decode", Err: err}
	}
	root, err := detach(&m)
	if err != nil {
		return nil, nil, err
	}
	t, err := tree.Build(root)
	if err != nil {
		return nil, nil, &ParseError{Field: "nodes", Reason: "build tree", Err: err}
	}

	blobs := blob.NewStore()
	for _, f := range zr.File {
		key, ok := strings.CutPrefix(f.Name, BlobPrefix)
		if !ok || key == "" {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, nil, err
		}
		if err := blobs.PutKeyed(key, content); err != nil {
			return nil, nil, &ParseError{Field: f.Name, Reason: "corrupt blob", Err: err}
		}
	}
	var missing error
	_ = t.Walk(t.Root(), func(n store.Node, _ int) bool {
		if key := n.Attrs.String(store.AttrPixels); key != "" && !blobs.Has(key) {
			missing = &ParseError{Field: BlobPrefix + key, Reason: "missing blob"}
			return false
		}
		return true
	})
	if missing != nil {
		return nil, nil, missing
	}
	return t, blobs, nil
}

func readManifest(zr *zip.Reader) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == ManifestName {
			return readEntry(f)
		}
	}
	return nil, &ParseError{Field: ManifestName, Reason: "missing"}
}

// readEntry decompresses f. The header size is only a hint: the stream is
// read one byte past the limit so an entry that lies about its size fails
// instead of being truncated.
func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(entryLimit) {
		return nil, &ParseError{Field: f.Name, Reason: fmt.Sprintf("entry of %d bytes exceeds limit", f.UncompressedSize64)}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &ParseError{Field: f.Name, Reason: "open", Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, entryLimit+1))
	if err != nil {
		return nil, &ParseError{Field: f.Name, Reason: "read", Err: err}
	}
	if int64(len(data)) > entryLimit {
		return nil, &ParseError{Field: f.Name, Reason: fmt.Sprintf("entry exceeds limit of %d bytes", entryLimit)}
	}
	return data, nil
}

// detach converts the manifest node list into a detached tree, checking
// that every node is reachable from the root exactly once.
func detach(m *manifest) (tree.Detached, error) {
	byID := make(map[uint64]*manifestNode, len(m.Nodes))
	for i := range m.Nodes {
		n := &m.Nodes[i]
		if _, dup := byID[n.ID]; dup {
			return tree.Detached{}, &ParseError{Field: fmt.Sprintf("nodes[%d].id", i), Reason: fmt.Sprintf("duplicate id %d", n.ID)}
		}
		byID[n.ID] = n
	}
	if _, ok := byID[m.Root]; !ok {
		return tree.Detached{}, &ParseError{Field: "root", Reason: fmt.Sprintf("unknown id %d", m.Root)}
	}

	visited := make(map[uint64]bool, len(m.Nodes))
	var build func(id uint64) (tree.Detached, error)
	build = func(id uint64) (tree.Detached, error) {
		n, ok := byID[id]
		if !ok {
			return tree.Detached{}, &ParseError{Field: "nodes", Reason: fmt.Sprintf("unknown child id %d", id)}
		}
		if visited[id] {
			return tree.Detached{}, &ParseError{Field: "nodes", Reason: fmt.Sprintf("node %d has more than one parent", id)}
		}
		visited[id] = true
		kind, err := store.ParseKind(n.Kind)
		if err != nil {
			return tree.Detached{}, &ParseError{Field: fmt.Sprintf("nodes[id=%d].kind", id), Reason: fmt.Sprintf("unknown kind %q", n.Kind), Err: err}
		}
		attrs, err := decodeAttrs(id, n.Attrs)
		if err != nil {
			return tree.Detached{}, err
		}
		d := tree.Detached{Kind: kind, Attrs: attrs}
		for _, c := range n.Children {
			cd, err := build(c)
			if err != nil {
				return tree.Detached{}, err
			}
			d.Children = append(d.Children, cd)
		}
		return d, nil
	}
	root, err := build(m.Root)
	if err != nil {
		return tree.Detached{}, err
	}
	if len(visited) != len(m.Nodes) {
		return tree.Detached{}, &ParseError{Field: "nodes", Reason: fmt.Sprintf("%d nodes unreachable from root", len(m.Nodes)-len(visited))}
	}
	return root, nil
}

// decodeAttrs turns the json.Number values of a manifest node into int64,
// or float64 when the literal is not an integer.
func decodeAttrs(id uint64, raw map[string]any) (store.Attrs, error) {
	if raw == nil {
		return nil, nil
	}
	attrs := make(store.Attrs, len(raw))
	for k, v := range raw {
		num, ok := v.(json.Number)
		if !ok {
			attrs[k] = v
			continue
		}
		if i, err := num.Int64(); err == nil {
			attrs[k] = i
			continue
		}
		f, err := num.Float64()
		if err != nil {
			return nil, &ParseError{Field: fmt.Sprintf("nodes[id=%d].attrs.%s", id, k), Reason: fmt.Sprintf("bad number %s", num), Err: err}
		}
		attrs[k] = f
	}
	return attrs, nil
}
