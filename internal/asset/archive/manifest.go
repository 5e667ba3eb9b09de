package archive

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Format identifiers.
const (
	Format       = "spriteforge"
	Version      = 2
	ManifestName = "manifest.json"
	BlobPrefix   = "blobs/"
)

type manifest struct {
	Format  string         `json:"format"`
	Version int            `json:"version"`
	Root    uint64         `json:"root"`
	Nodes   []manifestNode `json:"nodes"`
}

type manifestNode struct {
	ID       uint64         `json:"id"`
	Kind     string         `json:"kind"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	Children []uint64       `json:"children,omitempty"`
}

// Info summarizes a manifest without decoding the tree.
type Info struct {
	Format  string
	Version int
	Nodes   int
	Kinds   map[string]int
}

func peek(raw []byte) (Info, error) {
	if !gjson.ValidBytes(raw) {
		return Info{}, &ParseError{Field: ManifestName, Reason: "invalid JSON"}
	}
	res := gjson.GetManyBytes(raw, "format", "version", "nodes")
	info := Info{
		Format:  res[0].String(),
		Version: int(res[1].Int()),
		Kinds:   make(map[string]int),
	}
	if info.Format != Format {
		return info, &ParseError{Field: "format", Reason: fmt.Sprintf("got %q, want %q", info.Format, Format)}
	}
	if !res[1].Exists() || info.Version < 1 {
		return info, &ParseError{Field: "version", Reason: "missing or invalid"}
	}
	if info.Version > Version {
		return info, fmt.Errorf("archive version %d (supported %d): %w", info.Version, Version, ErrUnsupportedVersion)
	}
	kindField := "kind"
	if info.Version == 1 {
		kindField = "type"
	}
	res[2].ForEach(func(_, node gjson.Result) bool {
		info.Nodes++
		info.Kinds[node.Get(kindField).String()]++
		return true
	})
	return info, nil
}

// migrate upgrades a manifest to the current version.
func migrate(raw []byte, from int) ([]byte, error) {
	var err error
	if from == 1 {
		n := int(gjson.GetBytes(raw, "nodes.#").Int())
		for i := range n {
			typ := gjson.GetBytes(raw, fmt.Sprintf("nodes.%d.type", i))
			if !typ.Exists() {
				continue
			}
			if raw, err = sjson.SetBytes(raw, fmt.Sprintf("nodes.%d.kind", i), typ.String()); err != nil {
				return nil, err
			}
			if raw, err = sjson.DeleteBytes(raw, fmt.Sprintf("nodes.%d.type", i)); err != nil {
				return nil, err
			}
		}
		from = 2
	}
	return sjson.SetBytes(raw, "version", from)
}
