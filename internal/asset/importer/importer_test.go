package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/spriteforge/internal/asset/aseprite"
	"github.com/dshills/spriteforge/internal/asset/aseprite/asepritetest"
	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

func duckFile() []byte {
	body := asepritetest.RGBA(2, 2, 200, 180, 0, 255)
	hat := asepritetest.RGBA(1, 1, 255, 0, 0, 255)
	return asepritetest.New(8, 8, aseprite.DepthRGBA).
		Layer("body", aseprite.LayerNormal, 0).
		Layer("head", aseprite.LayerGroup, 0).
		Layer("hat", aseprite.LayerNormal, 1).
		Tags(aseprite.Tag{Name: "idle", From: 0, To: 1, Direction: aseprite.Forward}).
		Frame(100).
		RawCel(0, 0, 0, 2, 2, body).
		RawCel(2, 3, 1, 1, 1, hat).
		Frame(150).
		LinkedCel(0, 0).
		Bytes()
}

func TestDecodeStructure(t *testing.T) {
	blobs := blob.NewStore()
	im := New(blobs)
	d, err := im.Decode(Source{Name: "duck", Path: "/art/duck.aseprite", Data: duckFile()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	tr, err := tree.Build(tree.Detached{Kind: store.KindGroup, Children: []tree.Detached{d}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := strings.Join([]string{
		"1 group",
		"  2 sprite color_depth=32 frame_count=2 height=8 name=duck source=/art/duck.aseprite visible=true width=8",
		"    3 layer blend=normal editable=true name=body opacity=255 visible=true",
		"      4 frame duration=100 frame=0 height=2 name=frame 0 opacity=255 pixels=" + blob.Key(asepritetest.RGBA(2, 2, 200, 180, 0, 255)) + " width=2 x=0 y=0 z=0",
		"      5 frame duration=150 frame=1 height=2 name=frame 1 opacity=255 pixels=" + blob.Key(asepritetest.RGBA(2, 2, 200, 180, 0, 255)) + " width=2 x=0 y=0 z=0",
		"    6 group expanded=true name=head visible=true",
		"      7 layer blend=normal editable=true name=hat opacity=255 visible=true",
		"        8 frame duration=100 frame=0 height=1 name=frame 0 opacity=255 pixels=" + blob.Key(asepritetest.RGBA(1, 1, 255, 0, 0, 255)) + " width=1 x=3 y=1 z=0",
		"    9 group direction=forward from=0 name=idle repeat=0 role=animation to=1",
	}, "\n") + "\n"
	if got := tr.Dump(); got != want {
		t.Errorf("Dump mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
	if blobs.Len() != 2 {
		t.Errorf("blobs = %d, want 2 (linked cel shares its source)", blobs.Len())
	}
}

func TestDecodeCache(t *testing.T) {
	data := duckFile()
	im := New(blob.NewStore())
	a, err := im.Decode(Source{Name: "a", Data: data})
	if err != nil {
		t.Fatal(err)
	}
	fresh := blob.NewStore()
	im.blobs = fresh
	b, err := im.Decode(Source{Name: "b", Data: data})
	if err != nil {
		t.Fatal(err)
	}
	if a.Attrs.String(store.AttrName) != "a" || b.Attrs.String(store.AttrName) != "b" {
		t.Errorf("names = %q %q", a.Attrs.String(store.AttrName), b.Attrs.String(store.AttrName))
	}
	s := im.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Cached != 1 {
		t.Errorf("stats = %+v", s)
	}
	if fresh.Len() != 2 {
		t.Errorf("cache hit did not restore blobs: %d", fresh.Len())
	}
}

func TestDecodeCacheDisabled(t *testing.T) {
	im := New(blob.NewStore(), WithCacheSize(0))
	for range 2 {
		if _, err := im.Decode(Source{Name: "x", Data: duckFile()}); err != nil {
			t.Fatal(err)
		}
	}
	if s := im.Stats(); s.Hits != 0 || s.Misses != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDecodeError(t *testing.T) {
	im := New(blob.NewStore())
	_, err := im.Decode(Source{Name: "bad", Data: []byte("nope")})
	var pe *aseprite.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *aseprite.ParseError", err)
	}
	if !strings.Contains(err.Error(), "import bad") {
		t.Errorf("err = %v", err)
	}

	if _, err := New(nil).Decode(Source{Data: duckFile()}); !errors.Is(err, ErrNoBlobStore) {
		t.Errorf("err = %v, want ErrNoBlobStore", err)
	}
}

func TestDecodeAll(t *testing.T) {
	im := New(blob.NewStore(), WithConcurrency(2))
	srcs := []Source{
		{Name: "one", Data: duckFile()},
		{Name: "two", Data: asepritetest.New(1, 1, aseprite.DepthIndexed).Bytes()},
		{Name: "three", Data: duckFile()},
	}
	out, err := im.DecodeAll(context.Background(), srcs)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	for i, d := range out {
		if got := d.Attrs.String(store.AttrName); got != srcs[i].Name {
			t.Errorf("out[%d] = %q, want %q", i, got, srcs[i].Name)
		}
	}

	srcs[1].Data = []byte{0}
	if _, err := im.DecodeAll(context.Background(), srcs); err == nil {
		t.Error("DecodeAll succeeded with a corrupt source")
	}
}

func TestImport(t *testing.T) {
	im := New(blob.NewStore())
	tr, err := im.Import("duck", duckFile())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	kids, _ := tr.Children(tr.Root())
	if len(kids) != 1 {
		t.Fatalf("root children = %v", kids)
	}
	p, _ := tr.Path(kids[0])
	if p != "project/duck" {
		t.Errorf("path = %q", p)
	}
}
