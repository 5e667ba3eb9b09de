package aseprite_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dshills/spriteforge/internal/asset/aseprite"
	"github.com/dshills/spriteforge/internal/asset/aseprite/asepritetest"
)

func TestDecodeLayersAndCels(t *testing.T) {
	red := asepritetest.RGBA(2, 2, 255, 0, 0, 255)
	blue := asepritetest.RGBA(1, 3, 0, 0, 255, 255)
	data := asepritetest.New(4, 4, aseprite.DepthRGBA).
		Layer("body", aseprite.LayerNormal, 0).
		Layer("fx", aseprite.LayerGroup, 0).
		Layer("glow", aseprite.LayerNormal, 1).
		Frame(120).
		RawCel(0, 1, 1, 2, 2, red).
		CompressedCel(2, -1, 0, 1, 3, blue).
		Frame(80).
		LinkedCel(0, 0).
		Bytes()

	f, err := aseprite.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Width != 4 || f.Height != 4 || f.Depth != aseprite.DepthRGBA {
		t.Errorf("header = %dx%d depth %d", f.Width, f.Height, f.Depth)
	}
	if len(f.Layers) != 3 {
		t.Fatalf("layers = %d, want 3", len(f.Layers))
	}
	if f.Layers[1].Type != aseprite.LayerGroup || f.Layers[2].ChildLevel != 1 {
		t.Errorf("layer hierarchy = %+v", f.Layers)
	}
	if !f.Layers[0].Visible() || !f.Layers[0].Editable() {
		t.Error("layer flags lost")
	}
	if len(f.Frames) != 2 || f.Frames[0].Duration != 120 || f.Frames[1].Duration != 80 {
		t.Fatalf("frames = %+v", f.Frames)
	}

	c0 := f.Frames[0].Cels[0]
	if c0.X != 1 || c0.Y != 1 || !bytes.Equal(c0.Pixels, red) {
		t.Errorf("raw cel = %+v", c0)
	}
	c1 := f.Frames[0].Cels[1]
	if c1.X != -1 || c1.Width != 1 || c1.Height != 3 || !bytes.Equal(c1.Pixels, blue) {
		t.Errorf("compressed cel = %+v", c1)
	}
	linked := f.Frames[1].Cels[0]
	if linked.LinkedFrame != 0 || !bytes.Equal(linked.Pixels, red) || linked.Width != 2 {
		t.Errorf("linked cel = %+v", linked)
	}
}

func TestDecodeTagsAndPalette(t *testing.T) {
	data := asepritetest.New(2, 2, aseprite.DepthIndexed).
		Layer("a", aseprite.LayerNormal, 0).
		Palette(aseprite.Color{R: 1, G: 2, B: 3, A: 255}, aseprite.Color{A: 0, Name: "clear"}).
		Tags(
			aseprite.Tag{Name: "walk", From: 0, To: 1, Direction: aseprite.PingPong, Repeat: 2},
			aseprite.Tag{Name: "idle", From: 2, To: 2},
		).
		Frame(100).Frame(100).Frame(100).
		Bytes()

	f, err := aseprite.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Tags) != 2 {
		t.Fatalf("tags = %+v", f.Tags)
	}
	walk := f.Tags[0]
	if walk.Name != "walk" || walk.To != 1 || walk.Direction != aseprite.PingPong || walk.Repeat != 2 {
		t.Errorf("walk = %+v", walk)
	}
	if walk.Direction.String() != "pingpong" {
		t.Errorf("direction = %s", walk.Direction)
	}
	if len(f.Palette) != 2 || f.Palette[0].G != 2 || f.Palette[1].Name != "clear" {
		t.Errorf("palette = %+v", f.Palette)
	}
}

func TestDecodeLayerUUID(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	data := asepritetest.New(1, 1, aseprite.DepthGrayscale).
		Flags(aseprite.FlagLayerOpacity|aseprite.FlagLayerUUID).
		LayerWith(aseprite.Layer{Name: "u", Opacity: 128, UUID: id, Blend: 1}).
		Bytes()

	f, err := aseprite.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	l := f.Layers[0]
	if l.UUID != id || l.Opacity != 128 || l.Blend.String() != "multiply" {
		t.Errorf("layer = %+v", l)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		field string
	}{
		{
			name:  "short header",
			data:  []byte{1, 2, 3},
			field: "header",
		},
		{
			name:  "bad magic",
			data:  asepritetest.New(1, 1, aseprite.DepthRGBA).Magic(0x1234).Bytes(),
			field: "header.magic",
		},
		{
			name:  "unknown depth",
			data:  asepritetest.New(1, 1, 24).Bytes(),
			field: "header.color_depth",
		},
		{
			name: "tilemap layer",
			data: asepritetest.New(1, 1, aseprite.DepthRGBA).
				Layer("tiles", aseprite.LayerTilemap, 0).Bytes(),
			field: "layer.type",
		},
		{
			name: "tilemap cel",
			data: asepritetest.New(1, 1, aseprite.DepthRGBA).
				Layer("a", aseprite.LayerNormal, 0).TilemapCel(0).Bytes(),
			field: "cel.type",
		},
		{
			name: "cel on missing layer",
			data: asepritetest.New(1, 1, aseprite.DepthRGBA).
				RawCel(3, 0, 0, 1, 1, []byte{0, 0, 0, 0}).Bytes(),
			field: "cel.layer",
		},
		{
			name: "truncated raw pixels",
			data: asepritetest.New(2, 2, aseprite.DepthRGBA).
				Layer("a", aseprite.LayerNormal, 0).
				RawCel(0, 0, 0, 2, 2, []byte{1, 2, 3}).Bytes(),
			field: "cel.pixels",
		},
		{
			name: "cel over pixel budget",
			data: asepritetest.New(1, 1, aseprite.DepthRGBA).
				Layer("a", aseprite.LayerNormal, 0).
				CompressedCel(0, 0, 0, aseprite.MaxDimension, aseprite.MaxDimension, []byte{0, 0, 0, 0}).Bytes(),
			field: "cel.size",
		},
		{
			name: "skipped level",
			data: asepritetest.New(1, 1, aseprite.DepthRGBA).
				Layer("a", aseprite.LayerGroup, 0).
				Layer("b", aseprite.LayerNormal, 2).Bytes(),
			field: "layer.child_level",
		},
		{
			name: "link to missing cel",
			data: asepritetest.New(1, 1, aseprite.DepthRGBA).
				Layer("a", aseprite.LayerNormal, 0).
				Frame(10).
				Frame(10).LinkedCel(0, 0).Bytes(),
			field: "link",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := aseprite.Decode(tt.data)
			var pe *aseprite.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if !strings.HasSuffix(pe.Field, tt.field) {
				t.Errorf("Field = %q, want suffix %q", pe.Field, tt.field)
			}
		})
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	data := asepritetest.New(2, 2, aseprite.DepthRGBA).
		Layer("a", aseprite.LayerNormal, 0).Bytes()
	_, err := aseprite.Decode(data[:len(data)-4])
	var pe *aseprite.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	data := asepritetest.New(1, 1, aseprite.DepthRGBA).
		Layer("a", aseprite.LayerNormal, 0).
		Chunk(aseprite.ChunkUserData, []byte{1, 0, 0, 0}).
		Chunk(aseprite.ChunkSlice, []byte{9, 9}).
		RawCel(0, 0, 0, 1, 1, []byte{1, 2, 3, 4}).
		Bytes()
	f, err := aseprite.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n := len(f.Frames[0].Cels); n != 1 {
		t.Errorf("cels = %d, want 1", n)
	}
}
