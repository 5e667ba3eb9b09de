// Package asepritetest builds Aseprite files in memory for tests.
package asepritetest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"

	"github.com/dshills/spriteforge/internal/asset/aseprite"
)

type chunk struct {
	typ  uint16
	body []byte
}

// Builder assembles a file. Layer, tag and palette chunks are emitted at the
// start of the first frame; cels go to the most recently added frame.
type Builder struct {
	width, height int
	depth         aseprite.ColorDepth
	flags         uint32
	magic         uint16
	head          []chunk
	frames        [][]chunk
	durations     []int
}

// New starts a file of the given size and depth.
func New(width, height int, depth aseprite.ColorDepth) *Builder {
	return &Builder{
		width:  width,
		height: height,
		depth:  depth,
		flags:  aseprite.FlagLayerOpacity,
		magic:  aseprite.HeaderMagic,
	}
}

// Magic overrides the header magic.
func (b *Builder) Magic(m uint16) *Builder {
	b.magic = m
	return b
}

// Flags overrides the header flags.
func (b *Builder) Flags(f uint32) *Builder {
	b.flags = f
	return b
}

// Layer appends a visible, editable layer.
func (b *Builder) Layer(name string, typ aseprite.LayerType, level int) *Builder {
	return b.LayerWith(aseprite.Layer{
		Name:       name,
		Type:       typ,
		ChildLevel: level,
		Flags:      aseprite.LayerVisible | aseprite.LayerEditable,
		Opacity:    255,
	})
}

// LayerWith appends a layer with explicit fields.
func (b *Builder) LayerWith(l aseprite.Layer) *Builder {
	var w buf
	w.word(uint16(l.Flags))
	w.word(uint16(l.Type))
	w.word(uint16(l.ChildLevel))
	w.word(0)
	w.word(0)
	w.word(uint16(l.Blend))
	w.byte(l.Opacity)
	w.pad(3)
	w.string(l.Name)
	if l.Type == aseprite.LayerTilemap {
		w.dword(0)
	}
	if b.flags&aseprite.FlagLayerUUID != 0 {
		w.Write(l.UUID[:])
	}
	b.head = append(b.head, chunk{aseprite.ChunkLayer, w.Bytes()})
	return b
}

// Frame starts a new frame with the given duration in milliseconds.
func (b *Builder) Frame(duration int) *Builder {
	b.frames = append(b.frames, nil)
	b.durations = append(b.durations, duration)
	return b
}

func (b *Builder) celHeader(w *buf, layer, x, y int, typ aseprite.CelType) {
	w.word(uint16(layer))
	w.word(uint16(int16(x)))
	w.word(uint16(int16(y)))
	w.byte(255)
	w.word(uint16(typ))
	w.word(0)
	w.pad(5)
}

// RawCel adds an uncompressed cel to the current frame.
func (b *Builder) RawCel(layer, x, y, width, height int, pixels []byte) *Builder {
	var w buf
	b.celHeader(&w, layer, x, y, aseprite.CelRaw)
	w.word(uint16(width))
	w.word(uint16(height))
	w.Write(pixels)
	return b.Chunk(aseprite.ChunkCel, w.Bytes())
}

// CompressedCel adds a zlib-compressed cel to the current frame.
func (b *Builder) CompressedCel(layer, x, y, width, height int, pixels []byte) *Builder {
	var w buf
	b.celHeader(&w, layer, x, y, aseprite.CelCompressed)
	w.word(uint16(width))
	w.word(uint16(height))
	zw := zlib.NewWriter(&w)
	zw.Write(pixels)
	zw.Close()
	return b.Chunk(aseprite.ChunkCel, w.Bytes())
}

// LinkedCel adds a cel that reuses the cel of layer in frame.
func (b *Builder) LinkedCel(layer, frame int) *Builder {
	var w buf
	b.celHeader(&w, layer, 0, 0, aseprite.CelLinked)
	w.word(uint16(frame))
	return b.Chunk(aseprite.ChunkCel, w.Bytes())
}

// TilemapCel adds a compressed tilemap cel.
func (b *Builder) TilemapCel(layer int) *Builder {
	var w buf
	b.celHeader(&w, layer, 0, 0, aseprite.CelCompressedTile)
	return b.Chunk(aseprite.ChunkCel, w.Bytes())
}

// Tags adds a tags chunk.
func (b *Builder) Tags(tags ...aseprite.Tag) *Builder {
	var w buf
	w.word(uint16(len(tags)))
	w.pad(8)
	for _, t := range tags {
		w.word(uint16(t.From))
		w.word(uint16(t.To))
		w.byte(uint8(t.Direction))
		w.word(uint16(t.Repeat))
		w.pad(6)
		w.Write(t.Color[:])
		w.byte(0)
		w.string(t.Name)
	}
	b.head = append(b.head, chunk{aseprite.ChunkTags, w.Bytes()})
	return b
}

// Palette adds a palette chunk holding colors from index 0.
func (b *Builder) Palette(colors ...aseprite.Color) *Builder {
	var w buf
	w.dword(uint32(len(colors)))
	w.dword(0)
	w.dword(uint32(len(colors) - 1))
	w.pad(8)
	for _, c := range colors {
		if c.Name != "" {
			w.word(1)
		} else {
			w.word(0)
		}
		w.Write([]byte{c.R, c.G, c.B, c.A})
		if c.Name != "" {
			w.string(c.Name)
		}
	}
	b.head = append(b.head, chunk{aseprite.ChunkPalette, w.Bytes()})
	return b
}

// Chunk appends an arbitrary chunk to the current frame.
func (b *Builder) Chunk(typ uint16, body []byte) *Builder {
	if len(b.frames) == 0 {
		b.Frame(100)
	}
	n := len(b.frames) - 1
	b.frames[n] = append(b.frames[n], chunk{typ, body})
	return b
}

// Bytes serializes the file.
func (b *Builder) Bytes() []byte {
	if len(b.frames) == 0 {
		b.Frame(100)
	}
	var frames buf
	for i, chunks := range b.frames {
		if i == 0 {
			chunks = append(append([]chunk(nil), b.head...), chunks...)
		}
		var body buf
		for _, c := range chunks {
			body.dword(uint32(len(c.body) + 6))
			body.word(c.typ)
			body.Write(c.body)
		}
		frames.dword(uint32(body.Len() + 16))
		frames.word(aseprite.FrameMagic)
		frames.word(uint16(min(len(chunks), 0xFFFF)))
		frames.word(uint16(b.durations[i]))
		frames.pad(2)
		frames.dword(uint32(len(chunks)))
		frames.Write(body.Bytes())
	}

	var out buf
	out.dword(uint32(aseprite.HeaderSize + frames.Len()))
	out.word(b.magic)
	out.word(uint16(len(b.frames)))
	out.word(uint16(b.width))
	out.word(uint16(b.height))
	out.word(uint16(b.depth))
	out.dword(b.flags)
	out.word(100)
	out.pad(8)
	out.byte(0)
	out.pad(aseprite.HeaderSize - out.Len())
	out.Write(frames.Bytes())
	return out.Bytes()
}

// RGBA returns a width*height RGBA image filled with one color.
func RGBA(width, height int, r, g, bl, a uint8) []byte {
	px := make([]byte, 0, width*height*4)
	for range width * height {
		px = append(px, r, g, bl, a)
	}
	return px
}

type buf struct {
	bytes.Buffer
}

func (w *buf) byte(v uint8) { w.WriteByte(v) }

func (w *buf) word(v uint16) {
	w.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func (w *buf) dword(v uint32) {
	w.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func (w *buf) pad(n int) { w.Write(make([]byte, n)) }

func (w *buf) string(s string) {
	w.word(uint16(len(s)))
	w.WriteString(s)
}
