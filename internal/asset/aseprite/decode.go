package aseprite

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// MaxDimension bounds the sprite and cel sizes Decode accepts.
const MaxDimension = 1 << 14

// MaxPixelBytes bounds the decoded pixel bytes of all cels in one file.
// Cel sizes are checked against it before any pixels are inflated.
const MaxPixelBytes = 256 << 20

// Decode parses an Aseprite file.
func Decode(data []byte) (*File, error) {
	d := &decoder{r: &reader{buf: data}}
	f, err := d.decode()
	if err != nil {
		return nil, err
	}
	return f, nil
}

type decoder struct {
	r      *reader
	file   *File
	start  int
	pixels int
}

func (d *decoder) fail(field, reason string, err error) error {
	return &ParseError{Field: field, Reason: reason, Offset: int64(d.start), Err: err}
}

func (d *decoder) short(field string) error {
	return d.fail(field, "truncated", errShort)
}

func (d *decoder) decode() (*File, error) {
	r := d.r
	if len(r.buf) < HeaderSize {
		return nil, d.fail("header", fmt.Sprintf("need %d bytes, have %d", HeaderSize, len(r.buf)), nil)
	}
	r.dword() // file size
	if magic := r.word(); magic != HeaderMagic {
		return nil, d.fail("header.magic", fmt.Sprintf("got 0x%04X, want 0x%04X", magic, HeaderMagic), nil)
	}
	frames := int(r.word())
	f := &File{
		Width:  int(r.word()),
		Height: int(r.word()),
		Depth:  ColorDepth(r.word()),
		Flags:  r.dword(),
	}
	if !f.Depth.Valid() {
		return nil, d.fail("header.color_depth", fmt.Sprintf("unsupported depth %d", f.Depth), nil)
	}
	if f.Width == 0 || f.Height == 0 || f.Width > MaxDimension || f.Height > MaxDimension {
		return nil, d.fail("header.size", fmt.Sprintf("invalid size %dx%d", f.Width, f.Height), nil)
	}
	r.word()  // speed, superseded by frame durations
	r.skip(8) // reserved
	f.TransparentIndex = r.byte()
	r.off = HeaderSize
	d.file = f

	f.Frames = make([]Frame, 0, frames)
	for i := range frames {
		fr, err := d.frame(i)
		if err != nil {
			return nil, err
		}
		f.Frames = append(f.Frames, fr)
	}
	if err := d.resolveLinks(); err != nil {
		return nil, err
	}
	return f, nil
}

func (d *decoder) frame(index int) (Frame, error) {
	r := d.r
	d.start = r.off
	field := fmt.Sprintf("frame[%d]", index)
	size := int(r.dword())
	magic := r.word()
	oldChunks := int(r.word())
	duration := int(r.word())
	r.skip(2)
	newChunks := int(r.dword())
	if r.err != nil {
		return Frame{}, d.short(field)
	}
	if magic != FrameMagic {
		return Frame{}, d.fail(field+".magic", fmt.Sprintf("got 0x%04X, want 0x%04X", magic, FrameMagic), nil)
	}
	end := d.start + size
	if size < 16 || end > len(r.buf) {
		return Frame{}, d.fail(field+".size", fmt.Sprintf("frame size %d exceeds data", size), nil)
	}
	chunks := newChunks
	if chunks == 0 {
		chunks = oldChunks
	}
	fr := Frame{Duration: duration}
	for c := range chunks {
		d.start = r.off
		cfield := fmt.Sprintf("%s.chunk[%d]", field, c)
		csize := int(r.dword())
		ctype := r.word()
		if r.err != nil {
			return Frame{}, d.short(cfield)
		}
		cend := d.start + csize
		if csize < 6 || cend > end {
			return Frame{}, d.fail(cfield+".size", fmt.Sprintf("chunk size %d exceeds frame", csize), nil)
		}
		body := &reader{buf: r.buf[r.off:cend]}
		if err := d.chunk(&fr, index, ctype, body, cfield); err != nil {
			return Frame{}, err
		}
		r.off = cend
	}
	r.off = end
	return fr, nil
}

func (d *decoder) chunk(fr *Frame, frame int, ctype uint16, body *reader, field string) error {
	switch ctype {
	case ChunkLayer:
		return d.layer(body, field+".layer")
	case ChunkCel:
		cel, err := d.cel(body, frame, field+".cel")
		if err != nil {
			return err
		}
		fr.Cels = append(fr.Cels, cel)
	case ChunkTags:
		return d.tags(body, field+".tags")
	case ChunkPalette:
		return d.palette(body, field+".palette")
	}
	return nil
}

func (d *decoder) layer(r *reader, field string) error {
	l := Layer{Flags: LayerFlags(r.word())}
	l.Type = LayerType(r.word())
	l.ChildLevel = int(r.word())
	r.skip(4) // default width and height
	l.Blend = BlendMode(r.word())
	l.Opacity = r.byte()
	r.skip(3)
	l.Name = r.string()
	if r.err != nil {
		return d.short(field)
	}
	switch l.Type {
	case LayerNormal, LayerGroup:
	case LayerTilemap:
		return d.fail(field+".type", fmt.Sprintf("tilemap layer %q not supported", l.Name), nil)
	default:
		return d.fail(field+".type", fmt.Sprintf("unknown layer type %d", l.Type), nil)
	}
	if d.file.Flags&FlagLayerOpacity == 0 {
		l.Opacity = 255
	}
	if d.file.Flags&FlagLayerUUID != 0 {
		id, err := uuid.FromBytes(r.bytes(16))
		if err != nil {
			return d.fail(field+".uuid", "invalid uuid", err)
		}
		l.UUID = id
	}
	if n := len(d.file.Layers); n > 0 && l.ChildLevel > d.file.Layers[n-1].ChildLevel+1 {
		return d.fail(field+".child_level", fmt.Sprintf("level %d skips a parent", l.ChildLevel), nil)
	} else if n == 0 && l.ChildLevel != 0 {
		return d.fail(field+".child_level", fmt.Sprintf("first layer has level %d", l.ChildLevel), nil)
	}
	d.file.Layers = append(d.file.Layers, l)
	return nil
}

func (d *decoder) cel(r *reader, frame int, field string) (Cel, error) {
	c := Cel{LinkedFrame: -1}
	c.Layer = int(r.word())
	c.X = int(r.short())
	c.Y = int(r.short())
	c.Opacity = r.byte()
	c.Type = CelType(r.word())
	c.Z = int(r.short())
	r.skip(5)
	if r.err != nil {
		return Cel{}, d.short(field)
	}
	if c.Layer >= len(d.file.Layers) {
		return Cel{}, d.fail(field+".layer", fmt.Sprintf("layer index %d out of range", c.Layer), nil)
	}
	if d.file.Layers[c.Layer].Type == LayerGroup {
		return Cel{}, d.fail(field+".layer", fmt.Sprintf("cel on group layer %d", c.Layer), nil)
	}
	switch c.Type {
	case CelRaw, CelCompressed:
		c.Width = int(r.word())
		c.Height = int(r.word())
		if r.err != nil {
			return Cel{}, d.short(field)
		}
		if c.Width > MaxDimension || c.Height > MaxDimension {
			return Cel{}, d.fail(field+".size", fmt.Sprintf("invalid size %dx%d", c.Width, c.Height), nil)
		}
		n := c.Width * c.Height * d.file.Depth.BytesPerPixel()
		if n > MaxPixelBytes-d.pixels {
			return Cel{}, d.fail(field+".size", fmt.Sprintf("cel of %dx%d exceeds the pixel budget of %d bytes", c.Width, c.Height, MaxPixelBytes), nil)
		}
		d.pixels += n
		if c.Type == CelRaw {
			c.Pixels = r.bytes(n)
			if r.err != nil {
				return Cel{}, d.short(field + ".pixels")
			}
			return c, nil
		}
		px, err := inflate(r.rest(), n)
		if err != nil {
			return Cel{}, d.fail(field+".pixels", "bad compressed image", err)
		}
		c.Pixels = px
	case CelLinked:
		c.LinkedFrame = int(r.word())
		if r.err != nil {
			return Cel{}, d.short(field)
		}
		if c.LinkedFrame >= frame {
			return Cel{}, d.fail(field+".link", fmt.Sprintf("frame %d links forward to %d", frame, c.LinkedFrame), nil)
		}
	case CelCompressedTile:
		return Cel{}, d.fail(field+".type", "tilemap cel not supported", nil)
	default:
		return Cel{}, d.fail(field+".type", fmt.Sprintf("unknown cel type %d", c.Type), nil)
	}
	return c, nil
}

var errSize = errors.New("decompressed size mismatch")

func inflate(src []byte, want int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, err
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", errSize, len(out), want)
	}
	return out, nil
}

func (d *decoder) tags(r *reader, field string) error {
	n := int(r.word())
	r.skip(8)
	for i := range n {
		t := Tag{
			From:      int(r.word()),
			To:        int(r.word()),
			Direction: Direction(r.byte()),
			Repeat:    int(r.word()),
		}
		r.skip(6)
		copy(t.Color[:], r.bytes(3))
		r.skip(1)
		t.Name = r.string()
		if r.err != nil {
			return d.short(fmt.Sprintf("%s[%d]", field, i))
		}
		if t.From > t.To {
			return d.fail(fmt.Sprintf("%s[%d].range", field, i), fmt.Sprintf("from %d after to %d", t.From, t.To), nil)
		}
		d.file.Tags = append(d.file.Tags, t)
	}
	return nil
}

func (d *decoder) palette(r *reader, field string) error {
	size := int(r.dword())
	first := int(r.dword())
	last := int(r.dword())
	r.skip(8)
	if r.err != nil {
		return d.short(field)
	}
	if first > last || last >= size || size > 1<<16 {
		return d.fail(field+".range", fmt.Sprintf("entries %d..%d of %d", first, last, size), nil)
	}
	if len(d.file.Palette) < size {
		grown := make([]Color, size)
		copy(grown, d.file.Palette)
		d.file.Palette = grown
	}
	for i := first; i <= last; i++ {
		flags := r.word()
		c := Color{R: r.byte(), G: r.byte(), B: r.byte(), A: r.byte()}
		if flags&1 != 0 {
			c.Name = r.string()
		}
		if r.err != nil {
			return d.short(fmt.Sprintf("%s[%d]", field, i))
		}
		d.file.Palette[i] = c
	}
	return nil
}

func (d *decoder) resolveLinks() error {
	for fi := range d.file.Frames {
		cels := d.file.Frames[fi].Cels
		for ci := range cels {
			c := &cels[ci]
			if c.Type != CelLinked {
				continue
			}
			src, ok := d.file.FindCel(c.LinkedFrame, c.Layer)
			if !ok || src.Type == CelLinked && src.Pixels == nil {
				d.start = 0
				return d.fail(fmt.Sprintf("frame[%d].cel[%d].link", fi, ci),
					fmt.Sprintf("no cel for layer %d in frame %d", c.Layer, c.LinkedFrame), nil)
			}
			c.Width, c.Height, c.Pixels = src.Width, src.Height, src.Pixels
		}
	}
	return nil
}

// FindCel returns the cel of layer in frame.
func (f *File) FindCel(frame, layer int) (Cel, bool) {
	if frame < 0 || frame >= len(f.Frames) {
		return Cel{}, false
	}
	for _, c := range f.Frames[frame].Cels {
		if c.Layer == layer {
			return c, true
		}
	}
	return Cel{}, false
}
