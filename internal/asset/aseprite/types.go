package aseprite

import "github.com/google/uuid"

// Magic numbers.
const (
	HeaderMagic = 0xA5E0
	FrameMagic  = 0xF1FA
	HeaderSize  = 128
)

// Chunk types.
const (
	ChunkOldPalette   = 0x0004
	ChunkOldPalette2  = 0x0011
	ChunkLayer        = 0x2004
	ChunkCel          = 0x2005
	ChunkCelExtra     = 0x2006
	ChunkColorProfile = 0x2007
	ChunkExternal     = 0x2008
	ChunkMask         = 0x2016
	ChunkPath         = 0x2017
	ChunkTags         = 0x2018
	ChunkPalette      = 0x2019
	ChunkUserData     = 0x2020
	ChunkSlice        = 0x2022
	ChunkTileset      = 0x2023
)

// Header flags.
const (
	FlagLayerOpacity      = 1
	FlagGroupBlendOpacity = 2
	FlagLayerUUID         = 4
)

// ColorDepth is the number of bits per pixel.
type ColorDepth uint16

const (
	DepthIndexed   ColorDepth = 8
	DepthGrayscale ColorDepth = 16
	DepthRGBA      ColorDepth = 32
)

// BytesPerPixel returns the pixel stride.
func (d ColorDepth) BytesPerPixel() int {
	return int(d) / 8
}

// Valid reports whether d is a supported depth.
func (d ColorDepth) Valid() bool {
	return d == DepthIndexed || d == DepthGrayscale || d == DepthRGBA
}

// LayerType distinguishes image layers from groups.
type LayerType uint16

const (
	LayerNormal  LayerType = 0
	LayerGroup   LayerType = 1
	LayerTilemap LayerType = 2
)

// LayerFlags is the layer flag bitset.
type LayerFlags uint16

const (
	LayerVisible LayerFlags = 1 << iota
	LayerEditable
	LayerLockMovement
	LayerBackground
	LayerPreferLinkedCels
	LayerCollapsed
	LayerReference
)

// BlendMode is a layer blend mode.
type BlendMode uint16

var blendNames = []string{
	"normal", "multiply", "screen", "overlay", "darken", "lighten",
	"color_dodge", "color_burn", "hard_light", "soft_light", "difference",
	"exclusion", "hue", "saturation", "color", "luminosity", "addition",
	"subtract", "divide",
}

// String returns the blend mode name.
func (b BlendMode) String() string {
	if int(b) < len(blendNames) {
		return blendNames[b]
	}
	return "normal"
}

// Direction is a tag's loop direction.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
	PingPong
	PingPongReverse
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Reverse:
		return "reverse"
	case PingPong:
		return "pingpong"
	case PingPongReverse:
		return "pingpong_reverse"
	default:
		return "forward"
	}
}

// CelType is the storage type of a cel.
type CelType uint16

const (
	CelRaw            CelType = 0
	CelLinked         CelType = 1
	CelCompressed     CelType = 2
	CelCompressedTile CelType = 3
)

// File is a decoded sprite.
type File struct {
	Width            int
	Height           int
	Depth            ColorDepth
	Flags            uint32
	TransparentIndex uint8
	Layers           []Layer
	Frames           []Frame
	Tags             []Tag
	Palette          []Color
}

// Layer is one entry of the layer list. Layers are ordered bottom to top
// and nest by ChildLevel.
type Layer struct {
	Name       string
	Type       LayerType
	Flags      LayerFlags
	ChildLevel int
	Blend      BlendMode
	Opacity    uint8
	UUID       uuid.UUID
}

// Visible reports whether the visible flag is set.
func (l Layer) Visible() bool { return l.Flags&LayerVisible != 0 }

// Editable reports whether the editable flag is set.
func (l Layer) Editable() bool { return l.Flags&LayerEditable != 0 }

// Frame is one animation frame.
type Frame struct {
	// Duration in milliseconds.
	Duration int
	Cels     []Cel
}

// Cel is the image of one layer in one frame.
type Cel struct {
	Layer   int
	X, Y    int
	Opacity uint8
	Z       int
	Type    CelType
	Width   int
	Height  int
	Pixels  []byte
	// LinkedFrame is the frame a linked cel points at, or -1.
	LinkedFrame int
}

// Tag is an animation range.
type Tag struct {
	Name      string
	From      int
	To        int
	Direction Direction
	Repeat    int
	Color     [3]uint8
}

// Color is a palette entry.
type Color struct {
	R, G, B, A uint8
	Name       string
}
