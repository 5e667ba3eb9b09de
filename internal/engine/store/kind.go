package store

// Kind is the closed set of node kinds.
type Kind uint8

const (
	// KindSprite is an imported sprite: the top of a layer hierarchy.
	KindSprite Kind = iota + 1
	// KindGroup is a container (layer group, project root or animation tag).
	KindGroup
	// KindLayer holds the frames (cels) drawn on one layer.
	KindLayer
	// KindFrame is a single cel. Frames are leaves.
	KindFrame
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{KindSprite, KindGroup, KindLayer, KindFrame}

// String returns the lowercase kind name used in archives and logs.
func (k Kind) String() string {
	switch k {
	case KindSprite:
		return "sprite"
	case KindGroup:
		return "group"
	case KindLayer:
		return "layer"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "sprite":
		return KindSprite, nil
	case "group":
		return KindGroup, nil
	case "layer":
		return KindLayer, nil
	case "frame":
		return KindFrame, nil
	default:
		return 0, ErrInvalidKind
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindSprite && k <= KindFrame
}

// IsLeaf reports whether nodes of this kind can never have children.
func (k Kind) IsLeaf() bool {
	return k == KindFrame
}
