package store

import (
	"maps"
	"slices"
)

// AttrType is the scalar type of an attribute value.
type AttrType uint8

const (
	AttrString AttrType = iota + 1
	AttrBool
	AttrInt
	AttrFloat
)

// String returns the type name.
func (t AttrType) String() string {
	switch t {
	case AttrString:
		return "string"
	case AttrBool:
		return "bool"
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Well-known attribute keys.
const (
	AttrName       = "name"
	AttrVisible    = "visible"
	AttrWidth      = "width"
	AttrHeight     = "height"
	AttrColorDepth = "color_depth"
	AttrFrameCount = "frame_count"
	AttrSource     = "source"
	AttrRole       = "role"
	AttrFrom       = "from"
	AttrTo         = "to"
	AttrDirection  = "direction"
	AttrRepeat     = "repeat"
	AttrExpanded   = "expanded"
	AttrBlend      = "blend"
	AttrOpacity    = "opacity"
	AttrEditable   = "editable"
	AttrFrame      = "frame"
	AttrDuration   = "duration"
	AttrX          = "x"
	AttrY          = "y"
	AttrPixels     = "pixels"
	AttrZ          = "z"
)

// RoleAnimation marks a group that describes an animation tag.
const RoleAnimation = "animation"

var commonSchema = map[string]AttrType{
	AttrName:    AttrString,
	AttrVisible: AttrBool,
}

var kindSchemas = map[Kind]map[string]AttrType{
	KindSprite: {
		AttrWidth:      AttrInt,
		AttrHeight:     AttrInt,
		AttrColorDepth: AttrInt,
		AttrFrameCount: AttrInt,
		AttrSource:     AttrString,
	},
	KindGroup: {
		AttrRole:      AttrString,
		AttrFrom:      AttrInt,
		AttrTo:        AttrInt,
		AttrDirection: AttrString,
		AttrRepeat:    AttrInt,
		AttrExpanded:  AttrBool,
	},
	KindLayer: {
		AttrBlend:    AttrString,
		AttrOpacity:  AttrInt,
		AttrEditable: AttrBool,
	},
	KindFrame: {
		AttrFrame:    AttrInt,
		AttrDuration: AttrInt,
		AttrX:        AttrInt,
		AttrY:        AttrInt,
		AttrWidth:    AttrInt,
		AttrHeight:   AttrInt,
		AttrOpacity:  AttrInt,
		AttrPixels:   AttrString,
		AttrZ:        AttrInt,
	},
}

// AttrTypeOf returns the declared type of key for kind.
func (k Kind) AttrTypeOf(key string) (AttrType, bool) {
	if t, ok := commonSchema[key]; ok {
		return t, true
	}
	t, ok := kindSchemas[k][key]
	return t, ok
}

// Schema returns the attribute keys accepted by kind, sorted.
func (k Kind) Schema() []string {
	keys := slices.Collect(maps.Keys(commonSchema))
	keys = append(keys, slices.Collect(maps.Keys(kindSchemas[k]))...)
	slices.Sort(keys)
	return keys
}

// Attrs holds kind-specific attribute values.
// Values are string, bool, int64 or float64.
type Attrs map[string]any

// Clone returns a copy of a. Values are scalars so a shallow copy suffices.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return Attrs{}
	}
	return maps.Clone(a)
}

// Equal reports whether a and b hold the same keys and values.
func (a Attrs) Equal(b Attrs) bool {
	return maps.Equal(a, b)
}

// String returns the string value of key, or "".
func (a Attrs) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the integer value of key, or 0.
func (a Attrs) Int(key string) int64 {
	i, _ := a[key].(int64)
	return i
}

// Bool returns the boolean value of key and whether it was set.
func (a Attrs) Bool(key string) (bool, bool) {
	b, ok := a[key].(bool)
	return b, ok
}

// NormalizeValue converts v to the canonical representation of its type.
func NormalizeValue(v any) (any, AttrType, bool) {
	switch x := v.(type) {
	case string:
		return x, AttrString, true
	case bool:
		return x, AttrBool, true
	case int:
		return int64(x), AttrInt, true
	case int8:
		return int64(x), AttrInt, true
	case int16:
		return int64(x), AttrInt, true
	case int32:
		return int64(x), AttrInt, true
	case int64:
		return x, AttrInt, true
	case uint8:
		return int64(x), AttrInt, true
	case uint16:
		return int64(x), AttrInt, true
	case uint32:
		return int64(x), AttrInt, true
	case float32:
		return float64(x), AttrFloat, true
	case float64:
		return x, AttrFloat, true
	default:
		return nil, 0, false
	}
}

// ValidateAttr checks key and value against the schema of kind and returns the
// normalized value.
func ValidateAttr(kind Kind, key string, value any) (any, error) {
	want, ok := kind.AttrTypeOf(key)
	if !ok {
		return nil, &AttrError{Kind: kind, Key: key, Value: value, Err: ErrInvalidAttribute}
	}
	v, got, ok := NormalizeValue(value)
	if !ok {
		return nil, &AttrError{Kind: kind, Key: key, Value: value, Err: ErrInvalidAttribute}
	}
	// Whole floats are accepted for int keys.
	if want == AttrInt && got == AttrFloat {
		f := v.(float64)
		if f != float64(int64(f)) {
			return nil, &AttrError{Kind: kind, Key: key, Value: value, Err: ErrInvalidAttribute}
		}
		v, got = int64(f), AttrInt
	}
	if want == AttrFloat && got == AttrInt {
		v, got = float64(v.(int64)), AttrFloat
	}
	if got != want {
		return nil, &AttrError{Kind: kind, Key: key, Value: value, Err: ErrInvalidAttribute}
	}
	return v, nil
}

// ValidateAttrs validates every entry of attrs and returns a normalized copy.
func ValidateAttrs(kind Kind, attrs Attrs) (Attrs, error) {
	out := make(Attrs, len(attrs))
	for key, value := range attrs {
		v, err := ValidateAttr(kind, key, value)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
