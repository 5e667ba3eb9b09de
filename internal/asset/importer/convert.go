package importer

import (
	"fmt"

	"github.com/dshills/spriteforge/internal/asset/aseprite"
	"github.com/dshills/spriteforge/internal/engine/store"
	"github.com/dshills/spriteforge/internal/engine/tree"
)

type layerNode struct {
	d    tree.Detached
	kids []*layerNode
}

func (n *layerNode) detach() tree.Detached {
	d := n.d
	for _, k := range n.kids {
		d.Children = append(d.Children, k.detach())
	}
	return d
}

// Convert maps f to a Sprite subtree. put stores cel pixels and returns the
// key recorded in the Frame's pixels attribute.
func Convert(f *aseprite.File, put func([]byte) string) tree.Detached {
	sprite := tree.Detached{
		Kind: store.KindSprite,
		Attrs: store.Attrs{
			store.AttrWidth:      int64(f.Width),
			store.AttrHeight:     int64(f.Height),
			store.AttrColorDepth: int64(f.Depth),
			store.AttrFrameCount: int64(len(f.Frames)),
			store.AttrVisible:    true,
		},
	}

	nodes := make([]*layerNode, len(f.Layers))
	var roots []*layerNode
	var stack []*layerNode
	for i, l := range f.Layers {
		n := &layerNode{d: layerDetached(l)}
		nodes[i] = n
		for len(stack) > l.ChildLevel {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.kids = append(parent.kids, n)
		}
		if l.Type == aseprite.LayerGroup {
			stack = append(stack, n)
		}
	}

	for fi, fr := range f.Frames {
		for _, c := range fr.Cels {
			n := nodes[c.Layer]
			n.d.Children = append(n.d.Children, tree.Detached{
				Kind: store.KindFrame,
				Attrs: store.Attrs{
					store.AttrName:     fmt.Sprintf("frame %d", fi),
					store.AttrFrame:    int64(fi),
					store.AttrDuration: int64(fr.Duration),
					store.AttrX:        int64(c.X),
					store.AttrY:        int64(c.Y),
					store.AttrWidth:    int64(c.Width),
					store.AttrHeight:   int64(c.Height),
					store.AttrOpacity:  int64(c.Opacity),
					store.AttrZ:        int64(c.Z),
					store.AttrPixels:   put(c.Pixels),
				},
			})
		}
	}

	for _, n := range roots {
		sprite.Children = append(sprite.Children, n.detach())
	}
	for _, tag := range f.Tags {
		sprite.Children = append(sprite.Children, tree.Detached{
			Kind: store.KindGroup,
			Attrs: store.Attrs{
				store.AttrName:      tag.Name,
				store.AttrRole:      store.RoleAnimation,
				store.AttrFrom:      int64(tag.From),
				store.AttrTo:        int64(tag.To),
				store.AttrDirection: tag.Direction.String(),
				store.AttrRepeat:    int64(tag.Repeat),
			},
		})
	}
	return sprite
}

func layerDetached(l aseprite.Layer) tree.Detached {
	if l.Type == aseprite.LayerGroup {
		return tree.Detached{
			Kind: store.KindGroup,
			Attrs: store.Attrs{
				store.AttrName:     l.Name,
				store.AttrVisible:  l.Visible(),
				store.AttrExpanded: l.Flags&aseprite.LayerCollapsed == 0,
			},
		}
	}
	return tree.Detached{
		Kind: store.KindLayer,
		Attrs: store.Attrs{
			store.AttrName:     l.Name,
			store.AttrVisible:  l.Visible(),
			store.AttrEditable: l.Editable(),
			store.AttrBlend:    l.Blend.String(),
			store.AttrOpacity:  int64(l.Opacity),
		},
	}
}
