package bvh

import "github.com/gekko3d/rtbvh/rt/core"

// wideChild is either an interior child (node >= 0) or a leaf referencing
// PrimIdx[first : first+count] of the source binary hierarchy.
type wideChild struct {
	bounds core.AABB
	node   int
	first  uint32
	count  uint32
}

func (c wideChild) isLeaf() bool {
	return c.node < 0
}

type wideNode struct {
	bounds   core.AABB
	children []wideChild
}

type collapser struct {
	bvh   *BVH
	width int
	out   []wideNode
}

// collapse turns a binary hierarchy into nodes with up to width children by
// repeatedly opening the interior child with the largest surface area.
// The root is always an interior wide node, even for a single leaf.
func collapse(b *BVH, width int) []wideNode {
	c := &collapser{bvh: b, width: width}

	root := b.Nodes[0]
	switch {
	case len(b.PrimIdx) == 0:
		return []wideNode{{bounds: core.EmptyAABB()}}
	case root.IsLeaf():
		return []wideNode{{
			bounds: root.Bounds,
			children: []wideChild{{
				bounds: root.Bounds,
				node:   -1,
				first:  root.LeftFirst,
				count:  root.Count,
			}},
		}}
	}

	c.build(0)
	return c.out
}

func (c *collapser) build(binIdx uint32) int {
	n := c.bvh.Nodes[binIdx]
	idx := len(c.out)
	c.out = append(c.out, wideNode{bounds: n.Bounds})

	kids := []uint32{n.LeftFirst, n.LeftFirst + 1}
	for len(kids) < c.width {
		best := -1
		bestArea := float32(-1)
		for i, k := range kids {
			kn := c.bvh.Nodes[k]
			if !kn.IsLeaf() && kn.Bounds.HalfArea() > bestArea {
				best = i
				bestArea = kn.Bounds.HalfArea()
			}
		}
		if best < 0 {
			break
		}
		opened := c.bvh.Nodes[kids[best]]
		kids[best] = opened.LeftFirst
		kids = append(kids, opened.LeftFirst+1)
	}

	children := make([]wideChild, 0, len(kids))
	for _, k := range kids {
		kn := c.bvh.Nodes[k]
		if kn.IsLeaf() {
			children = append(children, wideChild{
				bounds: kn.Bounds,
				node:   -1,
				first:  kn.LeftFirst,
				count:  kn.Count,
			})
			continue
		}
		children = append(children, wideChild{bounds: kn.Bounds, node: c.build(k)})
	}
	c.out[idx].children = children
	return idx
}
