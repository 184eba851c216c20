package bvh

import (
	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

const cpuWidth = 4

// CPUNode stores four children side by side. Count[i] > 0 marks a leaf
// whose triangles start at Child[i]; otherwise Child[i] is a node index.
type CPUNode struct {
	Bounds [cpuWidth]core.AABB
	Child  [cpuWidth]uint32
	Count  [cpuWidth]uint32
	Used   uint8
}

// CPUBVH is the 4-wide variant traversed on the CPU. It owns a copy of the
// triangles in leaf order, stored as vertex plus two edges.
type CPUBVH struct {
	nodes  []CPUNode
	tris   []mgl32.Vec3
	prims  []uint32
	bounds core.AABB
}

// BuildCPU builds the CPU variant over three vertices per triangle.
func BuildCPU(tris []mgl32.Vec4, opts BuildOptions) *CPUBVH {
	opts = opts.normalized()
	bin := Build(tris, opts)
	wide := collapse(bin, cpuWidth)

	c := &CPUBVH{
		nodes:  make([]CPUNode, len(wide)),
		tris:   make([]mgl32.Vec3, 0, len(bin.PrimIdx)*3),
		prims:  append([]uint32(nil), bin.PrimIdx...),
		bounds: wide[0].bounds,
	}
	for _, p := range bin.PrimIdx {
		v0 := tris[p*3].Vec3()
		c.tris = append(c.tris, v0, tris[p*3+1].Vec3().Sub(v0), tris[p*3+2].Vec3().Sub(v0))
	}

	for i, wn := range wide {
		node := &c.nodes[i]
		node.Used = uint8(len(wn.children))
		for k, ch := range wn.children {
			node.Bounds[k] = ch.bounds
			if ch.isLeaf() {
				node.Child[k] = ch.first
				node.Count[k] = ch.count
			} else {
				node.Child[k] = uint32(ch.node)
			}
		}
	}
	return c
}

func (c *CPUBVH) Bounds() core.AABB {
	return c.bounds
}

func (c *CPUBVH) NodeCount() int {
	return len(c.nodes)
}

func (c *CPUBVH) TriCount() int {
	return len(c.prims)
}

// Intersect returns the nearest hit or core.NoHit.
func (c *CPUBVH) Intersect(r core.Ray) core.Hit {
	hit := core.NoHit()
	if len(c.prims) == 0 {
		return hit
	}

	var near [cpuWidth]struct {
		t   float32
		idx uint32
	}
	stack := make([]uint32, 1, 64)
	for len(stack) > 0 {
		n := &c.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		pending := 0
		for i := 0; i < int(n.Used); i++ {
			tEnter, ok := n.Bounds[i].IntersectRay(r, hit.T)
			if !ok {
				continue
			}
			if n.Count[i] == 0 {
				// keep interior children sorted far to near
				j := pending
				for j > 0 && near[j-1].t < tEnter {
					near[j] = near[j-1]
					j--
				}
				near[j].t, near[j].idx = tEnter, n.Child[i]
				pending++
				continue
			}
			for p := n.Child[i]; p < n.Child[i]+n.Count[i]; p++ {
				v0, e1, e2 := c.tris[p*3], c.tris[p*3+1], c.tris[p*3+2]
				if t, u, v, ok := core.IntersectTriangle(r, v0, e1, e2, hit.T); ok {
					hit.T, hit.U, hit.V, hit.Prim = t, u, v, c.prims[p]
				}
			}
		}
		for i := 0; i < pending; i++ {
			stack = append(stack, near[i].idx)
		}
	}
	return hit
}
