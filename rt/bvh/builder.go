package bvh

import (
	"sort"

	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultBins        = 8
	DefaultMaxLeafSize = 4
)

type BuildOptions struct {
	// Upper bound on triangles per leaf. The builder always splits larger
	// ranges, falling back to an object median when SAH finds no split.
	MaxLeafSize int
	// Number of SAH bins per axis.
	Bins int
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MaxLeafSize: DefaultMaxLeafSize,
		Bins:        DefaultBins,
	}
}

func (o BuildOptions) normalized() BuildOptions {
	if o.MaxLeafSize < 1 {
		o.MaxLeafSize = DefaultMaxLeafSize
	}
	if o.Bins < 2 {
		o.Bins = DefaultBins
	}
	return o
}

// Node is a binary node. Count > 0 marks a leaf whose triangles are
// PrimIdx[LeftFirst : LeftFirst+Count]; otherwise the children are
// LeftFirst and LeftFirst+1.
type Node struct {
	Bounds    core.AABB
	LeftFirst uint32
	Count     uint32
}

func (n *Node) IsLeaf() bool {
	return n.Count > 0
}

// BVH is the intermediate binary hierarchy the exported variants are
// collapsed from.
type BVH struct {
	Nodes   []Node
	PrimIdx []uint32
}

type primRef struct {
	bounds   core.AABB
	centroid mgl32.Vec3
}

type bin struct {
	bounds core.AABB
	count  int
}

type builder struct {
	opts  BuildOptions
	prims []primRef
	bvh   *BVH
}

// Build constructs a binary hierarchy over a triangle soup laid out as three
// vertices per triangle. The w component of every vertex is ignored.
func Build(tris []mgl32.Vec4, opts BuildOptions) *BVH {
	opts = opts.normalized()
	count := len(tris) / 3

	b := &builder{
		opts:  opts,
		prims: make([]primRef, count),
		bvh: &BVH{
			Nodes:   make([]Node, 1, max(1, 2*count)),
			PrimIdx: make([]uint32, count),
		},
	}

	for i := 0; i < count; i++ {
		bounds := core.EmptyAABB()
		bounds.Grow(tris[i*3].Vec3())
		bounds.Grow(tris[i*3+1].Vec3())
		bounds.Grow(tris[i*3+2].Vec3())
		b.prims[i] = primRef{bounds: bounds, centroid: bounds.Centroid()}
		b.bvh.PrimIdx[i] = uint32(i)
	}

	root := &b.bvh.Nodes[0]
	root.Bounds = core.EmptyAABB()
	if count == 0 {
		return b.bvh
	}
	root.LeftFirst = 0
	root.Count = uint32(count)
	b.updateBounds(0)
	b.subdivide(0)
	return b.bvh
}

func (b *builder) updateBounds(nodeIdx uint32) {
	node := &b.bvh.Nodes[nodeIdx]
	bounds := core.EmptyAABB()
	for i := node.LeftFirst; i < node.LeftFirst+node.Count; i++ {
		bounds.GrowAABB(b.prims[b.bvh.PrimIdx[i]].bounds)
	}
	node.Bounds = bounds
}

func (b *builder) subdivide(nodeIdx uint32) {
	node := b.bvh.Nodes[nodeIdx]
	if node.Count <= 1 {
		return
	}

	axis, splitBin, cost, centroidBounds := b.findBestSplit(node)
	leafCost := float32(node.Count) * node.Bounds.HalfArea()

	first := node.LeftFirst
	last := first + node.Count
	mid := first

	switch {
	case axis >= 0 && cost < leafCost:
		mid = b.partitionBins(first, last, axis, splitBin, centroidBounds)
	case int(node.Count) <= b.opts.MaxLeafSize:
		return
	}

	if mid == first || mid == last {
		mid = b.partitionMedian(first, last, node.Bounds.LongestAxis())
	}

	leftIdx := uint32(len(b.bvh.Nodes))
	b.bvh.Nodes = append(b.bvh.Nodes,
		Node{LeftFirst: first, Count: mid - first},
		Node{LeftFirst: mid, Count: last - mid},
	)
	b.bvh.Nodes[nodeIdx].LeftFirst = leftIdx
	b.bvh.Nodes[nodeIdx].Count = 0

	b.updateBounds(leftIdx)
	b.updateBounds(leftIdx + 1)
	b.subdivide(leftIdx)
	b.subdivide(leftIdx + 1)
}

// findBestSplit bins centroids along each axis and sweeps the bins to score
// every plane with the surface area heuristic. axis is -1 when every
// centroid coincides.
func (b *builder) findBestSplit(node Node) (axis, splitBin int, cost float32, centroidBounds core.AABB) {
	centroidBounds = core.EmptyAABB()
	for i := node.LeftFirst; i < node.LeftFirst+node.Count; i++ {
		centroidBounds.Grow(b.prims[b.bvh.PrimIdx[i]].centroid)
	}

	nBins := b.opts.Bins
	bins := make([]bin, nBins)
	leftArea := make([]float32, nBins-1)
	leftCount := make([]int, nBins-1)

	axis = -1
	cost = float32(1e30)
	extent := centroidBounds.Extent()
	for a := 0; a < 3; a++ {
		if extent[a] <= 0 {
			continue
		}
		for i := range bins {
			bins[i] = bin{bounds: core.EmptyAABB()}
		}
		scale := float32(nBins) / extent[a]
		for i := node.LeftFirst; i < node.LeftFirst+node.Count; i++ {
			p := b.prims[b.bvh.PrimIdx[i]]
			bi := binIndex(p.centroid[a], centroidBounds.Min[a], scale, nBins)
			bins[bi].count++
			bins[bi].bounds.GrowAABB(p.bounds)
		}

		acc := core.EmptyAABB()
		n := 0
		for i := 0; i < nBins-1; i++ {
			acc.GrowAABB(bins[i].bounds)
			n += bins[i].count
			leftArea[i] = acc.HalfArea()
			leftCount[i] = n
		}

		acc = core.EmptyAABB()
		n = 0
		for i := nBins - 1; i > 0; i-- {
			acc.GrowAABB(bins[i].bounds)
			n += bins[i].count
			if leftCount[i-1] == 0 || n == 0 {
				continue
			}
			c := float32(leftCount[i-1])*leftArea[i-1] + float32(n)*acc.HalfArea()
			if c < cost {
				cost = c
				axis = a
				splitBin = i - 1
			}
		}
	}
	return axis, splitBin, cost, centroidBounds
}

func binIndex(c, lo, scale float32, nBins int) int {
	bi := int((c - lo) * scale)
	if bi < 0 {
		return 0
	}
	if bi > nBins-1 {
		return nBins - 1
	}
	return bi
}

// partitionBins moves every primitive whose bin is <= splitBin to the front
// and returns the first index of the right half.
func (b *builder) partitionBins(first, last uint32, axis, splitBin int, centroidBounds core.AABB) uint32 {
	nBins := b.opts.Bins
	scale := float32(nBins) / centroidBounds.Extent()[axis]
	i, j := first, last
	for i < j {
		p := b.prims[b.bvh.PrimIdx[i]]
		if binIndex(p.centroid[axis], centroidBounds.Min[axis], scale, nBins) <= splitBin {
			i++
			continue
		}
		j--
		b.bvh.PrimIdx[i], b.bvh.PrimIdx[j] = b.bvh.PrimIdx[j], b.bvh.PrimIdx[i]
	}
	return i
}

// partitionMedian sorts the range by centroid and splits it in half. Used
// when SAH cannot separate a range that is too large for a leaf.
func (b *builder) partitionMedian(first, last uint32, axis int) uint32 {
	idx := b.bvh.PrimIdx[first:last]
	sort.SliceStable(idx, func(i, j int) bool {
		return b.prims[idx[i]].centroid[axis] < b.prims[idx[j]].centroid[axis]
	})
	return first + (last-first)/2
}
