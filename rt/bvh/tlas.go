package bvh

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL TLASNode
// struct TLASNode {
//    aabb_min : vec4<f32>; (16)
//    aabb_max : vec4<f32>; (16)
//    left : i32; (4)
//    right : i32; (4)
//    leaf_first : i32; (4)   // index into the instance index buffer
//    leaf_count : i32; (4)
//    padding : i32[4]; (16)
// }; -> 64 bytes
const (
	TLASNodeSize  = 64
	TLASIndexSize = 4
)

// BLAS is what a top-level hierarchy needs from a bottom-level one.
type BLAS interface {
	Bounds() core.AABB
	Intersect(r core.Ray) core.Hit
}

type TLASInstance struct {
	BLAS      BLAS
	Transform core.Matrix
}

type TLASNode struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *TLASNode) IsLeaf() bool {
	return n.LeafCount > 0
}

// Put writes the 64-byte GPU record into buf.
func (n *TLASNode) Put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], 0)

	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], 0)

	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))
}

type tlasInstance struct {
	blas          BLAS
	worldToObject mgl32.Mat4
	invertible    bool
}

type tlasItem struct {
	bounds   core.AABB
	centroid mgl32.Vec3
	index    int
}

// TLAS is a binary hierarchy with one instance per leaf. Its packed
// buffers are immutable once built.
type TLAS struct {
	nodes     []TLASNode
	indices   []uint32
	instances []tlasInstance
	nodeData  []byte
	indexData []byte
}

// BuildTLAS builds a top-level hierarchy over instances, splitting at the
// object median of the longest axis. An empty list yields a single empty
// root and no indices.
func BuildTLAS(instances []TLASInstance) *TLAS {
	t := &TLAS{
		instances: make([]tlasInstance, len(instances)),
		indices:   make([]uint32, 0, len(instances)),
	}

	items := make([]tlasItem, len(instances))
	for i, inst := range instances {
		m := inst.Transform.Mat4()
		inv, ok := inst.Transform.Inverse()
		t.instances[i] = tlasInstance{blas: inst.BLAS, worldToObject: inv, invertible: ok}

		bounds := inst.BLAS.Bounds()
		if bounds.IsEmpty() {
			origin := m.Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
			bounds = core.AABB{Min: origin, Max: origin}
		} else {
			bounds = bounds.Transform(m)
		}
		items[i] = tlasItem{bounds: bounds, centroid: bounds.Centroid(), index: i}
	}

	if len(items) == 0 {
		empty := core.EmptyAABB()
		t.nodes = []TLASNode{{Min: empty.Min, Max: empty.Max, Left: -1, Right: -1, LeafFirst: -1}}
	} else {
		t.nodes = make([]TLASNode, 0, 2*len(items)-1)
		t.recursiveBuild(items)
	}

	t.nodeData = make([]byte, len(t.nodes)*TLASNodeSize)
	for i := range t.nodes {
		t.nodes[i].Put(t.nodeData[i*TLASNodeSize:])
	}
	t.indexData = make([]byte, len(t.indices)*TLASIndexSize)
	for i, idx := range t.indices {
		binary.LittleEndian.PutUint32(t.indexData[i*TLASIndexSize:], idx)
	}
	return t
}

func (t *TLAS) recursiveBuild(items []tlasItem) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, TLASNode{Left: -1, Right: -1, LeafFirst: -1})

	bounds := core.EmptyAABB()
	for _, it := range items {
		bounds.GrowAABB(it.bounds)
	}
	t.nodes[idx].Min = bounds.Min
	t.nodes[idx].Max = bounds.Max

	if len(items) == 1 {
		t.nodes[idx].LeafFirst = int32(len(t.indices))
		t.nodes[idx].LeafCount = 1
		t.indices = append(t.indices, uint32(items[0].index))
		return idx
	}

	axis := bounds.LongestAxis()
	sort.Slice(items, func(i, j int) bool {
		return items[i].centroid[axis] < items[j].centroid[axis]
	})

	mid := len(items) / 2
	left := t.recursiveBuild(items[:mid])
	right := t.recursiveBuild(items[mid:])
	t.nodes[idx].Left = left
	t.nodes[idx].Right = right
	return idx
}

func (t *TLAS) NodeCount() int {
	return len(t.nodes)
}

func (t *TLAS) IndexCount() int {
	return len(t.indices)
}

func (t *TLAS) InstanceCount() int {
	return len(t.instances)
}

func (t *TLAS) NodeBytes() []byte {
	return t.nodeData
}

func (t *TLAS) IndexBytes() []byte {
	return t.indexData
}

// Intersect finds the nearest hit over all instances. Rays enter each
// instance through its inverse transform; instances with a singular
// transform are never hit.
func (t *TLAS) Intersect(r core.Ray) core.Hit {
	hit := core.NoHit()
	if len(t.indices) == 0 {
		return hit
	}

	stack := make([]int32, 1, 64)
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if _, ok := (core.AABB{Min: n.Min, Max: n.Max}).IntersectRay(r, hit.T); !ok {
			continue
		}
		if !n.IsLeaf() {
			stack = append(stack, n.Right, n.Left)
			continue
		}

		instIdx := t.indices[n.LeafFirst]
		inst := &t.instances[instIdx]
		if !inst.invertible {
			continue
		}
		h := inst.blas.Intersect(r.Transform(inst.worldToObject))
		if h.IsHit() && h.T < hit.T {
			h.Inst = instIdx
			hit = h
		}
	}
	return hit
}
