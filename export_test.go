package rtbvh

import (
	"testing"
	"unsafe"

	"github.com/gekko3d/rtbvh/rt/bvh"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_GPUSizes(t *testing.T) {
	r := newTestRegistry(t)
	h := r.Build(strip(10), 0, 10, true)

	assert.Equal(t, 10*3*16, r.GpuTrisSize(h))
	assert.NotZero(t, r.GpuNodesSize(h))
	assert.Zero(t, r.GpuNodesSize(h)%(bvh.NodeBlocks*bvh.BlockSize), "whole nodes only")

	nodes, tris, ok := r.GpuData(h)
	require.True(t, ok)
	assert.Equal(t, r.GpuNodesSize(h), nodes.Len())
	assert.Equal(t, r.GpuTrisSize(h), tris.Len())
	assert.Equal(t, unsafe.Pointer(&nodes.Bytes()[0]), nodes.Pointer())
}

func TestExport_NoGPUVariant(t *testing.T) {
	r := newTestRegistry(t)
	h := r.Build(strip(4), 0, 4, false)

	for _, hh := range []Handle{h, InvalidHandle} {
		assert.Zero(t, r.GpuNodesSize(hh))
		assert.Zero(t, r.GpuTrisSize(hh))
		nodes, tris, ok := r.GpuData(hh)
		assert.False(t, ok)
		assert.False(t, nodes.Valid())
		assert.False(t, tris.Valid())
		assert.Nil(t, nodes.Pointer())
	}
}

func TestExport_SizesAreDeterministic(t *testing.T) {
	r := newTestRegistry(t)
	verts := strip(32)

	for _, n := range []int{1, 4, 16, 32} {
		a := r.Build(verts, 0, n, true)
		b := r.Build(verts, 0, n, true)
		assert.Equal(t, r.GpuNodesSize(a), r.GpuNodesSize(b))
		assert.Equal(t, r.GpuTrisSize(a), r.GpuTrisSize(b))
		assert.Equal(t, n*48, r.GpuTrisSize(a))
	}
}

func TestExport_TLASSizes(t *testing.T) {
	r := newTestRegistry(t)

	r.BuildTLAS()
	assert.Equal(t, bvh.TLASNodeSize, r.TLASNodesSize(), "empty TLAS keeps a root")
	assert.Zero(t, r.TLASIndicesSize())
	nodes, indices, ok := r.TLASData()
	require.True(t, ok)
	assert.True(t, indices.Valid())
	assert.Nil(t, indices.Pointer())
	assert.Equal(t, bvh.TLASNodeSize, nodes.Len())

	for i := 0; i < 3; i++ {
		r.Build(strip(2), 0, 2, true)
	}
	r.BuildTLAS()
	assert.Equal(t, 5*bvh.TLASNodeSize, r.TLASNodesSize())
	assert.Equal(t, 3*bvh.TLASIndexSize, r.TLASIndicesSize())
}
