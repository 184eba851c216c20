package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/rtbvh"
	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strip(n int) []mgl32.Vec4 {
	var verts []mgl32.Vec4
	for i := 0; i < n; i++ {
		x := float32(i)
		verts = append(verts, mgl32.Vec4{x, 0, 0, 1}, mgl32.Vec4{x + 1, 0, 0, 1}, mgl32.Vec4{x, 1, 0, 1})
	}
	return verts
}

func TestPackScene_PrefixSumOffsets(t *testing.T) {
	reg := rtbvh.NewRegistry(rtbvh.DefaultConfig(), nil)
	defer reg.Close()

	verts := strip(40)
	a := reg.Build(verts, 0, 10, true)
	_ = reg.Build(verts, 10, 5, false)
	c := reg.Build(verts, 15, 25, true)
	reg.UpdateTransform(c, core.TranslationMatrix(0, 5, 0))
	require.True(t, reg.BuildTLAS())

	layout, err := PackScene(reg)
	require.NoError(t, err)
	require.Len(t, layout.Records, 2)
	assert.Len(t, layout.Instances, 2*InstanceSize)

	first, second := layout.Records[0], layout.Records[1]
	assert.Equal(t, a, first.Handle)
	assert.Equal(t, c, second.Handle)
	assert.Zero(t, first.NodeOffset)
	assert.Zero(t, first.TriOffset)
	assert.Equal(t, uint32(reg.GpuNodesSize(a)/nodeRecordSize), second.NodeOffset)
	assert.Equal(t, uint32(reg.GpuTrisSize(a)/triBlockSize), second.TriOffset)
	assert.Equal(t, uint32(15), second.HostTriOffset)

	assert.Len(t, layout.Nodes, reg.GpuNodesSize(a)+reg.GpuNodesSize(c))
	assert.Len(t, layout.Tris, reg.GpuTrisSize(a)+reg.GpuTrisSize(c))

	// second record, column-major transform: translation at elements 12..14
	rec := layout.Instances[InstanceSize:]
	ty := math.Float32frombits(binary.LittleEndian.Uint32(rec[13*4:]))
	invTy := math.Float32frombits(binary.LittleEndian.Uint32(rec[64+13*4:]))
	assert.Equal(t, float32(5), ty)
	assert.Equal(t, float32(-5), invTy)
	assert.Equal(t, second.NodeOffset, binary.LittleEndian.Uint32(rec[128:]))
	assert.Equal(t, second.TriOffset, binary.LittleEndian.Uint32(rec[132:]))
	assert.Equal(t, uint32(15), binary.LittleEndian.Uint32(rec[136:]))
}

func TestPackScene_StaleInstance(t *testing.T) {
	reg := rtbvh.NewRegistry(rtbvh.DefaultConfig(), nil)
	defer reg.Close()

	h := reg.Build(strip(2), 0, 2, true)
	reg.BuildTLAS()
	reg.Destroy(h)

	_, err := PackScene(reg)
	assert.ErrorIs(t, err, ErrStaleInstance)
}

func TestPackScene_NoTLAS(t *testing.T) {
	reg := rtbvh.NewRegistry(rtbvh.DefaultConfig(), nil)
	defer reg.Close()

	layout, err := PackScene(reg)
	require.NoError(t, err)
	assert.Empty(t, layout.Records)
	assert.Empty(t, layout.Nodes)
}

func TestBufferSize(t *testing.T) {
	assert.Equal(t, uint64(4), bufferSize(0, 1))
	assert.Equal(t, uint64(8), bufferSize(5, 1))
	assert.Equal(t, uint64(100), bufferSize(80, 1.25))
	assert.Equal(t, uint64(104), bufferSize(81, 1.25))
}
