package main

import (
	"image/color"
	"math"
	"testing"

	"github.com/gekko3d/rtbvh"
	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameScene_CenterRayHitsScene(t *testing.T) {
	verts := []mgl32.Vec4{
		{-1, -1, 0, 1}, {1, -1, 0, 1}, {1, 1, 0, 1},
		{-1, -1, 0, 1}, {1, 1, 0, 1}, {-1, 1, 0, 1},
	}
	reg := rtbvh.NewRegistry(rtbvh.DefaultConfig(), nil)
	defer reg.Close()
	reg.Build(verts, 0, 2, true)
	reg.BuildTLAS()

	bounds := core.EmptyAABB()
	for _, v := range verts {
		bounds.Grow(v.Vec3())
	}
	cam := frameScene(bounds, 60, 1)

	origin, dir := cam.ray(32, 32, 64, 64)
	hit := reg.IntersectTLAS(origin, dir)
	require.True(t, hit.IsHit())
	assert.InDelta(t, cam.eye.Z(), hit.T, 0.05)

	origin, dir = cam.ray(0, 0, 64, 64)
	assert.False(t, reg.IntersectTLAS(origin, dir).IsHit(), "corner ray misses the quad")
}

func TestShadeDepth(t *testing.T) {
	inf := float32(math.Inf(1))
	img := shadeDepth([]float32{1, 2, inf, 3}, 2, 2)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(0, 1))
	assert.Less(t, img.RGBAAt(1, 1).R, img.RGBAAt(1, 0).R)
}
