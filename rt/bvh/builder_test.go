package bvh

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSoup(seed int64, count int) []mgl32.Vec4 {
	rng := rand.New(rand.NewSource(seed))
	coord := func(lo, hi float32) float32 { return lo + rng.Float32()*(hi-lo) }

	tris := make([]mgl32.Vec4, 0, count*3)
	for i := 0; i < count; i++ {
		c := mgl32.Vec3{coord(-5, 5), coord(-5, 5), coord(-5, 5)}
		for k := 0; k < 3; k++ {
			v := c.Add(mgl32.Vec3{coord(-0.5, 0.5), coord(-0.5, 0.5), coord(-0.5, 0.5)})
			tris = append(tris, v.Vec4(1))
		}
	}
	return tris
}

func bruteForce(tris []mgl32.Vec4, r core.Ray) core.Hit {
	hit := core.NoHit()
	for i := 0; i < len(tris)/3; i++ {
		v0 := tris[i*3].Vec3()
		e1 := tris[i*3+1].Vec3().Sub(v0)
		e2 := tris[i*3+2].Vec3().Sub(v0)
		if t, u, v, ok := core.IntersectTriangle(r, v0, e1, e2, hit.T); ok {
			hit = core.Hit{T: t, U: u, V: v, Prim: uint32(i), Inst: core.NoIndex}
		}
	}
	return hit
}

func randomRays(seed int64, count int) []core.Ray {
	rng := rand.New(rand.NewSource(seed))
	coord := func(lo, hi float32) float32 { return lo + rng.Float32()*(hi-lo) }

	rays := make([]core.Ray, count)
	for i := range rays {
		origin := mgl32.Vec3{coord(-12, 12), coord(-12, 12), coord(-12, 12)}
		target := mgl32.Vec3{coord(-5, 5), coord(-5, 5), coord(-5, 5)}
		rays[i] = core.NewRay(origin, target.Sub(origin))
	}
	return rays
}

func TestBuild_LeavesRespectMaxLeafSize(t *testing.T) {
	for _, leaf := range []int{1, 3, 4, 8} {
		tris := randomSoup(42, 200)
		b := Build(tris, BuildOptions{MaxLeafSize: leaf, Bins: 8})

		total := 0
		for _, n := range b.Nodes {
			if n.IsLeaf() {
				assert.LessOrEqual(t, int(n.Count), leaf)
				total += int(n.Count)
			}
		}
		assert.Equal(t, 200, total, "every triangle belongs to exactly one leaf")

		idx := append([]uint32(nil), b.PrimIdx...)
		sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
		for i, p := range idx {
			require.Equal(t, uint32(i), p)
		}
	}
}

func TestBuild_CoincidentCentroidsStillSplit(t *testing.T) {
	tri := []mgl32.Vec4{{0, 0, 0, 1}, {1, 0, 0, 1}, {0, 1, 0, 1}}
	var tris []mgl32.Vec4
	for i := 0; i < 10; i++ {
		tris = append(tris, tri...)
	}

	b := Build(tris, BuildOptions{MaxLeafSize: 3})
	for _, n := range b.Nodes {
		if n.IsLeaf() {
			assert.LessOrEqual(t, n.Count, uint32(3))
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	b := Build(nil, DefaultBuildOptions())
	require.Len(t, b.Nodes, 1)
	assert.True(t, b.Nodes[0].Bounds.IsEmpty())
	assert.Empty(t, b.PrimIdx)
}

func TestCPUBVH_MatchesBruteForce(t *testing.T) {
	tris := randomSoup(7, 300)
	c := BuildCPU(tris, DefaultBuildOptions())
	require.Equal(t, 300, c.TriCount())

	hits := 0
	for _, r := range randomRays(11, 500) {
		want := bruteForce(tris, r)
		got := c.Intersect(r)
		require.Equal(t, want.IsHit(), got.IsHit())
		if want.IsHit() {
			hits++
			assert.InDelta(t, want.T, got.T, 1e-5)
		}
	}
	assert.Greater(t, hits, 0)
}

func TestCWBVH_MatchesCPU(t *testing.T) {
	tris := randomSoup(3, 300)
	cpu := BuildCPU(tris, DefaultBuildOptions())
	gpu := BuildCWBVH(tris, DefaultBuildOptions())
	require.Equal(t, 300, gpu.TriCount())

	for _, r := range randomRays(5, 500) {
		want := cpu.Intersect(r)
		got := gpu.Intersect(r)
		require.Equal(t, want.IsHit(), got.IsHit())
		if want.IsHit() {
			assert.InDelta(t, want.T, got.T, 1e-5)
		}
	}
}

func TestCWBVH_SingleTriangleLayout(t *testing.T) {
	tris := []mgl32.Vec4{{0, 0, 0, 1}, {1, 0, 0, 1}, {0, 1, 0, 1}}
	c := BuildCWBVH(tris, DefaultBuildOptions())

	assert.Equal(t, 1, c.NodeCount())
	assert.Equal(t, NodeBlocks, c.UsedBlocks())
	assert.Len(t, c.NodeBytes(), NodeBlocks*BlockSize)
	assert.Len(t, c.TriBytes(), TriBlocks*BlockSize)

	n := c.node(0)
	assert.Equal(t, uint8(0), n.imask)
	assert.Equal(t, uint8(0b001<<5), n.meta[0], "one triangle at offset 0")
	for slot := 1; slot < cwWidth; slot++ {
		assert.Zero(t, n.meta[slot])
	}

	hit := c.Intersect(core.NewRay(mgl32.Vec3{0.25, 0.25, -1}, mgl32.Vec3{0, 0, 1}))
	require.True(t, hit.IsHit())
	assert.InDelta(t, 1.0, hit.T, 1e-6)
	assert.Equal(t, uint32(0), hit.Prim)
}

func TestCWBVH_ChildBoundsAreConservative(t *testing.T) {
	tris := randomSoup(9, 120)
	bin := Build(tris, BuildOptions{MaxLeafSize: cwMaxLeafSize})
	wide := collapse(bin, cwWidth)
	c := BuildCWBVH(tris, DefaultBuildOptions())
	require.Equal(t, len(wide), c.NodeCount())

	// the root is encoded first and keeps the collapse order of its slots
	n := c.node(0)
	for slot, ch := range wide[0].children {
		q := n.childBounds(slot)
		for axis := 0; axis < 3; axis++ {
			assert.LessOrEqual(t, q.Min[axis], ch.bounds.Min[axis])
			assert.GreaterOrEqual(t, q.Max[axis], ch.bounds.Max[axis])
		}
	}
}

func TestCWBVH_Empty(t *testing.T) {
	c := BuildCWBVH(nil, DefaultBuildOptions())
	assert.Equal(t, 1, c.NodeCount())
	assert.Equal(t, 0, c.TriCount())
	assert.Empty(t, c.TriBytes())
	assert.False(t, c.Intersect(core.NewRay(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1})).IsHit())
}

func TestCWBVH_DeterministicSizes(t *testing.T) {
	tris := randomSoup(21, 64)
	a := BuildCWBVH(tris, DefaultBuildOptions())
	b := BuildCWBVH(tris, DefaultBuildOptions())
	assert.Equal(t, a.UsedBlocks(), b.UsedBlocks())
	assert.Equal(t, a.NodeBytes(), b.NodeBytes())
	assert.Equal(t, a.TriBytes(), b.TriBytes())
}
