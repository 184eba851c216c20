package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// NoIndex marks an absent primitive or instance index.
const NoIndex = ^uint32(0)

// Directions closer to zero than this are treated as parallel to the axis.
const parallelEpsilon = 1e-20

// Reciprocal used for axis-parallel directions. Large but finite so that
// 0 * invDir never produces NaN in the slab test.
const farReciprocal = 1e30

type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
	InvDir    mgl32.Vec3
}

func NewRay(origin, direction mgl32.Vec3) Ray {
	r := Ray{Origin: origin, Direction: direction}
	for i := 0; i < 3; i++ {
		d := direction[i]
		if d > -parallelEpsilon && d < parallelEpsilon {
			if math.Signbit(float64(d)) {
				r.InvDir[i] = -farReciprocal
			} else {
				r.InvDir[i] = farReciprocal
			}
			continue
		}
		r.InvDir[i] = 1.0 / d
	}
	return r
}

// Transform returns the ray expressed in the space described by m.
// The direction is not renormalized, so hit distances stay comparable
// across spaces.
func (r Ray) Transform(m mgl32.Mat4) Ray {
	o := m.Mul4x1(r.Origin.Vec4(1.0)).Vec3()
	d := m.Mul4x1(r.Direction.Vec4(0.0)).Vec3()
	return NewRay(o, d)
}

// Hit is the nearest intersection along a ray. Prim is the primitive index
// relative to the start of the hierarchy's triangle range; Inst is the dense
// TLAS instance index and NoIndex for bottom-level queries.
type Hit struct {
	T    float32
	U    float32
	V    float32
	Prim uint32
	Inst uint32
}

// NoHit is the miss sentinel: infinite distance and no indices.
func NoHit() Hit {
	return Hit{
		T:    float32(math.Inf(1)),
		Prim: NoIndex,
		Inst: NoIndex,
	}
}

func (h Hit) IsHit() bool {
	return h.Prim != NoIndex && !math.IsInf(float64(h.T), 1)
}
