package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyAABB returns an inverted box that any Grow call will replace.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (b AABB) IsEmpty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

func (b *AABB) Grow(p mgl32.Vec3) {
	b.Min = mgl32.Vec3{min(b.Min.X(), p.X()), min(b.Min.Y(), p.Y()), min(b.Min.Z(), p.Z())}
	b.Max = mgl32.Vec3{max(b.Max.X(), p.X()), max(b.Max.Y(), p.Y()), max(b.Max.Z(), p.Z())}
}

func (b *AABB) GrowAABB(o AABB) {
	if o.IsEmpty() {
		return
	}
	b.Grow(o.Min)
	b.Grow(o.Max)
}

func (b AABB) Centroid() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Extent() mgl32.Vec3 {
	if b.IsEmpty() {
		return mgl32.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// HalfArea is half of the surface area, enough for SAH comparisons.
func (b AABB) HalfArea() float32 {
	e := b.Extent()
	return e.X()*e.Y() + e.Y()*e.Z() + e.Z()*e.X()
}

func (b AABB) LongestAxis() int {
	e := b.Extent()
	axis := 0
	if e.Y() > e.X() {
		axis = 1
	}
	if e.Z() > e[axis] {
		axis = 2
	}
	return axis
}

// IntersectRay runs the slab test and returns the entry distance.
// Boxes behind the origin or beyond tMax are reported as misses.
func (b AABB) IntersectRay(r Ray, tMax float32) (float32, bool) {
	tx1 := (b.Min.X() - r.Origin.X()) * r.InvDir.X()
	tx2 := (b.Max.X() - r.Origin.X()) * r.InvDir.X()
	tmin, tmax := min(tx1, tx2), max(tx1, tx2)

	ty1 := (b.Min.Y() - r.Origin.Y()) * r.InvDir.Y()
	ty2 := (b.Max.Y() - r.Origin.Y()) * r.InvDir.Y()
	tmin, tmax = max(tmin, min(ty1, ty2)), min(tmax, max(ty1, ty2))

	tz1 := (b.Min.Z() - r.Origin.Z()) * r.InvDir.Z()
	tz2 := (b.Max.Z() - r.Origin.Z()) * r.InvDir.Z()
	tmin, tmax = max(tmin, min(tz1, tz2)), min(tmax, max(tz1, tz2))

	if tmax >= tmin && tmax > 0 && tmin < tMax {
		return tmin, true
	}
	return 0, false
}

// Transform returns a conservative box around the eight transformed corners.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	if b.IsEmpty() {
		return b
	}
	corners := [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}

	out := EmptyAABB()
	for _, c := range corners {
		out.Grow(m.Mul4x1(c.Vec4(1.0)).Vec3())
	}
	return out
}
