package core

import "github.com/go-gl/mathgl/mgl32"

// Determinants below this are treated as rays parallel to the triangle.
const triangleEpsilon = 1e-12

// IntersectTriangle is the Moller-Trumbore test over a vertex and two edges
// (e1 = v1 - v0, e2 = v2 - v0). It reports hits strictly in front of the
// origin and closer than tMax.
func IntersectTriangle(r Ray, v0, e1, e2 mgl32.Vec3, tMax float32) (t, u, v float32, ok bool) {
	h := r.Direction.Cross(e2)
	a := e1.Dot(h)
	if a > -triangleEpsilon && a < triangleEpsilon {
		return 0, 0, 0, false
	}
	f := 1.0 / a
	s := r.Origin.Sub(v0)
	u = f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = f * r.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = f * e2.Dot(q)
	if t <= 0 || t >= tMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
