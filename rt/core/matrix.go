package core

import "github.com/go-gl/mathgl/mgl32"

// Matrix is a 4x4 transform stored row-major, the layout hosts hand over
// through the boundary. mgl32 is column-major, so conversions transpose.
type Matrix [16]float32

func IdentityMatrix() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func MatrixFromMat4(m mgl32.Mat4) Matrix {
	return Matrix(m.Transpose())
}

func (m Matrix) Mat4() mgl32.Mat4 {
	return mgl32.Mat4(m).Transpose()
}

// TranslationMatrix is a convenience for hosts and tests.
func TranslationMatrix(x, y, z float32) Matrix {
	return MatrixFromMat4(mgl32.Translate3D(x, y, z))
}

// Inverse returns the inverse in mgl32 form and false for singular matrices.
func (m Matrix) Inverse() (mgl32.Mat4, bool) {
	mat := m.Mat4()
	if mat.Det() == 0 {
		return mgl32.Mat4{}, false
	}
	return mat.Inv(), true
}
