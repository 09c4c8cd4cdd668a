// Package geom provides the rigid-transform value type shared by the
// registration engine and its collaborators.
//
// Transforms are 4x4 homogeneous matrices stored as [16]float64 in
// row-major order: m00,m01,m02,m03, m10,... This matches the pose
// layout used throughout the sensor tooling, so a Mat4 can be applied
// to sensor-frame points without conversion.
package geom

import "math"

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 0.01

// Mat4 is a 4x4 homogeneous transform in row-major order.
// It is a plain value type: copy freely, compare with ApproxEqual.
type Mat4 [16]float64

// Identity returns the neutral transform.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a pure translation by (tx, ty, tz).
func Translation(tx, ty, tz float64) Mat4 {
	return Mat4{
		1, 0, 0, tx,
		0, 1, 0, ty,
		0, 0, 1, tz,
		0, 0, 0, 1,
	}
}

// RotationX returns a rotation about the X axis by rad radians.
func RotationX(rad float64) Mat4 {
	c, s := math.Cos(rad), math.Sin(rad)
	return Mat4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// RotationY returns a rotation about the Y axis by rad radians.
func RotationY(rad float64) Mat4 {
	c, s := math.Cos(rad), math.Sin(rad)
	return Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotationZ returns a rotation about the Z axis by rad radians.
func RotationZ(rad float64) Mat4 {
	c, s := math.Cos(rad), math.Sin(rad)
	return Mat4{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns the composition a·b: applying the result is equivalent
// to applying b first, then a (homogeneous-coordinate convention).
func (a Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += a[r*4+k] * b[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Apply transforms the point (x, y, z) and returns the result.
func (a Mat4) Apply(x, y, z float64) (wx, wy, wz float64) {
	wx = a[0]*x + a[1]*y + a[2]*z + a[3]
	wy = a[4]*x + a[5]*y + a[6]*z + a[7]
	wz = a[8]*x + a[9]*y + a[10]*z + a[11]
	return
}

// Translation components of the transform.
func (a Mat4) Translation() (tx, ty, tz float64) {
	return a[3], a[7], a[11]
}

// IsRigid checks that the transform is a proper rigid motion:
// 1. Orthonormal rotation submatrix (det ≈ 1)
// 2. Last row is [0 0 0 1]
func (a Mat4) IsRigid() bool {
	r00, r01, r02 := a[0], a[1], a[2]
	r10, r11, r12 := a[4], a[5], a[6]
	r20, r21, r22 := a[8], a[9], a[10]

	// Determinant ≈ 1 rules out reflections and scaling.
	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}

	if a[12] != 0 || a[13] != 0 || a[14] != 0 || math.Abs(a[15]-1.0) > 0.001 {
		return false
	}

	return true
}

// ApproxEqual reports whether every element of a and b differs by at
// most tol.
func (a Mat4) ApproxEqual(b Mat4, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
