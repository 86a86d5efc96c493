// Package spatialmath provides the geometric primitives shared by the
// measurement pipeline: vectors, quaternions, principal component analysis,
// oriented bounding boxes and indexed triangle meshes.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// NewZeroRotation returns the identity quaternion.
func NewZeroRotation() quat.Number {
	return quat.Number{Real: 1}
}

// Normalize scales q to unit length. The zero quaternion is returned as the
// identity rotation.
func Normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n < 1e-12 {
		return NewZeroRotation()
	}
	return quat.Number{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}
}

// Rotate applies the rotation q to the vector v.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// RotateInverse applies the inverse of the rotation q to the vector v.
func RotateInverse(q quat.Number, v r3.Vector) r3.Vector {
	return Rotate(quat.Conj(q), v)
}

// QuatFromAxisAngle builds a unit quaternion rotating by theta radians about
// the given axis. The axis need not be normalized.
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	n := axis.Norm()
	if n < 1e-12 {
		return NewZeroRotation()
	}
	s := math.Sin(theta/2) / n
	return quat.Number{
		Real: math.Cos(theta / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// QuatFromAxes builds the unit quaternion whose rotation maps the standard
// basis onto the given (assumed orthonormal, right-handed) axes. The axes are
// the columns of the corresponding rotation matrix.
func QuatFromAxes(x, y, z r3.Vector) quat.Number {
	// Shepperd's method, selecting the numerically largest pivot.
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z
	tr := m00 + m11 + m22

	var q quat.Number
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1.0) * 2
		q = quat.Number{
			Real: 0.25 * s,
			Imag: (m21 - m12) / s,
			Jmag: (m02 - m20) / s,
			Kmag: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1.0+m00-m11-m22) * 2
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: 0.25 * s,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := math.Sqrt(1.0+m11-m00-m22) * 2
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: 0.25 * s,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := math.Sqrt(1.0+m22-m00-m11) * 2
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: 0.25 * s,
		}
	}
	return Normalize(q)
}

// QuaternionAlmostEqual returns whether q1 and q2 represent the same rotation
// within tol, accounting for the double cover (q and -q are the same rotation).
func QuaternionAlmostEqual(q1, q2 quat.Number, tol float64) bool {
	dot := q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
	return 1-math.Abs(dot) < tol
}

// AngleBetweenQuats returns the magnitude in radians of the rotation taking
// q1 to q2.
func AngleBetweenQuats(q1, q2 quat.Number) float64 {
	dot := q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
	dot = math.Abs(dot)
	if dot > 1 {
		dot = 1
	}
	return 2 * math.Acos(dot)
}

// PlaneNormal returns the unit normal of the plane containing p0, p1 and p2.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Norm() < 1e-12 {
		return r3.Vector{}
	}
	return n.Normalize()
}
