package montage

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// IdentityRotation returns the no-op rotation.
func IdentityRotation() r3.Rotation {
	return r3.Rotation(quat.Number{Real: 1})
}

// One returns the unit scale vector (1, 1, 1).
func One() r3.Vec {
	return r3.Vec{X: 1, Y: 1, Z: 1}
}

// MulElem scales a vector component-wise by s.
func MulElem(s, p r3.Vec) r3.Vec {
	return r3.Vec{X: s.X * p.X, Y: s.Y * p.Y, Z: s.Z * p.Z}
}

// Distance calculates the Euclidean distance between two points.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Midpoint returns the arithmetic mean of two points.
func Midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// Centroid calculates the center of mass of a set of points.
func Centroid(points []r3.Vec) r3.Vec {
	if len(points) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1.0/float64(len(points)), sum)
}

// RotationBetween returns the rotation carrying the direction of from onto
// the direction of to. Antiparallel inputs rotate half a turn about an
// arbitrary perpendicular axis.
func RotationBetween(from, to r3.Vec) r3.Rotation {
	f := r3.Unit(from)
	t := r3.Unit(to)
	axis := r3.Cross(f, t)
	d := r3.Dot(f, t)

	if r3.Norm(axis) < 1e-12 {
		if d > 0 {
			return IdentityRotation()
		}
		// Antiparallel: any axis perpendicular to f works.
		axis = r3.Cross(f, r3.Vec{X: 1})
		if r3.Norm(axis) < 1e-12 {
			axis = r3.Cross(f, r3.Vec{Y: 1})
		}
		return r3.NewRotation(math.Pi, axis)
	}

	return r3.NewRotation(math.Atan2(r3.Norm(axis), d), axis)
}

// ComposeRotation returns the rotation equivalent to applying inner first,
// then outer.
func ComposeRotation(outer, inner r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Mul(quat.Number(outer), quat.Number(inner)))
}

// EulerRotation builds a rotation from per-axis angles in degrees, applied in
// Z (roll), X (pitch), Y (yaw) order.
func EulerRotation(xDeg, yDeg, zDeg float64) r3.Rotation {
	rz := r3.NewRotation(zDeg*math.Pi/180, r3.Vec{Z: 1})
	rx := r3.NewRotation(xDeg*math.Pi/180, r3.Vec{X: 1})
	ry := r3.NewRotation(yDeg*math.Pi/180, r3.Vec{Y: 1})
	return ComposeRotation(ry, ComposeRotation(rx, rz))
}

// RotationFromMatrix converts a proper 3x3 rotation matrix into a quaternion
// rotation. The matrix is taken in the column-vector convention (p' = M p).
func RotationFromMatrix(m mat.Matrix) r3.Rotation {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	var w, x, y, z float64
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		w = s / 4
		x = (m21 - m12) / s
		y = (m02 - m20) / s
		z = (m10 - m01) / s
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		w = (m21 - m12) / s
		x = s / 4
		y = (m01 + m10) / s
		z = (m02 + m20) / s
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		w = (m02 - m20) / s
		x = (m01 + m10) / s
		y = s / 4
		z = (m12 + m21) / s
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		w = (m10 - m01) / s
		x = (m02 + m20) / s
		y = (m12 + m21) / s
		z = s / 4
	}

	n := math.Sqrt(w*w + x*x + y*y + z*z)
	return r3.Rotation(quat.Number{Real: w / n, Imag: x / n, Jmag: y / n, Kmag: z / n})
}

// RotationAngle returns the magnitude of a rotation in radians.
func RotationAngle(r r3.Rotation) float64 {
	w := quat.Number(r).Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	return 2 * math.Acos(math.Abs(w))
}
