package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	// 90 degrees about Z turns +X into +Y.
	q := QuatFromAxisAngle(Vec3{0, 0, 1}, float32(math.Pi/2))
	got := q.ToMat4().TransformPoint(Vec3{1, 0, 0})
	if !approxVec(got, Vec3{0, 1, 0}, 1e-5) {
		t.Errorf("90deg Z rotation of +X: got %v, want (0,1,0)", got)
	}
}

func TestQuatFromEuler(t *testing.T) {
	// Pitch 90 turns +Y into +Z.
	q := QuatFromEuler(90, 0, 0)
	got := q.ToMat4().TransformPoint(Vec3{0, 1, 0})
	if !approxVec(got, Vec3{0, 0, 1}, 1e-5) {
		t.Errorf("pitch 90 of +Y: got %v, want (0,0,1)", got)
	}
}
