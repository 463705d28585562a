package math

import (
	"testing"

	"github.com/chewxy/math32"
)

const epsilon = 1e-5

func almostEqual(a, b float32) bool {
	return math32.Abs(a-b) < epsilon
}

func vecAlmostEqual(a, b Vec3) bool {
	return almostEqual(a.X, b.X) && almostEqual(a.Y, b.Y) && almostEqual(a.Z, b.Z)
}

func TestVec3_Cross(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec3
		want Vec3
	}{
		{"x cross y", Vec3{1, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1}},
		{"y cross z", Vec3{0, 1, 0}, Vec3{0, 0, 1}, Vec3{1, 0, 0}},
		{"parallel", Vec3{1, 2, 3}, Vec3{2, 4, 6}, Vec3{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Cross(tt.b); !vecAlmostEqual(got, tt.want) {
				t.Errorf("Cross() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVec3_Normalize(t *testing.T) {
	tests := []struct {
		name string
		v    Vec3
		want Vec3
	}{
		{"unit x", Vec3{5, 0, 0}, Vec3{1, 0, 0}},
		{"diagonal", Vec3{1, 1, 1}, Vec3{0.57735, 0.57735, 0.57735}},
		{"zero stays zero", Vec3{}, Vec3{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Normalize(); !vecAlmostEqual(got, tt.want) {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVec3_Dot(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}
	if got := a.Dot(b); got != 32 {
		t.Errorf("Dot() = %f, want 32", got)
	}
}

func TestVec2_Length(t *testing.T) {
	v := Vec2{3, 4}
	if got := v.Length(); !almostEqual(got, 5) {
		t.Errorf("Length() = %f, want 5", got)
	}
}
