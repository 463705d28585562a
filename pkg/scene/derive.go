package scene

import "github.com/Faultbox/modelkit/pkg/math"

// ComputeNormals fills in per-vertex normals from triangle geometry.
// Each triangle's face normal cross(p3-p2, p1-p2) is accumulated onto its
// three vertices, then every accumulated sum is normalized. Degenerate
// triangles contribute a zero vector and leave other sums intact.
func ComputeNormals(p *Polygon) {
	acc := make([]math.Vec3, len(p.Positions))

	for _, tri := range p.Indices {
		p1 := p.Positions[tri.A]
		p2 := p.Positions[tri.B]
		p3 := p.Positions[tri.C]

		n := p3.Sub(p2).Cross(p1.Sub(p2))

		acc[tri.A] = acc[tri.A].Add(n)
		acc[tri.B] = acc[tri.B].Add(n)
		acc[tri.C] = acc[tri.C].Add(n)
	}

	for i := range acc {
		acc[i] = acc[i].Normalize()
	}
	p.Normals = acc
}

// ComputeTangents fills in per-vertex tangents from positions, normals and
// texture coordinates. Per triangle, the 2x2 UV-to-edge system is solved for
// a raw tangent, accumulated per vertex, then each sum is Gram-Schmidt
// orthogonalized against the vertex normal. A degenerate UV parameterization
// (zero determinant) propagates Inf/NaN into the affected vertices.
func ComputeTangents(p *Polygon) {
	acc := make([]math.Vec3, len(p.Positions))

	for _, tri := range p.Indices {
		p1 := p.Positions[tri.A]
		p2 := p.Positions[tri.B]
		p3 := p.Positions[tri.C]

		c1 := p.Coordinates[tri.A].Sub(p.Coordinates[tri.B])
		c2 := p.Coordinates[tri.C].Sub(p.Coordinates[tri.B])

		e1 := p1.Sub(p2)
		e2 := p3.Sub(p2)

		coef := 1 / (c1.X*c2.Y - c2.X*c1.Y)
		tangent := e1.Scale(c2.Y).Sub(e2.Scale(c1.Y)).Scale(coef)

		acc[tri.A] = acc[tri.A].Add(tangent)
		acc[tri.B] = acc[tri.B].Add(tangent)
		acc[tri.C] = acc[tri.C].Add(tangent)
	}

	for i := range acc {
		n := p.Normals[i]
		t := acc[i]
		acc[i] = t.Sub(n.Scale(n.Dot(t))).Normalize()
	}
	p.Tangents = acc
}
