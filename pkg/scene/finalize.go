package scene

import "github.com/Faultbox/modelkit/pkg/math"

// FinalizeOptions controls the finalization pass.
type FinalizeOptions struct {
	// Transform, when set, is pre-multiplied onto every root mesh transform.
	Transform *math.Mat4
}

// Finalize walks the model tree and fills in derived geometry: normals for
// polygons that have none, then tangents for polygons that have normals and
// texture coordinates but no tangents. Every decoder runs this once before
// returning its model; it is the only mutation after decoding.
func Finalize(m *Model, opts FinalizeOptions) {
	if opts.Transform != nil {
		for _, mesh := range m.Meshes {
			mesh.Transform = opts.Transform.Mul(mesh.Transform)
		}
	}

	m.Walk(func(mesh *Mesh) {
		for _, p := range mesh.Polygons {
			if len(p.Normals) == 0 && len(p.Positions) > 0 {
				ComputeNormals(p)
			}
			if len(p.Tangents) == 0 && len(p.Normals) > 0 && len(p.Coordinates) > 0 {
				ComputeTangents(p)
			}
		}
	})
}
