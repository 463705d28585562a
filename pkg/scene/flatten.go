package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/modelkit/pkg/math"
)

// ErrIncompatibleStride is returned when polygons sharing a material carry
// different attribute sets and cannot be merged.
var ErrIncompatibleStride = errors.New("incompatible attribute layout")

// fragment is one polygon paired with its composed world transform.
type fragment struct {
	polygon *Polygon
	world   math.Mat4
}

// Flatten merges all polygons across the whole tree into one polygon per
// distinct material, in world space. The input model is left intact; the
// result is a new single-mesh model with an identity transform.
//
// Positions are transformed as points (w=1). Normals and tangents are copied
// as authored, without the inverse-transpose; under non-uniform scaling they
// no longer match the transformed surface.
func Flatten(m *Model) (*Model, error) {
	var order []*Material
	groups := make(map[*Material][]fragment)

	var collect func(mesh *Mesh, parent math.Mat4)
	collect = func(mesh *Mesh, parent math.Mat4) {
		world := parent.Mul(mesh.Transform)
		for _, p := range mesh.Polygons {
			if _, ok := groups[p.Material]; !ok {
				order = append(order, p.Material)
			}
			groups[p.Material] = append(groups[p.Material], fragment{polygon: p, world: world})
		}
		for _, child := range mesh.Children {
			collect(child, world)
		}
	}
	for _, mesh := range m.Meshes {
		collect(mesh, math.Identity())
	}

	flat := &Mesh{Transform: math.Identity()}
	for _, mat := range order {
		merged, err := mergeFragments(mat, groups[mat])
		if err != nil {
			return nil, err
		}
		flat.Polygons = append(flat.Polygons, merged)
	}

	return &Model{Meshes: []*Mesh{flat}}, nil
}

// mergeFragments concatenates all fragments of one material group,
// renumbering indices with a running vertex-count offset.
func mergeFragments(mat *Material, frags []fragment) (*Polygon, error) {
	first := frags[0].polygon
	hasNormals := len(first.Normals) > 0
	hasTangents := len(first.Tangents) > 0
	hasCoords := len(first.Coordinates) > 0
	hasTints := len(first.Tints) > 0

	name := "<none>"
	if mat != nil {
		name = mat.Name
	}

	out := &Polygon{Material: mat}
	for _, frag := range frags {
		p := frag.polygon
		if (len(p.Normals) > 0) != hasNormals ||
			(len(p.Tangents) > 0) != hasTangents ||
			(len(p.Coordinates) > 0) != hasCoords ||
			(len(p.Tints) > 0) != hasTints {
			return nil, fmt.Errorf("%w: material %q", ErrIncompatibleStride, name)
		}

		offset := uint32(len(out.Positions))
		for _, pos := range p.Positions {
			out.Positions = append(out.Positions, frag.world.TransformPoint(pos))
		}
		for _, tri := range p.Indices {
			out.Indices = append(out.Indices, Triangle{
				A: tri.A + offset,
				B: tri.B + offset,
				C: tri.C + offset,
			})
		}
		out.Normals = append(out.Normals, p.Normals...)
		out.Tangents = append(out.Tangents, p.Tangents...)
		out.Coordinates = append(out.Coordinates, p.Coordinates...)
		out.Tints = append(out.Tints, p.Tints...)
	}
	return out, nil
}
