// Package scene provides the common in-memory model produced by every
// format decoder: a tree of mesh nodes holding indexed polygon groups and
// shared materials, plus the geometry-derivation and flattening stages.
package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/modelkit/pkg/imaging"
	"github.com/Faultbox/modelkit/pkg/math"
)

// Polygon errors.
var (
	ErrAttributeLength = errors.New("attribute array length mismatch")
	ErrIndexRange      = errors.New("triangle index out of range")
)

// Model is an ordered list of root mesh nodes. Each Model is a fresh,
// owned tree with no back-references.
type Model struct {
	Meshes []*Mesh
}

// Mesh is one node of the model tree. Children are owned; the tree has no
// cycles and no shared ownership. Transform is local-to-parent and is never
// baked into children; flattening is the only operation that composes
// transforms into world space.
type Mesh struct {
	Name      string
	Children  []*Mesh
	Polygons  []*Polygon
	Transform math.Mat4
}

// Triangle is one triple of indices into a polygon's vertex arrays.
type Triangle struct {
	A, B, C uint32
}

// Polygon is one indexed triangle-list primitive group sharing one material.
// Every attribute array, when present, has one entry per logical vertex
// (len == len(Positions)); every triangle index is < len(Positions).
type Polygon struct {
	Positions   []math.Vec3
	Indices     []Triangle
	Normals     []math.Vec3
	Tangents    []math.Vec3
	Coordinates []math.Vec2
	Tints       []Color
	Material    *Material
}

// Validate checks the per-vertex attribute invariants.
func (p *Polygon) Validate() error {
	n := len(p.Positions)

	check := func(name string, length int) error {
		if length != 0 && length != n {
			return fmt.Errorf("%w: %s has %d entries for %d positions", ErrAttributeLength, name, length, n)
		}
		return nil
	}

	if err := check("normals", len(p.Normals)); err != nil {
		return err
	}
	if err := check("tangents", len(p.Tangents)); err != nil {
		return err
	}
	if err := check("coordinates", len(p.Coordinates)); err != nil {
		return err
	}
	if err := check("tints", len(p.Tints)); err != nil {
		return err
	}

	for i, tri := range p.Indices {
		for _, idx := range [3]uint32{tri.A, tri.B, tri.C} {
			if int(idx) >= n {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrIndexRange, i, idx, n)
			}
		}
	}
	return nil
}

// Color is an RGBA color with float channels.
type Color struct {
	R, G, B, A float32
}

// White returns opaque white.
func White() Color { return Color{1, 1, 1, 1} }

// Black returns opaque black.
func Black() Color { return Color{0, 0, 0, 1} }

// Clamp returns the color with every channel clamped to [0, 1].
func (c Color) Clamp() Color {
	clamp := func(v float32) float32 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return Color{clamp(c.R), clamp(c.G), clamp(c.B), clamp(c.A)}
}

// Material holds shading factors and texture references. Materials are
// shared by reference across polygons within one Model so a consumer can
// deduplicate GPU uploads.
type Material struct {
	Name string

	DiffuseColor  *Color
	EmissiveColor *Color

	DiffuseMap   *Texture
	NormalMap    *Texture
	MetalnessMap *Texture
	RoughnessMap *Texture
	OcclusionMap *Texture
	EmissiveMap  *Texture
	HeightMap    *Texture

	NormalScale       float32
	OcclusionStrength float32
	HeightBias        float32
	HeightScale       float32
	Shininess         float32
}

// Texture owns a decoded image plus its sampling parameters.
type Texture struct {
	Image  *imaging.Image
	Filter Filter
}

// Interpolation selects a texture filtering mode.
type Interpolation int

// Filtering modes.
const (
	InterpolationNearest Interpolation = iota
	InterpolationLinear
)

// WrapMode selects how coordinates outside [0,1] are handled.
type WrapMode int

// Wrap modes.
const (
	WrapRepeat WrapMode = iota
	WrapClamp
	WrapMirror
)

// Filter holds texture sampling parameters.
type Filter struct {
	Magnify Interpolation
	Minify  Interpolation
	Mipmap  bool
	Wrap    WrapMode
}

// DefaultFilter returns the filter used when a format supplies none:
// linear in both directions, mipmapped, repeat wrapping.
func DefaultFilter() Filter {
	return Filter{
		Magnify: InterpolationLinear,
		Minify:  InterpolationLinear,
		Mipmap:  true,
		Wrap:    WrapRepeat,
	}
}

// Walk calls fn for every mesh node in depth-first order.
func (m *Model) Walk(fn func(*Mesh)) {
	for _, mesh := range m.Meshes {
		mesh.walk(fn)
	}
}

func (m *Mesh) walk(fn func(*Mesh)) {
	fn(m)
	for _, child := range m.Children {
		child.walk(fn)
	}
}

// Materials returns every distinct material reachable from the model,
// in first-seen order.
func (m *Model) Materials() []*Material {
	seen := make(map[*Material]bool)
	var out []*Material
	m.Walk(func(mesh *Mesh) {
		for _, p := range mesh.Polygons {
			if p.Material != nil && !seen[p.Material] {
				seen[p.Material] = true
				out = append(out, p.Material)
			}
		}
	})
	return out
}
