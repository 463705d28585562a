package formats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/modelkit/pkg/imaging"
	"github.com/Faultbox/modelkit/pkg/math"
	"github.com/Faultbox/modelkit/pkg/scene"
	"github.com/Faultbox/modelkit/pkg/source"
)

// OBJOptions control how a Wavefront OBJ file is loaded.
type OBJOptions struct {
	// Object restricts loading to the named `o` group. Non-matching
	// geometry is still parsed for error reporting but not kept. Empty
	// loads everything.
	Object string
}

// LoadOBJ loads a Wavefront OBJ model with its companion material
// libraries, resolved relative to the file's own directory.
func LoadOBJ(src source.Source, path string) (*scene.Model, error) {
	return LoadOBJOptions(src, path, OBJOptions{})
}

// LoadOBJOptions is LoadOBJ with explicit options.
func LoadOBJOptions(src source.Source, path string, opts OBJOptions) (*scene.Model, error) {
	text, err := src.Text(path)
	if err != nil {
		return nil, err
	}

	d := &objDecoder{
		src:       src,
		dir:       source.Dir(path),
		opts:      opts,
		materials: make(map[string]*scene.Material),
		textures:  make(map[string]*scene.Texture),
		model:     &scene.Model{},
		mesh:      &scene.Mesh{Transform: math.Identity()},
	}

	if err := d.decode(path, text); err != nil {
		return nil, err
	}

	scene.Finalize(d.model, scene.FinalizeOptions{})
	return d.model, nil
}

// objVertex is the composite dedup key of one face corner. Absent
// coordinate/normal references are -1.
type objVertex struct {
	position, coord, normal int
}

// objPolygon accumulates one contiguous material-binding group.
type objPolygon struct {
	material  *scene.Material
	dedup     map[objVertex]uint32
	positions []math.Vec3
	coords    []math.Vec2
	normals   []math.Vec3
	triangles []scene.Triangle
}

type objDecoder struct {
	src  source.Source
	dir  string
	opts OBJOptions

	positions []math.Vec3
	coords    []math.Vec2
	normals   []math.Vec3

	materials map[string]*scene.Material
	textures  map[string]*scene.Texture

	model *scene.Model
	mesh  *scene.Mesh
	poly  *objPolygon

	object string // current `o` name
}

// active reports whether parsed geometry is kept under the object filter.
func (d *objDecoder) active() bool {
	return d.opts.Object == "" || d.opts.Object == d.object
}

func (d *objDecoder) decode(path, text string) error {
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if err := d.directive(fields[0], fields[1:]); err != nil {
			return fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
	}
	if err := d.finishMesh(""); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (d *objDecoder) directive(name string, args []string) error {
	switch name {
	case "#", "s":
		return nil // comments and smoothing groups are ignored

	case "v":
		v, err := parseVec3(args)
		if err != nil {
			return err
		}
		d.positions = append(d.positions, v)
		return nil

	case "vn":
		v, err := parseVec3(args)
		if err != nil {
			return err
		}
		d.normals = append(d.normals, v)
		return nil

	case "vt":
		if len(args) < 2 {
			return fmt.Errorf("%w: vt needs 2 components, got %d", ErrMalformedContainer, len(args))
		}
		u, err := parseFloat(args[0])
		if err != nil {
			return err
		}
		v, err := parseFloat(args[1])
		if err != nil {
			return err
		}
		d.coords = append(d.coords, math.Vec2{X: u, Y: v})
		return nil

	case "f":
		return d.face(args)

	case "o":
		return d.finishMesh(strings.Join(args, " "))

	case "usemtl":
		mtlName := strings.Join(args, " ")
		if d.active() {
			if err := d.finishPolygon(); err != nil {
				return err
			}
			d.poly = d.newPolygon(d.materialByName(mtlName))
		}
		return nil

	case "mtllib":
		for _, lib := range args {
			if err := d.loadMTL(lib); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownDirective, name)
}

func (d *objDecoder) newPolygon(mat *scene.Material) *objPolygon {
	return &objPolygon{material: mat, dedup: make(map[objVertex]uint32)}
}

// materialByName resolves a material, creating a placeholder when the
// binding precedes (or lacks) the library definition. Repeated bindings of
// one name share the same object.
func (d *objDecoder) materialByName(name string) *scene.Material {
	if mat, ok := d.materials[name]; ok {
		return mat
	}
	mat := &scene.Material{Name: name}
	d.materials[name] = mat
	return mat
}

func (d *objDecoder) face(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: face with %d vertices", ErrMalformedContainer, len(args))
	}

	refs := make([]objVertex, len(args))
	for i, arg := range args {
		ref, err := d.faceVertex(arg)
		if err != nil {
			return err
		}
		refs[i] = ref
	}
	if !d.active() {
		return nil
	}

	if d.poly == nil {
		d.poly = d.newPolygon(nil)
	}
	corners := make([]uint32, len(refs))
	for i, ref := range refs {
		corners[i] = d.poly.vertex(d, ref)
	}
	// fan triangulation
	for i := 0; i+2 < len(corners); i++ {
		d.poly.triangles = append(d.poly.triangles, scene.Triangle{
			A: corners[0], B: corners[i+1], C: corners[i+2],
		})
	}
	return nil
}

// faceVertex parses one `position[/coordinate][/normal]` reference,
// validating the 1-based indices against the global tables.
func (d *objDecoder) faceVertex(ref string) (objVertex, error) {
	out := objVertex{coord: -1, normal: -1}
	parts := strings.Split(ref, "/")
	if len(parts) > 3 {
		return out, fmt.Errorf("%w: face vertex %q", ErrMalformedContainer, ref)
	}

	idx, err := parseIndex(parts[0], len(d.positions), "position")
	if err != nil {
		return out, err
	}
	out.position = idx

	if len(parts) > 1 && parts[1] != "" {
		if len(d.coords) == 0 {
			return out, fmt.Errorf("%w: face references texture coordinates but the file declares none", ErrMalformedContainer)
		}
		if out.coord, err = parseIndex(parts[1], len(d.coords), "coordinate"); err != nil {
			return out, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if len(d.normals) == 0 {
			return out, fmt.Errorf("%w: face references normals but the file declares none", ErrMalformedContainer)
		}
		if out.normal, err = parseIndex(parts[2], len(d.normals), "normal"); err != nil {
			return out, err
		}
	}
	return out, nil
}

func parseIndex(s string, table int, kind string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s index %q", ErrMalformedContainer, kind, s)
	}
	n-- // 1-based on the wire
	if n < 0 || n >= table {
		return 0, fmt.Errorf("%w: face references %s %d of %d", ErrInvalidReference, kind, n+1, table)
	}
	return n, nil
}

// vertex returns the output slot of a face corner, allocating one on first
// sight and reusing it for every repeat of the same index triple.
func (p *objPolygon) vertex(d *objDecoder, ref objVertex) uint32 {
	if slot, ok := p.dedup[ref]; ok {
		return slot
	}
	slot := uint32(len(p.positions))
	p.positions = append(p.positions, d.positions[ref.position])
	if ref.coord >= 0 {
		p.coords = append(p.coords, d.coords[ref.coord])
	}
	if ref.normal >= 0 {
		p.normals = append(p.normals, d.normals[ref.normal])
	}
	p.dedup[ref] = slot
	return slot
}

// finishPolygon closes the current material-binding group, keeping it only
// if it gathered any faces. Faces mixing corner forms within one group
// leave the attribute arrays shorter than the positions, which validation
// rejects here.
func (d *objDecoder) finishPolygon() error {
	if d.poly == nil || len(d.poly.triangles) == 0 {
		d.poly = nil
		return nil
	}
	polygon := &scene.Polygon{
		Positions: d.poly.positions,
		Indices:   d.poly.triangles,
		Material:  d.poly.material,
	}
	if len(d.poly.coords) > 0 {
		polygon.Coordinates = d.poly.coords
	}
	if len(d.poly.normals) > 0 {
		polygon.Normals = d.poly.normals
	}
	d.poly = nil
	if err := polygon.Validate(); err != nil {
		return err
	}
	d.mesh.Polygons = append(d.mesh.Polygons, polygon)
	return nil
}

// finishMesh closes the current object group and opens the next one.
func (d *objDecoder) finishMesh(next string) error {
	var err error
	if d.active() {
		err = d.finishPolygon()
		if err == nil && len(d.mesh.Polygons) > 0 {
			d.model.Meshes = append(d.model.Meshes, d.mesh)
		}
	}
	d.poly = nil
	d.object = next
	d.mesh = &scene.Mesh{Name: next, Transform: math.Identity()}
	return err
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", ErrMalformedContainer, s)
	}
	return float32(v), nil
}

func parseVec3(args []string) (math.Vec3, error) {
	if len(args) < 3 {
		return math.Vec3{}, fmt.Errorf("%w: vector needs 3 components, got %d", ErrMalformedContainer, len(args))
	}
	x, err := parseFloat(args[0])
	if err != nil {
		return math.Vec3{}, err
	}
	y, err := parseFloat(args[1])
	if err != nil {
		return math.Vec3{}, err
	}
	z, err := parseFloat(args[2])
	if err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{X: x, Y: y, Z: z}, nil
}

// loadMTL tokenizes a companion material library. Definitions merge into the
// session's name-keyed table, so bindings that preceded the library pick up
// the loaded values.
func (d *objDecoder) loadMTL(name string) error {
	path := source.Join(d.dir, name)
	text, err := d.src.Text(path)
	if err != nil {
		return err
	}

	var mat *scene.Material
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if err := d.mtlDirective(fields[0], fields[1:], &mat); err != nil {
			return fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
	}
	return nil
}

func (d *objDecoder) mtlDirective(name string, args []string, mat **scene.Material) error {
	if name == "#" {
		return nil
	}
	if name == "newmtl" {
		*mat = d.materialByName(strings.Join(args, " "))
		return nil
	}
	if *mat == nil {
		return fmt.Errorf("%w: %q before newmtl", ErrMalformedContainer, name)
	}

	switch name {
	case "Kd":
		color, err := parseColor(args)
		if err != nil {
			return err
		}
		(*mat).DiffuseColor = color
		return nil

	case "Ke":
		color, err := parseColor(args)
		if err != nil {
			return err
		}
		(*mat).EmissiveColor = color
		return nil

	case "Ks":
		// specular color has no slot in the material model
		_, err := parseColor(args)
		return err

	case "Ns":
		if len(args) < 1 {
			return fmt.Errorf("%w: Ns without a value", ErrMalformedContainer)
		}
		v, err := parseFloat(args[0])
		if err != nil {
			return err
		}
		(*mat).Shininess = v
		return nil

	case "map_Kd":
		return d.mtlTexture(args, &(*mat).DiffuseMap)
	case "map_Ke":
		return d.mtlTexture(args, &(*mat).EmissiveMap)
	case "map_Bump", "bump":
		return d.mtlTexture(args, &(*mat).HeightMap)
	case "map_Ns":
		return d.mtlTexture(args, &(*mat).RoughnessMap)
	}
	return fmt.Errorf("%w: %q", ErrUnknownDirective, name)
}

func (d *objDecoder) mtlTexture(args []string, out **scene.Texture) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: texture map without a file", ErrMalformedContainer)
	}
	tex, err := d.loadTexture(strings.Join(args, " "))
	if err != nil {
		return err
	}
	*out = tex
	return nil
}

func (d *objDecoder) loadTexture(relative string) (*scene.Texture, error) {
	resolved := source.Join(d.dir, relative)
	if tex, ok := d.textures[resolved]; ok {
		return tex, nil
	}

	data, err := d.src.Binary(resolved)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(data, "")
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", resolved, err)
	}

	tex := &scene.Texture{Image: img, Filter: scene.DefaultFilter()}
	d.textures[resolved] = tex
	return tex, nil
}

func parseColor(args []string) (*scene.Color, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%w: color needs 3 components, got %d", ErrMalformedContainer, len(args))
	}
	r, err := parseFloat(args[0])
	if err != nil {
		return nil, err
	}
	g, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	b, err := parseFloat(args[2])
	if err != nil {
		return nil, err
	}
	return &scene.Color{R: r, G: g, B: b, A: 1}, nil
}
