package formats

import (
	"fmt"

	"github.com/Faultbox/modelkit/pkg/imaging"
	"github.com/Faultbox/modelkit/pkg/math"
	"github.com/Faultbox/modelkit/pkg/scene"
	"github.com/Faultbox/modelkit/pkg/source"
)

// LoadDocument loads a plain JSON model document. Texture references are
// resolved relative to the document's own directory.
//
// Document shape:
//
//	{
//	  "materials": {"<name>": {"diffuseColor": [r,g,b,a], "shininess": n,
//	                           "diffuseMap": "file.png", ...}},
//	  "meshes": [{"points": [{"x","y","z"}, ...],
//	              "normals": [{"x","y","z"}, ...],
//	              "coords": [{"u","v"}, ...],
//	              "triangles": [[a,b,c], ...],
//	              "materialName": "<name>"}]
//	}
func LoadDocument(src source.Source, path string) (*scene.Model, error) {
	doc, err := src.JSON(path)
	if err != nil {
		return nil, err
	}
	model, err := DecodeDocument(src, source.Dir(path), doc)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return model, nil
}

// DecodeDocument decodes an already-parsed document. dir is the base
// directory for texture references.
func DecodeDocument(src source.Source, dir string, doc any) (*scene.Model, error) {
	d := &docDecoder{
		src:       src,
		dir:       dir,
		materials: make(map[string]*scene.Material),
		textures:  make(map[string]*scene.Texture),
	}
	model, err := d.decode(doc)
	if err != nil {
		return nil, err
	}
	scene.Finalize(model, scene.FinalizeOptions{})
	return model, nil
}

type docDecoder struct {
	src       source.Source
	dir       string
	materials map[string]*scene.Material
	textures  map[string]*scene.Texture
}

func (d *docDecoder) decode(doc any) (*scene.Model, error) {
	root, err := expectObject("document", doc)
	if err != nil {
		return nil, err
	}

	if raw, ok := root["materials"]; ok {
		defs, err := expectObject("materials", raw)
		if err != nil {
			return nil, err
		}
		for name, def := range defs {
			if err := d.decodeMaterial("materials."+name, name, def); err != nil {
				return nil, err
			}
		}
	}

	raw, ok := root["meshes"]
	if !ok {
		return nil, fmt.Errorf("%w: meshes: expected array, field is absent", ErrSchemaViolation)
	}
	entries, err := expectArray("meshes", raw)
	if err != nil {
		return nil, err
	}

	model := &scene.Model{}
	for i, entry := range entries {
		mesh, err := d.decodeMesh(fmt.Sprintf("meshes[%d]", i), entry)
		if err != nil {
			return nil, err
		}
		model.Meshes = append(model.Meshes, mesh)
	}
	return model, nil
}

// materialByName resolves a material by name, creating a placeholder so a
// mesh may bind a name defined elsewhere in the document.
func (d *docDecoder) materialByName(name string) *scene.Material {
	if mat, ok := d.materials[name]; ok {
		return mat
	}
	mat := &scene.Material{Name: name}
	d.materials[name] = mat
	return mat
}

// documentMaps pairs each texture field of a material definition with its
// slot. Unknown fields are ignored, not rejected.
var documentMaps = []string{
	"diffuseMap", "normalMap", "metalnessMap", "roughnessMap",
	"occlusionMap", "emissiveMap", "heightMap",
}

func (d *docDecoder) decodeMaterial(path, name string, raw any) error {
	def, err := expectObject(path, raw)
	if err != nil {
		return err
	}
	mat := d.materialByName(name)

	if raw, ok := def["diffuseColor"]; ok {
		color, err := expectColor(path+".diffuseColor", raw)
		if err != nil {
			return err
		}
		mat.DiffuseColor = &color
	}
	if raw, ok := def["emissiveColor"]; ok {
		color, err := expectColor(path+".emissiveColor", raw)
		if err != nil {
			return err
		}
		mat.EmissiveColor = &color
	}
	if raw, ok := def["shininess"]; ok {
		if mat.Shininess, err = expectNumber(path+".shininess", raw); err != nil {
			return err
		}
	}

	for _, field := range documentMaps {
		raw, ok := def[field]
		if !ok {
			continue
		}
		ref, err := expectString(path+"."+field, raw)
		if err != nil {
			return err
		}
		tex, err := d.loadTexture(ref)
		if err != nil {
			return err
		}
		switch field {
		case "diffuseMap":
			mat.DiffuseMap = tex
		case "normalMap":
			mat.NormalMap = tex
		case "metalnessMap":
			mat.MetalnessMap = tex
		case "roughnessMap":
			mat.RoughnessMap = tex
		case "occlusionMap":
			mat.OcclusionMap = tex
		case "emissiveMap":
			mat.EmissiveMap = tex
		case "heightMap":
			mat.HeightMap = tex
		}
	}
	return nil
}

func (d *docDecoder) decodeMesh(path string, raw any) (*scene.Mesh, error) {
	def, err := expectObject(path, raw)
	if err != nil {
		return nil, err
	}
	polygon := &scene.Polygon{}

	points, err := requireArray(def, path, "points")
	if err != nil {
		return nil, err
	}
	polygon.Positions = make([]math.Vec3, len(points))
	for i, raw := range points {
		if polygon.Positions[i], err = expectPoint(fmt.Sprintf("%s.points[%d]", path, i), raw); err != nil {
			return nil, err
		}
	}

	triangles, err := requireArray(def, path, "triangles")
	if err != nil {
		return nil, err
	}
	polygon.Indices = make([]scene.Triangle, len(triangles))
	for i, raw := range triangles {
		if polygon.Indices[i], err = expectTriple(fmt.Sprintf("%s.triangles[%d]", path, i), raw); err != nil {
			return nil, err
		}
	}

	if raw, ok := def["normals"]; ok {
		normals, err := expectArray(path+".normals", raw)
		if err != nil {
			return nil, err
		}
		polygon.Normals = make([]math.Vec3, len(normals))
		for i, raw := range normals {
			if polygon.Normals[i], err = expectPoint(fmt.Sprintf("%s.normals[%d]", path, i), raw); err != nil {
				return nil, err
			}
		}
	}
	if raw, ok := def["coords"]; ok {
		coords, err := expectArray(path+".coords", raw)
		if err != nil {
			return nil, err
		}
		polygon.Coordinates = make([]math.Vec2, len(coords))
		for i, raw := range coords {
			if polygon.Coordinates[i], err = expectCoordinate(fmt.Sprintf("%s.coords[%d]", path, i), raw); err != nil {
				return nil, err
			}
		}
	}
	if raw, ok := def["materialName"]; ok {
		name, err := expectString(path+".materialName", raw)
		if err != nil {
			return nil, err
		}
		polygon.Material = d.materialByName(name)
	}

	if err := polygon.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &scene.Mesh{
		Transform: math.Identity(),
		Polygons:  []*scene.Polygon{polygon},
	}, nil
}

func (d *docDecoder) loadTexture(relative string) (*scene.Texture, error) {
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

// Schema conversion primitives. Each takes the dotted path of the value for
// error reporting and fails with ErrSchemaViolation naming the path and the
// expected kind.

func schemaErr(path, want string, got any) error {
	if got == nil {
		return fmt.Errorf("%w: %s: expected %s, got null", ErrSchemaViolation, path, want)
	}
	return fmt.Errorf("%w: %s: expected %s, got %T", ErrSchemaViolation, path, want, got)
}

func expectObject(path string, v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, schemaErr(path, "object", v)
	}
	return obj, nil
}

func expectArray(path string, v any) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, schemaErr(path, "array", v)
	}
	return arr, nil
}

func requireArray(obj map[string]any, path, key string) ([]any, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s: expected array, field is absent", ErrSchemaViolation, path, key)
	}
	return expectArray(path+"."+key, raw)
}

func expectNumber(path string, v any) (float32, error) {
	n, ok := v.(float64)
	if !ok {
		return 0, schemaErr(path, "number", v)
	}
	return float32(n), nil
}

func expectInteger(path string, v any) (int, error) {
	n, ok := v.(float64)
	if !ok || n != float64(int(n)) {
		return 0, schemaErr(path, "integer", v)
	}
	return int(n), nil
}

func expectString(path string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", schemaErr(path, "string", v)
	}
	return s, nil
}

// expectPoint converts an {x,y,z} object.
func expectPoint(path string, v any) (math.Vec3, error) {
	obj, err := expectObject(path, v)
	if err != nil {
		return math.Vec3{}, err
	}
	var out math.Vec3
	for _, c := range []struct {
		key string
		dst *float32
	}{{"x", &out.X}, {"y", &out.Y}, {"z", &out.Z}} {
		raw, ok := obj[c.key]
		if !ok {
			return math.Vec3{}, fmt.Errorf("%w: %s.%s: expected number, field is absent", ErrSchemaViolation, path, c.key)
		}
		if *c.dst, err = expectNumber(path+"."+c.key, raw); err != nil {
			return math.Vec3{}, err
		}
	}
	return out, nil
}

// expectCoordinate converts a {u,v} object.
func expectCoordinate(path string, v any) (math.Vec2, error) {
	obj, err := expectObject(path, v)
	if err != nil {
		return math.Vec2{}, err
	}
	var out math.Vec2
	for _, c := range []struct {
		key string
		dst *float32
	}{{"u", &out.X}, {"v", &out.Y}} {
		raw, ok := obj[c.key]
		if !ok {
			return math.Vec2{}, fmt.Errorf("%w: %s.%s: expected number, field is absent", ErrSchemaViolation, path, c.key)
		}
		if *c.dst, err = expectNumber(path+"."+c.key, raw); err != nil {
			return math.Vec2{}, err
		}
	}
	return out, nil
}

// expectTriple converts an [a,b,c] integer array.
func expectTriple(path string, v any) (scene.Triangle, error) {
	arr, err := expectArray(path, v)
	if err != nil {
		return scene.Triangle{}, err
	}
	if len(arr) != 3 {
		return scene.Triangle{}, fmt.Errorf("%w: %s: expected 3-tuple, got %d elements", ErrSchemaViolation, path, len(arr))
	}
	var out [3]int
	for i, raw := range arr {
		n, err := expectInteger(fmt.Sprintf("%s[%d]", path, i), raw)
		if err != nil {
			return scene.Triangle{}, err
		}
		if n < 0 {
			return scene.Triangle{}, fmt.Errorf("%w: %s[%d]: expected non-negative integer, got %d", ErrSchemaViolation, path, i, n)
		}
		out[i] = n
	}
	return scene.Triangle{A: uint32(out[0]), B: uint32(out[1]), C: uint32(out[2])}, nil
}

// expectColor converts an [r,g,b] or [r,g,b,a] array, clamping every channel
// to [0,1]. Alpha defaults to 1 when absent.
func expectColor(path string, v any) (scene.Color, error) {
	arr, err := expectArray(path, v)
	if err != nil {
		return scene.Color{}, err
	}
	if len(arr) != 3 && len(arr) != 4 {
		return scene.Color{}, fmt.Errorf("%w: %s: expected RGBA color, got %d elements", ErrSchemaViolation, path, len(arr))
	}
	channels := [4]float32{0, 0, 0, 1}
	for i, raw := range arr {
		if channels[i], err = expectNumber(fmt.Sprintf("%s[%d]", path, i), raw); err != nil {
			return scene.Color{}, err
		}
	}
	c := scene.Color{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}
	return c.Clamp(), nil
}
