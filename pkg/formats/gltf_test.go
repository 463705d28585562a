package formats

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/modelkit/pkg/math"
	"github.com/Faultbox/modelkit/pkg/source"
)

// triangleGeometry is 3 float32 vec3 positions followed by 3 uint16 indices.
func triangleGeometry() []byte {
	return cat(
		f32(0), f32(0), f32(0),
		f32(1), f32(0), f32(0),
		f32(0), f32(1), f32(0),
		u16(0), u16(1), u16(2),
	)
}

func dataURI(data []byte) string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(data)
}

// triangleJSON renders a single-triangle document. nodes replaces the node
// array when non-empty, and extra is spliced into the primitive object.
func triangleJSON(bufferField string, nodes, extra string) string {
	if nodes == "" {
		nodes = `[{"name": "Tri", "mesh": 0}]`
	}
	doc := fmt.Sprintf(`{
		"asset": {"version": "2.0"},
		"scene": 0,
		"scenes": [{"nodes": [0]}],
		"nodes": %s,
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "indices": 1%s}]}],
		"accessors": [
			{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
		],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			{"buffer": 0, "byteOffset": 36, "byteLength": 6}
		],
		"buffers": [%s]
	}`, nodes, extra, bufferField)
	return doc
}

func glbFile(jsonText string, bin []byte) []byte {
	j := []byte(jsonText)
	for len(j)%4 != 0 {
		j = append(j, ' ')
	}
	b := append([]byte(nil), bin...)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	total := 12 + 8 + len(j) + 8 + len(b)
	return cat(
		u32(glbMagic), u32(glbVersion), u32(uint32(total)),
		u32(uint32(len(j))), u32(glbChunkJSON), j,
		u32(uint32(len(b))), u32(glbChunkBIN), b,
	)
}

func TestLoadGLTF_JSONTriangle(t *testing.T) {
	buffer := fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry()))
	src := source.MemorySource{"tri.gltf": []byte(triangleJSON(buffer, "", ""))}

	model, err := LoadGLTF(src, "tri.gltf")
	if err != nil {
		t.Fatalf("LoadGLTF failed: %v", err)
	}

	if len(model.Meshes) != 1 {
		t.Fatalf("mesh count = %d, want 1", len(model.Meshes))
	}
	mesh := model.Meshes[0]
	if mesh.Name != "Tri" {
		t.Errorf("mesh name = %q, want %q", mesh.Name, "Tri")
	}
	if len(mesh.Polygons) != 1 {
		t.Fatalf("polygon count = %d, want 1", len(mesh.Polygons))
	}

	p := mesh.Polygons[0]
	if len(p.Positions) != 3 {
		t.Fatalf("position count = %d, want 3", len(p.Positions))
	}
	if p.Positions[1] != (math.Vec3{X: 1, Y: 0, Z: 0}) {
		t.Errorf("position 1 = %v, want (1,0,0)", p.Positions[1])
	}
	if len(p.Indices) != 1 {
		t.Fatalf("triangle count = %d, want 1", len(p.Indices))
	}

	// No authored normals, so finalization derives them: flat +Z
	if len(p.Normals) != 3 {
		t.Fatalf("normal count = %d, want 3", len(p.Normals))
	}
	if math32.Abs(p.Normals[0].Z-1) > 1e-5 {
		t.Errorf("normal 0 = %v, want (0,0,1)", p.Normals[0])
	}
}

func TestLoadGLTF_GLBTriangle(t *testing.T) {
	doc := triangleJSON(`{"byteLength": 42}`, "", "")
	src := source.MemorySource{"tri.glb": glbFile(doc, triangleGeometry())}

	model, err := LoadGLTF(src, "tri.glb")
	if err != nil {
		t.Fatalf("LoadGLTF failed: %v", err)
	}
	p := model.Meshes[0].Polygons[0]
	if p.Positions[2] != (math.Vec3{X: 0, Y: 1, Z: 0}) {
		t.Errorf("position 2 = %v, want (0,1,0)", p.Positions[2])
	}
}

func TestLoadGLTF_GLBDuplicateJSONChunkFatal(t *testing.T) {
	doc := triangleJSON(`{"byteLength": 42}`, "", "")
	j := []byte(doc)
	for len(j)%4 != 0 {
		j = append(j, ' ')
	}
	total := 12 + 2*(8+len(j))
	file := cat(
		u32(glbMagic), u32(glbVersion), u32(uint32(total)),
		u32(uint32(len(j))), u32(glbChunkJSON), j,
		u32(uint32(len(j))), u32(glbChunkJSON), j,
	)

	_, err := LoadGLTF(source.MemorySource{"a.glb": file}, "a.glb")
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("err = %v, want ErrMalformedContainer", err)
	}
}

func TestLoadGLTF_GLBBadMagic(t *testing.T) {
	src := source.MemorySource{"a.glb": []byte("BLOB....junk")}
	_, err := LoadGLTF(src, "a.glb")
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("err = %v, want ErrMalformedContainer", err)
	}
}

func TestLoadGLTF_ExternalBuffer(t *testing.T) {
	buffer := `{"uri": "geom.bin", "byteLength": 42}`
	src := source.MemorySource{
		"assets/tri.gltf": []byte(triangleJSON(buffer, "", "")),
		"assets/geom.bin": triangleGeometry(),
	}

	model, err := LoadGLTF(src, "assets/tri.gltf")
	if err != nil {
		t.Fatalf("LoadGLTF failed: %v", err)
	}
	if len(model.Meshes[0].Polygons[0].Positions) != 3 {
		t.Error("external buffer not resolved")
	}
}

func TestLoadGLTF_AccessorOverflow(t *testing.T) {
	// The position view is 4 bytes too small for accessor 0.
	doc := strings.Replace(
		triangleJSON(fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry())), "", ""),
		`"byteLength": 36`, `"byteLength": 32`, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	_, err := LoadGLTF(src, "tri.gltf")
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", err)
	}
	if !strings.Contains(err.Error(), "accessor 0") || !strings.Contains(err.Error(), "4 bytes") {
		t.Errorf("err = %v, want the accessor index and exact byte overflow named", err)
	}
}

func TestLoadGLTF_ViewOverflowsBuffer(t *testing.T) {
	doc := strings.Replace(
		triangleJSON(fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry())), "", ""),
		`{"buffer": 0, "byteOffset": 36, "byteLength": 6}`,
		`{"buffer": 0, "byteOffset": 36, "byteLength": 16}`, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	_, err := LoadGLTF(src, "tri.gltf")
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", err)
	}
}

func TestLoadGLTF_SparseRejected(t *testing.T) {
	doc := strings.Replace(
		triangleJSON(fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry())), "", ""),
		`"count": 3, "type": "VEC3"`,
		`"count": 3, "type": "VEC3", "sparse": {"count": 1}`, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	_, err := LoadGLTF(src, "tri.gltf")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestLoadGLTF_WrongVersionFatal(t *testing.T) {
	doc := strings.Replace(
		triangleJSON(`{"byteLength": 42}`, "", ""),
		`"version": "2.0"`, `"version": "1.0"`, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	_, err := LoadGLTF(src, "tri.gltf")
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("err = %v, want ErrMalformedContainer", err)
	}
}

func TestLoadGLTF_MissingDefaultSceneFatal(t *testing.T) {
	doc := strings.Replace(
		triangleJSON(fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry())), "", ""),
		`"scene": 0,`, ``, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	_, err := LoadGLTF(src, "tri.gltf")
	if !errors.Is(err, ErrMalformedContainer) {
		t.Fatalf("err = %v, want ErrMalformedContainer", err)
	}
}

func TestLoadGLTF_SharedNodeDuplicated(t *testing.T) {
	// The same node is a root twice: the output tree must hold two distinct
	// mesh nodes sharing one polygon.
	buffer := fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry()))
	doc := strings.Replace(
		triangleJSON(buffer, "", ""),
		`"scenes": [{"nodes": [0]}]`, `"scenes": [{"nodes": [0, 0]}]`, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	model, err := LoadGLTF(src, "tri.gltf")
	if err != nil {
		t.Fatalf("LoadGLTF failed: %v", err)
	}
	if len(model.Meshes) != 2 {
		t.Fatalf("mesh count = %d, want 2", len(model.Meshes))
	}
	if model.Meshes[0] == model.Meshes[1] {
		t.Error("duplicated node instances share one mesh object")
	}
	if model.Meshes[0].Polygons[0] != model.Meshes[1].Polygons[0] {
		t.Error("duplicated node instances do not share polygon data")
	}
}

func TestLoadGLTF_NodeCycleFatal(t *testing.T) {
	nodes := `[{"children": [1]}, {"children": [0]}]`
	buffer := fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry()))
	src := source.MemorySource{"tri.gltf": []byte(triangleJSON(buffer, nodes, ""))}

	_, err := LoadGLTF(src, "tri.gltf")
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", err)
	}
}

func TestLoadGLTF_NodeTransform(t *testing.T) {
	// Translation then rotation: 90 degrees about Z as a quaternion.
	s := math32.Sin(math32.Pi / 4)
	nodes := fmt.Sprintf(
		`[{"mesh": 0, "translation": [1, 2, 3], "rotation": [0, 0, %g, %g]}]`, s, s)
	buffer := fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry()))
	src := source.MemorySource{"tri.gltf": []byte(triangleJSON(buffer, nodes, ""))}

	model, err := LoadGLTF(src, "tri.gltf")
	if err != nil {
		t.Fatalf("LoadGLTF failed: %v", err)
	}

	got := model.Meshes[0].Transform.TransformPoint(math.Vec3{X: 1, Y: 0, Z: 0})
	want := math.Vec3{X: 1, Y: 3, Z: 3}
	if got.Distance(want) > 1e-5 {
		t.Errorf("transformed point = %v, want %v", got, want)
	}
}

func TestLoadGLTF_MaterialDefaultsAndSharing(t *testing.T) {
	buffer := fmt.Sprintf(`{"uri": %q, "byteLength": 42}`, dataURI(triangleGeometry()))
	doc := strings.Replace(
		triangleJSON(buffer, "", `, "material": 0`),
		`"buffers":`,
		`"materials": [{"name": "Plain"}], "buffers":`, 1)
	// second primitive binds the same material index
	doc = strings.Replace(doc,
		`"primitives": [{`,
		`"primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}, {`, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	model, err := LoadGLTF(src, "tri.gltf")
	if err != nil {
		t.Fatalf("LoadGLTF failed: %v", err)
	}

	polys := model.Meshes[0].Polygons
	if len(polys) != 2 {
		t.Fatalf("polygon count = %d, want 2", len(polys))
	}
	mat := polys[0].Material
	if mat == nil {
		t.Fatal("material not bound")
	}
	if mat != polys[1].Material {
		t.Error("one material index resolved to two objects")
	}
	if mat.DiffuseColor == nil || *mat.DiffuseColor != sceneColor(1, 1, 1, 1) {
		t.Errorf("diffuse = %v, want opaque white default", mat.DiffuseColor)
	}
	if mat.EmissiveColor == nil || *mat.EmissiveColor != sceneColor(0, 0, 0, 1) {
		t.Errorf("emissive = %v, want black default", mat.EmissiveColor)
	}
	if mat.NormalScale != 1 || mat.OcclusionStrength != 1 {
		t.Errorf("scale defaults = %g/%g, want 1/1", mat.NormalScale, mat.OcclusionStrength)
	}
}

func TestLoadGLTF_NormalizedVertexColors(t *testing.T) {
	// COLOR_0: 3 RGBA u8 elements appended after the geometry.
	geom := cat(triangleGeometry(),
		[]byte{255, 0, 0, 255},
		[]byte{0, 255, 0, 255},
		[]byte{0, 0, 255, 127},
	)
	buffer := fmt.Sprintf(`{"uri": %q, "byteLength": %d}`, dataURI(geom), len(geom))

	doc := triangleJSON(buffer, "", "")
	doc = strings.Replace(doc,
		`{"attributes": {"POSITION": 0}`,
		`{"attributes": {"POSITION": 0, "COLOR_0": 2}`, 1)
	doc = strings.Replace(doc,
		`{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}`,
		`{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"},
		 {"bufferView": 2, "componentType": 5121, "normalized": true, "count": 3, "type": "VEC4"}`, 1)
	doc = strings.Replace(doc,
		`{"buffer": 0, "byteOffset": 36, "byteLength": 6}`,
		`{"buffer": 0, "byteOffset": 36, "byteLength": 6},
		 {"buffer": 0, "byteOffset": 42, "byteLength": 12}`, 1)
	src := source.MemorySource{"tri.gltf": []byte(doc)}

	model, err := LoadGLTF(src, "tri.gltf")
	if err != nil {
		t.Fatalf("LoadGLTF failed: %v", err)
	}

	tints := model.Meshes[0].Polygons[0].Tints
	if len(tints) != 3 {
		t.Fatalf("tint count = %d, want 3", len(tints))
	}
	if tints[0] != sceneColor(1, 0, 0, 1) {
		t.Errorf("tint 0 = %v, want opaque red", tints[0])
	}
	if math32.Abs(tints[2].A-127.0/255) > 1e-5 {
		t.Errorf("tint 2 alpha = %g, want 127/255", tints[2].A)
	}
}
