package formats

import (
	"errors"
	"strings"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/modelkit/pkg/math"
	"github.com/Faultbox/modelkit/pkg/scene"
	"github.com/Faultbox/modelkit/pkg/source"
)

const objQuad = `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`

func TestLoadOBJ_QuadFansIntoTwoTriangles(t *testing.T) {
	src := source.MemorySource{"quad.obj": []byte(objQuad)}

	model, err := LoadOBJ(src, "quad.obj")
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}
	if len(model.Meshes) != 1 {
		t.Fatalf("mesh count = %d, want 1", len(model.Meshes))
	}

	p := model.Meshes[0].Polygons[0]
	if len(p.Positions) != 4 {
		t.Errorf("position count = %d, want 4", len(p.Positions))
	}
	want := []struct{ a, b, c uint32 }{{0, 1, 2}, {0, 2, 3}}
	if len(p.Indices) != len(want) {
		t.Fatalf("triangle count = %d, want %d", len(p.Indices), len(want))
	}
	for i, w := range want {
		got := p.Indices[i]
		if got.A != w.a || got.B != w.b || got.C != w.c {
			t.Errorf("triangle %d = %v, want (%d,%d,%d)", i, got, w.a, w.b, w.c)
		}
	}

	// no authored normals: finalization derives flat +Z
	if len(p.Normals) != 4 || math32.Abs(p.Normals[0].Z-1) > 1e-5 {
		t.Errorf("normals = %v, want derived (0,0,1)", p.Normals)
	}
}

func TestLoadOBJ_CompositeKeyDeduplication(t *testing.T) {
	// Two faces share an edge: the shared corners reuse output slots.
	obj := `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3
f 1 3 4
`
	model, err := LoadOBJ(source.MemorySource{"a.obj": []byte(obj)}, "a.obj")
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}

	p := model.Meshes[0].Polygons[0]
	if len(p.Positions) != 4 {
		t.Errorf("position count = %d, want 4 (shared corners deduplicated)", len(p.Positions))
	}
	if p.Indices[1] != (scene.Triangle{A: 0, B: 2, C: 3}) {
		t.Errorf("triangle 1 = %v, want (0,2,3)", p.Indices[1])
	}
}

func TestLoadOBJ_MaterialGroupsShareOneObject(t *testing.T) {
	obj := `
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl Red
f 1 2 3
usemtl Blue
f 1 3 4
usemtl Red
f 1 2 4
`
	mtl := `
newmtl Red
Kd 1 0 0
newmtl Blue
Kd 0 0 1
`
	src := source.MemorySource{"quad.obj": []byte(obj), "quad.mtl": []byte(mtl)}

	model, err := LoadOBJ(src, "quad.obj")
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}

	polys := model.Meshes[0].Polygons
	if len(polys) != 3 {
		t.Fatalf("polygon count = %d, want 3 (one per binding group)", len(polys))
	}
	if polys[0].Material == nil || polys[0].Material.Name != "Red" {
		t.Fatalf("polygon 0 material = %v, want Red", polys[0].Material)
	}
	if polys[0].Material != polys[2].Material {
		t.Error("two Red groups resolved to different material objects")
	}
	if polys[0].Material == polys[1].Material {
		t.Error("Red and Blue resolved to the same object")
	}
	if got := polys[0].Material.DiffuseColor; got == nil || *got != sceneColor(1, 0, 0, 1) {
		t.Errorf("Red diffuse = %v, want (1,0,0,1)", got)
	}
}

func TestLoadOBJ_AuthoredNormalsAndCoordinates(t *testing.T) {
	obj := `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
vn 0 0 -1
f 1/1/1 2/2/1 3/3/1
`
	model, err := LoadOBJ(source.MemorySource{"a.obj": []byte(obj)}, "a.obj")
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}

	p := model.Meshes[0].Polygons[0]
	if len(p.Normals) != 3 || p.Normals[0] != (math.Vec3{X: 0, Y: 0, Z: -1}) {
		t.Errorf("normals = %v, want authored (0,0,-1) kept", p.Normals)
	}
	if len(p.Coordinates) != 3 || p.Coordinates[1] != (math.Vec2{X: 1, Y: 0}) {
		t.Errorf("coordinates = %v, want authored values", p.Coordinates)
	}
}

func TestLoadOBJ_UnknownDirectiveFatal(t *testing.T) {
	obj := "v 0 0 0\nv 1 0 0\nwobble 1 2\n"
	_, err := LoadOBJ(source.MemorySource{"bad.obj": []byte(obj)}, "bad.obj")
	if !errors.Is(err, ErrUnknownDirective) {
		t.Fatalf("err = %v, want ErrUnknownDirective", err)
	}
	if !strings.Contains(err.Error(), "bad.obj:3") {
		t.Errorf("err = %v, want file and 1-based line number", err)
	}
}

func TestLoadOBJ_IgnoredDirectives(t *testing.T) {
	obj := `
# a comment
v 0 0 0
v 1 0 0
v 0 1 0
s off
f 1 2 3
`
	if _, err := LoadOBJ(source.MemorySource{"a.obj": []byte(obj)}, "a.obj"); err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}
}

func TestLoadOBJ_IndexErrors(t *testing.T) {
	tests := []struct {
		name string
		obj  string
		want error
	}{
		{"out of range", "v 0 0 0\nf 1 2 3\n", ErrInvalidReference},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", ErrInvalidReference},
		{"coord without table", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/1 2/2 3/3\n", ErrMalformedContainer},
		{"normal without table", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1//1 2//1 3//1\n", ErrMalformedContainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadOBJ(source.MemorySource{"a.obj": []byte(tt.obj)}, "a.obj")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadOBJ_MixedCornerFormsFatal(t *testing.T) {
	// Two corners carry a texture coordinate, one does not: the group's
	// attribute arrays end up shorter than its positions, which must surface
	// as an error instead of reaching the derivation pass.
	obj := `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
f 1/1 2/2 3
`
	_, err := LoadOBJ(source.MemorySource{"a.obj": []byte(obj)}, "a.obj")
	if !errors.Is(err, scene.ErrAttributeLength) {
		t.Fatalf("err = %v, want scene.ErrAttributeLength", err)
	}
	if !strings.Contains(err.Error(), "a.obj") {
		t.Errorf("err = %v, want the file named", err)
	}
}

func TestLoadOBJ_ObjectFilter(t *testing.T) {
	obj := `
o First
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
o Second
v 0 0 1
v 1 0 1
v 0 1 1
f 4 5 6
`
	src := source.MemorySource{"two.obj": []byte(obj)}

	model, err := LoadOBJOptions(src, "two.obj", OBJOptions{Object: "Second"})
	if err != nil {
		t.Fatalf("LoadOBJOptions failed: %v", err)
	}
	if len(model.Meshes) != 1 {
		t.Fatalf("mesh count = %d, want 1", len(model.Meshes))
	}
	if model.Meshes[0].Name != "Second" {
		t.Errorf("mesh name = %q, want %q", model.Meshes[0].Name, "Second")
	}
	if model.Meshes[0].Polygons[0].Positions[0].Z != 1 {
		t.Error("filtered mesh holds the wrong object's geometry")
	}
}

func TestLoadOBJ_MTLTexturesAndShininess(t *testing.T) {
	obj := `
mtllib wood.mtl
v 0 0 0
v 1 0 0
v 0 1 0
usemtl Wood
f 1 2 3
`
	mtl := `
# library
newmtl Wood
Kd 0.5 0.25 1
Ks 1 1 1
Ns 32
map_Kd wood.tga
`
	src := source.MemorySource{
		"tex/a.obj":    []byte(obj),
		"tex/wood.mtl": []byte(mtl),
		"tex/wood.tga": minimalTGA(),
	}

	model, err := LoadOBJ(src, "tex/a.obj")
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}

	mat := model.Meshes[0].Polygons[0].Material
	if mat.DiffuseColor == nil || *mat.DiffuseColor != sceneColor(0.5, 0.25, 1, 1) {
		t.Errorf("diffuse = %v, want (0.5,0.25,1,1)", mat.DiffuseColor)
	}
	if mat.Shininess != 32 {
		t.Errorf("shininess = %g, want 32", mat.Shininess)
	}
	if mat.DiffuseMap == nil || mat.DiffuseMap.Image == nil {
		t.Fatal("diffuse map not loaded")
	}
}

func TestLoadOBJ_UnknownMTLDirectiveFatal(t *testing.T) {
	obj := "mtllib bad.mtl\n"
	mtl := "newmtl M\nsparkle 1\n"
	src := source.MemorySource{"a.obj": []byte(obj), "bad.mtl": []byte(mtl)}

	_, err := LoadOBJ(src, "a.obj")
	if !errors.Is(err, ErrUnknownDirective) {
		t.Fatalf("err = %v, want ErrUnknownDirective", err)
	}
	if !strings.Contains(err.Error(), "bad.mtl:2") {
		t.Errorf("err = %v, want the library file and line named", err)
	}
}
