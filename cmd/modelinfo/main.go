// modelinfo is a CLI utility for inspecting and flattening 3D model files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/modelkit/internal/config"
	"github.com/Faultbox/modelkit/internal/logger"
	"github.com/Faultbox/modelkit/pkg/formats"
	"github.com/Faultbox/modelkit/pkg/math"
	"github.com/Faultbox/modelkit/pkg/scene"
	"github.com/Faultbox/modelkit/pkg/source"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "info":
		cmdInfo(cfg, rest)
	case "tree":
		cmdTree(cfg, rest)
	case "flatten":
		cmdFlatten(cfg, rest)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`modelinfo - 3D model inspection utility

Usage:
  modelinfo [options] <command> <file>

Commands:
  info <file>     Show model statistics and materials
  tree <file>     Print the mesh tree
  flatten <file>  Flatten to one polygon per material, write as JSON

Options:
  -root <dir>     Base directory for model paths
  -object <name>  Load only the named OBJ object
  -out <path>     Output path for flatten (default stdout)
  -config <path>  Explicit config file
  -debug          Enable debug logging

Supported formats: .3ds, .gltf, .glb, .obj, .json`)
}

// loadModel dispatches on the file extension.
func loadModel(cfg *config.Config, path string) (*scene.Model, error) {
	src := &source.FileSource{Root: cfg.Loader.Root}

	start := time.Now()
	var (
		model *scene.Model
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".3ds":
		model, err = formats.LoadTDS(src, path)
	case ".gltf", ".glb":
		model, err = formats.LoadGLTF(src, path)
	case ".obj":
		model, err = formats.LoadOBJOptions(src, path, formats.OBJOptions{Object: cfg.Loader.Object})
	case ".json":
		model, err = formats.LoadDocument(src, path)
	default:
		return nil, fmt.Errorf("unsupported model format: %s", path)
	}
	if err != nil {
		return nil, err
	}

	logger.Sugar.Debugf("loaded %s in %s", path, time.Since(start))
	return model, nil
}

func cmdInfo(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo info <file>")
		os.Exit(1)
	}

	model, err := loadModel(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var meshes, polygons, vertices, triangles int
	model.Walk(func(m *scene.Mesh) {
		meshes++
		for _, p := range m.Polygons {
			polygons++
			vertices += len(p.Positions)
			triangles += len(p.Indices)
		}
	})

	fmt.Printf("Model:     %s\n", args[0])
	fmt.Printf("Meshes:    %d\n", meshes)
	fmt.Printf("Polygons:  %d\n", polygons)
	fmt.Printf("Vertices:  %d\n", vertices)
	fmt.Printf("Triangles: %d\n", triangles)

	materials := model.Materials()
	if len(materials) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Materials:")
	for _, mat := range materials {
		name := mat.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %-20s %s\n", name, materialMaps(mat))
	}
}

// materialMaps summarizes which texture slots a material fills.
func materialMaps(mat *scene.Material) string {
	var slots []string
	for _, s := range []struct {
		name string
		tex  *scene.Texture
	}{
		{"diffuse", mat.DiffuseMap},
		{"normal", mat.NormalMap},
		{"metalness", mat.MetalnessMap},
		{"roughness", mat.RoughnessMap},
		{"occlusion", mat.OcclusionMap},
		{"emissive", mat.EmissiveMap},
		{"height", mat.HeightMap},
	} {
		if s.tex != nil {
			slots = append(slots, s.name)
		}
	}
	if len(slots) == 0 {
		return "no maps"
	}
	return strings.Join(slots, ", ")
}

func cmdTree(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo tree <file>")
		os.Exit(1)
	}

	model, err := loadModel(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, mesh := range model.Meshes {
		printTree(mesh, 0)
	}
}

func printTree(mesh *scene.Mesh, depth int) {
	name := mesh.Name
	if name == "" {
		name = "(unnamed)"
	}
	var vertices, triangles int
	for _, p := range mesh.Polygons {
		vertices += len(p.Positions)
		triangles += len(p.Indices)
	}
	fmt.Printf("%s%s  polygons=%d vertices=%d triangles=%d\n",
		strings.Repeat("  ", depth), name, len(mesh.Polygons), vertices, triangles)

	for _, child := range mesh.Children {
		printTree(child, depth+1)
	}
}

func cmdFlatten(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: modelinfo flatten <file>")
		os.Exit(1)
	}

	model, err := loadModel(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flat, err := scene.Flatten(model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	doc := documentFromModel(flat)
	var data []byte
	if cfg.Output.Indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')

	if cfg.Output.Path == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(cfg.Output.Path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Sugar.Infof("wrote %s (%d bytes)", cfg.Output.Path, len(data))
}

// documentFromModel renders a model in the generic JSON document shape, the
// same one LoadDocument reads.
func documentFromModel(model *scene.Model) map[string]any {
	materials := make(map[string]any)
	var meshes []any

	model.Walk(func(m *scene.Mesh) {
		for _, p := range m.Polygons {
			entry := map[string]any{
				"points":    pointList(p),
				"triangles": triangleList(p),
			}
			if len(p.Normals) > 0 {
				entry["normals"] = vecList(p.Normals)
			}
			if len(p.Coordinates) > 0 {
				coords := make([]any, len(p.Coordinates))
				for i, c := range p.Coordinates {
					coords[i] = map[string]any{"u": c.X, "v": c.Y}
				}
				entry["coords"] = coords
			}
			if p.Material != nil {
				entry["materialName"] = p.Material.Name
				materials[p.Material.Name] = materialDocument(p.Material)
			}
			meshes = append(meshes, entry)
		}
	})

	doc := map[string]any{"meshes": meshes}
	if len(materials) > 0 {
		doc["materials"] = materials
	}
	return doc
}

func pointList(p *scene.Polygon) []any {
	return vecList(p.Positions)
}

func vecList(vecs []math.Vec3) []any {
	out := make([]any, len(vecs))
	for i, v := range vecs {
		out[i] = map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
	}
	return out
}

func triangleList(p *scene.Polygon) []any {
	out := make([]any, len(p.Indices))
	for i, t := range p.Indices {
		out[i] = []any{t.A, t.B, t.C}
	}
	return out
}

func materialDocument(mat *scene.Material) map[string]any {
	out := map[string]any{}
	if mat.DiffuseColor != nil {
		c := *mat.DiffuseColor
		out["diffuseColor"] = []any{c.R, c.G, c.B, c.A}
	}
	if mat.EmissiveColor != nil {
		c := *mat.EmissiveColor
		out["emissiveColor"] = []any{c.R, c.G, c.B, c.A}
	}
	if mat.Shininess != 0 {
		out["shininess"] = mat.Shininess
	}
	return out
}
