package formats

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/modelkit/pkg/imaging"
	"github.com/Faultbox/modelkit/pkg/math"
	"github.com/Faultbox/modelkit/pkg/scene"
	"github.com/Faultbox/modelkit/pkg/source"
)

// GLB framing constants.
const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A
	glbChunkBIN  = 0x004E4942
)

// LoadGLTF loads a glTF 2.0 model from either of its container renditions:
// a JSON text file (first byte '{') or a binary GLB file. External buffers,
// data: URIs and referenced images are all resolved through src relative to
// the file's own directory.
func LoadGLTF(src source.Source, path string) (*scene.Model, error) {
	data, err := src.Binary(path)
	if err != nil {
		return nil, err
	}

	b := &gltfBuilder{
		src:       src,
		dir:       source.Dir(path),
		textures:  make(map[int]*scene.Texture),
		materials: make(map[int]*scene.Material),
		meshPolys: make(map[int][]*scene.Polygon),
		nodes:     make(map[int]*scene.Mesh),
	}

	model, err := b.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	scene.Finalize(model, scene.FinalizeOptions{})
	return model, nil
}

// gltfBuilder accumulates one decode session: the parsed document, its
// resolved binary pools, and identity caches so shared references decode to
// shared objects.
type gltfBuilder struct {
	src source.Source
	dir string

	doc     gltfDocument
	bin     []byte   // embedded GLB buffer, nil for JSON containers
	buffers [][]byte // resolved buffer data, trimmed to declared length
	images  []*imaging.Image

	textures  map[int]*scene.Texture
	materials map[int]*scene.Material
	meshPolys map[int][]*scene.Polygon
	nodes     map[int]*scene.Mesh
}

func (b *gltfBuilder) decode(data []byte) (*scene.Model, error) {
	text, bin, err := splitContainer(data)
	if err != nil {
		return nil, err
	}
	b.bin = bin

	if err := json.Unmarshal(text, &b.doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContainer, err)
	}
	if b.doc.Asset.Version != "2.0" {
		return nil, fmt.Errorf("%w: asset version %q, want 2.0", ErrMalformedContainer, b.doc.Asset.Version)
	}

	if err := b.resolveBuffers(); err != nil {
		return nil, err
	}
	if err := b.validateViews(); err != nil {
		return nil, err
	}
	if err := b.validateAccessors(); err != nil {
		return nil, err
	}
	if err := b.resolveImages(); err != nil {
		return nil, err
	}
	return b.buildScene()
}

// splitContainer separates the JSON document from the optional embedded
// binary chunk. JSON containers start with '{'; anything else must carry the
// GLB framing.
func splitContainer(data []byte) (text, bin []byte, err error) {
	if len(data) > 0 && data[0] == '{' {
		return data, nil, nil
	}

	c := NewCursor(data, binary.LittleEndian)
	magic, err := c.Uint32()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: truncated header", ErrMalformedContainer)
	}
	if magic != glbMagic {
		return nil, nil, fmt.Errorf("%w: magic 0x%08X", ErrMalformedContainer, magic)
	}
	version, err := c.Uint32()
	if err != nil {
		return nil, nil, err
	}
	if version != glbVersion {
		return nil, nil, fmt.Errorf("%w: container version %d, want %d", ErrMalformedContainer, version, glbVersion)
	}
	// total length, trusted no further than the buffer itself
	if _, err := c.Uint32(); err != nil {
		return nil, nil, err
	}

	for c.Remaining() >= 8 {
		length, err := c.Uint32()
		if err != nil {
			return nil, nil, err
		}
		kind, err := c.Uint32()
		if err != nil {
			return nil, nil, err
		}
		payload, err := c.Bytes(int(length))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: chunk 0x%08X declares %d bytes past the end", ErrMalformedContainer, kind, length)
		}
		switch kind {
		case glbChunkJSON:
			if text != nil {
				return nil, nil, fmt.Errorf("%w: more than one JSON chunk", ErrMalformedContainer)
			}
			text = payload
		case glbChunkBIN:
			if bin != nil {
				return nil, nil, fmt.Errorf("%w: more than one binary chunk", ErrMalformedContainer)
			}
			bin = payload
		}
	}
	if text == nil {
		return nil, nil, fmt.Errorf("%w: no JSON chunk", ErrMalformedContainer)
	}
	return text, bin, nil
}

// badReference reports an index that falls outside its pool.
func badReference(from string, pool string, idx, n int) error {
	return fmt.Errorf("%w: %s references %s %d of %d", ErrInvalidReference, from, pool, idx, n)
}

func (b *gltfBuilder) resolveBuffers() error {
	b.buffers = make([][]byte, len(b.doc.Buffers))

	var g errgroup.Group
	for i, buf := range b.doc.Buffers {
		i, buf := i, buf
		g.Go(func() error {
			var data []byte
			switch {
			case buf.URI == "":
				if b.bin == nil {
					return fmt.Errorf("%w: buffer %d has no URI and the container has no binary chunk", ErrMalformedContainer, i)
				}
				data = b.bin
			case strings.HasPrefix(buf.URI, "data:"):
				decoded, err := decodeDataURI(buf.URI)
				if err != nil {
					return fmt.Errorf("buffer %d: %w", i, err)
				}
				data = decoded
			default:
				fetched, err := b.src.Binary(source.Join(b.dir, buf.URI))
				if err != nil {
					return fmt.Errorf("buffer %d: %w", i, err)
				}
				data = fetched
			}
			if len(data) < buf.ByteLength {
				return fmt.Errorf("%w: buffer %d holds %d bytes, declared %d",
					ErrMalformedContainer, i, len(data), buf.ByteLength)
			}
			b.buffers[i] = data[:buf.ByteLength]
			return nil
		})
	}
	return g.Wait()
}

// decodeDataURI decodes a base64 data: URI payload.
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: data URI without payload", ErrMalformedContainer)
	}
	if !strings.HasSuffix(uri[:comma], ";base64") {
		return nil, fmt.Errorf("%w: data URI is not base64", ErrMalformedContainer)
	}
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContainer, err)
	}
	return data, nil
}

func (b *gltfBuilder) validateViews() error {
	for i, view := range b.doc.BufferViews {
		if view.Buffer < 0 || view.Buffer >= len(b.buffers) {
			return badReference(fmt.Sprintf("bufferView %d", i), "buffer", view.Buffer, len(b.buffers))
		}
		need := view.ByteOffset + view.ByteLength
		if have := len(b.buffers[view.Buffer]); need > have {
			return fmt.Errorf("%w: bufferView %d overflows buffer %d by %d bytes",
				ErrInvalidReference, i, view.Buffer, need-have)
		}
	}
	return nil
}

func (b *gltfBuilder) validateAccessors() error {
	for i, acc := range b.doc.Accessors {
		if acc.Sparse != nil {
			return fmt.Errorf("%w: accessor %d uses sparse storage", ErrUnsupported, i)
		}
		size := componentSize(acc.ComponentType)
		if size == 0 {
			return fmt.Errorf("%w: accessor %d component type %d", ErrSchemaViolation, i, acc.ComponentType)
		}
		arity := elementArity(acc.Type)
		if arity == 0 {
			return fmt.Errorf("%w: accessor %d element type %q", ErrSchemaViolation, i, acc.Type)
		}
		if acc.BufferView == nil {
			continue // reads as zeroes
		}
		if *acc.BufferView < 0 || *acc.BufferView >= len(b.doc.BufferViews) {
			return badReference(fmt.Sprintf("accessor %d", i), "bufferView", *acc.BufferView, len(b.doc.BufferViews))
		}

		view := b.doc.BufferViews[*acc.BufferView]
		elem := size * arity
		stride := elem
		if view.ByteStride != nil {
			stride = *view.ByteStride
		}
		need := acc.ByteOffset + elem
		if acc.Count > 1 {
			need += (acc.Count - 1) * stride
		}
		if need > view.ByteLength {
			return fmt.Errorf("%w: accessor %d overflows bufferView %d by %d bytes",
				ErrInvalidReference, i, *acc.BufferView, need-view.ByteLength)
		}
	}
	return nil
}

func (b *gltfBuilder) resolveImages() error {
	b.images = make([]*imaging.Image, len(b.doc.Images))

	var g errgroup.Group
	for i, img := range b.doc.Images {
		i, img := i, img
		g.Go(func() error {
			var data []byte
			switch {
			case strings.HasPrefix(img.URI, "data:"):
				decoded, err := decodeDataURI(img.URI)
				if err != nil {
					return fmt.Errorf("image %d: %w", i, err)
				}
				data = decoded
			case img.URI != "":
				fetched, err := b.src.Binary(source.Join(b.dir, img.URI))
				if err != nil {
					return fmt.Errorf("image %d: %w", i, err)
				}
				data = fetched
			case img.BufferView != nil:
				if *img.BufferView < 0 || *img.BufferView >= len(b.doc.BufferViews) {
					return badReference(fmt.Sprintf("image %d", i), "bufferView", *img.BufferView, len(b.doc.BufferViews))
				}
				data = b.viewData(*img.BufferView)
			default:
				return fmt.Errorf("%w: image %d has neither URI nor bufferView", ErrSchemaViolation, i)
			}

			decoded, err := imaging.Decode(data, img.MimeType)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			b.images[i] = decoded
			return nil
		})
	}
	return g.Wait()
}

// viewData returns the byte window of a validated buffer view.
func (b *gltfBuilder) viewData(idx int) []byte {
	view := b.doc.BufferViews[idx]
	return b.buffers[view.Buffer][view.ByteOffset : view.ByteOffset+view.ByteLength]
}

// accessorFloats expands a validated accessor to flat float32 components.
// Integer components are scaled to [0,1] (signed: [-1,1]) when the accessor
// is marked normalized, and cast otherwise.
func (b *gltfBuilder) accessorFloats(idx int) ([]float32, error) {
	acc := &b.doc.Accessors[idx]
	arity := elementArity(acc.Type)
	out := make([]float32, acc.Count*arity)
	if acc.BufferView == nil {
		return out, nil
	}

	data := b.viewData(*acc.BufferView)
	size := componentSize(acc.ComponentType)
	stride := size * arity
	if bs := b.doc.BufferViews[*acc.BufferView].ByteStride; bs != nil {
		stride = *bs
	}

	for i := 0; i < acc.Count; i++ {
		base := acc.ByteOffset + i*stride
		for c := 0; c < arity; c++ {
			out[i*arity+c] = decodeComponent(data[base+c*size:], acc.ComponentType, acc.Normalized)
		}
	}
	return out, nil
}

func decodeComponent(data []byte, componentType int, normalized bool) float32 {
	switch componentType {
	case gltfComponentFloat32:
		return math32.Float32frombits(binary.LittleEndian.Uint32(data))
	case gltfComponentInt8:
		v := float32(int8(data[0]))
		if normalized {
			return max(v/127, -1)
		}
		return v
	case gltfComponentUint8:
		v := float32(data[0])
		if normalized {
			return v / 255
		}
		return v
	case gltfComponentInt16:
		v := float32(int16(binary.LittleEndian.Uint16(data)))
		if normalized {
			return max(v/32767, -1)
		}
		return v
	case gltfComponentUint16:
		v := float32(binary.LittleEndian.Uint16(data))
		if normalized {
			return v / 65535
		}
		return v
	case gltfComponentUint32:
		return float32(binary.LittleEndian.Uint32(data))
	}
	return 0
}

// accessorIndices expands a validated accessor of unsigned integers.
func (b *gltfBuilder) accessorIndices(idx int) ([]uint32, error) {
	acc := &b.doc.Accessors[idx]
	if acc.Type != "SCALAR" {
		return nil, fmt.Errorf("%w: index accessor %d has element type %q", ErrSchemaViolation, idx, acc.Type)
	}
	out := make([]uint32, acc.Count)
	if acc.BufferView == nil {
		return out, nil
	}

	data := b.viewData(*acc.BufferView)
	size := componentSize(acc.ComponentType)
	stride := size
	if bs := b.doc.BufferViews[*acc.BufferView].ByteStride; bs != nil {
		stride = *bs
	}

	for i := range out {
		base := acc.ByteOffset + i*stride
		switch acc.ComponentType {
		case gltfComponentUint8:
			out[i] = uint32(data[base])
		case gltfComponentUint16:
			out[i] = uint32(binary.LittleEndian.Uint16(data[base:]))
		case gltfComponentUint32:
			out[i] = binary.LittleEndian.Uint32(data[base:])
		default:
			return nil, fmt.Errorf("%w: index accessor %d has component type %d", ErrSchemaViolation, idx, acc.ComponentType)
		}
	}
	return out, nil
}

func (b *gltfBuilder) texture(idx int) (*scene.Texture, error) {
	if tex, ok := b.textures[idx]; ok {
		return tex, nil
	}
	if idx < 0 || idx >= len(b.doc.Textures) {
		return nil, badReference("material", "texture", idx, len(b.doc.Textures))
	}
	def := b.doc.Textures[idx]

	tex := &scene.Texture{Filter: scene.DefaultFilter()}
	if def.Source != nil {
		if *def.Source < 0 || *def.Source >= len(b.images) {
			return nil, badReference(fmt.Sprintf("texture %d", idx), "image", *def.Source, len(b.images))
		}
		tex.Image = b.images[*def.Source]
	}
	if def.Sampler != nil {
		if *def.Sampler < 0 || *def.Sampler >= len(b.doc.Samplers) {
			return nil, badReference(fmt.Sprintf("texture %d", idx), "sampler", *def.Sampler, len(b.doc.Samplers))
		}
		tex.Filter = samplerFilter(b.doc.Samplers[*def.Sampler])
	}

	b.textures[idx] = tex
	return tex, nil
}

func samplerFilter(s gltfSampler) scene.Filter {
	f := scene.DefaultFilter()
	if s.MagFilter != nil && *s.MagFilter == gltfFilterNearest {
		f.Magnify = scene.InterpolationNearest
	}
	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest:
			f.Minify, f.Mipmap = scene.InterpolationNearest, false
		case gltfFilterLinear:
			f.Minify, f.Mipmap = scene.InterpolationLinear, false
		case gltfFilterNearestMipmapNearest, gltfFilterNearestMipmapLinear:
			f.Minify, f.Mipmap = scene.InterpolationNearest, true
		case gltfFilterLinearMipmapNearest, gltfFilterLinearMipmapLinear:
			f.Minify, f.Mipmap = scene.InterpolationLinear, true
		}
	}
	if s.WrapS != nil {
		switch *s.WrapS {
		case gltfWrapClamp:
			f.Wrap = scene.WrapClamp
		case gltfWrapMirror:
			f.Wrap = scene.WrapMirror
		}
	}
	return f
}

func (b *gltfBuilder) material(idx int) (*scene.Material, error) {
	if mat, ok := b.materials[idx]; ok {
		return mat, nil
	}
	if idx < 0 || idx >= len(b.doc.Materials) {
		return nil, badReference("primitive", "material", idx, len(b.doc.Materials))
	}
	def := b.doc.Materials[idx]

	mat := &scene.Material{
		Name:              def.Name,
		NormalScale:       1,
		OcclusionStrength: 1,
	}

	diffuse := scene.White()
	if def.PBR != nil {
		if f := def.PBR.BaseColorFactor; f != nil {
			diffuse = scene.Color{R: f[0], G: f[1], B: f[2], A: f[3]}
		}
		if ref := def.PBR.BaseColorTexture; ref != nil {
			tex, err := b.texture(ref.Index)
			if err != nil {
				return nil, err
			}
			mat.DiffuseMap = tex
		}
		if ref := def.PBR.MetallicRoughnessTexture; ref != nil {
			// one packed texture feeds both channels
			tex, err := b.texture(ref.Index)
			if err != nil {
				return nil, err
			}
			mat.MetalnessMap = tex
			mat.RoughnessMap = tex
		}
	}
	mat.DiffuseColor = &diffuse

	emissive := scene.Black()
	if f := def.EmissiveFactor; f != nil {
		emissive = scene.Color{R: f[0], G: f[1], B: f[2], A: 1}
	}
	mat.EmissiveColor = &emissive

	if ref := def.NormalTexture; ref != nil {
		tex, err := b.texture(ref.Index)
		if err != nil {
			return nil, err
		}
		mat.NormalMap = tex
		if ref.Scale != nil {
			mat.NormalScale = *ref.Scale
		}
	}
	if ref := def.OcclusionTexture; ref != nil {
		tex, err := b.texture(ref.Index)
		if err != nil {
			return nil, err
		}
		mat.OcclusionMap = tex
		if ref.Strength != nil {
			mat.OcclusionStrength = *ref.Strength
		}
	}
	if ref := def.EmissiveTexture; ref != nil {
		tex, err := b.texture(ref.Index)
		if err != nil {
			return nil, err
		}
		mat.EmissiveMap = tex
	}

	b.materials[idx] = mat
	return mat, nil
}

// meshPolygons builds the polygon list of a mesh, one polygon per primitive.
// The list is cached so nodes sharing a mesh share polygon data.
func (b *gltfBuilder) meshPolygons(idx int) ([]*scene.Polygon, error) {
	if polys, ok := b.meshPolys[idx]; ok {
		return polys, nil
	}
	if idx < 0 || idx >= len(b.doc.Meshes) {
		return nil, badReference("node", "mesh", idx, len(b.doc.Meshes))
	}

	mesh := b.doc.Meshes[idx]
	polys := make([]*scene.Polygon, 0, len(mesh.Primitives))
	for pi, prim := range mesh.Primitives {
		poly, err := b.buildPolygon(prim)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", idx, pi, err)
		}
		polys = append(polys, poly)
	}
	b.meshPolys[idx] = polys
	return polys, nil
}

func (b *gltfBuilder) attribute(prim gltfPrimitive, name string) (acc *gltfAccessor, floats []float32, err error) {
	idx, ok := prim.Attributes[name]
	if !ok {
		return nil, nil, nil
	}
	if idx < 0 || idx >= len(b.doc.Accessors) {
		return nil, nil, badReference("attribute "+name, "accessor", idx, len(b.doc.Accessors))
	}
	floats, err = b.accessorFloats(idx)
	if err != nil {
		return nil, nil, err
	}
	return &b.doc.Accessors[idx], floats, nil
}

func (b *gltfBuilder) buildPolygon(prim gltfPrimitive) (*scene.Polygon, error) {
	poly := &scene.Polygon{}

	acc, positions, err := b.attribute(prim, "POSITION")
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: primitive has no POSITION attribute", ErrSchemaViolation)
	}
	if acc.Type != "VEC3" {
		return nil, fmt.Errorf("%w: POSITION element type %q", ErrSchemaViolation, acc.Type)
	}
	poly.Positions = groupVec3(positions)

	if acc, normals, err := b.attribute(prim, "NORMAL"); err != nil {
		return nil, err
	} else if acc != nil {
		if acc.Type != "VEC3" {
			return nil, fmt.Errorf("%w: NORMAL element type %q", ErrSchemaViolation, acc.Type)
		}
		poly.Normals = groupVec3(normals)
	}

	if acc, tangents, err := b.attribute(prim, "TANGENT"); err != nil {
		return nil, err
	} else if acc != nil {
		// VEC4 tangents carry a handedness sign in w, dropped here
		switch acc.Type {
		case "VEC3":
			poly.Tangents = groupVec3(tangents)
		case "VEC4":
			poly.Tangents = make([]math.Vec3, len(tangents)/4)
			for i := range poly.Tangents {
				poly.Tangents[i] = math.Vec3{X: tangents[i*4], Y: tangents[i*4+1], Z: tangents[i*4+2]}
			}
		default:
			return nil, fmt.Errorf("%w: TANGENT element type %q", ErrSchemaViolation, acc.Type)
		}
	}

	if acc, coords, err := b.attribute(prim, "TEXCOORD_0"); err != nil {
		return nil, err
	} else if acc != nil {
		if acc.Type != "VEC2" {
			return nil, fmt.Errorf("%w: TEXCOORD_0 element type %q", ErrSchemaViolation, acc.Type)
		}
		poly.Coordinates = make([]math.Vec2, len(coords)/2)
		for i := range poly.Coordinates {
			poly.Coordinates[i] = math.Vec2{X: coords[i*2], Y: coords[i*2+1]}
		}
	}

	if acc, tints, err := b.attribute(prim, "COLOR_0"); err != nil {
		return nil, err
	} else if acc != nil {
		switch acc.Type {
		case "VEC3":
			poly.Tints = make([]scene.Color, len(tints)/3)
			for i := range poly.Tints {
				poly.Tints[i] = scene.Color{R: tints[i*3], G: tints[i*3+1], B: tints[i*3+2], A: 1}
			}
		case "VEC4":
			poly.Tints = make([]scene.Color, len(tints)/4)
			for i := range poly.Tints {
				poly.Tints[i] = scene.Color{R: tints[i*4], G: tints[i*4+1], B: tints[i*4+2], A: tints[i*4+3]}
			}
		default:
			return nil, fmt.Errorf("%w: COLOR_0 element type %q", ErrSchemaViolation, acc.Type)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if *prim.Indices < 0 || *prim.Indices >= len(b.doc.Accessors) {
			return nil, badReference("primitive indices", "accessor", *prim.Indices, len(b.doc.Accessors))
		}
		indices, err = b.accessorIndices(*prim.Indices)
		if err != nil {
			return nil, err
		}
	} else {
		// non-indexed primitive: every three vertices form a triangle
		indices = make([]uint32, len(poly.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d indices do not form whole triangles", ErrSchemaViolation, len(indices))
	}
	poly.Indices = make([]scene.Triangle, len(indices)/3)
	for i := range poly.Indices {
		poly.Indices[i] = scene.Triangle{A: indices[i*3], B: indices[i*3+1], C: indices[i*3+2]}
	}

	if prim.Material != nil {
		mat, err := b.material(*prim.Material)
		if err != nil {
			return nil, err
		}
		poly.Material = mat
	}

	if err := poly.Validate(); err != nil {
		return nil, err
	}
	return poly, nil
}

func groupVec3(floats []float32) []math.Vec3 {
	out := make([]math.Vec3, len(floats)/3)
	for i := range out {
		out[i] = math.Vec3{X: floats[i*3], Y: floats[i*3+1], Z: floats[i*3+2]}
	}
	return out
}

// buildNode instantiates one node subtree. Node definitions form a DAG; a
// definition referenced from several parents is built once and duplicated
// per use, so the output is always a tree. Polygon data stays shared across
// duplicates.
func (b *gltfBuilder) buildNode(idx int, visiting map[int]bool) (*scene.Mesh, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, badReference("scene", "node", idx, len(b.doc.Nodes))
	}
	if proto, ok := b.nodes[idx]; ok {
		return cloneMesh(proto), nil
	}
	if visiting[idx] {
		return nil, fmt.Errorf("%w: node %d references itself through its children", ErrInvalidReference, idx)
	}
	visiting[idx] = true
	defer delete(visiting, idx)

	def := b.doc.Nodes[idx]
	mesh := &scene.Mesh{Name: def.Name, Transform: nodeTransform(def)}

	if def.Mesh != nil {
		polys, err := b.meshPolygons(*def.Mesh)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", idx, err)
		}
		mesh.Polygons = polys
	}
	for _, child := range def.Children {
		built, err := b.buildNode(child, visiting)
		if err != nil {
			return nil, err
		}
		mesh.Children = append(mesh.Children, built)
	}

	b.nodes[idx] = mesh
	return cloneMesh(mesh), nil
}

// nodeTransform composes the node's local transform: an explicit matrix, or
// translation, rotation and scale applied in that order.
func nodeTransform(def gltfNode) math.Mat4 {
	if def.Matrix != nil {
		return math.Mat4(*def.Matrix)
	}

	m := math.Identity()
	if t := def.Translation; t != nil {
		m = math.Translate(t[0], t[1], t[2])
	}
	if r := def.Rotation; r != nil {
		q := math.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]}.Normalize()
		m = m.Mul(q.ToMat4())
	}
	if s := def.Scale; s != nil {
		m = m.Mul(math.Scale(s[0], s[1], s[2]))
	}
	return m
}

// cloneMesh duplicates a node subtree. Polygons are shared, not copied.
func cloneMesh(m *scene.Mesh) *scene.Mesh {
	out := &scene.Mesh{
		Name:      m.Name,
		Transform: m.Transform,
		Polygons:  m.Polygons,
	}
	for _, child := range m.Children {
		out.Children = append(out.Children, cloneMesh(child))
	}
	return out
}

func (b *gltfBuilder) buildScene() (*scene.Model, error) {
	if b.doc.Scene == nil {
		return nil, fmt.Errorf("%w: no default scene", ErrMalformedContainer)
	}
	if *b.doc.Scene < 0 || *b.doc.Scene >= len(b.doc.Scenes) {
		return nil, badReference("document", "scene", *b.doc.Scene, len(b.doc.Scenes))
	}

	model := &scene.Model{}
	for _, root := range b.doc.Scenes[*b.doc.Scene].Nodes {
		mesh, err := b.buildNode(root, make(map[int]bool))
		if err != nil {
			return nil, err
		}
		model.Meshes = append(model.Meshes, mesh)
	}
	return model, nil
}
