package formats

import (
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/modelkit/pkg/imaging"
	"github.com/Faultbox/modelkit/pkg/math"
	"github.com/Faultbox/modelkit/pkg/scene"
	"github.com/Faultbox/modelkit/pkg/source"
)

// Chunk tags of the 3DS container. Chunks nest: each one is a 16-bit tag
// followed by a 32-bit total length covering header and body.
const (
	tdsChunkRoot         = 0x4D4D
	tdsChunkEdit         = 0x3D3D
	tdsChunkObject       = 0x4000
	tdsChunkTriMesh      = 0x4100
	tdsChunkVertexList   = 0x4110
	tdsChunkFaceList     = 0x4120
	tdsChunkFaceMaterial = 0x4130
	tdsChunkUVList       = 0x4140
	tdsChunkMaterial     = 0xAFFF
	tdsChunkMaterialName = 0xA000
	tdsChunkDiffuse      = 0xA020
	tdsChunkTextureMap   = 0xA200
	tdsChunkBumpMap      = 0xA230
	tdsChunkMapFile      = 0xA300
	tdsChunkColorFloat   = 0x0010
	tdsChunkColorByte    = 0x0011
)

const tdsHeaderSize = 6

// LoadTDS loads a chunked 3DS model file. Referenced texture images are
// fetched relative to the file's own directory.
func LoadTDS(src source.Source, path string) (*scene.Model, error) {
	data, err := src.Binary(path)
	if err != nil {
		return nil, err
	}

	d := &tdsDecoder{
		path:      path,
		dir:       source.Dir(path),
		src:       src,
		materials: make(map[string]*scene.Material),
		textures:  make(map[string]*scene.Texture),
		model:     &scene.Model{},
	}

	if err := d.decode(data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	scene.Finalize(d.model, scene.FinalizeOptions{})
	return d.model, nil
}

// tdsDecoder accumulates one decode session. The texture cache is owned by
// the session so concurrent loads never share state.
type tdsDecoder struct {
	path      string
	dir       string
	src       source.Source
	model     *scene.Model
	materials map[string]*scene.Material
	textures  map[string]*scene.Texture

	// state of the object chunk being decoded
	mesh         *scene.Mesh
	positions    []math.Vec3
	coords       []math.Vec2
	triangles    []scene.Triangle
	materialName string

	// state of the material chunk being decoded
	material *scene.Material
}

// scanChunks walks the chunk sequence of region [c.Offset(), end). After
// each handler returns, the cursor is forced to the chunk's declared end, so
// a handler that under-reads cannot desynchronize its siblings. A handler
// must never read past the bound it is given.
func (d *tdsDecoder) scanChunks(c *Cursor, end int, handle func(tag uint16, c *Cursor, end int) error) error {
	for c.Offset() < end {
		begin := c.Offset()
		tag, err := c.Uint16()
		if err != nil {
			return err
		}
		length, err := c.Uint32()
		if err != nil {
			return err
		}
		if int(length) < tdsHeaderSize || begin+int(length) > end {
			return fmt.Errorf("%w: tag 0x%04X at offset %d declares %d bytes in a %d-byte region",
				ErrMalformedChunk, tag, begin, length, end-begin)
		}
		childEnd := begin + int(length)
		if err := handle(tag, c, childEnd); err != nil {
			return err
		}
		c.Seek(childEnd)
	}
	return nil
}

func (d *tdsDecoder) decode(data []byte) error {
	c := NewCursor(data, binary.LittleEndian)

	tag, err := c.Uint16()
	if err != nil {
		return err
	}
	if tag != tdsChunkRoot {
		return fmt.Errorf("%w: root tag 0x%04X", ErrUnknownChunk, tag)
	}
	length, err := c.Uint32()
	if err != nil {
		return err
	}
	if int(length) < tdsHeaderSize || int(length) > c.Len() {
		return fmt.Errorf("%w: root chunk declares %d bytes in a %d-byte file", ErrMalformedChunk, length, c.Len())
	}

	return d.scanChunks(c, int(length), func(tag uint16, c *Cursor, end int) error {
		if tag == tdsChunkEdit {
			return d.scanChunks(c, end, d.editChunk)
		}
		return nil // unknown chunks are skipped
	})
}

func (d *tdsDecoder) editChunk(tag uint16, c *Cursor, end int) error {
	switch tag {
	case tdsChunkObject:
		name, err := c.CString()
		if err != nil {
			return err
		}
		d.mesh = &scene.Mesh{Name: string(name), Transform: math.Identity()}
		d.positions = nil
		d.coords = nil
		d.triangles = nil
		d.materialName = ""

		if err := d.scanChunks(c, end, d.objectChunk); err != nil {
			return err
		}
		return d.finishObject()

	case tdsChunkMaterial:
		d.material = &scene.Material{}
		if err := d.scanChunks(c, end, d.materialChunk); err != nil {
			return err
		}
		return d.finishMaterial()
	}
	return nil
}

func (d *tdsDecoder) objectChunk(tag uint16, c *Cursor, end int) error {
	if tag == tdsChunkTriMesh {
		return d.scanChunks(c, end, d.triMeshChunk)
	}
	return nil
}

func (d *tdsDecoder) triMeshChunk(tag uint16, c *Cursor, end int) error {
	switch tag {
	case tdsChunkVertexList:
		count, err := c.Uint16()
		if err != nil {
			return err
		}
		d.positions = make([]math.Vec3, count)
		for i := range d.positions {
			if err := readVec3(c, &d.positions[i]); err != nil {
				return err
			}
		}

	case tdsChunkFaceList:
		count, err := c.Uint16()
		if err != nil {
			return err
		}
		d.triangles = make([]scene.Triangle, count)
		for i := range d.triangles {
			a, err := c.Uint16()
			if err != nil {
				return err
			}
			b, err := c.Uint16()
			if err != nil {
				return err
			}
			cc, err := c.Uint16()
			if err != nil {
				return err
			}
			// face info flags, unused
			if _, err := c.Uint16(); err != nil {
				return err
			}
			d.triangles[i] = scene.Triangle{A: uint32(a), B: uint32(b), C: uint32(cc)}
		}
		// optional material-assignment sub-chunks follow the face records
		return d.scanChunks(c, end, d.faceChunk)

	case tdsChunkUVList:
		count, err := c.Uint16()
		if err != nil {
			return err
		}
		d.coords = make([]math.Vec2, count)
		for i := range d.coords {
			u, err := c.Float32()
			if err != nil {
				return err
			}
			v, err := c.Float32()
			if err != nil {
				return err
			}
			// stored V runs bottom-up
			d.coords[i] = math.Vec2{X: u, Y: 1 - v}
		}
	}
	return nil
}

func (d *tdsDecoder) faceChunk(tag uint16, c *Cursor, _ int) error {
	if tag == tdsChunkFaceMaterial {
		name, err := c.CString()
		if err != nil {
			return err
		}
		d.materialName = string(name)
		// per-face assignment list, unused: whole-polygon binding only
		if _, err := c.Uint16(); err != nil {
			return err
		}
	}
	return nil
}

func (d *tdsDecoder) finishObject() error {
	if d.mesh == nil {
		return nil
	}
	if len(d.positions) > 0 {
		polygon := &scene.Polygon{
			Positions: d.positions,
			Indices:   d.triangles,
		}
		if len(d.coords) > 0 {
			polygon.Coordinates = d.coords
		}
		if d.materialName != "" {
			polygon.Material = d.materialByName(d.materialName)
		}
		if err := polygon.Validate(); err != nil {
			return fmt.Errorf("object %q: %w", d.mesh.Name, err)
		}
		d.mesh.Polygons = append(d.mesh.Polygons, polygon)
	}
	d.model.Meshes = append(d.model.Meshes, d.mesh)
	d.mesh = nil
	return nil
}

// finishMaterial merges a decoded material definition into the name-keyed
// table. When a binding already created a placeholder, the decoded fields
// are copied onto it so bound polygons keep their object identity.
func (d *tdsDecoder) finishMaterial() error {
	mat := d.material
	d.material = nil
	if mat == nil || mat.Name == "" {
		return nil
	}
	if existing, ok := d.materials[mat.Name]; ok {
		*existing = *mat
		return nil
	}
	d.materials[mat.Name] = mat
	return nil
}

// materialByName resolves a material by name, creating a placeholder when
// the assignment precedes the definition chunk.
func (d *tdsDecoder) materialByName(name string) *scene.Material {
	if mat, ok := d.materials[name]; ok {
		return mat
	}
	mat := &scene.Material{Name: name}
	d.materials[name] = mat
	return mat
}

func (d *tdsDecoder) materialChunk(tag uint16, c *Cursor, end int) error {
	switch tag {
	case tdsChunkMaterialName:
		name, err := c.CString()
		if err != nil {
			return err
		}
		d.material.Name = string(name)

	case tdsChunkDiffuse:
		color, err := d.readColor(c, end)
		if err != nil {
			return err
		}
		d.material.DiffuseColor = color

	case tdsChunkTextureMap:
		tex, err := d.readTextureMap(c, end)
		if err != nil {
			return err
		}
		d.material.DiffuseMap = tex

	case tdsChunkBumpMap:
		tex, err := d.readTextureMap(c, end)
		if err != nil {
			return err
		}
		d.material.HeightMap = tex
	}
	return nil
}

// readColor decodes one nested color chunk. Both encodings normalize to
// [0,1] with alpha forced to 1.
func (d *tdsDecoder) readColor(c *Cursor, end int) (*scene.Color, error) {
	var color *scene.Color
	err := d.scanChunks(c, end, func(tag uint16, c *Cursor, _ int) error {
		switch tag {
		case tdsChunkColorFloat:
			r, err := c.Float32()
			if err != nil {
				return err
			}
			g, err := c.Float32()
			if err != nil {
				return err
			}
			b, err := c.Float32()
			if err != nil {
				return err
			}
			color = &scene.Color{R: r, G: g, B: b, A: 1}
		case tdsChunkColorByte:
			rgb, err := c.Bytes(3)
			if err != nil {
				return err
			}
			color = &scene.Color{
				R: float32(rgb[0]) / 255,
				G: float32(rgb[1]) / 255,
				B: float32(rgb[2]) / 255,
				A: 1,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return color, nil
}

// readTextureMap decodes a texture-map chunk: the nested map-file chunk
// holds a zero-terminated path relative to the model file.
func (d *tdsDecoder) readTextureMap(c *Cursor, end int) (*scene.Texture, error) {
	var tex *scene.Texture
	err := d.scanChunks(c, end, func(tag uint16, c *Cursor, _ int) error {
		if tag != tdsChunkMapFile {
			return nil
		}
		file, err := c.CString()
		if err != nil {
			return err
		}
		loaded, err := d.loadTexture(string(file))
		if err != nil {
			return err
		}
		tex = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tex, nil
}

func (d *tdsDecoder) loadTexture(relative string) (*scene.Texture, error) {
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

func readVec3(c *Cursor, out *math.Vec3) error {
	x, err := c.Float32()
	if err != nil {
		return err
	}
	y, err := c.Float32()
	if err != nil {
		return err
	}
	z, err := c.Float32()
	if err != nil {
		return err
	}
	*out = math.Vec3{X: x, Y: y, Z: z}
	return nil
}
