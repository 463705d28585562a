package formats

// JSON document structures of the glTF 2.0 container. Optional index fields
// use pointers so an absent reference is distinguishable from index 0.

type gltfDocument struct {
	Asset       gltfAsset        `json:"asset"`
	Scene       *int             `json:"scene"`
	Scenes      []gltfScene      `json:"scenes"`
	Nodes       []gltfNode       `json:"nodes"`
	Meshes      []gltfMesh       `json:"meshes"`
	Accessors   []gltfAccessor   `json:"accessors"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Buffers     []gltfBuffer     `json:"buffers"`
	Materials   []gltfMaterial   `json:"materials"`
	Textures    []gltfTexture    `json:"textures"`
	Images      []gltfImage      `json:"images"`
	Samplers    []gltfSampler    `json:"samplers"`
}

type gltfAsset struct {
	Version string `json:"version"`
}

type gltfScene struct {
	Name  string `json:"name"`
	Nodes []int  `json:"nodes"`
}

type gltfNode struct {
	Name        string       `json:"name"`
	Children    []int        `json:"children"`
	Mesh        *int         `json:"mesh"`
	Matrix      *[16]float32 `json:"matrix"`
	Translation *[3]float32  `json:"translation"`
	Rotation    *[4]float32  `json:"rotation"`
	Scale       *[3]float32  `json:"scale"`
}

type gltfMesh struct {
	Name       string          `json:"name"`
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
	Material   *int           `json:"material"`
}

type gltfAccessor struct {
	BufferView    *int   `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset"`
	ComponentType int    `json:"componentType"`
	Normalized    bool   `json:"normalized"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	Sparse        any    `json:"sparse"`
}

type gltfBufferView struct {
	Buffer     int  `json:"buffer"`
	ByteOffset int  `json:"byteOffset"`
	ByteLength int  `json:"byteLength"`
	ByteStride *int `json:"byteStride"`
}

type gltfBuffer struct {
	URI        string `json:"uri"`
	ByteLength int    `json:"byteLength"`
}

type gltfImage struct {
	URI        string `json:"uri"`
	MimeType   string `json:"mimeType"`
	BufferView *int   `json:"bufferView"`
}

type gltfSampler struct {
	MagFilter *int `json:"magFilter"`
	MinFilter *int `json:"minFilter"`
	WrapS     *int `json:"wrapS"`
}

type gltfTexture struct {
	Sampler *int `json:"sampler"`
	Source  *int `json:"source"`
}

type gltfMaterial struct {
	Name             string        `json:"name"`
	PBR              *gltfPBR      `json:"pbrMetallicRoughness"`
	NormalTexture    *gltfScaleRef `json:"normalTexture"`
	OcclusionTexture *gltfScaleRef `json:"occlusionTexture"`
	EmissiveTexture  *gltfTexRef   `json:"emissiveTexture"`
	EmissiveFactor   *[3]float32   `json:"emissiveFactor"`
}

type gltfPBR struct {
	BaseColorFactor          *[4]float32 `json:"baseColorFactor"`
	BaseColorTexture         *gltfTexRef `json:"baseColorTexture"`
	MetallicRoughnessTexture *gltfTexRef `json:"metallicRoughnessTexture"`
}

type gltfTexRef struct {
	Index int `json:"index"`
}

type gltfScaleRef struct {
	Index    int      `json:"index"`
	Scale    *float32 `json:"scale"`
	Strength *float32 `json:"strength"`
}

// Component types of the container's typed accessors.
const (
	gltfComponentInt8    = 5120
	gltfComponentUint8   = 5121
	gltfComponentInt16   = 5122
	gltfComponentUint16  = 5123
	gltfComponentUint32  = 5125
	gltfComponentFloat32 = 5126
)

// componentSize returns the byte size of one component, or 0 if the
// component type is not supported.
func componentSize(componentType int) int {
	switch componentType {
	case gltfComponentInt8, gltfComponentUint8:
		return 1
	case gltfComponentInt16, gltfComponentUint16:
		return 2
	case gltfComponentUint32, gltfComponentFloat32:
		return 4
	}
	return 0
}

// elementArity maps an accessor type tag to its component count, or 0 if
// the tag is not supported.
func elementArity(typeTag string) int {
	switch typeTag {
	case "SCALAR":
		return 1
	case "VEC2":
		return 2
	case "VEC3":
		return 3
	case "VEC4":
		return 4
	}
	return 0
}

// Sampler filter and wrap enums.
const (
	gltfFilterNearest              = 9728
	gltfFilterLinear               = 9729
	gltfFilterNearestMipmapNearest = 9984
	gltfFilterLinearMipmapNearest  = 9985
	gltfFilterNearestMipmapLinear  = 9986
	gltfFilterLinearMipmapLinear   = 9987

	gltfWrapClamp  = 33071
	gltfWrapMirror = 33648
	gltfWrapRepeat = 10497
)
