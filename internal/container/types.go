// Package container models the bundle container boundary: a loaded container
// exposes a typed object list whose fields the repack pipeline mutates, and
// serializes back to bytes. The package also ships a chunked, optionally
// compressed reference codec for that contract.
package container

// Kind classifies a container object. Only the kinds below are handled by the
// repack pipeline; everything else is carried through untouched.
type Kind uint8

const (
	KindUnsupported Kind = iota
	KindTexture2D
	KindTextAsset
	KindMonoBehaviour
)

func (k Kind) String() string {
	switch k {
	case KindTexture2D:
		return "Texture2D"
	case KindTextAsset:
		return "TextAsset"
	case KindMonoBehaviour:
		return "MonoBehaviour"
	}
	return "Unsupported"
}

// TextureFormat is the engine's pixel-format code for texture objects.
type TextureFormat int32

const (
	TextureRGBA32  TextureFormat = 4
	TextureASTC4x4 TextureFormat = 48
)

// Texture carries the mutable fields of a Texture2D object.
type Texture struct {
	Format   TextureFormat
	Width    int32
	Height   int32
	MipCount int32
	Data     []byte
}

// Object is one named asset inside a container. Mutations stay in memory
// until the container is serialized.
type Object interface {
	Name() string
	Kind() Kind

	// Payload returns the raw script bytes of a text-bearing object or the
	// pixel data of a texture.
	Payload() []byte

	// Texture reports the texture fields of a Texture2D object.
	Texture() (Texture, bool)

	// SetPayload replaces the script bytes of a TextAsset or MonoBehaviour.
	SetPayload(data []byte) error

	// SetTexture replaces the pixel data and format fields of a Texture2D.
	SetTexture(tex Texture) error
}

// Container is a loaded bundle container.
type Container interface {
	Objects() []Object
	Serialize() ([]byte, error)
}

// Loader opens a container file. Injected so the pipeline can run against
// codecs other than the reference one.
type Loader func(path string) (Container, error)
