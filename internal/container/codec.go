package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-chunk codec of a serialized container.
type Compression uint8

const (
	CompressNone Compression = iota
	CompressLZ4
	CompressZstd
)

var magic = [4]byte{'B', 'D', 'X', 'C'}

const (
	formatVersion = 1
	// granularity is the uncompressed chunk size; matching the bundle
	// convention of 256KiB keeps peak decode memory bounded.
	granularity = 256 * 1024
)

type fileHead struct {
	Magic       [4]byte
	Version     uint16
	Codec       uint8
	_           uint8
	BodySize    int64
	BlockCount  uint32
	Granularity uint32
}

type memObject struct {
	name string
	kind Kind
	tex  Texture // texture fields, meaningful only for KindTexture2D
	data []byte
}

func (o *memObject) Name() string { return o.name }
func (o *memObject) Kind() Kind   { return o.kind }

func (o *memObject) Payload() []byte {
	if o.kind == KindTexture2D {
		return o.tex.Data
	}
	return o.data
}

func (o *memObject) Texture() (Texture, bool) {
	if o.kind != KindTexture2D {
		return Texture{}, false
	}
	return o.tex, true
}

func (o *memObject) SetPayload(data []byte) error {
	if o.kind != KindTextAsset && o.kind != KindMonoBehaviour {
		return fmt.Errorf("object %q is a %s, not a text-bearing asset", o.name, o.kind)
	}
	o.data = data
	return nil
}

func (o *memObject) SetTexture(tex Texture) error {
	if o.kind != KindTexture2D {
		return fmt.Errorf("object %q is a %s, not a texture", o.name, o.kind)
	}
	o.tex = tex
	return nil
}

type memContainer struct {
	codec   Compression
	objects []*memObject
}

func (c *memContainer) Objects() []Object {
	out := make([]Object, len(c.objects))
	for i, o := range c.objects {
		out[i] = o
	}
	return out
}

// New creates an empty container serialized with the given compression.
func New(codec Compression) *memContainer {
	return &memContainer{codec: codec}
}

// AddText appends a text-bearing object.
func (c *memContainer) AddText(name string, kind Kind, data []byte) {
	c.objects = append(c.objects, &memObject{name: name, kind: kind, data: data})
}

// AddTexture appends a Texture2D object.
func (c *memContainer) AddTexture(name string, tex Texture) {
	c.objects = append(c.objects, &memObject{name: name, kind: KindTexture2D, tex: tex})
}

// Load reads a serialized container from disk.
func Load(path string) (Container, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading container: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a serialized container.
func Parse(raw []byte) (Container, error) {
	r := bytes.NewReader(raw)

	var head fileHead
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		return nil, fmt.Errorf("reading container head: %w", err)
	}
	if head.Magic != magic {
		return nil, fmt.Errorf("not a container file (magic %q)", head.Magic)
	}
	if head.Version != formatVersion {
		return nil, fmt.Errorf("unsupported container version %d", head.Version)
	}
	if head.Granularity == 0 {
		return nil, fmt.Errorf("container has zero chunk granularity")
	}
	if head.BodySize < 0 {
		return nil, fmt.Errorf("container head declares negative body size %d", head.BodySize)
	}
	// The chunk table alone needs 4 bytes per chunk, and every chunk
	// inflates to at most one granularity of body.
	if int64(head.BlockCount)*4 > int64(r.Len()) {
		return nil, fmt.Errorf("chunk count %d exceeds %d remaining bytes", head.BlockCount, r.Len())
	}
	if head.BodySize > int64(head.BlockCount)*int64(head.Granularity) {
		return nil, fmt.Errorf("body size %d exceeds %d chunks of %d bytes", head.BodySize, head.BlockCount, head.Granularity)
	}

	blockSizes := make([]uint32, head.BlockCount)
	if err := binary.Read(r, binary.LittleEndian, &blockSizes); err != nil {
		return nil, fmt.Errorf("reading chunk table (count=%d): %w", head.BlockCount, err)
	}

	codec := Compression(head.Codec)
	body := make([]byte, 0, head.BodySize)
	offset := len(raw) - r.Len()
	for i, sz := range blockSizes {
		if offset+int(sz) > len(raw) {
			return nil, fmt.Errorf("chunk %d extends past end of file", i)
		}
		chunk := raw[offset : offset+int(sz)]
		offset += int(sz)

		rawSize := int(head.Granularity)
		if remaining := int(head.BodySize) - len(body); remaining < rawSize {
			rawSize = remaining
		}

		// A chunk stored at its raw size was incompressible and kept as-is.
		if int(sz) == rawSize || codec == CompressNone {
			body = append(body, chunk...)
			continue
		}

		out, err := decompressChunk(codec, chunk, rawSize)
		if err != nil {
			return nil, fmt.Errorf("decompressing chunk %d: %w", i, err)
		}
		body = append(body, out...)
	}

	if int64(len(body)) != head.BodySize {
		return nil, fmt.Errorf("container body is %d bytes, head says %d", len(body), head.BodySize)
	}

	c := &memContainer{codec: codec}
	if err := c.parseBody(body); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *memContainer) parseBody(body []byte) error {
	r := bytes.NewReader(body)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("reading object count: %w", err)
	}

	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return fmt.Errorf("object %d: reading name length: %w", i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return fmt.Errorf("object %d: reading name: %w", i, err)
		}

		var kind uint8
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			return fmt.Errorf("object %q: reading kind: %w", name, err)
		}

		obj := &memObject{name: string(name), kind: Kind(kind)}
		if obj.kind == KindTexture2D {
			var fields struct {
				Format   int32
				Width    int32
				Height   int32
				MipCount int32
			}
			if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
				return fmt.Errorf("object %q: reading texture fields: %w", name, err)
			}
			obj.tex = Texture{
				Format:   TextureFormat(fields.Format),
				Width:    fields.Width,
				Height:   fields.Height,
				MipCount: fields.MipCount,
			}
		}

		var dataLen uint32
		if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
			return fmt.Errorf("object %q: reading payload length: %w", name, err)
		}
		if int64(dataLen) > int64(r.Len()) {
			return fmt.Errorf("object %q: payload length %d exceeds %d remaining bytes", name, dataLen, r.Len())
		}
		data := make([]byte, dataLen)
		if dataLen > 0 {
			if _, err := io.ReadFull(r, data); err != nil {
				return fmt.Errorf("object %q: reading payload: %w", name, err)
			}
		}
		if obj.kind == KindTexture2D {
			obj.tex.Data = data
		} else {
			obj.data = data
		}

		c.objects = append(c.objects, obj)
	}

	return nil
}

// Serialize encodes the container with its chunked compression scheme.
func (c *memContainer) Serialize() ([]byte, error) {
	var body bytes.Buffer
	if err := binary.Write(&body, binary.LittleEndian, uint32(len(c.objects))); err != nil {
		return nil, err
	}

	for _, obj := range c.objects {
		if len(obj.name) > 0xFFFF {
			return nil, fmt.Errorf("object name too long: %d bytes", len(obj.name))
		}
		binary.Write(&body, binary.LittleEndian, uint16(len(obj.name)))
		body.WriteString(obj.name)
		body.WriteByte(byte(obj.kind))

		data := obj.data
		if obj.kind == KindTexture2D {
			binary.Write(&body, binary.LittleEndian, int32(obj.tex.Format))
			binary.Write(&body, binary.LittleEndian, obj.tex.Width)
			binary.Write(&body, binary.LittleEndian, obj.tex.Height)
			binary.Write(&body, binary.LittleEndian, obj.tex.MipCount)
			data = obj.tex.Data
		}
		binary.Write(&body, binary.LittleEndian, uint32(len(data)))
		body.Write(data)
	}

	raw := body.Bytes()
	var chunks [][]byte
	for off := 0; off < len(raw); off += granularity {
		end := off + granularity
		if end > len(raw) {
			end = len(raw)
		}
		chunk, err := compressChunk(c.codec, raw[off:end])
		if err != nil {
			return nil, fmt.Errorf("compressing chunk at %d: %w", off, err)
		}
		chunks = append(chunks, chunk)
	}

	head := fileHead{
		Magic:       magic,
		Version:     formatVersion,
		Codec:       uint8(c.codec),
		BodySize:    int64(len(raw)),
		BlockCount:  uint32(len(chunks)),
		Granularity: granularity,
	}

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, head); err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		binary.Write(&out, binary.LittleEndian, uint32(len(chunk)))
	}
	for _, chunk := range chunks {
		out.Write(chunk)
	}
	return out.Bytes(), nil
}

var zstdDecoder, _ = zstd.NewReader(nil)
var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

// compressChunk returns the chunk compressed with the container codec, or the
// raw bytes when compression does not shrink it. The decoder detects stored
// chunks by their size being exactly the raw chunk size.
func compressChunk(codec Compression, chunk []byte) ([]byte, error) {
	switch codec {
	case CompressNone:
		return chunk, nil
	case CompressLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(chunk)))
		n, err := lz4.CompressBlock(chunk, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 || n >= len(chunk) {
			return chunk, nil
		}
		return buf[:n], nil
	case CompressZstd:
		out := zstdEncoder.EncodeAll(chunk, nil)
		if len(out) >= len(chunk) {
			return chunk, nil
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown compression codec %d", codec)
}

func decompressChunk(codec Compression, chunk []byte, rawSize int) ([]byte, error) {
	switch codec {
	case CompressLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(chunk, out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	case CompressZstd:
		return zstdDecoder.DecodeAll(chunk, nil)
	}
	return nil, fmt.Errorf("unknown compression codec %d", codec)
}
