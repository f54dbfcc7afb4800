// Package astc wraps the ASTC texture codec and schedules texture-conversion
// batches across the GPU bridge and a bounded CPU worker pool.
package astc

import (
	"fmt"
	"image"
	"image/draw"

	astcenc "github.com/arm-software/astc-encoder/astc"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
)

// BlockBytes is the size of one ASTC block regardless of block footprint.
const BlockBytes = 16

// QualityMedium matches the encoder's medium preset.
const QualityMedium = 60.0

// Compressor turns a source image file into ASTC payload bytes.
type Compressor interface {
	CompressFile(path string, blockX, blockY int) (data []byte, width, height int, err error)
}

// GPUCompressor is the hardware codec bridge supplied by the host platform.
type GPUCompressor interface {
	Compressor
	Available() bool
}

// NopGPU is the default GPU bridge: never available, so every batch takes the
// CPU path until the host injects a real hardware codec.
type NopGPU struct{}

func (NopGPU) Available() bool { return false }

func (NopGPU) CompressFile(string, int, int) ([]byte, int, int, error) {
	return nil, 0, 0, fmt.Errorf("no GPU codec bridge configured")
}

func identitySwizzle() astcenc.Swizzle {
	return astcenc.Swizzle{R: astcenc.SwzR, G: astcenc.SwzG, B: astcenc.SwzB, A: astcenc.SwzA}
}

// CPUCompressor encodes with the in-process codec.
type CPUCompressor struct {
	Quality float32 // 0 selects QualityMedium
}

func (c *CPUCompressor) quality() float32 {
	if c.Quality > 0 {
		return c.Quality
	}
	return QualityMedium
}

// CompressFile opens the source image, flips it vertically (the codec's
// coordinate convention is inverted relative to PNG) and encodes it.
func (c *CPUCompressor) CompressFile(path string, blockX, blockY int) ([]byte, int, int, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("opening source image: %w", err)
	}

	flipped := transform.FlipV(toRGBA(img))
	w := flipped.Bounds().Dx()
	h := flipped.Bounds().Dy()

	data, err := Compress(flipped.Pix, w, h, blockX, blockY, c.quality())
	if err != nil {
		return nil, 0, 0, err
	}
	return data, w, h, nil
}

// Compress encodes tightly packed RGBA pixels into ASTC blocks.
func Compress(pix []byte, width, height, blockX, blockY int, quality float32) ([]byte, error) {
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d RGBA", len(pix), width*height*4, width, height)
	}

	cfg, err := astcenc.ConfigInit(astcenc.ProfileLDRSRGB, blockX, blockY, 1, quality, 0)
	if err != nil {
		return nil, fmt.Errorf("initializing encoder config: %w", err)
	}
	ctx, err := astcenc.ContextAlloc(&cfg, 1)
	if err != nil {
		return nil, fmt.Errorf("allocating encoder context: %w", err)
	}
	defer ctx.Close()

	blocksX := (width + blockX - 1) / blockX
	blocksY := (height + blockY - 1) / blockY
	out := make([]byte, blocksX*blocksY*BlockBytes)

	img := &astcenc.Image{
		DimX:     width,
		DimY:     height,
		DimZ:     1,
		DataType: astcenc.TypeU8,
		DataU8:   pix,
	}
	if err := ctx.CompressImage(img, identitySwizzle(), out, 0); err != nil {
		return nil, fmt.Errorf("compressing %dx%d image: %w", width, height, err)
	}
	return out, nil
}

// Decompress decodes ASTC blocks back into tightly packed RGBA pixels.
func Decompress(data []byte, width, height, blockX, blockY int) ([]byte, error) {
	cfg, err := astcenc.ConfigInit(astcenc.ProfileLDRSRGB, blockX, blockY, 1, QualityMedium, astcenc.FlagDecompressOnly)
	if err != nil {
		return nil, fmt.Errorf("initializing decoder config: %w", err)
	}
	ctx, err := astcenc.ContextAlloc(&cfg, 1)
	if err != nil {
		return nil, fmt.Errorf("allocating decoder context: %w", err)
	}
	defer ctx.Close()

	out := &astcenc.Image{
		DimX:     width,
		DimY:     height,
		DimZ:     1,
		DataType: astcenc.TypeU8,
		DataU8:   make([]byte, width*height*4),
	}
	if err := ctx.DecompressImage(data, out, identitySwizzle(), 0); err != nil {
		return nil, fmt.Errorf("decompressing %dx%d image: %w", width, height, err)
	}
	return out.DataU8, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
