package repack

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	"github.com/Ark-Repoleved/BDroid-X/internal/astc"
	"github.com/Ark-Repoleved/BDroid-X/internal/container"
)

// Unpack exports every supported object of a container into outDir: textures
// as PNG, text assets and skeleton binaries as raw files. Per-object failures
// are counted; only a container load failure or an unwritable output
// directory is fatal.
func Unpack(containerPath, outDir string, load container.Loader) (*Result, error) {
	if load == nil {
		load = container.Load
	}
	cont, err := load(containerPath)
	if err != nil {
		return nil, fmt.Errorf("loading container: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	res := &Result{}
	for _, obj := range cont.Objects() {
		name, ok := exportName(obj)
		if !ok {
			continue
		}
		if err := exportObject(obj, filepath.Join(outDir, name)); err != nil {
			slog.Error("Exporting object failed", "object", obj.Name(), "error", err)
			res.Failed++
			continue
		}
		res.Applied++
	}

	res.Modified = res.Applied > 0
	res.Message = fmt.Sprintf("%d objects exported, %d failed", res.Applied, res.Failed)
	return res, nil
}

// exportName decides whether an object is exportable and under what filename.
// Logical names can contain path separators; those are flattened so every
// export lands directly in the output directory.
func exportName(obj container.Object) (string, bool) {
	name := obj.Name()
	if name == "" {
		return "", false
	}
	switch obj.Kind() {
	case container.KindTexture2D:
		name += ".png"
	case container.KindTextAsset:
	case container.KindMonoBehaviour:
		// Only skeleton data is meaningful outside the engine.
		if !strings.Contains(strings.ToLower(name), ".skel") {
			return "", false
		}
	default:
		return "", false
	}
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name, true
}

func exportObject(obj container.Object, path string) error {
	if obj.Kind() != container.KindTexture2D {
		return os.WriteFile(path, obj.Payload(), 0o644)
	}

	tex, ok := obj.Texture()
	if !ok {
		return fmt.Errorf("texture object carries no texture data")
	}
	w, h := int(tex.Width), int(tex.Height)

	var pix []byte
	switch tex.Format {
	case container.TextureRGBA32:
		pix = tex.Data
	case container.TextureASTC4x4:
		decoded, err := astc.Decompress(tex.Data, w, h, 4, 4)
		if err != nil {
			return err
		}
		pix = decoded
	default:
		return fmt.Errorf("unsupported texture format %d", tex.Format)
	}
	if len(pix) != w*h*4 {
		return fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d", len(pix), w*h*4, w, h)
	}

	rgba := &image.RGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	return imgio.Save(path, transform.FlipV(rgba), imgio.PNGEncoder())
}
