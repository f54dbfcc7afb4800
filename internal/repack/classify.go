// Package repack matches mod files against a loaded container and rewrites
// the container's objects in place: skeleton JSON through a converter, PNGs
// through the texture codec, everything else as raw text payloads.
package repack

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Ark-Repoleved/BDroid-X/internal/container"
)

// ModKind selects the conversion a mod file goes through before it is written
// into its container object.
type ModKind int

const (
	// SkeletonJSON is a Spine skeleton source targeting a <base>.skel asset.
	SkeletonJSON ModKind = iota
	// TextureASTC is a PNG compressed to ASTC before application.
	TextureASTC
	// TextureRaw is a PNG applied as uncompressed RGBA32.
	TextureRaw
	// TextBlob is any other file copied verbatim into a text asset.
	TextBlob
)

func (k ModKind) String() string {
	switch k {
	case SkeletonJSON:
		return "skeleton"
	case TextureASTC:
		return "texture-astc"
	case TextureRaw:
		return "texture-raw"
	}
	return "text"
}

// ModAsset pairs a mod file with the container object it replaces.
type ModAsset struct {
	Path   string // absolute path of the mod file
	Target string // container object name, as stored in the index
	Kind   ModKind
}

// Classify walks the mod directory and matches each file to a container
// object. Files with no matching object are logged and skipped; the caller
// decides whether an entirely empty result is an error.
func Classify(dir string, idx container.Index, useASTC bool) ([]ModAsset, error) {
	var assets []ModAsset

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))

		switch strings.ToLower(filepath.Ext(name)) {
		case ".json":
			target := stem + ".skel"
			obj, ok := idx.Lookup(target)
			if !ok {
				slog.Debug("No skeleton asset for mod file", "file", name, "target", target)
				return nil
			}
			assets = append(assets, ModAsset{Path: path, Target: obj.Name(), Kind: SkeletonJSON})

		case ".png":
			obj, ok := idx.Lookup(stem)
			if !ok || obj.Kind() != container.KindTexture2D {
				slog.Debug("No texture asset for mod file", "file", name)
				return nil
			}
			kind := TextureRaw
			if useASTC {
				kind = TextureASTC
			}
			assets = append(assets, ModAsset{Path: path, Target: obj.Name(), Kind: kind})

		default:
			obj, ok := idx.Lookup(name)
			if !ok {
				obj, ok = idx.Lookup(stem)
			}
			if !ok || obj.Kind() != container.KindTextAsset {
				slog.Debug("No matching asset for mod file", "file", name)
				return nil
			}
			assets = append(assets, ModAsset{Path: path, Target: obj.Name(), Kind: TextBlob})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning mod directory %s: %w", dir, err)
	}
	return assets, nil
}
