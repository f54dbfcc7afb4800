package repack

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	"github.com/Ark-Repoleved/BDroid-X/internal/astc"
	"github.com/Ark-Repoleved/BDroid-X/internal/container"
	"github.com/Ark-Repoleved/BDroid-X/internal/spine"
)

// SkeletonConverter turns Spine skeleton JSON into the engine's binary
// skeleton format. The encoder itself lives outside this repo; Passthrough
// covers mods that ship pre-converted binaries under a .json name.
type SkeletonConverter interface {
	Convert(data []byte) ([]byte, error)
}

// Passthrough applies skeleton files without conversion.
type Passthrough struct{}

func (Passthrough) Convert(data []byte) ([]byte, error) { return data, nil }

// Options configures one repack run.
type Options struct {
	ContainerPath string
	ModDir        string
	OutputPath    string
	UseASTC       bool

	Load      container.Loader  // defaults to the reference codec
	Converter SkeletonConverter // defaults to Passthrough
	Scheduler *astc.Scheduler   // defaults to CPU-only with default workers
}

// Result summarizes a repack run. Modified is false when no mod file matched
// a container object, in which case the output file was not written.
type Result struct {
	Modified bool
	Applied  int
	Failed   int
	Message  string
}

// Repack loads the container, applies every matching mod file and writes the
// rewritten container to Options.OutputPath. Per-asset failures are counted
// and do not abort the run; load and serialize failures do.
func Repack(opts Options) (*Result, error) {
	load := opts.Load
	if load == nil {
		load = container.Load
	}
	conv := opts.Converter
	if conv == nil {
		conv = Passthrough{}
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = &astc.Scheduler{CPU: &astc.CPUCompressor{}}
	}

	cont, err := load(opts.ContainerPath)
	if err != nil {
		return nil, fmt.Errorf("loading container: %w", err)
	}
	idx := container.BuildIndex(cont)

	res := &Result{}
	mergeSpineTextures(opts.ModDir, idx)

	assets, err := Classify(opts.ModDir, idx, opts.UseASTC)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		res.Message = "no modifications were made — check that mod filenames match container assets"
		return res, nil
	}

	var textureJobs []astc.Job
	for _, asset := range assets {
		switch asset.Kind {
		case TextureASTC:
			textureJobs = append(textureJobs, astc.Job{
				Source: asset.Path,
				Target: asset.Target,
				BlockX: 4,
				BlockY: 4,
			})
		case TextureRaw:
			if err := applyRawTexture(idx, asset); err != nil {
				slog.Error("Applying texture failed", "file", asset.Path, "error", err)
				res.Failed++
				continue
			}
			res.Applied++
		default:
			if err := applyPayload(idx, asset, conv); err != nil {
				slog.Error("Applying mod file failed", "file", asset.Path, "error", err)
				res.Failed++
				continue
			}
			res.Applied++
		}
	}

	if len(textureJobs) > 0 {
		sum := sched.Run(textureJobs, func(r astc.Result) error {
			obj, ok := idx.Lookup(r.Job.Target)
			if !ok {
				return fmt.Errorf("object %s disappeared from index", r.Job.Target)
			}
			return obj.SetTexture(container.Texture{
				Format:   container.TextureASTC4x4,
				Width:    int32(r.Width),
				Height:   int32(r.Height),
				MipCount: 1,
				Data:     r.Data,
			})
		})
		res.Applied += sum.Applied
		res.Failed += sum.Failed
	}

	if res.Applied == 0 {
		res.Message = "no modifications were made — check that mod filenames match container assets"
		return res, nil
	}

	raw, err := cont.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing container: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", opts.OutputPath, err)
	}

	res.Modified = true
	res.Message = fmt.Sprintf("%d assets applied, %d failed", res.Applied, res.Failed)
	return res, nil
}

// mergeSpineTextures detects spine mods whose texture count exceeds the
// container's slot count and merges them down before classification. Merge
// problems are logged, not fatal: the unmerged textures simply won't all
// match a slot.
func mergeSpineTextures(dir string, idx container.Index) {
	atlases, err := filepath.Glob(filepath.Join(dir, "*.atlas"))
	if err != nil {
		return
	}
	for _, atlasPath := range atlases {
		base := strings.TrimSuffix(filepath.Base(atlasPath), ".atlas")
		slots := idx.TextureSlots(base)
		if slots == 0 {
			continue
		}

		result, err := spine.MergeDirectory(dir, base, slots)
		if errors.Is(err, spine.ErrMergeNotNeeded) {
			continue
		}
		if err != nil {
			slog.Warn("Spine texture merge failed", "base", base, "error", err)
			continue
		}
		slog.Info("Merged spine textures",
			"base", base, "outputs", len(result.Outputs), "removed", len(result.Removed))
	}
}

func applyRawTexture(idx container.Index, asset ModAsset) error {
	obj, ok := idx.Lookup(asset.Target)
	if !ok {
		return fmt.Errorf("object %s not found", asset.Target)
	}
	img, err := imgio.Open(asset.Path)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	rgba := transform.FlipV(img)
	b := rgba.Bounds()
	return obj.SetTexture(container.Texture{
		Format:   container.TextureRGBA32,
		Width:    int32(b.Dx()),
		Height:   int32(b.Dy()),
		MipCount: 1,
		Data:     rgba.Pix,
	})
}

func applyPayload(idx container.Index, asset ModAsset, conv SkeletonConverter) error {
	obj, ok := idx.Lookup(asset.Target)
	if !ok {
		return fmt.Errorf("object %s not found", asset.Target)
	}
	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return err
	}
	if asset.Kind == SkeletonJSON {
		if data, err = conv.Convert(data); err != nil {
			return fmt.Errorf("converting skeleton: %w", err)
		}
	}
	return obj.SetPayload(data)
}
