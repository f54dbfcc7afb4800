package spine

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
)

// ErrMergeNotNeeded signals that the mod's texture count already fits the
// engine's slots. Callers skip the merge entirely rather than treating it as
// a failure.
var ErrMergeNotNeeded = errors.New("texture count already fits the target slots")

// MergeResult reports what a merge wrote and removed.
type MergeResult struct {
	Outputs []string
	Removed []string
}

var numericSuffix = regexp.MustCompile(`_(\d+)\.png$`)

// sortSources orders a spine texture set: the unsuffixed base name first,
// then by the numeric value of the "_<N>" suffix. A plain lexical sort would
// put "_10" before "_2".
func sortSources(names []string, base string) []string {
	key := func(name string) int {
		if name == base+".png" {
			return 1
		}
		if m := numericSuffix.FindStringSubmatch(name); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
		return math.MaxInt
	}

	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]) < key(sorted[j])
	})
	return sorted
}

// outputName reproduces the engine's spine texture naming: the first slot is
// the bare base name, later slots are numbered from 2.
func outputName(base string, slot int) string {
	if slot == 0 {
		return base + ".png"
	}
	return fmt.Sprintf("%s_%d.png", base, slot+1)
}

// MergeDirectory reduces the PNGs sharing base in dir down to targetSlots
// composite images and rewrites the companion atlas file to match. Sources
// are distributed round-robin so variable-sized frames spread evenly, and
// each group is composed as a horizontal strip: sprite bounds of non-first
// members shift right by their image's offset, y is untouched. The rewritten
// files replace the originals in place.
func MergeDirectory(dir, base string, targetSlots int) (*MergeResult, error) {
	if targetSlots <= 0 {
		return nil, fmt.Errorf("target slot count must be positive, got %d", targetSlots)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning mod directory: %w", err)
	}

	var sources []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".png") || !strings.HasPrefix(name, base) {
			continue
		}
		if name == base+".png" || numericSuffix.MatchString(name) {
			sources = append(sources, name)
		}
	}

	if len(sources) <= targetSlots {
		return nil, ErrMergeNotNeeded
	}

	sources = sortSources(sources, base)
	slog.Debug("Merging spine textures", "base", base, "sources", len(sources), "slots", targetSlots)

	atlasPath := filepath.Join(dir, base+".atlas")
	content, err := os.ReadFile(atlasPath)
	if err != nil {
		return nil, fmt.Errorf("reading atlas file: %w", err)
	}
	atlas, err := ParseAtlas(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing atlas file: %w", err)
	}

	// Round-robin partition of the sorted sources.
	groups := make([][]string, targetSlots)
	for i, name := range sources {
		groups[i%targetSlots] = append(groups[i%targetSlots], name)
	}

	merged := &Atlas{}
	outputs := make([]*image.RGBA, 0, targetSlots)
	for slot, group := range groups {
		composite, page, err := composeGroup(dir, group, outputName(base, slot), atlas)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, composite)
		merged.Pages = append(merged.Pages, *page)
	}

	result := &MergeResult{}

	// Originals beyond the kept slot names are superseded; composites for
	// the kept names overwrite them below.
	kept := make(map[string]bool, targetSlots)
	for slot := 0; slot < targetSlots; slot++ {
		kept[outputName(base, slot)] = true
	}
	for _, name := range sources {
		if kept[name] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("removing superseded texture %s: %w", name, err)
		}
		result.Removed = append(result.Removed, name)
	}

	for slot, img := range outputs {
		name := outputName(base, slot)
		if err := imgio.Save(filepath.Join(dir, name), img, imgio.PNGEncoder()); err != nil {
			return nil, fmt.Errorf("writing merged texture %s: %w", name, err)
		}
		result.Outputs = append(result.Outputs, name)
	}

	if err := os.WriteFile(atlasPath, []byte(merged.String()+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("writing merged atlas: %w", err)
	}

	slog.Info("Spine textures merged", "base", base, "from", len(sources), "to", targetSlots)
	return result, nil
}

// composeGroup concatenates a group's images left to right and produces the
// rewritten atlas page covering all their sprites.
func composeGroup(dir string, group []string, outName string, atlas *Atlas) (*image.RGBA, *Page, error) {
	width, height := 0, 0
	loaded := make([]image.Image, len(group))
	for i, name := range group {
		img, err := imgio.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("opening texture %s: %w", name, err)
		}
		loaded[i] = img
		width += img.Bounds().Dx()
		if h := img.Bounds().Dy(); h > height {
			height = h
		}
	}

	composite := image.NewRGBA(image.Rect(0, 0, width, height))
	page := &Page{
		Name:       outName,
		SizeLine:   fmt.Sprintf(" size: %d,%d", width, height),
		FilterLine: DefaultFilterLine,
	}

	offset := 0
	for i, name := range group {
		img := loaded[i]
		draw.Draw(composite,
			image.Rect(offset, 0, offset+img.Bounds().Dx(), img.Bounds().Dy()),
			img, img.Bounds().Min, draw.Src)

		src := atlas.Page(name)
		if src == nil {
			return nil, nil, fmt.Errorf("atlas has no block for texture %s", name)
		}
		if i == 0 {
			page.FilterLine = src.FilterLine
			page.SpriteLines = append(page.SpriteLines, src.SpriteLines...)
		} else {
			page.SpriteLines = append(page.SpriteLines, offsetBounds(src.SpriteLines, offset)...)
		}

		offset += img.Bounds().Dx()
	}

	return composite, page, nil
}

// offsetBounds shifts the x coordinate of every "bounds:" line by dx, leaving
// all other sprite metadata verbatim. Lines that fail to parse are kept
// untouched rather than dropped.
func offsetBounds(lines []string, dx int) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "bounds:") {
			out = append(out, line)
			continue
		}

		coords := strings.Split(strings.TrimSpace(strings.TrimPrefix(trimmed, "bounds:")), ",")
		if len(coords) != 4 {
			out = append(out, line)
			continue
		}
		vals := make([]int, 4)
		ok := true
		for i, c := range coords {
			v, err := strconv.Atoi(strings.TrimSpace(c))
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			out = append(out, line)
			continue
		}

		indent := line[:strings.Index(line, "bounds:")]
		out = append(out, fmt.Sprintf("%sbounds: %d,%d,%d,%d", indent, vals[0]+dx, vals[1], vals[2], vals[3]))
	}
	return out
}
