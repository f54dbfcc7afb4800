package spine

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
)

func TestSortSources(t *testing.T) {
	got := sortSources([]string{"char_10.png", "char.png", "char_2.png"}, "char")
	want := []string{"char.png", "char_2.png", "char_10.png"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortSources = %v, want %v", got, want)
		}
	}
}

func TestParseAtlasPreservesSpriteLines(t *testing.T) {
	content := strings.Join([]string{
		"char.png",
		"size: 4,4",
		"filter: Linear,Linear",
		"frontHair",
		"  rotate: false",
		"  bounds: 1,1,2,2",
		"",
		"char_2.png",
		"size: 2,4",
		"filter: Linear,Linear",
		"backHair",
		"  bounds: 0,0,2,4",
	}, "\n")

	atlas, err := ParseAtlas(content)
	if err != nil {
		t.Fatalf("ParseAtlas: %v", err)
	}
	if len(atlas.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(atlas.Pages))
	}

	first := atlas.Page("char.png")
	if first == nil {
		t.Fatal("missing char.png block")
	}
	wantSprites := []string{"frontHair", "  rotate: false", "  bounds: 1,1,2,2"}
	if len(first.SpriteLines) != len(wantSprites) {
		t.Fatalf("sprite lines = %v", first.SpriteLines)
	}
	for i := range wantSprites {
		if first.SpriteLines[i] != wantSprites[i] {
			t.Errorf("sprite line %d = %q, want %q", i, first.SpriteLines[i], wantSprites[i])
		}
	}

	// Rendering back must keep every sprite metadata line verbatim.
	rendered := atlas.String()
	for _, line := range []string{"  rotate: false", "  bounds: 0,0,2,4", "backHair"} {
		if !strings.Contains(rendered, line) {
			t.Errorf("rendered atlas lost line %q", line)
		}
	}
}

func TestOffsetBounds(t *testing.T) {
	lines := []string{
		"eye",
		"  rotate: false",
		"  bounds: 1,2,3,4",
		"  offsets: 0,0,3,4", // not a bounds line, must stay verbatim
	}
	got := offsetBounds(lines, 10)
	if got[2] != "  bounds: 11,2,3,4" {
		t.Errorf("bounds line = %q", got[2])
	}
	if got[3] != "  offsets: 0,0,3,4" {
		t.Errorf("offsets line = %q", got[3])
	}
}

func writeSolidPNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		t.Fatal(err)
	}
}

func TestMergeNotNeeded(t *testing.T) {
	dir := t.TempDir()
	writeSolidPNG(t, filepath.Join(dir, "char.png"), 4, 4, color.RGBA{R: 255, A: 255})
	writeSolidPNG(t, filepath.Join(dir, "char_2.png"), 4, 4, color.RGBA{G: 255, A: 255})

	_, err := MergeDirectory(dir, "char", 2)
	if !errors.Is(err, ErrMergeNotNeeded) {
		t.Fatalf("err = %v, want ErrMergeNotNeeded", err)
	}
}

func TestMergeDirectory(t *testing.T) {
	dir := t.TempDir()

	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	writeSolidPNG(t, filepath.Join(dir, "char.png"), 4, 4, red)
	writeSolidPNG(t, filepath.Join(dir, "char_2.png"), 2, 4, green)
	writeSolidPNG(t, filepath.Join(dir, "char_10.png"), 6, 4, blue)

	atlasText := strings.Join([]string{
		"char.png",
		"size: 4,4",
		"filter: Linear,Linear",
		"head",
		"  bounds: 0,0,4,4",
		"",
		"char_2.png",
		"size: 2,4",
		"filter: Linear,Linear",
		"arm",
		"  bounds: 0,0,2,4",
		"",
		"char_10.png",
		"size: 6,4",
		"filter: Linear,Linear",
		"tail",
		"  bounds: 1,1,2,2",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "char.atlas"), []byte(atlasText), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := MergeDirectory(dir, "char", 2)
	if err != nil {
		t.Fatalf("MergeDirectory: %v", err)
	}

	if len(result.Outputs) != 2 {
		t.Fatalf("outputs = %v, want 2 images", result.Outputs)
	}
	if _, err := os.Stat(filepath.Join(dir, "char_10.png")); !os.IsNotExist(err) {
		t.Error("superseded char_10.png still present")
	}

	// Round-robin over the numeric ordering: slot 0 gets char.png and
	// char_10.png, slot 1 gets char_2.png.
	first, err := imgio.Open(filepath.Join(dir, "char.png"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := imgio.Open(filepath.Join(dir, "char_2.png"))
	if err != nil {
		t.Fatal(err)
	}

	if first.Bounds().Dx() != 10 || first.Bounds().Dy() != 4 {
		t.Errorf("slot 0 size = %v, want 10x4", first.Bounds())
	}
	if second.Bounds().Dx() != 2 || second.Bounds().Dy() != 4 {
		t.Errorf("slot 1 size = %v, want 2x4", second.Bounds())
	}

	// No cropping: output pixels equal the sum of source pixels.
	sum := 4*4 + 2*4 + 6*4
	got := first.Bounds().Dx()*first.Bounds().Dy() + second.Bounds().Dx()*second.Bounds().Dy()
	if got != sum {
		t.Errorf("combined pixel count = %d, want %d", got, sum)
	}

	// The second group member starts at the first member's width.
	if c := color.RGBAModel.Convert(first.At(1, 1)).(color.RGBA); c != red {
		t.Errorf("pixel (1,1) = %v, want red", c)
	}
	if c := color.RGBAModel.Convert(first.At(5, 1)).(color.RGBA); c != blue {
		t.Errorf("pixel (5,1) = %v, want blue", c)
	}

	rewritten, err := os.ReadFile(filepath.Join(dir, "char.atlas"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(rewritten)

	for _, sprite := range []string{"head", "arm", "tail"} {
		if n := strings.Count(text, "\n"+sprite+"\n"); n != 1 {
			t.Errorf("sprite %q appears %d times in rewritten atlas", sprite, n)
		}
	}
	if !strings.Contains(text, "bounds: 0,0,4,4") {
		t.Error("first member's bounds must stay untouched")
	}
	if !strings.Contains(text, "bounds: 5,1,2,2") {
		t.Errorf("char_10's bounds not shifted by 4:\n%s", text)
	}

	parsed, err := ParseAtlas(text)
	if err != nil {
		t.Fatalf("rewritten atlas does not parse: %v", err)
	}
	if len(parsed.Pages) != 2 {
		t.Errorf("rewritten atlas has %d pages, want 2", len(parsed.Pages))
	}
}
