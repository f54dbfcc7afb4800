// Package spine handles spine-animation replacement assets: parsing the
// atlas description text format and reducing a mod's texture set down to the
// engine's slot count.
package spine

import (
	"fmt"
	"strings"
)

// DefaultFilterLine is used when an atlas block carries no filter line.
const DefaultFilterLine = " filter: Linear, Linear"

// Page is one image block of an atlas file. Sprite lines are kept verbatim so
// a rewrite only ever touches bounds coordinates.
type Page struct {
	Name        string
	SizeLine    string
	FilterLine  string
	SpriteLines []string
}

// Atlas is a parsed atlas description file.
type Atlas struct {
	Pages []Page
}

// ParseAtlas splits the atlas text into blocks, each beginning with a
// "<name>.png" line followed by size, filter and sprite lines.
func ParseAtlas(content string) (*Atlas, error) {
	atlas := &Atlas{}
	var page *Page

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, ".png") && trimmed == line {
			atlas.Pages = append(atlas.Pages, Page{Name: trimmed, FilterLine: DefaultFilterLine})
			page = &atlas.Pages[len(atlas.Pages)-1]
			continue
		}
		if page == nil {
			if trimmed == "" {
				continue
			}
			return nil, fmt.Errorf("atlas content does not start with an image block: %q", line)
		}
		switch {
		case strings.HasPrefix(trimmed, "size:"):
			page.SizeLine = line
		case strings.HasPrefix(trimmed, "filter:"):
			page.FilterLine = line
		case trimmed == "":
			// blank separator between blocks
		default:
			page.SpriteLines = append(page.SpriteLines, line)
		}
	}

	if len(atlas.Pages) == 0 {
		return nil, fmt.Errorf("atlas content has no image blocks")
	}
	return atlas, nil
}

// Page returns the block for an image name, or nil.
func (a *Atlas) Page(name string) *Page {
	for i := range a.Pages {
		if a.Pages[i].Name == name {
			return &a.Pages[i]
		}
	}
	return nil
}

// String renders the atlas back to its text form.
func (a *Atlas) String() string {
	blocks := make([]string, 0, len(a.Pages))
	for _, p := range a.Pages {
		lines := []string{p.Name}
		if p.SizeLine != "" {
			lines = append(lines, p.SizeLine)
		}
		lines = append(lines, p.FilterLine)
		lines = append(lines, p.SpriteLines...)
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
