package container

import (
	"regexp"
	"strings"
)

// Index maps normalized (lower-cased) asset names to container objects.
// It lives for one repack run. When two objects share a name the later one
// wins, matching the container's own lookup semantics.
type Index map[string]Object

// BuildIndex scans a loaded container's object list.
func BuildIndex(c Container) Index {
	idx := make(Index)
	for _, obj := range c.Objects() {
		if obj.Name() == "" {
			continue
		}
		idx[strings.ToLower(obj.Name())] = obj
	}
	return idx
}

// Lookup finds an object by name, case-insensitively.
func (idx Index) Lookup(name string) (Object, bool) {
	obj, ok := idx[strings.ToLower(name)]
	return obj, ok
}

// TextureSlots counts the Texture2D objects belonging to a spine base name:
// the base itself plus any "_<N>" siblings. This is the engine's slot count a
// mod's texture set must fit into.
func (idx Index) TextureSlots(base string) int {
	base = strings.ToLower(base)
	sibling := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_\d+$`)

	count := 0
	for name, obj := range idx {
		if obj.Kind() != KindTexture2D {
			continue
		}
		if name == base || sibling.MatchString(name) {
			count++
		}
	}
	return count
}
