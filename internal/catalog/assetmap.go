package catalog

import (
	"regexp"
	"strings"
)

// assetKeyPattern matches the identifier families that can be targeted by
// replacement assets: character codes, cutscene codes, illustration, NPC and
// special-asset naming families.
var assetKeyPattern = regexp.MustCompile(`(?i)(cutscene_char\d{6}|char\d{6}|illust_dating\d+|illust_special\d+|illust_talk\d+|npc\d+|specialillust\w+|storypack\w+|\bRhythmHitAnim\b)`)

// skeletonSuffix is the animation-skeleton payload inside a spine bundle.
// Sibling atlas and image entries share the same logical id and must not win
// the idle slot, so idle resolution is keyed off this suffix alone.
const skeletonSuffix = ".skel.bytes"

const cutscenePrefix = "cutscene_"

// AssetBundles holds the bundles recorded for one logical id.
type AssetBundles struct {
	Idle     *BundleDescriptor
	Cutscene *BundleDescriptor
}

// AssetMap maps a normalized (lower-cased) logical id to its bundles.
type AssetMap map[string]*AssetBundles

// BuildAssetMap scans every catalog entry in table order and records, for each
// recognized identifier, the bundle that serves its idle or cutscene variant.
// A later entry for the same id+kind overwrites an earlier one; table order
// makes the outcome deterministic for a given catalog.
func (cat *Catalog) BuildAssetMap() AssetMap {
	assets := make(AssetMap)

	for i := range cat.entries {
		key := cat.PrimaryKey(i)
		if key == "" {
			continue
		}

		match := assetKeyPattern.FindString(key)
		if match == "" {
			continue
		}
		match = strings.ToLower(match)

		kind := "idle"
		id := match
		if strings.HasPrefix(match, cutscenePrefix) {
			kind = "cutscene"
			id = strings.TrimPrefix(match, cutscenePrefix)
		} else if !strings.HasSuffix(strings.ToLower(key), skeletonSuffix) {
			continue
		}

		desc, ok := cat.Resolve(i)
		if !ok {
			continue
		}

		bundles := assets[id]
		if bundles == nil {
			bundles = &AssetBundles{}
			assets[id] = bundles
		}
		d := desc
		if kind == "cutscene" {
			bundles.Cutscene = &d
		} else {
			bundles.Idle = &d
		}
	}

	return assets
}

// hashBeforeBundle matches a content-hash token ahead of the bundle
// extension, e.g. the "_a1b2c3" in "char000104_a1b2c3.bundle".
var hashBeforeBundle = regexp.MustCompile(`_[a-f0-9]+\.bundle$`)

// DownloadCandidates returns the ordered list of CDN filenames to try for a
// bundle. The CDN serves bundles under either hashed or unhashed filenames
// unpredictably, so callers attempt each candidate until one succeeds:
// the raw bundle name, the name with the hash token inserted before the
// extension, the name with the hash token stripped, and finally the entry's
// own primary key string.
func (cat *Catalog) DownloadCandidates(bundleName string) []string {
	var primary, hash string
	for i, desc := range cat.bundles {
		if desc.Name == bundleName {
			primary = cat.PrimaryKey(i)
			hash = desc.Hash
			break
		}
	}

	candidates := make([]string, 0, 4)
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		candidates = append(candidates, name)
	}

	add(bundleName)
	if hash != "" && strings.HasSuffix(bundleName, ".bundle") && !hashBeforeBundle.MatchString(bundleName) {
		add(strings.TrimSuffix(bundleName, ".bundle") + "_" + hash + ".bundle")
	}
	add(stripHashToken(bundleName))
	add(stripHashToken(primary))
	return candidates
}

// stripHashToken removes a "_<hex>" token preceding the ".bundle" extension.
func stripHashToken(name string) string {
	if name == "" {
		return ""
	}
	return hashBeforeBundle.ReplaceAllString(name, ".bundle")
}
