// Package catalog decodes the game's addressable-asset catalog: four
// base64-encoded binary sections inside a JSON envelope that together map
// logical asset identifiers to downloadable bundle files.
package catalog

import (
	"encoding/base64"
	"fmt"
	"log/slog"
)

// Content is the catalog JSON envelope as served by the CDN.
type Content struct {
	BucketData string `json:"m_BucketDataString"`
	KeyData    string `json:"m_KeyDataString"`
	ExtraData  string `json:"m_ExtraDataString"`
	EntryData  string `json:"m_EntryDataString"`
}

// BundleDescriptor identifies one downloadable bundle file.
type BundleDescriptor struct {
	Name string
	Size int64
	Hash string
}

// entry is one row of the catalog's main table. The wire format also carries
// a dependency hash and resource type which nothing here consumes.
type entry struct {
	internalID    int32
	provider      int32
	dependencyKey int32
	dataIndex     int32
	primaryKey    int32
}

// bundledAssetProvider marks entries that are directly downloadable bundles.
const bundledAssetProvider = 1

// Catalog is the decoded form of Content. It is immutable after Decode.
type Catalog struct {
	buckets [][]int32 // entry indices per bucket, in bucket order
	keys    []any     // string, map[string]any or nil, one per bucket
	entries []entry
	bundles map[int]BundleDescriptor // entry ordinal -> direct descriptor
}

// Decode parses the four catalog sections. Malformed base64 or a truncated
// bucket/entry table is fatal; individual keys or extra-data blobs that fail
// to decode are logged and treated as absent.
func Decode(content *Content) (*Catalog, error) {
	if content == nil {
		return nil, fmt.Errorf("catalog content is empty")
	}

	bucketData, err := base64.StdEncoding.DecodeString(content.BucketData)
	if err != nil {
		return nil, fmt.Errorf("decoding bucket data: %w", err)
	}
	keyData, err := base64.StdEncoding.DecodeString(content.KeyData)
	if err != nil {
		return nil, fmt.Errorf("decoding key data: %w", err)
	}
	extraData, err := base64.StdEncoding.DecodeString(content.ExtraData)
	if err != nil {
		return nil, fmt.Errorf("decoding extra data: %w", err)
	}
	entryData, err := base64.StdEncoding.DecodeString(content.EntryData)
	if err != nil {
		return nil, fmt.Errorf("decoding entry data: %w", err)
	}

	cat := &Catalog{bundles: make(map[int]BundleDescriptor)}

	keyOffsets, err := cat.parseBuckets(bucketData)
	if err != nil {
		return nil, fmt.Errorf("parsing bucket table: %w", err)
	}

	cat.keys = make([]any, len(keyOffsets))
	for i, off := range keyOffsets {
		key, err := readObject(keyData, int(off))
		if err != nil {
			slog.Debug("Skipping undecodable catalog key", "bucket", i, "offset", off, "error", err)
			continue
		}
		cat.keys[i] = key
	}

	if err := cat.parseEntries(entryData, extraData); err != nil {
		return nil, fmt.Errorf("parsing entry table: %w", err)
	}

	slog.Debug("Catalog decoded",
		"buckets", len(cat.buckets),
		"entries", len(cat.entries),
		"bundles", len(cat.bundles))

	return cat, nil
}

func (cat *Catalog) parseBuckets(data []byte) ([]int32, error) {
	c := &cursor{data: data}

	count, err := c.i32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative bucket count %d", count)
	}
	// Each bucket needs at least an offset and an entry count.
	if int64(count)*8 > int64(c.remaining()) {
		return nil, fmt.Errorf("bucket count %d exceeds %d remaining bytes", count, c.remaining())
	}

	cat.buckets = make([][]int32, count)
	keyOffsets := make([]int32, count)

	for i := int32(0); i < count; i++ {
		off, err := c.i32()
		if err != nil {
			return nil, err
		}
		keyOffsets[i] = off

		entryCount, err := c.i32()
		if err != nil {
			return nil, err
		}
		if entryCount < 0 {
			return nil, fmt.Errorf("bucket %d has negative entry count %d", i, entryCount)
		}
		if int64(entryCount)*4 > int64(c.remaining()) {
			return nil, fmt.Errorf("bucket %d entry count %d exceeds %d remaining bytes", i, entryCount, c.remaining())
		}

		indices := make([]int32, entryCount)
		for j := range indices {
			if indices[j], err = c.i32(); err != nil {
				return nil, err
			}
		}
		cat.buckets[i] = indices
	}

	return keyOffsets, nil
}

func (cat *Catalog) parseEntries(entryData, extraData []byte) error {
	c := &cursor{data: entryData}

	count, err := c.i32()
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("negative entry count %d", count)
	}
	// Seven i32 columns per row.
	if int64(count)*28 > int64(c.remaining()) {
		return fmt.Errorf("entry count %d exceeds %d remaining bytes", count, c.remaining())
	}

	cat.entries = make([]entry, 0, count)
	for i := int32(0); i < count; i++ {
		var e entry
		if e.internalID, err = c.i32(); err != nil {
			return err
		}
		if e.provider, err = c.i32(); err != nil {
			return err
		}
		if e.dependencyKey, err = c.i32(); err != nil {
			return err
		}
		if err = c.skip(4); err != nil { // dependency hash
			return err
		}
		if e.dataIndex, err = c.i32(); err != nil {
			return err
		}
		if e.primaryKey, err = c.i32(); err != nil {
			return err
		}
		if err = c.skip(4); err != nil { // resource type
			return err
		}
		cat.entries = append(cat.entries, e)

		if e.provider == bundledAssetProvider && e.dataIndex >= 0 {
			desc, ok := decodeBundleDescriptor(extraData, int(e.dataIndex))
			if !ok {
				slog.Debug("Entry has no decodable bundle descriptor", "entry", i, "data_index", e.dataIndex)
				continue
			}
			cat.bundles[int(i)] = desc
		}
	}

	return nil
}

func decodeBundleDescriptor(extraData []byte, offset int) (BundleDescriptor, bool) {
	obj, err := readObject(extraData, offset)
	if err != nil {
		slog.Debug("Skipping undecodable extra-data blob", "offset", offset, "error", err)
		return BundleDescriptor{}, false
	}

	fields, ok := obj.(map[string]any)
	if !ok {
		return BundleDescriptor{}, false
	}

	var desc BundleDescriptor
	if name, ok := fields["m_BundleName"].(string); ok {
		desc.Name = name
	}
	if size, ok := fields["m_BundleSize"].(float64); ok {
		desc.Size = int64(size)
	}
	if hash, ok := fields["m_Hash"].(string); ok {
		desc.Hash = hash
	}
	return desc, desc.Name != ""
}

// Resolve returns the bundle backing the given entry. A provider-1 entry
// resolves to its own descriptor; anything else follows its dependency key
// into the bucket table and returns the first dependency entry that carries a
// direct descriptor. Resolution is a pure function of the decoded tables.
func (cat *Catalog) Resolve(entryIndex int) (BundleDescriptor, bool) {
	if desc, ok := cat.bundles[entryIndex]; ok {
		return desc, true
	}
	if entryIndex < 0 || entryIndex >= len(cat.entries) {
		return BundleDescriptor{}, false
	}

	depKey := int(cat.entries[entryIndex].dependencyKey)
	if depKey < 0 || depKey >= len(cat.buckets) {
		return BundleDescriptor{}, false
	}

	// Order matters: the first dependency with a direct descriptor wins.
	for _, dep := range cat.buckets[depKey] {
		if desc, ok := cat.bundles[int(dep)]; ok {
			return desc, true
		}
	}
	return BundleDescriptor{}, false
}

// EntryCount returns the number of rows in the entry table.
func (cat *Catalog) EntryCount() int {
	return len(cat.entries)
}

// PrimaryKey returns the primary key string of an entry, or "" when the key
// is missing or not a string.
func (cat *Catalog) PrimaryKey(entryIndex int) string {
	if entryIndex < 0 || entryIndex >= len(cat.entries) {
		return ""
	}
	ki := int(cat.entries[entryIndex].primaryKey)
	if ki < 0 || ki >= len(cat.keys) {
		return ""
	}
	s, _ := cat.keys[ki].(string)
	return s
}

// Bundles returns every directly downloadable bundle descriptor, keyed by
// entry ordinal.
func (cat *Catalog) Bundles() map[int]BundleDescriptor {
	out := make(map[int]BundleDescriptor, len(cat.bundles))
	for i, d := range cat.bundles {
		out[i] = d
	}
	return out
}
