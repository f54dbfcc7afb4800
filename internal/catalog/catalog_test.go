package catalog

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"testing"
	"unicode/utf16"
)

// catalogBuilder assembles the four binary catalog sections for tests.
type catalogBuilder struct {
	buckets []testBucket
	keyData []byte
	extra   []byte
	entries [][7]int32
}

type testBucket struct {
	keyOffset int32
	entries   []int32
}

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// addAsciiKey appends a tagged ASCII string to the key section and returns
// its offset.
func (b *catalogBuilder) addAsciiKey(s string) int32 {
	off := int32(len(b.keyData))
	b.keyData = append(b.keyData, tagAsciiString)
	b.keyData = append(b.keyData, le32(int32(len(s)))...)
	b.keyData = append(b.keyData, s...)
	return off
}

// addJSONExtra appends a tagged JSON object to the extra-data section and
// returns its offset. The two type-name runs are left empty.
func (b *catalogBuilder) addJSONExtra(jsonText string) int32 {
	off := int32(len(b.extra))
	units := utf16.Encode([]rune(jsonText))
	payload := make([]byte, 0, len(units)*2)
	for _, u := range units {
		payload = append(payload, byte(u), byte(u>>8))
	}
	b.extra = append(b.extra, tagJSONObject, 0, 0)
	b.extra = append(b.extra, le32(int32(len(payload)))...)
	b.extra = append(b.extra, payload...)
	return off
}

func (b *catalogBuilder) addBucket(keyOffset int32, entries ...int32) {
	b.buckets = append(b.buckets, testBucket{keyOffset: keyOffset, entries: entries})
}

// addEntry appends an entry row and returns its ordinal index.
func (b *catalogBuilder) addEntry(provider, dependencyKey, dataIndex, primaryKey int32) int {
	idx := len(b.entries)
	b.entries = append(b.entries, [7]int32{
		int32(idx), provider, dependencyKey, 0, dataIndex, primaryKey, 0,
	})
	return idx
}

func (b *catalogBuilder) content() *Content {
	var bucketData []byte
	bucketData = append(bucketData, le32(int32(len(b.buckets)))...)
	for _, bk := range b.buckets {
		bucketData = append(bucketData, le32(bk.keyOffset)...)
		bucketData = append(bucketData, le32(int32(len(bk.entries)))...)
		for _, e := range bk.entries {
			bucketData = append(bucketData, le32(e)...)
		}
	}

	var entryData []byte
	entryData = append(entryData, le32(int32(len(b.entries)))...)
	for _, e := range b.entries {
		for _, v := range e {
			entryData = append(entryData, le32(v)...)
		}
	}

	enc := base64.StdEncoding.EncodeToString
	return &Content{
		BucketData: enc(bucketData),
		KeyData:    enc(b.keyData),
		ExtraData:  enc(b.extra),
		EntryData:  enc(entryData),
	}
}

func bundleJSON(name string, size int64, hash string) string {
	return fmt.Sprintf(`{"m_BundleName":%q,"m_BundleSize":%d,"m_Hash":%q}`, name, size, hash)
}

func TestDecodeDirectBundle(t *testing.T) {
	var b catalogBuilder
	key := b.addAsciiKey("assets/asset/character/char000104/char000104.skel.bytes")
	extra := b.addJSONExtra(bundleJSON("abc123.bundle", 4096, "a1b2c3"))
	b.addBucket(key, 0)
	b.addEntry(bundledAssetProvider, 0, extra, 0)

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	desc, ok := cat.Resolve(0)
	if !ok {
		t.Fatal("Resolve(0) returned no descriptor")
	}
	if desc.Name != "abc123.bundle" || desc.Size != 4096 || desc.Hash != "a1b2c3" {
		t.Errorf("Resolve(0) = %+v", desc)
	}

	assets := cat.BuildAssetMap()
	got := assets["char000104"]
	if got == nil || got.Idle == nil {
		t.Fatalf("asset map missing idle slot for char000104: %+v", got)
	}
	if got.Idle.Name != "abc123.bundle" {
		t.Errorf("idle bundle = %q, want abc123.bundle", got.Idle.Name)
	}
}

func TestResolveViaDependency(t *testing.T) {
	var b catalogBuilder
	skelKey := b.addAsciiKey("assets/asset/character/char000205/char000205.skel.bytes")
	depKey := b.addAsciiKey("char000205_dependencies")
	extra := b.addJSONExtra(bundleJSON("dep.bundle", 128, "ff00ee"))

	// Entry 0 is indirect: its dependency bucket lists entry 2 (no
	// descriptor) ahead of entry 1 (direct descriptor).
	b.addBucket(skelKey, 0)          // bucket 0
	b.addBucket(depKey, 2, 1)        // bucket 1
	b.addEntry(0, 1, -1, 0)          // entry 0: the skeleton asset
	b.addEntry(bundledAssetProvider, 1, extra, 1) // entry 1: the bundle
	b.addEntry(0, 0, -1, 1)          // entry 2: dependency without descriptor

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	first, ok := cat.Resolve(0)
	if !ok || first.Name != "dep.bundle" {
		t.Fatalf("Resolve(0) = %+v, %v; want dep.bundle", first, ok)
	}

	// Resolution is a pure function of the decoded tables.
	second, ok := cat.Resolve(0)
	if !ok || second != first {
		t.Errorf("second Resolve(0) = %+v, want %+v", second, first)
	}

	assets := cat.BuildAssetMap()
	if got := assets["char000205"]; got == nil || got.Idle == nil || got.Idle.Name != "dep.bundle" {
		t.Errorf("asset map idle = %+v, want dep.bundle", got)
	}
}

func TestResolveMisses(t *testing.T) {
	var b catalogBuilder
	key := b.addAsciiKey("anything")
	b.addBucket(key, 0)
	b.addEntry(0, 99, -1, 0) // dependency key outside the bucket table

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if _, ok := cat.Resolve(0); ok {
		t.Error("Resolve(0) found a descriptor through an invalid bucket")
	}
	if _, ok := cat.Resolve(-1); ok {
		t.Error("Resolve(-1) should miss")
	}
	if _, ok := cat.Resolve(100); ok {
		t.Error("Resolve(100) should miss")
	}
}

func TestIdleRequiresSkeletonSuffix(t *testing.T) {
	var b catalogBuilder
	key := b.addAsciiKey("assets/asset/character/char000104/char000104.atlas.txt")
	extra := b.addJSONExtra(bundleJSON("atlas.bundle", 64, "aa"))
	b.addBucket(key, 0)
	b.addEntry(bundledAssetProvider, 0, extra, 0)

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	assets := cat.BuildAssetMap()
	if got := assets["char000104"]; got != nil && got.Idle != nil {
		t.Errorf("idle bundle recorded for non-skeleton key: %+v", got.Idle)
	}
}

func TestCutscenePrefixSelectsCutsceneSlot(t *testing.T) {
	var b catalogBuilder
	key := b.addAsciiKey("assets/cutscene/cutscene_char000104.bundle")
	extra := b.addJSONExtra(bundleJSON("cut.bundle", 64, "bb"))
	b.addBucket(key, 0)
	b.addEntry(bundledAssetProvider, 0, extra, 0)

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	assets := cat.BuildAssetMap()
	got := assets["char000104"]
	if got == nil || got.Cutscene == nil {
		t.Fatalf("cutscene slot missing: %+v", got)
	}
	if got.Cutscene.Name != "cut.bundle" {
		t.Errorf("cutscene bundle = %q", got.Cutscene.Name)
	}
	if got.Idle != nil {
		t.Errorf("cutscene key must not fill the idle slot: %+v", got.Idle)
	}
}

func TestUnknownKeyTagIsNotFatal(t *testing.T) {
	var b catalogBuilder
	b.keyData = append(b.keyData, 0x05) // Hash128, carries nothing we use
	good := b.addAsciiKey("assets/asset/character/char000300/char000300.skel.bytes")
	extra := b.addJSONExtra(bundleJSON("ok.bundle", 1, "cc"))
	b.addBucket(0, 0)    // the unsupported key
	b.addBucket(good, 1) // the usable key
	b.addEntry(0, 0, -1, 0)
	b.addEntry(bundledAssetProvider, 1, extra, 1)

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cat.PrimaryKey(0) != "" {
		t.Errorf("unsupported key decoded to %q, want empty", cat.PrimaryKey(0))
	}
	if assets := cat.BuildAssetMap(); assets["char000300"] == nil {
		t.Error("usable entries must survive an unsupported sibling key")
	}
}

func TestDecodeRejectsOverstatedCounts(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString

	// Entry table claiming millions of rows backed by four bytes.
	b := &catalogBuilder{}
	b.addBucket(b.addAsciiKey("assets/char000104.skel.bytes"))
	content := b.content()
	content.EntryData = enc(le32(1 << 24))
	if _, err := Decode(content); err == nil {
		t.Error("Decode accepted an entry count larger than the table")
	}

	// Bucket table with the same lie.
	content = b.content()
	content.BucketData = enc(le32(1 << 28))
	if _, err := Decode(content); err == nil {
		t.Error("Decode accepted a bucket count larger than the table")
	}
}

func TestDecodeRejectsMalformedBase64(t *testing.T) {
	_, err := Decode(&Content{BucketData: "!!not base64!!"})
	if err == nil {
		t.Fatal("Decode accepted malformed base64")
	}
}

func TestResolveDescriptorHasName(t *testing.T) {
	var b catalogBuilder
	key := b.addAsciiKey("whatever")
	extra := b.addJSONExtra(`{"m_BundleSize":12}`) // no name field
	b.addBucket(key, 0)
	b.addEntry(bundledAssetProvider, 0, extra, 0)

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if desc, ok := cat.Resolve(0); ok && desc.Name == "" {
		t.Errorf("Resolve returned a descriptor with an empty name: %+v", desc)
	}
}

func TestDownloadCandidates(t *testing.T) {
	var b catalogBuilder
	key := b.addAsciiKey("char000104_a1b2c3.bundle")
	extra := b.addJSONExtra(bundleJSON("char000104.bundle", 10, "a1b2c3"))
	b.addBucket(key, 0)
	b.addEntry(bundledAssetProvider, 0, extra, 0)

	cat, err := Decode(b.content())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got := cat.DownloadCandidates("char000104.bundle")
	want := []string{
		"char000104.bundle",
		"char000104_a1b2c3.bundle",
	}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
