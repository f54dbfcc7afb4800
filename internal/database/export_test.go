package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Ark-Repoleved/BDroid-X/internal/catalog"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(DefaultDatabaseOptions(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.CreateSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return db
}

func sampleAssets() catalog.AssetMap {
	return catalog.AssetMap{
		"char000104": &catalog.AssetBundles{
			Idle:     &catalog.BundleDescriptor{Name: "abc123.bundle", Size: 1024, Hash: "abc123"},
			Cutscene: &catalog.BundleDescriptor{Name: "cut456.bundle", Size: 2048, Hash: "cut456"},
		},
		"npc0001": &catalog.AssetBundles{
			Idle: &catalog.BundleDescriptor{Name: "npc.bundle", Size: 10, Hash: "ff"},
		},
	}
}

func TestExportAssetMap(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	rows, err := db.ExportAssetMap(ctx, "1.0.0", sampleAssets())
	if err != nil {
		t.Fatal(err)
	}
	if rows != 3 {
		t.Fatalf("exported %d rows, want 3", rows)
	}

	got, err := db.LookupBundles(ctx, "char000104")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("lookup returned %d rows, want 2", len(got))
	}
	byKind := map[string]AssetRow{}
	for _, r := range got {
		byKind[r.Kind] = r
	}
	if byKind["idle"].BundleName != "abc123.bundle" || byKind["idle"].BundleSize != 1024 {
		t.Errorf("idle row = %+v", byKind["idle"])
	}
	if byKind["cutscene"].BundleName != "cut456.bundle" {
		t.Errorf("cutscene row = %+v", byKind["cutscene"])
	}
}

func TestExportReplacesPreviousVersionRows(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	if _, err := db.ExportAssetMap(ctx, "1.0.0", sampleAssets()); err != nil {
		t.Fatal(err)
	}

	// Second export of the same version with fewer assets must not leave
	// rows from the first behind.
	smaller := catalog.AssetMap{
		"char000104": &catalog.AssetBundles{
			Idle: &catalog.BundleDescriptor{Name: "new.bundle", Size: 1, Hash: "00"},
		},
	}
	rows, err := db.ExportAssetMap(ctx, "1.0.0", smaller)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Fatalf("re-export wrote %d rows, want 1", rows)
	}

	got, err := db.LookupBundles(ctx, "npc0001")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("stale rows survived re-export: %+v", got)
	}

	idle, err := db.LookupBundles(ctx, "char000104")
	if err != nil {
		t.Fatal(err)
	}
	if len(idle) != 1 || idle[0].BundleName != "new.bundle" {
		t.Fatalf("rows = %+v, want single new.bundle", idle)
	}
}

func TestLookupUnknownID(t *testing.T) {
	db := openTestDatabase(t)

	got, err := db.LookupBundles(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("rows = %+v, want none", got)
	}
}
