package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/Ark-Repoleved/BDroid-X/internal/catalog"
)

// Schema for the exported asset index. One row per logical id and slot kind,
// replaced wholesale on re-export for the same catalog version.
const assetSchema = `
CREATE TABLE IF NOT EXISTS catalog_versions (
	version     TEXT PRIMARY KEY,
	exported_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	version     TEXT NOT NULL REFERENCES catalog_versions(version),
	file_id     TEXT NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('idle', 'cutscene')),
	bundle_name TEXT NOT NULL,
	bundle_size INTEGER NOT NULL,
	bundle_hash TEXT NOT NULL,
	UNIQUE (version, file_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_assets_bundle_name ON assets(bundle_name);
`

// CreateSchema creates the asset index tables if they don't exist
func (d *Database) CreateSchema(ctx context.Context) error {
	if _, err := d.Exec(ctx, assetSchema); err != nil {
		return fmt.Errorf("creating asset schema: %w", err)
	}
	return nil
}

// ExportAssetMap writes a decoded asset map into the database under the given
// catalog version, replacing any previous export for that version. Returns
// the number of rows written.
func (d *Database) ExportAssetMap(ctx context.Context, version string, assets catalog.AssetMap) (int, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO catalog_versions (version) VALUES (?)`, version); err != nil {
		return 0, fmt.Errorf("recording catalog version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM assets WHERE version = ?`, version); err != nil {
		return 0, fmt.Errorf("clearing previous export: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets (version, file_id, kind, bundle_name, bundle_size, bundle_hash)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	// Sorted ids keep the export deterministic for a given catalog.
	ids := make([]string, 0, len(assets))
	for id := range assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := 0
	for _, id := range ids {
		bundles := assets[id]
		for kind, desc := range map[string]*catalog.BundleDescriptor{
			"idle":     bundles.Idle,
			"cutscene": bundles.Cutscene,
		} {
			if desc == nil {
				continue
			}
			if _, err := stmt.ExecContext(ctx, version, id, kind, desc.Name, desc.Size, desc.Hash); err != nil {
				return 0, fmt.Errorf("inserting asset %s/%s: %w", id, kind, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing export: %w", err)
	}
	return rows, nil
}

// LookupBundles returns the recorded bundles for one logical id across all
// exported versions, newest version rows last.
func (d *Database) LookupBundles(ctx context.Context, fileID string) ([]AssetRow, error) {
	rows, err := d.Query(ctx, `
		SELECT version, file_id, kind, bundle_name, bundle_size, bundle_hash
		FROM assets WHERE file_id = ? ORDER BY version, kind`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssetRow
	for rows.Next() {
		var r AssetRow
		if err := rows.Scan(&r.Version, &r.FileID, &r.Kind, &r.BundleName, &r.BundleSize, &r.BundleHash); err != nil {
			return nil, fmt.Errorf("scanning asset row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AssetRow is one exported asset index record.
type AssetRow struct {
	Version    string
	FileID     string
	Kind       string
	BundleName string
	BundleSize int64
	BundleHash string
}
