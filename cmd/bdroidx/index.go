package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ark-Repoleved/BDroid-X/internal/database"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Export the catalog's asset map into a SQLite database",
	Long: `Index decodes the current catalog, builds the asset map and writes it
into a SQLite database for offline querying: one row per character id and
slot kind, carrying the serving bundle's name, size and hash.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		start := time.Now()

		_, version, cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		assets := cat.BuildAssetMap()

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.CreateSchema(ctx); err != nil {
			return err
		}
		rows, err := db.ExportAssetMap(ctx, version, assets)
		if err != nil {
			return err
		}

		slog.Info("Asset map exported",
			"database", cfg.Database,
			"version", version,
			"ids", len(assets),
			"rows", rows,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&fetchVersion, "version", "", "bundle version (default queries the maintenance service)")
	rootCmd.AddCommand(indexCmd)
}
