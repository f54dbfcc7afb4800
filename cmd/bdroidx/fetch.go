package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ark-Repoleved/BDroid-X/internal/cache"
	"github.com/Ark-Repoleved/BDroid-X/internal/catalog"
	"github.com/Ark-Repoleved/BDroid-X/internal/cdn"
	"github.com/spf13/cobra"
)

var (
	fetchVersion string
	fetchAll     bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <character-id>",
	Short: "Download the bundles serving a character id",
	Long: `Fetch resolves a character id (e.g. char000104) through the CDN catalog
and downloads its idle bundle, plus the cutscene bundle with --all. Bundles
land in the cache directory and are reused on later runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := strings.ToLower(args[0])

		client, version, cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}

		assets := cat.BuildAssetMap()
		bundles, ok := assets[id]
		if !ok {
			return fmt.Errorf("character id %s not found in catalog", id)
		}

		fetched := 0
		if bundles.Idle != nil {
			path, err := client.FetchBundle(ctx, cat, version, bundles.Idle.Name)
			if err != nil {
				return fmt.Errorf("fetching idle bundle: %w", err)
			}
			slog.Info("Fetched idle bundle", "id", id, "path", path)
			fetched++
		}
		if fetchAll && bundles.Cutscene != nil {
			path, err := client.FetchBundle(ctx, cat, version, bundles.Cutscene.Name)
			if err != nil {
				return fmt.Errorf("fetching cutscene bundle: %w", err)
			}
			slog.Info("Fetched cutscene bundle", "id", id, "path", path)
			fetched++
		}
		if fetched == 0 {
			return fmt.Errorf("no bundles recorded for %s", id)
		}
		return nil
	},
}

// openCatalog resolves the current bundle version and fetches its catalog,
// decoding the four tables. Shared by every catalog-consuming command.
func openCatalog(ctx context.Context) (*cdn.Client, string, *catalog.Catalog, error) {
	client := &cdn.Client{
		Cache:    cache.New(cfg.CacheDir),
		Quality:  cfg.Quality,
		Progress: !noProgress,
	}

	version := fetchVersion
	if version == "" {
		var err error
		version, err = client.Version(ctx)
		if err != nil {
			return nil, "", nil, fmt.Errorf("resolving bundle version: %w", err)
		}
		slog.Info("Resolved bundle version", "quality", client.Quality, "version", version)
	}

	content, err := client.FetchCatalog(ctx, version, version, catalog.NewCache())
	if err != nil {
		return nil, "", nil, fmt.Errorf("fetching catalog: %w", err)
	}
	cat, err := catalog.Decode(content)
	if err != nil {
		return nil, "", nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return client, version, cat, nil
}

func init() {
	fetchCmd.Flags().StringVar(&fetchVersion, "version", "", "bundle version (default queries the maintenance service)")
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "also download the cutscene bundle")
	rootCmd.AddCommand(fetchCmd)
}
