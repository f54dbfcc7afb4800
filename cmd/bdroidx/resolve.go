package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <character-id>",
	Short: "Show which bundles serve a character id",
	Long: `Resolve looks a character id up in the current catalog's asset map and
prints the bundle name, size and hash for each recorded slot without
downloading anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := strings.ToLower(args[0])

		_, version, cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}

		assets := cat.BuildAssetMap()
		bundles, ok := assets[id]
		if !ok {
			return fmt.Errorf("character id %s not found in catalog", id)
		}

		fmt.Printf("id: %s (version %s)\n", id, version)
		if bundles.Idle != nil {
			fmt.Printf("  idle:     %s  %d bytes  hash %s\n",
				bundles.Idle.Name, bundles.Idle.Size, bundles.Idle.Hash)
		}
		if bundles.Cutscene != nil {
			fmt.Printf("  cutscene: %s  %d bytes  hash %s\n",
				bundles.Cutscene.Name, bundles.Cutscene.Size, bundles.Cutscene.Hash)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&fetchVersion, "version", "", "bundle version (default queries the maintenance service)")
	rootCmd.AddCommand(resolveCmd)
}
