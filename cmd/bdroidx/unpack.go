package main

import (
	"log/slog"

	"github.com/Ark-Repoleved/BDroid-X/internal/repack"
	"github.com/spf13/cobra"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <container> <output-dir>",
	Short: "Export a container's assets to plain files",
	Long: `Unpack writes one file per exportable container object: textures as PNG
(ASTC payloads are decompressed first), text assets and skeleton binaries
verbatim. Logical names are sanitized for the filesystem.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := repack.Unpack(args[0], args[1], nil)
		if err != nil {
			return err
		}
		slog.Info("Unpack finished",
			"output", args[1],
			"exported", res.Applied,
			"failed", res.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unpackCmd)
}
