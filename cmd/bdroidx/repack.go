package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Ark-Repoleved/BDroid-X/internal/astc"
	"github.com/Ark-Repoleved/BDroid-X/internal/repack"
	"github.com/spf13/cobra"
)

var repackNoASTC bool

var repackCmd = &cobra.Command{
	Use:   "repack <container> <mod-dir> <output>",
	Short: "Apply mod files to a bundle container",
	Long: `Repack loads a bundle container, matches the files under mod-dir against
its objects by name, and writes a rewritten container to output. Skeleton
JSON, PNG textures and raw text assets are each converted appropriately;
spine texture sets larger than the container's slot count are merged down
first. The output is only written when at least one asset was modified.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		useASTC := cfg.UseASTC && !repackNoASTC
		res, err := repack.Repack(repack.Options{
			ContainerPath: args[0],
			ModDir:        args[1],
			OutputPath:    args[2],
			UseASTC:       useASTC,
			Scheduler: &astc.Scheduler{
				CPU:     &astc.CPUCompressor{Quality: cfg.ASTCQuality},
				GPU:     astc.NopGPU{},
				Workers: cfg.Workers,
			},
		})
		if err != nil {
			return err
		}
		if !res.Modified {
			return fmt.Errorf("%s", res.Message)
		}

		slog.Info("Repack finished",
			"output", args[2],
			"applied", res.Applied,
			"failed", res.Failed,
			"astc", useASTC,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	repackCmd.Flags().BoolVar(&repackNoASTC, "no-astc", false, "apply textures as raw RGBA instead of ASTC")
	rootCmd.AddCommand(repackCmd)
}
