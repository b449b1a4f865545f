package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/config"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/metrics"
)

// probe takes one metric snapshot and prints it. Useful for verifying
// the GPU query tool and compositor log scraping before a long run.
func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Take a single metric snapshot and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(cfgFile)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConfig, err)
			}
			p := metrics.NewProbe(cfg.GPUTool, cfg.CompositorLog, cfg.CacheMarker)
			snap := p.Snapshot()
			if snap.VRAMUsedMB != nil {
				fmt.Printf("VRAM used: %d MB\n", *snap.VRAMUsedMB)
			} else {
				fmt.Printf("VRAM used: unknown (%s unavailable)\n", cfg.GPUTool)
			}
			if snap.CacheStats != "" {
				fmt.Printf("Cache:     %s\n", snap.CacheStats)
			} else {
				fmt.Println("Cache:     no matching line")
			}
			return nil
		},
	}
}
