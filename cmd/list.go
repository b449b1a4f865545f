package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/config"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/result"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs and their verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(cfgFile)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConfig, err)
			}
			runs, err := result.ListRuns(cfg.ResultsDir)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No stored runs.")
				return nil
			}
			for _, dir := range runs {
				meta, err := result.ReadRunMeta(dir)
				if err != nil {
					fmt.Printf("  %s  (unreadable: %v)\n", filepath.Base(dir), err)
					continue
				}
				total := "unknown"
				if meta.TotalDeltaMB != nil {
					total = fmt.Sprintf("%+d MB", *meta.TotalDeltaMB)
				}
				fmt.Printf("  %s  cycles=%d  total=%s  verdict=%s\n",
					filepath.Base(dir), len(meta.Cycles), total, meta.Verdict)
			}
			return nil
		},
	}
}
