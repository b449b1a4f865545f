package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vramleak",
		Short: "Reproduce and measure compositor VRAM leaks by cycling GUI windows",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "vramleak.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newProbeCmd())
	return root
}
