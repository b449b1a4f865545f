package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/config"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/logging"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/metrics"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/procwatch"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/report"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/result"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/runner"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/safety"
)

var (
	flagCycles    int
	flagWindows   int
	flagCommand   string
	flagLauncher  string
	flagCeilingMB int
	flagResults   string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a leak reproduction run",
		RunE:  runHarness,
	}
	cmd.Flags().IntVar(&flagCycles, "cycles", 0, "override cycle count")
	cmd.Flags().IntVar(&flagWindows, "windows", -1, "override windows per cycle")
	cmd.Flags().StringVar(&flagCommand, "command", "", "override worker window command")
	cmd.Flags().StringVar(&flagLauncher, "launcher", "", "override worker-launch helper path")
	cmd.Flags().IntVar(&flagCeilingMB, "ceiling-mb", -1, "override VRAM safety ceiling (0 disables)")
	cmd.Flags().StringVar(&flagResults, "results", "", "override results directory")
	return cmd
}

func applyOverrides(cfg *config.Config) {
	if flagCycles > 0 {
		cfg.Cycles = flagCycles
	}
	if flagWindows >= 0 {
		cfg.WindowsPerCycle = flagWindows
	}
	if flagCommand != "" {
		cfg.OpenCommand = flagCommand
	}
	if flagLauncher != "" {
		cfg.Launcher = flagLauncher
	}
	if flagCeilingMB >= 0 {
		cfg.VRAMCeilingMB = flagCeilingMB
	}
	if flagResults != "" {
		cfg.ResultsDir = flagResults
	}
}

func runHarness(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	applyOverrides(cfg)

	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	defer logging.Close()
	logger := logging.Get("run")

	if err := cfg.CheckLauncher(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	sessionEnv, err := cfg.SessionEnv()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	runDir, err := result.CreateRunDir(cfg.ResultsDir)
	if err != nil {
		return err
	}

	logger.Info("starting run",
		"run_dir", runDir,
		"cycles", cfg.Cycles,
		"windows_per_cycle", cfg.WindowsPerCycle,
		"command", cfg.OpenCommand,
		"ceiling_mb", cfg.VRAMCeilingMB,
		"convergence_timeout", cfg.ConvTimeout(),
	)

	probe := metrics.NewProbe(cfg.GPUTool, cfg.CompositorLog, cfg.CacheMarker)
	deps := runner.Deps{
		Probe:  probe,
		Procs:  procwatch.NewRegistry(logging.Get("procwatch")),
		Safety: safety.NewMonitor(cfg.VRAMCeilingMB, probe.VRAMUsedMB),
		Log:    logging.Get("cycle"),
	}

	launcher := cfg.Launcher
	var launcherArgs []string
	if launcher == "" {
		launcher = cfg.OpenCommand
	} else {
		launcherArgs = []string{cfg.OpenCommand}
	}

	opts := runner.RunOpts{
		Cycles:      cfg.Cycles,
		ToleranceMB: cfg.ToleranceMB,
		RunDir:      runDir,
		Cycle: runner.CycleOpts{
			Windows:      cfg.WindowsPerCycle,
			Launcher:     launcher,
			LauncherArgs: launcherArgs,
			WindowName:   filepath.Base(cfg.OpenCommand),
			ExtraEnv:     sessionEnv,
			SpawnDelay:   cfg.SpawnDelay(),
			SettleOpen:   cfg.SettleOpen(),
			SettleClose:  cfg.SettleClose(),
			TermGrace:    cfg.TermGrace(),
			ConvTarget:   cfg.Convergence.Target,
			ConvTimeout:  cfg.ConvTimeout(),
			ConvInterval: cfg.ConvInterval(),
		},
	}

	meta, runErr := runner.Run(context.Background(), deps, opts)
	if meta != nil {
		if err := result.WriteRunMeta(runDir, meta); err != nil {
			logger.Error("persisting run meta failed", "err", err)
		}
		fmt.Println("\n--- Results ---")
		if err := report.Generate(runDir, "table", os.Stdout); err != nil {
			logger.Error("rendering report failed", "err", err)
		}
	}
	if runErr != nil {
		logger.Error("run aborted", "reason", runErr)
		return runErr
	}
	return nil
}
