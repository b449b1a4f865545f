// Package runner drives the leak reproduction protocol: open a batch of
// tagged worker windows, measure, close them, wait for the process table
// to converge, measure again. Cycles always run sequentially; concurrent
// cycles would make tag discovery and VRAM deltas ambiguous.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/metrics"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/procwatch"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/result"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/safety"
)

// ErrSafetyAbort is returned when the VRAM ceiling is hit while waiting
// for windows to close. Memory still climbing during cleanup means the
// device is at risk; the whole run stops.
var ErrSafetyAbort = errors.New("VRAM safety ceiling exceeded")

// ErrConvergenceTimeout is returned when live window count does not drop
// to the target before the timeout. Lingering windows would corrupt the
// next cycle's baseline, so the run stops.
var ErrConvergenceTimeout = errors.New("windows did not close before timeout")

// Snapshotter captures GPU state; satisfied by *metrics.Probe.
type Snapshotter interface {
	Snapshot() metrics.Snapshot
}

// Procs is the process-registry surface the controller needs; satisfied
// by *procwatch.Registry.
type Procs interface {
	Spawn(command string, args []string, tag string, extraEnv []string) error
	FindByTag(tag string) []int32
	Terminate(ctx context.Context, pids []int32, grace time.Duration) error
	CountByBasename(name string) (int, error)
}

type Deps struct {
	Probe  Snapshotter
	Procs  Procs
	Safety *safety.Monitor
	Log    *log.Logger
}

// CycleOpts parameterizes one open/measure/close/measure iteration.
type CycleOpts struct {
	Index        int
	Windows      int
	Launcher     string   // worker-launch helper executed per window
	LauncherArgs []string // typically the window command itself
	WindowName   string   // exact executable name counted during convergence
	ExtraEnv     []string // session env (DISPLAY etc.) inherited by workers

	SpawnDelay  time.Duration
	SettleOpen  time.Duration
	SettleClose time.Duration
	TermGrace   time.Duration

	ConvTarget   int
	ConvTimeout  time.Duration // 0 disables convergence waiting
	ConvInterval time.Duration
}

// RunCycle executes one full cycle. A safety trigger during the opening
// phase soft-aborts: remaining spawns are skipped, the cycle still closes
// its windows and reports. A safety trigger or timeout during the
// convergence wait returns a hard-abort error alongside the partial meta.
func RunCycle(ctx context.Context, deps Deps, opts CycleOpts) (*result.CycleMeta, error) {
	start := time.Now()
	tag := procwatch.NewTag()
	meta := &result.CycleMeta{
		Cycle:            opts.Index,
		Tag:              tag,
		WindowsRequested: opts.Windows,
	}
	logger := deps.Log
	if logger == nil {
		logger = log.New(io.Discard)
	}

	// Opening.
	for i := 0; i < opts.Windows; i++ {
		if err := deps.Procs.Spawn(opts.Launcher, opts.LauncherArgs, tag, opts.ExtraEnv); err != nil {
			return meta, fmt.Errorf("cycle %d: %w", opts.Index, err)
		}
		meta.WindowsOpened++
		if err := sleep(ctx, opts.SpawnDelay); err != nil {
			return meta, err
		}
		if v := deps.Safety.Check(); v.Triggered {
			logger.Warn("VRAM ceiling hit while opening windows, aborting cycle",
				"cycle", opts.Index, "opened", meta.WindowsOpened, "vram_mb", v.ObservedMB)
			meta.Aborted = true
			break
		}
	}

	// PeakMeasure. Skipped entirely on a soft abort; closing takes
	// priority over a peak reading once the ceiling has been hit.
	if !meta.Aborted {
		if err := sleep(ctx, opts.SettleOpen); err != nil {
			return meta, err
		}
		meta.Peak = deps.Probe.Snapshot()
		logger.Info("peak measured", "cycle", opts.Index, "vram_mb", fmtMB(meta.Peak.VRAMUsedMB))
	}

	// Closing.
	pids := deps.Procs.FindByTag(tag)
	logger.Info("closing windows", "cycle", opts.Index, "tag", tag, "pids", len(pids))
	if err := deps.Procs.Terminate(ctx, pids, opts.TermGrace); err != nil {
		return meta, err
	}
	if err := sleep(ctx, opts.SettleClose); err != nil {
		return meta, err
	}

	// ConvergenceWait.
	if opts.ConvTimeout > 0 {
		if err := waitConverged(ctx, deps, opts, logger); err != nil {
			meta.DurationS = int(time.Since(start).Seconds())
			return meta, err
		}
	}

	// AfterMeasure.
	meta.After = deps.Probe.Snapshot()
	meta.DurationS = int(time.Since(start).Seconds())
	logger.Info("cycle finished", "cycle", opts.Index,
		"after_vram_mb", fmtMB(meta.After.VRAMUsedMB), "aborted", meta.Aborted)
	return meta, nil
}

// waitConverged polls the live window count until it drops to the target
// or the timeout elapses. Each poll also consults the safety monitor; a
// trigger here is fatal to the run, not just the cycle.
func waitConverged(ctx context.Context, deps Deps, opts CycleOpts, logger *log.Logger) error {
	deadline := time.Now().Add(opts.ConvTimeout)
	for {
		count, err := deps.Procs.CountByBasename(opts.WindowName)
		if err != nil {
			logger.Warn("window count unavailable", "err", err)
		} else if count <= opts.ConvTarget {
			logger.Info("windows converged", "cycle", opts.Index, "remaining", count)
			return nil
		} else {
			logger.Debug("waiting for windows to close", "cycle", opts.Index,
				"remaining", count, "target", opts.ConvTarget)
		}
		if v := deps.Safety.Check(); v.Triggered {
			return fmt.Errorf("%w: %d MB while waiting for windows to close", ErrSafetyAbort, v.ObservedMB)
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: still above target %d after %s",
				ErrConvergenceTimeout, opts.ConvTarget, opts.ConvTimeout)
		}
		if err := sleep(ctx, opts.ConvInterval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fmtMB(mb *int) string {
	if mb == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *mb)
}
