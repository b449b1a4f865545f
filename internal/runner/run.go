package runner

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/result"
)

type RunOpts struct {
	Cycles      int
	Cycle       CycleOpts // template; Index is set per iteration
	ToleranceMB int
	RunDir      string // when set, cycle metas are persisted as they complete
}

// Run takes a run-level baseline snapshot, executes cycles strictly
// sequentially, and classifies the total VRAM delta. The returned RunMeta
// is valid even when an error is returned: on a hard abort it carries the
// cycles completed so far and an abort reason.
func Run(ctx context.Context, deps Deps, opts RunOpts) (*result.RunMeta, error) {
	logger := deps.Log
	if logger == nil {
		logger = log.New(io.Discard)
	}

	meta := &result.RunMeta{
		StartedAt:       time.Now(),
		Command:         opts.Cycle.WindowName,
		CyclesPlanned:   opts.Cycles,
		WindowsPerCycle: opts.Cycle.Windows,
	}
	meta.Baseline = deps.Probe.Snapshot()
	logger.Info("baseline measured", "vram_mb", fmtMB(meta.Baseline.VRAMUsedMB),
		"cache", meta.Baseline.CacheStats)

	for i := 1; i <= opts.Cycles; i++ {
		copts := opts.Cycle
		copts.Index = i
		logger.Info("cycle starting", "cycle", i, "of", opts.Cycles, "windows", copts.Windows)

		cm, err := RunCycle(ctx, deps, copts)
		if cm != nil {
			cm.DeltaMB = result.Delta(meta.Baseline.VRAMUsedMB, cm.After.VRAMUsedMB)
			meta.Cycles = append(meta.Cycles, *cm)
			if opts.RunDir != "" {
				if werr := result.WriteCycleMeta(opts.RunDir, cm); werr != nil {
					logger.Warn("persisting cycle meta failed", "cycle", i, "err", werr)
				}
			}
		}
		if err != nil {
			meta.AbortReason = err.Error()
			meta.Final = deps.Probe.Snapshot()
			meta.Finalize(opts.ToleranceMB)
			return meta, err
		}
		logger.Info("cycle delta", "cycle", i, "delta_mb", fmtMB(cm.DeltaMB))
		if cm.Aborted {
			logger.Warn("cycle soft-aborted, stopping after its report", "cycle", i)
			break
		}
	}

	if n := len(meta.Cycles); n > 0 && meta.Cycles[n-1].After.VRAMUsedMB != nil {
		meta.Final = meta.Cycles[n-1].After
	} else {
		meta.Final = deps.Probe.Snapshot()
	}
	meta.Finalize(opts.ToleranceMB)
	logger.Info("run finished", "verdict", meta.Verdict,
		"total_delta_mb", fmtMB(meta.TotalDeltaMB))
	return meta, nil
}
