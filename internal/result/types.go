package result

import (
	"time"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/metrics"
)

// Verdict classifies a finished run. Unknown means VRAM could not be
// measured on at least one side of the comparison; it is reported
// distinctly and never collapses to Pass.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictUnknown Verdict = "unknown"
)

// CycleMeta records one open/measure/close/measure iteration.
type CycleMeta struct {
	Cycle            int              `json:"cycle"`
	Tag              string           `json:"tag"`
	WindowsRequested int              `json:"windows_requested"`
	WindowsOpened    int              `json:"windows_opened"`
	Aborted          bool             `json:"aborted"`
	Peak             metrics.Snapshot `json:"peak"`
	After            metrics.Snapshot `json:"after"`
	DeltaMB          *int             `json:"delta_mb"`
	DurationS        int              `json:"duration_s"`
}

// RunMeta is the full report of one harness run, built incrementally and
// finalized at run end.
type RunMeta struct {
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Command         string           `json:"command"`
	CyclesPlanned   int              `json:"cycles_planned"`
	WindowsPerCycle int              `json:"windows_per_cycle"`
	Baseline        metrics.Snapshot `json:"baseline"`
	Final           metrics.Snapshot `json:"final"`
	TotalDeltaMB    *int             `json:"total_delta_mb"`
	Verdict         Verdict          `json:"verdict"`
	AbortReason     string           `json:"abort_reason,omitempty"`
	Cycles          []CycleMeta      `json:"cycles"`
}

// Delta computes after minus baseline in MB. Nil when either side is
// unknown; a partial reading never substitutes zero.
func Delta(baselineMB, afterMB *int) *int {
	if baselineMB == nil || afterMB == nil {
		return nil
	}
	d := *afterMB - *baselineMB
	return &d
}

// Classify is a pure function of the two readings: Pass when the total
// delta stays within the noise tolerance, Fail when it exceeds it,
// Unknown when either reading is missing.
func Classify(baselineMB, finalMB *int, toleranceMB int) (Verdict, *int) {
	delta := Delta(baselineMB, finalMB)
	if delta == nil {
		return VerdictUnknown, nil
	}
	if *delta <= toleranceMB {
		return VerdictPass, delta
	}
	return VerdictFail, delta
}

// Finalize stamps the end time and computes the run verdict from the
// baseline and final snapshots.
func (m *RunMeta) Finalize(toleranceMB int) {
	m.FinishedAt = time.Now()
	m.Verdict, m.TotalDeltaMB = Classify(m.Baseline.VRAMUsedMB, m.Final.VRAMUsedMB, toleranceMB)
}
