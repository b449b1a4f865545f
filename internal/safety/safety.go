// Package safety gates the harness on a configurable VRAM ceiling so a
// leaking compositor cannot run the device out of memory mid-test.
package safety

// Verdict is the outcome of one ceiling check. Computed on demand, never
// persisted.
type Verdict struct {
	Triggered  bool
	ObservedMB int
	Known      bool
}

// Monitor checks measured VRAM against a ceiling. A ceiling of zero or
// below disables checking entirely.
type Monitor struct {
	CeilingMB int
	VRAM      func() (int, bool)
}

func NewMonitor(ceilingMB int, vram func() (int, bool)) *Monitor {
	return &Monitor{CeilingMB: ceilingMB, VRAM: vram}
}

// Check reads current VRAM usage and compares it to the ceiling. Unknown
// readings never trigger: aborting on missing data would turn a degraded
// metrics source into a false failure.
func (m *Monitor) Check() Verdict {
	if m.CeilingMB <= 0 {
		return Verdict{}
	}
	observed, ok := m.VRAM()
	if !ok {
		return Verdict{}
	}
	return Verdict{
		Triggered:  observed >= m.CeilingMB,
		ObservedMB: observed,
		Known:      true,
	}
}
