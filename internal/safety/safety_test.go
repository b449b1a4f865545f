package safety_test

import (
	"testing"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/safety"
)

func vram(mb int, ok bool) func() (int, bool) {
	return func() (int, bool) { return mb, ok }
}

func TestCheckDisabledCeiling(t *testing.T) {
	for _, ceiling := range []int{0, -1} {
		m := safety.NewMonitor(ceiling, vram(99999, true))
		if v := m.Check(); v.Triggered {
			t.Errorf("ceiling %d: expected never triggered", ceiling)
		}
	}
}

func TestCheckUnknownVRAM(t *testing.T) {
	m := safety.NewMonitor(100, vram(0, false))
	v := m.Check()
	if v.Triggered {
		t.Error("unknown VRAM must not trigger")
	}
	if v.Known {
		t.Error("verdict should record the reading as unknown")
	}
}

func TestCheckBelowCeiling(t *testing.T) {
	m := safety.NewMonitor(5000, vram(4999, true))
	v := m.Check()
	if v.Triggered {
		t.Error("below ceiling must not trigger")
	}
	if !v.Known || v.ObservedMB != 4999 {
		t.Errorf("expected known observation 4999, got %+v", v)
	}
}

func TestCheckAtCeiling(t *testing.T) {
	m := safety.NewMonitor(5000, vram(5000, true))
	v := m.Check()
	if !v.Triggered {
		t.Error("reaching the ceiling must trigger")
	}
	if v.ObservedMB != 5000 {
		t.Errorf("expected observed 5000, got %d", v.ObservedMB)
	}
}
