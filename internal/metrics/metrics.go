// Package metrics captures point-in-time GPU memory readings and
// compositor cache diagnostics. Both sources are best-effort: a missing
// query tool or log file degrades the snapshot, never the run.
package metrics

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// Snapshot is a single timestamped capture of GPU state. A nil VRAMUsedMB
// means the value could not be measured; callers must skip comparisons
// rather than substitute zero.
type Snapshot struct {
	Time       time.Time `json:"time"`
	VRAMUsedMB *int      `json:"vram_used_mb"`
	CacheStats string    `json:"cache_stats,omitempty"`
}

// Probe reads VRAM usage from an external GPU query tool and cache
// statistics from the compositor's log file.
type Probe struct {
	GPUTool       string
	GPUToolArgs   []string
	CompositorLog string
	CacheMarker   string
}

// DefaultGPUToolArgs queries used memory of the first enumerated device,
// one integer megabyte value per line.
var DefaultGPUToolArgs = []string{
	"--query-gpu=memory.used",
	"--format=csv,noheader,nounits",
	"--id=0",
}

func NewProbe(gpuTool, compositorLog, cacheMarker string) *Probe {
	return &Probe{
		GPUTool:       gpuTool,
		GPUToolArgs:   DefaultGPUToolArgs,
		CompositorLog: compositorLog,
		CacheMarker:   cacheMarker,
	}
}

// VRAMUsedMB returns current GPU memory usage in MB. The second return is
// false when the tool is absent or its output is unusable.
func (p *Probe) VRAMUsedMB() (int, bool) {
	if p.GPUTool == "" {
		return 0, false
	}
	path, err := exec.LookPath(p.GPUTool)
	if err != nil {
		return 0, false
	}
	out, err := exec.Command(path, p.GPUToolArgs...).Output()
	if err != nil {
		return 0, false
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	mb, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || mb < 0 {
		return 0, false
	}
	return mb, true
}

// CacheStats returns the most recent compositor log line containing the
// cache marker, with terminal escape sequences stripped. False when the
// log is missing or no line matches.
func (p *Probe) CacheStats() (string, bool) {
	if p.CompositorLog == "" || p.CacheMarker == "" {
		return "", false
	}
	data, err := os.ReadFile(p.CompositorLog)
	if err != nil {
		return "", false
	}
	var last string
	found := false
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(ansi.Strip(raw))
		if line == "" {
			continue
		}
		if strings.Contains(line, p.CacheMarker) {
			last = line
			found = true
		}
	}
	return last, found
}

// Snapshot captures both readings at once.
func (p *Probe) Snapshot() Snapshot {
	snap := Snapshot{Time: time.Now()}
	if mb, ok := p.VRAMUsedMB(); ok {
		snap.VRAMUsedMB = &mb
	}
	if stats, ok := p.CacheStats(); ok {
		snap.CacheStats = stats
	}
	return snap
}
