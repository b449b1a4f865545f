package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/metrics"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/report"
	"github.com/MartinKavik/popos-fix-vram-leak/internal/result"
)

func intp(v int) *int { return &v }

func writeRun(t *testing.T, meta *result.RunMeta) string {
	t.Helper()
	dir := t.TempDir()
	if err := result.WriteRunMeta(dir, meta); err != nil {
		t.Fatalf("WriteRunMeta: %v", err)
	}
	return dir
}

func sampleRun() *result.RunMeta {
	return &result.RunMeta{
		StartedAt:       time.Now(),
		Command:         "cosmic-term",
		CyclesPlanned:   2,
		WindowsPerCycle: 10,
		Baseline:        metrics.Snapshot{VRAMUsedMB: intp(1000)},
		Final:           metrics.Snapshot{VRAMUsedMB: intp(1194)},
		TotalDeltaMB:    intp(194),
		Verdict:         result.VerdictFail,
		Cycles: []result.CycleMeta{
			{Cycle: 1, Tag: "cycle-a", WindowsRequested: 10, WindowsOpened: 10,
				Peak:  metrics.Snapshot{VRAMUsedMB: intp(1400)},
				After: metrics.Snapshot{VRAMUsedMB: intp(1097)}, DeltaMB: intp(97)},
			{Cycle: 2, Tag: "cycle-b", WindowsRequested: 10, WindowsOpened: 10,
				Peak:  metrics.Snapshot{VRAMUsedMB: intp(1500)},
				After: metrics.Snapshot{VRAMUsedMB: intp(1194)}, DeltaMB: intp(97)},
		},
	}
}

func TestGenerateTable(t *testing.T) {
	dir := writeRun(t, sampleRun())
	var buf bytes.Buffer
	if err := report.Generate(dir, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"cycle-a", "cycle-b", "+97 MB", "FAIL", "1,000 MB"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateTableUnknowns(t *testing.T) {
	meta := sampleRun()
	meta.Baseline = metrics.Snapshot{}
	meta.Final = metrics.Snapshot{}
	meta.TotalDeltaMB = nil
	meta.Verdict = result.VerdictUnknown
	for i := range meta.Cycles {
		meta.Cycles[i].Peak = metrics.Snapshot{}
		meta.Cycles[i].After = metrics.Snapshot{}
		meta.Cycles[i].DeltaMB = nil
	}
	dir := writeRun(t, meta)
	var buf bytes.Buffer
	if err := report.Generate(dir, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "unknown") {
		t.Errorf("expected unknown markers, got:\n%s", out)
	}
	if strings.Contains(out, "+0 MB") {
		t.Errorf("unknown deltas must never render as zero:\n%s", out)
	}
	if !strings.Contains(out, "UNKNOWN") {
		t.Errorf("expected UNKNOWN verdict, got:\n%s", out)
	}
}

func TestGenerateMarkdown(t *testing.T) {
	dir := writeRun(t, sampleRun())
	var buf bytes.Buffer
	if err := report.Generate(dir, "markdown", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(buf.String(), "| Cycle |") {
		t.Errorf("expected markdown table header:\n%s", buf.String())
	}
}

func TestGenerateJSON(t *testing.T) {
	dir := writeRun(t, sampleRun())
	var buf bytes.Buffer
	if err := report.Generate(dir, "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(buf.String(), "\"verdict\": \"fail\"") {
		t.Errorf("expected verdict field in json:\n%s", buf.String())
	}
}

func TestGenerateMissingRun(t *testing.T) {
	if err := report.Generate(t.TempDir(), "table", &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing run meta")
	}
}
