// Package report renders stored run results for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/result"
)

// Generate reads a stored run and writes it in the requested format:
// table (default), markdown, or json.
func Generate(runDir, format string, w io.Writer) error {
	meta, err := result.ReadRunMeta(runDir)
	if err != nil {
		return err
	}
	switch format {
	case "markdown":
		return writeMarkdown(meta, w)
	case "json":
		return writeJSON(meta, w)
	default:
		return writeTable(meta, w)
	}
}

func mb(v *int) string {
	if v == nil {
		return "unknown"
	}
	return humanize.Comma(int64(*v)) + " MB"
}

func delta(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%+d MB", *v)
}

func writeTable(meta *result.RunMeta, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CYCLE\tTAG\tWINDOWS\tPEAK\tAFTER\tDELTA\tABORTED")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, c := range meta.Cycles {
		fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%s\t%s\t%s\t%v\n",
			c.Cycle, c.Tag, c.WindowsOpened, c.WindowsRequested,
			mb(c.Peak.VRAMUsedMB), mb(c.After.VRAMUsedMB), delta(c.DeltaMB), c.Aborted)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nBaseline: %s\n", mb(meta.Baseline.VRAMUsedMB))
	fmt.Fprintf(w, "Final:    %s\n", mb(meta.Final.VRAMUsedMB))
	fmt.Fprintf(w, "Total:    %s\n", delta(meta.TotalDeltaMB))
	fmt.Fprintf(w, "Verdict:  %s\n", strings.ToUpper(string(meta.Verdict)))
	if meta.AbortReason != "" {
		fmt.Fprintf(w, "Aborted:  %s\n", meta.AbortReason)
	}
	if meta.Final.CacheStats != "" {
		fmt.Fprintf(w, "Cache:    %s\n", meta.Final.CacheStats)
	}
	return nil
}

func writeMarkdown(meta *result.RunMeta, w io.Writer) error {
	fmt.Fprintln(w, "| Cycle | Tag | Windows | Peak | After | Delta | Aborted |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, c := range meta.Cycles {
		fmt.Fprintf(w, "| %d | %s | %d/%d | %s | %s | %s | %v |\n",
			c.Cycle, c.Tag, c.WindowsOpened, c.WindowsRequested,
			mb(c.Peak.VRAMUsedMB), mb(c.After.VRAMUsedMB), delta(c.DeltaMB), c.Aborted)
	}
	fmt.Fprintf(w, "\n**Baseline** %s · **Final** %s · **Total** %s · **Verdict** %s\n",
		mb(meta.Baseline.VRAMUsedMB), mb(meta.Final.VRAMUsedMB),
		delta(meta.TotalDeltaMB), meta.Verdict)
	return nil
}

func writeJSON(meta *result.RunMeta, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
