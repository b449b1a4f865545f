package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// CreateRunDir makes a timestamped directory for a new run under
// baseDir/runs and repoints the baseDir/latest symlink at it.
func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// WriteCycleMeta persists one cycle's record as soon as the cycle
// finishes, so a hard abort still leaves the completed cycles on disk.
func WriteCycleMeta(runDir string, meta *CycleMeta) error {
	dir := filepath.Join(runDir, "cycles")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cycles dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cycle meta: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("cycle-%d.json", meta.Cycle))
	return os.WriteFile(path, data, 0o644)
}

func WriteRunMeta(runDir string, meta *RunMeta) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating run dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run meta: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, "run.json"), data, 0o644)
}

func ReadRunMeta(runDir string) (*RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "run.json"))
	if err != nil {
		return nil, fmt.Errorf("reading run meta: %w", err)
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing run meta: %w", err)
	}
	return &meta, nil
}

// ListRuns returns the run directories under baseDir/runs, oldest first.
func ListRuns(baseDir string) ([]string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs dir: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(runsDir, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
