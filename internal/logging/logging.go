// Package logging is the shared leveled logger for the harness. All run
// narration goes through it; with a path configured the stream is also
// appended to a log file so a crashed run keeps its record.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

type Config struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

var (
	mu   sync.Mutex
	root *log.Logger
	file *os.File
)

// Init configures the process-wide logger. Safe to call once at startup;
// Get falls back to stderr-only defaults if Init was never called.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var w io.Writer = os.Stderr
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", cfg.Path, err)
		}
		file = f
		w = io.MultiWriter(os.Stderr, f)
	}

	root = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return nil
}

// Close flushes and releases the log file sink, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
}

// Get returns a logger scoped to one component.
func Get(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	return root.WithPrefix(component)
}
