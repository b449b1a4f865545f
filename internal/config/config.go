// Package config loads the harness configuration. Every field has a
// default; a config file only needs to override what differs.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MartinKavik/popos-fix-vram-leak/internal/logging"
)

type Config struct {
	Cycles          int    `yaml:"cycles"`
	WindowsPerCycle int    `yaml:"windows_per_cycle"`
	OpenCommand     string `yaml:"open_command"`
	Launcher        string `yaml:"launcher"`

	SpawnDelayMS  int `yaml:"spawn_delay_ms"`
	SettleOpenMS  int `yaml:"settle_open_ms"`
	SettleCloseMS int `yaml:"settle_close_ms"`
	TermGraceMS   int `yaml:"term_grace_ms"`

	VRAMCeilingMB int `yaml:"vram_ceiling_mb"` // 0 disables the safety monitor
	ToleranceMB   int `yaml:"tolerance_mb"`

	Convergence Convergence `yaml:"convergence"`

	GPUTool        string `yaml:"gpu_tool"`
	CompositorLog  string `yaml:"compositor_log"`
	CacheMarker    string `yaml:"cache_marker"`
	SessionEnvFile string `yaml:"session_env_file"`
	ResultsDir     string `yaml:"results_dir"`

	Log logging.Config `yaml:"log"`
}

type Convergence struct {
	Target     int `yaml:"target"`
	TimeoutS   int `yaml:"timeout_s"` // 0 disables convergence waiting
	IntervalMS int `yaml:"interval_ms"`
}

func Default() *Config {
	return &Config{
		Cycles:          5,
		WindowsPerCycle: 10,
		OpenCommand:     "cosmic-term",
		SpawnDelayMS:    300,
		SettleOpenMS:    2000,
		SettleCloseMS:   2000,
		TermGraceMS:     2000,
		ToleranceMB:     10,
		Convergence:     Convergence{Target: 0, TimeoutS: 30, IntervalMS: 1000},
		GPUTool:         "nvidia-smi",
		CacheMarker:     "cache",
		ResultsDir:      "./results",
		Log:             logging.Config{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to defaults when
// it does not, so the harness runs without any config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func validate(cfg *Config) error {
	if cfg.Cycles < 1 {
		return fmt.Errorf("cycles must be at least 1")
	}
	if cfg.WindowsPerCycle < 0 {
		return fmt.Errorf("windows_per_cycle must not be negative")
	}
	if cfg.OpenCommand == "" {
		return fmt.Errorf("open_command is required")
	}
	for name, v := range map[string]int{
		"spawn_delay_ms":  cfg.SpawnDelayMS,
		"settle_open_ms":  cfg.SettleOpenMS,
		"settle_close_ms": cfg.SettleCloseMS,
		"term_grace_ms":   cfg.TermGraceMS,
		"vram_ceiling_mb": cfg.VRAMCeilingMB,
		"tolerance_mb":    cfg.ToleranceMB,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if cfg.Convergence.TimeoutS > 0 && cfg.Convergence.IntervalMS < 1 {
		return fmt.Errorf("convergence interval_ms must be positive when a timeout is set")
	}
	if cfg.Convergence.Target < 0 {
		return fmt.Errorf("convergence target must not be negative")
	}
	return nil
}

// CheckLauncher verifies the worker-launch prerequisite before any cycle
// runs: a configured launcher must exist and be executable; otherwise the
// open command itself must resolve on PATH.
func (c *Config) CheckLauncher() error {
	if c.Launcher == "" {
		if _, err := exec.LookPath(c.OpenCommand); err != nil {
			return fmt.Errorf("open command %q not found: %w", c.OpenCommand, err)
		}
		return nil
	}
	info, err := os.Stat(c.Launcher)
	if err != nil {
		return fmt.Errorf("launcher %s: %w", c.Launcher, err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("launcher %s is not an executable file", c.Launcher)
	}
	return nil
}

// SessionEnv reads the optional dotenv file whose variables (seat,
// display, runtime dir) are passed to every spawned worker.
func (c *Config) SessionEnv() ([]string, error) {
	if c.SessionEnvFile == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(c.SessionEnvFile)
	if err != nil {
		return nil, fmt.Errorf("reading session env %s: %w", c.SessionEnvFile, err)
	}
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env, nil
}

func (c *Config) SpawnDelay() time.Duration { return time.Duration(c.SpawnDelayMS) * time.Millisecond }
func (c *Config) SettleOpen() time.Duration { return time.Duration(c.SettleOpenMS) * time.Millisecond }
func (c *Config) SettleClose() time.Duration {
	return time.Duration(c.SettleCloseMS) * time.Millisecond
}
func (c *Config) TermGrace() time.Duration { return time.Duration(c.TermGraceMS) * time.Millisecond }
func (c *Config) ConvTimeout() time.Duration {
	return time.Duration(c.Convergence.TimeoutS) * time.Second
}
func (c *Config) ConvInterval() time.Duration {
	return time.Duration(c.Convergence.IntervalMS) * time.Millisecond
}
