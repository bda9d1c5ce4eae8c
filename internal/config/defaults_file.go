package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func secondsToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// FileDefaults is the optional static-defaults overlay read from
// SMTP_AGENT_DEFAULTS_FILE, a YAML file deployers can mount instead of
// setting every value as an environment variable.
type FileDefaults struct {
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
	MaxRetryCount       int    `yaml:"maxRetryCount"`
	ProcessFromAfter    string `yaml:"processFromAfter"`
	LogLevel            string `yaml:"logLevel"`
	DashboardRefreshSec int    `yaml:"dashboardRefreshSec"`
}

// LoadFileDefaults reads and parses path. An empty path is not an
// error: it means no file was configured.
func LoadFileDefaults(path string) (*FileDefaults, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read defaults file %q: %w", path, err)
	}
	var fd FileDefaults
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("config: parse defaults file %q: %w", path, err)
	}
	return &fd, nil
}

// ApplyTo merges the non-zero poll interval, retry count, cutoff and log
// level of fd over cfg, used once at startup before the per-tick admin
// overlay takes over. DashboardRefreshSec is parsed from the file but not
// applied: Config has no such field.
func (fd *FileDefaults) ApplyTo(cfg *Config) {
	if fd == nil {
		return
	}
	if fd.PollIntervalSeconds > 0 {
		cfg.PollInterval = secondsToDuration(fd.PollIntervalSeconds)
	}
	if fd.MaxRetryCount > 0 {
		cfg.MaxRetryCount = fd.MaxRetryCount
	}
	if fd.ProcessFromAfter != "" {
		if t := ParseCutoff(fd.ProcessFromAfter); t != nil {
			cfg.ProcessFromAfter = t
		}
	}
	if fd.LogLevel != "" {
		cfg.LogLevel = fd.LogLevel
	}
}
