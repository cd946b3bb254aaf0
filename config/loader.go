package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a config file, expands ${{ .Env.VAR }} templates, unmarshals
// it into Config, and applies defaults. YAML is the primary format
// (.yaml/.yml); .json/.jsonc files are parsed leniently via hujson so
// comments and trailing commas are tolerated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	expanded := expandEnvTemplates(string(data))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		standardized, err := hujson.Standardize([]byte(expanded))
		if err != nil {
			return nil, fmt.Errorf("config: standardize jsonc: %w", err)
		}
		if err := json.Unmarshal(standardized, &cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal jsonc: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal yaml: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the named variable's value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Session.Driver == "" {
		cfg.Session.Driver = "memory"
	}
	if cfg.Artifact.Driver == "" {
		cfg.Artifact.Driver = "memory"
	}
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = Duration(time.Second)
	}
	if cfg.Compaction.WindowMessages == 0 {
		cfg.Compaction.WindowMessages = 40
	}
	if cfg.Compaction.OverlapMessages == 0 {
		cfg.Compaction.OverlapMessages = 4
	}
	if cfg.Telemetry.HistoryPerSession == 0 {
		cfg.Telemetry.HistoryPerSession = 200
	}
	for name, p := range cfg.Models.Providers {
		if p.MaxConcurrent <= 0 {
			p.MaxConcurrent = 1
			cfg.Models.Providers[name] = p
		}
	}
}
