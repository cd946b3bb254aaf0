// Package config loads the root Config for an ADK runtime: a Config
// struct unmarshaled from YAML (or lenient JSONC) with environment
// variable overrides and templated secrets, plus a Reloader for runtimes
// that want to pick up config edits without restarting.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for an ADK-hosted runtime.
type Config struct {
	Session    SessionConfig    `yaml:"session" json:"session"`
	Artifact   ArtifactConfig   `yaml:"artifact" json:"artifact"`
	Models     ModelsConfig     `yaml:"models" json:"models"`
	Memory     MemoryConfig     `yaml:"memory" json:"memory"`
	Compaction CompactionConfig `yaml:"compaction" json:"compaction"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" json:"scheduler"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
	MCP        MCPConfig        `yaml:"mcp" json:"mcp"`
}

// SessionConfig configures the Event & Session Store backend.
type SessionConfig struct {
	Driver string `yaml:"driver" json:"driver"` // "memory" | "sqlite"
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// ArtifactConfig configures the Artifact Store backend.
type ArtifactConfig struct {
	Driver string `yaml:"driver" json:"driver"` // "memory" | "file"
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// ModelsConfig holds LLM provider configuration for the Invocation Runner.
type ModelsConfig struct {
	Default   string                    `yaml:"default" json:"default"`
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`
}

// ProviderConfig configures a single LLM backend registered into llm.Registry.
type ProviderConfig struct {
	Driver        string         `yaml:"driver" json:"driver"` // "claude" | "gemini" | "openai" | "ollama"
	Model         string         `yaml:"model" json:"model"`
	BaseURL       string         `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Auth          AuthConfig     `yaml:"auth" json:"auth"`
	MaxTokens     int            `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	MaxConcurrent int            `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty"`
	Timeout       Duration       `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Options       map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// AuthConfig configures API key resolution for a provider.
type AuthConfig struct {
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"` // literal or ${{ .Env.VAR }} template
}

// MemoryConfig configures the Memory Subsystem's embedding backend.
type MemoryConfig struct {
	Enabled *bool      `yaml:"enabled" json:"enabled"` // default: false (opt-in)
	Driver  string     `yaml:"driver,omitempty" json:"driver,omitempty"`
	Model   string     `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL string     `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Dir     string     `yaml:"dir,omitempty" json:"dir,omitempty"` // chromem-go persistence directory
	Auth    AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// IsEnabled returns true if memory recall is enabled (default: false).
func (c MemoryConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// CompactionConfig configures the Compaction Engine's windowing thresholds.
type CompactionConfig struct {
	Enabled         *bool `yaml:"enabled" json:"enabled"` // default: true
	WindowMessages  int   `yaml:"window_messages,omitempty" json:"window_messages,omitempty"`
	OverlapMessages int   `yaml:"overlap_messages,omitempty" json:"overlap_messages,omitempty"`
}

// IsEnabled returns true if compaction runs automatically (default: true).
func (c CompactionConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// SchedulerConfig configures the Scheduler's tick cadence.
type SchedulerConfig struct {
	TickInterval Duration `yaml:"tick_interval,omitempty" json:"tick_interval,omitempty"`
}

// TelemetryConfig configures the Telemetry Bus.
type TelemetryConfig struct {
	Enabled           *bool `yaml:"enabled" json:"enabled"` // default: true
	CaptureContent    bool  `yaml:"capture_content" json:"capture_content"`
	HistoryPerSession int   `yaml:"history_per_session,omitempty" json:"history_per_session,omitempty"`
}

// IsEnabled returns true if telemetry spans/metrics are emitted (default: true).
func (c TelemetryConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// MCPConfig lists remote MCP servers to dial as tool sources.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers,omitempty" json:"servers,omitempty"`
}

// MCPServerConfig configures one remote MCP server connection.
type MCPServerConfig struct {
	Name    string   `yaml:"name" json:"name"`
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	URL     string   `yaml:"url,omitempty" json:"url,omitempty"`
}

// Duration wraps time.Duration so it can be written as "30s" in either
// YAML or JSONC config.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
