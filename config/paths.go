package config

import (
	"os"
	"path/filepath"
)

// Home returns the root directory for ADK runtime data. It uses
// $ADK_HOME if set, otherwise defaults to ~/.adk.
func Home() string {
	if v := os.Getenv("ADK_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".adk")
	}
	return filepath.Join(home, ".adk")
}

// ConfigPath returns the default path to the runtime's config file.
func ConfigPath() string {
	return filepath.Join(Home(), "config.yaml")
}

// DotenvPath returns the default path to the runtime's .env file.
func DotenvPath() string {
	return filepath.Join(Home(), ".env")
}
