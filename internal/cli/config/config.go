// Package config loads protodrive configuration from file, environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/matchday-labs/protodrive/pkg/core"
)

// Config holds the full tool configuration.
type Config struct {
	// SearchRoot is the primary directory definition files live under.
	SearchRoot string `koanf:"search_root"`
	// IncludePaths are extra search roots (additional compiler include paths).
	IncludePaths []string `koanf:"include_paths"`
	// OutputRoot is the directory the published target trees live under.
	OutputRoot string `koanf:"output_root"`
	// StatePath is the path to the run-history database.
	StatePath string `koanf:"state_path"`
	// Files are the top-level definition files to compile, by logical name.
	// Empty compiles everything under the search root.
	Files []string `koanf:"files"`
	// Compiler is the external schema compiler executable.
	Compiler string `koanf:"compiler"`
	// Timeout bounds a single compiler invocation. Zero means no timeout.
	Timeout time.Duration `koanf:"timeout"`
	// Targets are the configured output binding languages.
	Targets []core.Target `koanf:"targets"`
	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultSearchRoot = "proto"
	DefaultOutputRoot = "gen"
	DefaultStateFile  = ".protodrive/state.db"
	DefaultCompiler   = "protoc"
)

// Validate checks that the configuration can drive a generation run.
func (c *Config) Validate() error {
	if c.SearchRoot == "" {
		return fmt.Errorf("search_root is required")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("output_root is required")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required (configure targets in protodrive.yaml)")
	}
	return nil
}

// ValidateSearchRoot checks that the search root exists. Split out from
// Validate so inspection commands can give a friendlier hint.
func (c *Config) ValidateSearchRoot() error {
	if _, err := os.Stat(c.SearchRoot); os.IsNotExist(err) {
		return fmt.Errorf("search root does not exist: %s\nHint: create the directory or use --search-root to point at your definition files", c.SearchRoot)
	}
	return nil
}
