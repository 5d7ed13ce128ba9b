// Package commands implements the protodrive subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/matchday-labs/protodrive/internal/cli/config"
	"github.com/matchday-labs/protodrive/internal/engine"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// WithConfig returns a context carrying the loaded configuration.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger returns a context carrying the structured logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// getConfig retrieves the config from the command context.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		SearchRoot: config.DefaultSearchRoot,
		OutputRoot: config.DefaultOutputRoot,
		StatePath:  config.DefaultStateFile,
		Compiler:   config.DefaultCompiler,
	}
}

// getLogger retrieves the logger from the command context.
func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// createEngine creates an engine from the current configuration.
func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure the state directory exists
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	return engine.New(engine.Config{
		SearchRoot:      cfg.SearchRoot,
		IncludePaths:    cfg.IncludePaths,
		OutputRoot:      cfg.OutputRoot,
		Files:           cfg.Files,
		Targets:         cfg.Targets,
		CompilerBin:     cfg.Compiler,
		CompilerTimeout: cfg.Timeout,
		StatePath:       cfg.StatePath,
		Logger:          logger,
	})
}
