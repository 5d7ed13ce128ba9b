// Package compiler invokes the external schema compiler as a subprocess.
// Each compilation job is a single atomic invocation: the compiler resolves
// cross-file references itself, so all files for a target are passed
// together, never file-by-file.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/matchday-labs/protodrive/pkg/core"
)

// DefaultBin is the compiler executable used when none is configured.
const DefaultBin = "protoc"

// Invoker runs the external schema compiler.
type Invoker struct {
	// Bin is the compiler executable name or path.
	Bin string
	// SearchRoots are passed as include paths, in order.
	SearchRoots []string
	// Timeout bounds a single invocation. Zero means no timeout.
	Timeout time.Duration
	// Logger is the structured logger (uses discard if nil).
	Logger *slog.Logger
}

// New creates an invoker for the given search roots.
func New(bin string, searchRoots []string, logger *slog.Logger) *Invoker {
	if bin == "" {
		bin = DefaultBin
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Invoker{Bin: bin, SearchRoots: searchRoots, Logger: logger}
}

// Compile invokes the compiler exactly once for the job. The job's staging
// directory is the working directory and the generator output location, so
// concurrent jobs for other targets never touch the same paths.
//
// A non-zero exit surfaces as *core.CompilationError with the compiler's
// diagnostic captured verbatim; a missing executable or generator plugin
// surfaces as *core.GeneratorUnavailableError. Failures are never retried:
// a schema error will not resolve itself on a second attempt.
func (inv *Invoker) Compile(ctx context.Context, job core.CompilationJob) error {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	args := inv.buildArgs(job)
	inv.Logger.Debug("invoking compiler", "target", job.Target.Name, "bin", inv.Bin, "args", args)

	cmd := exec.CommandContext(ctx, inv.Bin, args...)
	cmd.Dir = job.StagingDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		inv.Logger.Debug("compiler succeeded", "target", job.Target.Name, "elapsed", elapsed.Round(time.Millisecond))
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("compiler invocation for target %s interrupted: %w", job.Target.Name, ctxErr)
	}

	diagnostic := stderr.String()
	if errors.Is(err, exec.ErrNotFound) {
		return &core.GeneratorUnavailableError{Target: job.Target.Name, Plugin: inv.Bin, Err: err}
	}
	if plugin, missing := missingPlugin(diagnostic); missing {
		return &core.GeneratorUnavailableError{
			Target: job.Target.Name,
			Plugin: plugin,
			Err:    errors.New(strings.TrimSpace(diagnostic)),
		}
	}

	return &core.CompilationError{Target: job.Target.Name, Diagnostic: diagnostic, Err: err}
}

// buildArgs assembles the single invocation: include paths, the target's
// generator output flag pointed at the staging directory, target-specific
// flags, and the full ordered file list.
func (inv *Invoker) buildArgs(job core.CompilationJob) []string {
	args := make([]string, 0, 2*len(inv.SearchRoots)+len(job.Target.Flags)+len(job.Files)+1)
	for _, root := range inv.SearchRoots {
		args = append(args, "-I", root)
	}
	args = append(args, fmt.Sprintf("--%s_out=%s", job.Target.Plugin, job.StagingDir))
	args = append(args, job.Target.Flags...)
	args = append(args, job.Files...)
	return args
}

// missingPlugin detects the compiler's missing-generator diagnostic, e.g.
// "protoc-gen-go: program not found or is not executable".
func missingPlugin(diagnostic string) (string, bool) {
	if !strings.Contains(diagnostic, "program not found or is not executable") {
		return "", false
	}
	plugin := diagnostic
	if i := strings.Index(diagnostic, ":"); i > 0 {
		plugin = strings.TrimSpace(diagnostic[:i])
	}
	return plugin, true
}
