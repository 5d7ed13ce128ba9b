// Package publish stages generated artifacts and makes them visible
// atomically. Readers of the output root never observe a half-written
// artifact set, and a failed run never degrades previously published output.
package publish

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/matchday-labs/protodrive/pkg/core"
)

// stagingDirName is the hidden directory under the output root holding
// per-run staging areas. It lives on the same filesystem as the published
// directories so publishing is a rename, not a copy.
const stagingDirName = ".staging"

// Stager owns the staging area of one run. Artifacts are written under a
// run-unique path per target and handed over to the published location only
// on success.
type Stager struct {
	outputRoot  string
	stagingRoot string
	logger      *slog.Logger
}

// NewStager creates the staging root for a run. The runID must be unique
// per run; concurrent runs then never share a staging path.
func NewStager(outputRoot, runID string, logger *slog.Logger) (*Stager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	absRoot, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output root %s: %w", outputRoot, err)
	}
	stagingRoot := filepath.Join(absRoot, stagingDirName, runID)
	if err := os.MkdirAll(stagingRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging root: %w", err)
	}
	return &Stager{outputRoot: absRoot, stagingRoot: stagingRoot, logger: logger}, nil
}

// Begin creates and returns the staging directory for a target.
func (s *Stager) Begin(target core.Target) (string, error) {
	if _, err := s.publishedPath(target); err != nil {
		return "", err
	}
	dir := s.stagingPath(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory for target %s: %w", target.Name, err)
	}
	return dir, nil
}

// Publish atomically replaces the target's published directory with the
// staged artifact set. Any prior contents are replaced wholesale; on
// failure the previous output is left in place and a *core.PublishError
// is returned.
func (s *Stager) Publish(target core.Target) error {
	staged := s.stagingPath(target)
	final, err := s.publishedPath(target)
	if err != nil {
		return &core.PublishError{Target: target.Name, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return &core.PublishError{Target: target.Name, Err: err}
	}

	// Move the old tree aside first so the swap is a pair of renames on the
	// same filesystem. The old tree is only deleted once the new one is in
	// place.
	old := staged + ".old"
	hadPrior := false
	if _, err := os.Stat(final); err == nil {
		hadPrior = true
		if err := os.Rename(final, old); err != nil {
			return &core.PublishError{Target: target.Name, Err: err}
		}
	}

	if err := os.Rename(staged, final); err != nil {
		if hadPrior {
			if restoreErr := os.Rename(old, final); restoreErr != nil {
				s.logger.Error("failed to restore previous output", "target", target.Name, "error", restoreErr)
			}
		}
		return &core.PublishError{Target: target.Name, Err: err}
	}

	if hadPrior {
		if err := os.RemoveAll(old); err != nil {
			s.logger.Warn("failed to remove replaced output", "target", target.Name, "path", old, "error", err)
		}
	}

	s.logger.Debug("published target", "target", target.Name, "path", final)
	return nil
}

// Discard removes a target's staging directory, leaving any published
// output untouched.
func (s *Stager) Discard(target core.Target) error {
	return os.RemoveAll(s.stagingPath(target))
}

// Close removes the run's staging root. Safe to call after every target has
// been published or discarded; also the cleanup path on cancellation.
func (s *Stager) Close() error {
	if err := os.RemoveAll(s.stagingRoot); err != nil {
		return fmt.Errorf("failed to remove staging root: %w", err)
	}
	// Drop the shared .staging parent when this was the last run using it.
	_ = os.Remove(filepath.Dir(s.stagingRoot))
	return nil
}

// stagingPath returns the private staging directory for a target.
func (s *Stager) stagingPath(target core.Target) string {
	return filepath.Join(s.stagingRoot, target.Name)
}

// publishedPath returns the target's published directory, rejecting output
// subdirectories that would escape the output root.
func (s *Stager) publishedPath(target core.Target) (string, error) {
	final := filepath.Join(s.outputRoot, filepath.FromSlash(target.OutDir()))
	if final != s.outputRoot && !strings.HasPrefix(final, s.outputRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("target %s output directory %q escapes output root", target.Name, target.OutDir())
	}
	return final, nil
}
