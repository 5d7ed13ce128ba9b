package engine

// run.go - the per-run compile + publish cycle across all targets.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matchday-labs/protodrive/internal/publish"
	"github.com/matchday-labs/protodrive/pkg/core"
)

// Generate runs the full pipeline: plan once, then one compilation job plus
// publish per target. Targets are independent: a failure in one does not
// prevent the others from being attempted, but the returned error joins
// every per-target failure so the exit status reflects the worst outcome.
//
// Discovery and graph errors abort before any compiler runs or staging
// directory exists. Cancellation cleans up in-progress staging; targets
// already published stay published.
func (e *Engine) Generate(ctx context.Context) (*core.Run, error) {
	order, _, err := e.Plan()
	if err != nil {
		return nil, err
	}

	run := e.createRun(order)
	e.logger.Info("starting run", "run_id", run.ID, "files", len(order), "targets", len(e.targets))

	stager, err := publish.NewStager(e.outputRoot, run.ID, e.logger)
	if err != nil {
		e.completeRun(run, core.RunStatusFailed, err.Error())
		return run, err
	}
	defer func() {
		if err := stager.Close(); err != nil {
			e.logger.Warn("staging cleanup failed", "run_id", run.ID, "error", err)
		}
	}()

	results := make([]error, len(e.targets))
	var group errgroup.Group
	for i, target := range e.targets {
		group.Go(func() error {
			results[i] = e.runTarget(ctx, run.ID, stager, target, order)
			// Errors are collected per target; the group itself never
			// short-circuits, so sibling targets always run.
			return nil
		})
	}
	_ = group.Wait()

	runErr := errors.Join(results...)
	switch {
	case ctx.Err() != nil:
		e.logger.Info("run cancelled", "run_id", run.ID)
		e.completeRun(run, core.RunStatusCancelled, ctx.Err().Error())
		if runErr == nil {
			runErr = ctx.Err()
		}
	case runErr != nil:
		e.logger.Info("run failed", "run_id", run.ID, "error", runErr.Error())
		e.completeRun(run, core.RunStatusFailed, runErr.Error())
	default:
		e.logger.Info("run completed", "run_id", run.ID)
		e.completeRun(run, core.RunStatusCompleted, "")
	}

	return run, runErr
}

// runTarget performs one target's compile + publish cycle against its
// private staging directory.
func (e *Engine) runTarget(ctx context.Context, runID string, stager *publish.Stager, target core.Target, order []string) error {
	tr := &core.TargetRun{RunID: runID, Target: target.Name, Plugin: target.Plugin}
	e.recordTargetRun(tr)

	if err := ctx.Err(); err != nil {
		e.updateTargetRun(tr, core.TargetRunStatusSkipped, fmt.Sprintf("skipped: %v", err), 0)
		return nil
	}

	start := time.Now()
	e.updateTargetRun(tr, core.TargetRunStatusRunning, "", 0)

	stagingDir, err := stager.Begin(target)
	if err != nil {
		e.updateTargetRun(tr, core.TargetRunStatusFailed, err.Error(), elapsedMS(start))
		return err
	}

	job := core.CompilationJob{Target: target, Files: order, StagingDir: stagingDir}
	if err := e.invoker.Compile(ctx, job); err != nil {
		// The published tree was never touched; only staging is removed.
		if discardErr := stager.Discard(target); discardErr != nil {
			e.logger.Warn("failed to discard staging", "target", target.Name, "error", discardErr)
		}
		e.updateTargetRun(tr, core.TargetRunStatusFailed, err.Error(), elapsedMS(start))
		return err
	}

	if err := stager.Publish(target); err != nil {
		if discardErr := stager.Discard(target); discardErr != nil {
			e.logger.Warn("failed to discard staging", "target", target.Name, "error", discardErr)
		}
		e.updateTargetRun(tr, core.TargetRunStatusFailed, err.Error(), elapsedMS(start))
		return err
	}

	e.logger.Info("target published", "target", target.Name, "elapsed", time.Since(start).Round(time.Millisecond))
	e.updateTargetRun(tr, core.TargetRunStatusPublished, "", elapsedMS(start))
	return nil
}

// --- advisory state recording ---
//
// The run-history store never fails a run: a broken state database must not
// stop bindings from being generated.

func (e *Engine) createRun(order []string) *core.Run {
	run, err := e.store.CreateRun(e.searchRoot, order)
	if err != nil {
		e.logger.Warn("state store unavailable, run will not be recorded", "error", err)
		return &core.Run{
			ID:         uuid.New().String(),
			SearchRoot: e.searchRoot,
			Files:      order,
			Status:     core.RunStatusRunning,
			StartedAt:  time.Now().UTC(),
		}
	}
	return run
}

func (e *Engine) completeRun(run *core.Run, status core.RunStatus, errMsg string) {
	run.Status = status
	run.Error = errMsg
	if err := e.store.CompleteRun(run.ID, status, errMsg); err != nil {
		e.logger.Warn("failed to record run completion", "run_id", run.ID, "error", err)
	}
}

func (e *Engine) recordTargetRun(tr *core.TargetRun) {
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	if err := e.store.RecordTargetRun(tr); err != nil {
		e.logger.Warn("failed to record target run", "target", tr.Target, "error", err)
	}
}

func (e *Engine) updateTargetRun(tr *core.TargetRun, status core.TargetRunStatus, errMsg string, durationMS int64) {
	tr.Status = status
	tr.Error = errMsg
	tr.DurationMS = durationMS
	if err := e.store.UpdateTargetRun(tr.ID, status, errMsg, durationMS); err != nil {
		e.logger.Warn("failed to update target run", "target", tr.Target, "error", err)
	}
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
