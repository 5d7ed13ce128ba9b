package state

import (
	"testing"
	"time"

	"github.com/matchday-labs/protodrive/internal/testutil"
	"github.com/matchday-labs/protodrive/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "target_runs"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		} else {
			rows.Close()
		}
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	files := []string{"common.proto", "match.proto"}
	run, err := store.CreateRun("proto", files)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run ID to be assigned")
	}
	if run.Status != core.RunStatusRunning {
		t.Errorf("expected status running, got %s", run.Status)
	}

	if err := store.CompleteRun(run.ID, core.RunStatusCompleted, ""); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != core.RunStatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if len(got.Files) != 2 || got.Files[0] != "common.proto" {
		t.Errorf("expected file list round-trip, got %v", got.Files)
	}
}

func TestSQLiteStore_CompleteRun_Failed(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("proto", nil)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := store.CompleteRun(run.ID, core.RunStatusFailed, "compilation failed for target go"); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Error != "compilation failed for target go" {
		t.Errorf("expected error message to round-trip, got %q", got.Error)
	}
}

func TestSQLiteStore_CompleteRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	if err := store.CompleteRun("no-such-run", core.RunStatusCompleted, ""); err == nil {
		t.Error("expected error for unknown run ID")
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	first, err := store.CreateRun("proto", nil)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	// started_at has second-level granularity in SQLite comparisons; nudge
	// the first run into the past so ordering is observable.
	if _, err := store.db.Exec(`UPDATE runs SET started_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), first.ID); err != nil {
		t.Fatalf("failed to backdate run: %v", err)
	}

	second, err := store.CreateRun("proto", nil)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
}

func TestSQLiteStore_TargetRunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("proto", nil)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	tr := &core.TargetRun{RunID: run.ID, Target: "go", Plugin: "go"}
	if err := store.RecordTargetRun(tr); err != nil {
		t.Fatalf("failed to record target run: %v", err)
	}
	if tr.ID == "" {
		t.Fatal("expected target run ID to be assigned")
	}
	if tr.Status != core.TargetRunStatusPending {
		t.Errorf("expected default status pending, got %s", tr.Status)
	}

	if err := store.UpdateTargetRun(tr.ID, core.TargetRunStatusPublished, "", 42); err != nil {
		t.Fatalf("failed to update target run: %v", err)
	}

	trs, err := store.GetTargetRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get target runs: %v", err)
	}
	if len(trs) != 1 {
		t.Fatalf("expected 1 target run, got %d", len(trs))
	}
	if trs[0].Status != core.TargetRunStatusPublished {
		t.Errorf("expected status published, got %s", trs[0].Status)
	}
	if trs[0].DurationMS != 42 {
		t.Errorf("expected duration 42ms, got %d", trs[0].DurationMS)
	}
}

func TestSQLiteStore_TargetRunsSortedByTarget(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("proto", nil)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	for _, name := range []string{"python", "go"} {
		if err := store.RecordTargetRun(&core.TargetRun{RunID: run.ID, Target: name, Plugin: name}); err != nil {
			t.Fatalf("failed to record target run: %v", err)
		}
	}

	trs, err := store.GetTargetRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get target runs: %v", err)
	}
	if trs[0].Target != "go" || trs[1].Target != "python" {
		t.Errorf("expected target-ascending order, got %s, %s", trs[0].Target, trs[1].Target)
	}
}
