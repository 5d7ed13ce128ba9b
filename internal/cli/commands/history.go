package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/matchday-labs/protodrive/internal/state"
	"github.com/matchday-labs/protodrive/pkg/core"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent generation runs",
		Long: `Show recent generation runs recorded in the state database, newest
first, with the outcome of each target.`,
		Example: `  # Show the last 10 runs
  protodrive history

  # Show the last 50 runs
  protodrive history --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cfg := getConfig(cmd.Context())
	logger := getLogger(cmd.Context())

	if _, err := os.Stat(cfg.StatePath); err != nil {
		return fmt.Errorf("no run history at %s", cfg.StatePath)
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
		return nil
	}

	for _, run := range runs {
		printRun(cmd, store, run)
	}
	return nil
}

func printRun(cmd *cobra.Command, store core.Store, run *core.Run) {
	out := cmd.OutOrStdout()

	duration := ""
	if run.CompletedAt != nil {
		duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}

	fmt.Fprintf(out, "\nRun %s  %s  %s  %d files  %s\n",
		run.ID, run.StartedAt.Format(time.RFC3339), run.Status, len(run.Files), duration)
	if run.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", run.Error)
	}

	trs, err := store.GetTargetRunsForRun(run.ID)
	if err != nil || len(trs) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Target", "Plugin", "Status", "Duration", "Error"})
	for _, tr := range trs {
		t.AppendRow(table.Row{tr.Target, tr.Plugin, tr.Status, fmt.Sprintf("%dms", tr.DurationMS), tr.Error})
	}
	t.Render()
}
