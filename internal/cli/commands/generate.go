package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matchday-labs/protodrive/internal/engine"
	"github.com/matchday-labs/protodrive/pkg/core"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compile the definition files for every configured target",
		Long: `Resolve the import graph of the configured definition files, invoke the
schema compiler once per target in dependency order, and publish each
target's bindings atomically.

Targets are independent: one target failing does not stop the others, but
the command exits non-zero unless every target was published.`,
		Example: `  # Compile everything under the search root for all targets
  protodrive generate

  # Compile an explicit top-level set
  protodrive generate --file match.proto --file prediction.proto

  # Bound each compiler invocation
  protodrive generate --timeout 30s`,
		Aliases: []string{"gen", "build"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd.Context())
			logger := getLogger(cmd.Context())

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.ValidateSearchRoot(); err != nil {
				return err
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Timeout = timeout
			}

			eng, err := createEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Discover(); err != nil {
				return err
			}

			start := time.Now()
			run, err := eng.Generate(cmd.Context())
			if run != nil {
				reportTargets(cmd, eng, run)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d files for %d targets in %s\n",
				len(run.Files), len(eng.Targets()), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-invocation compiler timeout (0 for none)")

	return cmd
}

// reportTargets writes one line per target: successes to stdout, failures
// to stderr naming the target and the precise upstream error.
func reportTargets(cmd *cobra.Command, eng *engine.Engine, run *core.Run) {
	trs, err := eng.Store().GetTargetRunsForRun(run.ID)
	if err != nil {
		getLogger(cmd.Context()).Debug("could not read target outcomes", "run_id", run.ID, "error", err)
		return
	}

	for _, tr := range trs {
		switch tr.Status {
		case core.TargetRunStatusPublished:
			fmt.Fprintf(cmd.OutOrStdout(), "target %s: published (%dms)\n", tr.Target, tr.DurationMS)
		case core.TargetRunStatusSkipped:
			fmt.Fprintf(cmd.ErrOrStderr(), "target %s: skipped: %s\n", tr.Target, tr.Error)
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "target %s: %s\n", tr.Target, tr.Error)
		}
	}
}
