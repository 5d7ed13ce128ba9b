package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate bindings when definition files change",
		Long: `Watch the search root and include paths for changes to definition files
and rerun generation after each change. Rapid bursts of events are
coalesced into a single run.

A failed run keeps the previously published bindings in place and the
watcher keeps running. Stop with Ctrl-C.`,
		Example: `  # Watch with the default debounce
  protodrive watch

  # Settle longer before regenerating
  protodrive watch --debounce 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before regenerating")

	return cmd
}

func runWatch(cmd *cobra.Command, debounce time.Duration) error {
	cfg := getConfig(cmd.Context())
	logger := getLogger(cmd.Context())

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateSearchRoot(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// regenerate reads cmd.Context(), so the signal context must be the
	// command context: Ctrl-C then cancels an in-flight compiler run too.
	cmd.SetContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	roots := append([]string{cfg.SearchRoot}, cfg.IncludePaths...)
	for _, root := range roots {
		if err := watchTree(watcher, root); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl-C to stop)\n", strings.Join(roots, ", "))

	// Initial run so the output is current before the first change.
	regenerate(cmd)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn("could not watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if !isDefinitionEvent(event) {
				continue
			}
			logger.Debug("definition file changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				resetDebounce(timer, debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			regenerate(cmd)
		}
	}
}

// watchTree registers a directory and all of its subdirectories, skipping
// hidden directories such as the staging area.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if name := filepath.Base(path); strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// resetDebounce re-arms the timer, draining a fire that raced with the
// reset. Without the drain a stale tick would trigger one extra
// regeneration ahead of the debounced one.
func resetDebounce(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

func isDefinitionEvent(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.HasSuffix(name, ".proto") && !strings.HasPrefix(name, ".")
}

// regenerate performs one full generation pass. Failures are reported but
// never stop the watch loop.
func regenerate(cmd *cobra.Command) {
	cfg := getConfig(cmd.Context())
	logger := getLogger(cmd.Context())

	start := time.Now()

	eng, err := createEngine(cfg, logger)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "generation failed: %v\n", err)
		return
	}
	defer eng.Close()

	if err := eng.Discover(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "generation failed: %v\n", err)
		return
	}

	run, err := eng.Generate(cmd.Context())
	if run != nil {
		reportTargets(cmd, eng, run)
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "generation failed: %v\n", err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Regenerated %d files in %s\n",
		len(run.Files), time.Since(start).Round(time.Millisecond))
}
