package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CoderDKai/oai-team-automation/internal/report"
	"github.com/CoderDKai/oai-team-automation/internal/storage"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

var (
	statusWatch  bool
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracked accounts per team",
	Long: `Display, per team, how many accounts are in each invitation status and
how many are stored in each storage provider.

With --watch the table is redrawn whenever the tracker file changes.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "redraw when the tracker changes")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "output format: text, json or yaml")
}

// statusDebounce coalesces the bursts of events an atomic rename produces.
const statusDebounce = 150 * time.Millisecond

func runStatus(cmd *cobra.Command, args []string) error {
	switch statusOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", statusOutput)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.cfg.Paths.TrackerPath()
	out := cmd.OutOrStdout()
	if err := printStatus(out, path, statusOutput, isTerminal(out)); err != nil {
		return err
	}
	if !statusWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchStatus(ctx, path, func() {
		fmt.Fprintf(out, "\n-- %s --\n", time.Now().Format(tracker.TimeLayout))
		if err := printStatus(out, path, statusOutput, isTerminal(out)); err != nil {
			a.logger.Warn("status refresh failed", "error", err.Error())
		}
	})
}

// printStatus loads the tracker read-only and renders its coverage.
func printStatus(w io.Writer, path, format string, styled bool) error {
	tr, err := tracker.Load(path, storage.Known, tracker.WithReadOnly())
	if err != nil {
		return fmt.Errorf("failed to load tracker: %w", err)
	}
	teams := report.Coverage(tr)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(teams)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(teams); err != nil {
			return err
		}
		return enc.Close()
	default:
		return report.RenderStatus(w, teams, storage.Known, styled)
	}
}

// watchStatus calls onChange after the file at path has been written,
// created or renamed into place, until ctx is done.
func watchStatus(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: saves replace the file, which drops a file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	target := filepath.Base(path)
	debounce := time.NewTimer(statusDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(statusDebounce)

		case <-debounce.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
