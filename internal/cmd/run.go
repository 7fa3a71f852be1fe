package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/event"
	"github.com/CoderDKai/oai-team-automation/internal/provision"
	"github.com/CoderDKai/oai-team-automation/internal/report"
)

var (
	runTeams   []string
	runNoDelay bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision every tracked account",
	Long: `Process each tracked team: refresh the team token if it is about to
expire, then advance every account that is not yet completed through
registration, authorization and storage reconciliation.

Press Ctrl+C once to stop after the current account has been checkpointed,
twice to abort immediately.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runTeams, "team", "t", nil, "only process these teams (repeatable)")
	runCmd.Flags().BoolVar(&runNoDelay, "no-delay", false, "skip the pause between accounts")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	teams, err := a.openTeams()
	if err != nil {
		return err
	}
	tr, err := a.openTracker()
	if err != nil {
		return fmt.Errorf("failed to load tracker: %w", err)
	}
	bl, err := a.openBlacklist()
	if err != nil {
		return fmt.Errorf("failed to load blacklist: %w", err)
	}
	if a.cfg.Registrar.Command == "" {
		a.logger.Warn("no registrar command configured, accounts needing registration will fail")
	}

	out := cmd.OutOrStdout()
	styled := isTerminal(out)
	bus := event.NewBus(a.logger)
	report.Progress(bus, out, styled)

	delay := provision.Delay{Min: a.cfg.Provisioning.MinDelay(), Max: a.cfg.Provisioning.MaxDelay()}
	if runNoDelay {
		delay = provision.Delay{}
	}
	rec := a.reconciler()
	if len(rec.Providers()) == 0 {
		a.logger.Warn("no storage provider enabled, accounts complete without being stored")
	}

	run := provision.NewRun(tr, teams)
	machine := provision.NewMachine(run, a.registrar(), bl,
		provision.WithTokens(a.tokenManager(teams)),
		provision.WithStorage(rec),
		provision.WithBus(bus),
		provision.WithLogger(a.logger),
		provision.WithDelay(delay),
	)

	ctx, stop := withShutdown(cmd.Context(), machine.Shutdown, cmd.ErrOrStderr())
	defer stop()

	var runErr error
	if len(runTeams) == 0 {
		_, runErr = machine.ProcessAll(ctx)
	} else {
		var errs []error
		for i, name := range runTeams {
			if ctx.Err() != nil {
				break
			}
			if machine.ShutdownRequested() {
				if !errors.Is(errors.Join(errs...), errors.ErrShutdown) {
					errs = append(errs, fmt.Errorf("%d team(s) not started: %w", len(runTeams)-i, errors.ErrShutdown))
				}
				break
			}
			if _, err := machine.ProcessTeam(ctx, name); err != nil {
				errs = append(errs, err)
			}
		}
		runErr = errors.Join(errs...)
	}

	outcomes := run.Outcomes()
	now := time.Now()
	rows := make([]report.Row, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, report.FromOutcome(o, now))
	}
	if err := report.AppendCSV(a.cfg.Paths.CSV(), rows...); err != nil {
		a.logger.Error("failed to write csv report", "path", a.cfg.Paths.CSV(), "error", err.Error())
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not write %s: %v\n", a.cfg.Paths.CSV(), err)
	}

	fmt.Fprintln(out)
	if err := report.RenderOutcomes(out, "Run summary", outcomes, styled); err != nil {
		return err
	}
	retry := 0
	for _, o := range outcomes {
		if o.Retryable() {
			retry++
		}
	}
	if retry > 0 {
		fmt.Fprintf(out, "%d account(s) will be retried on the next run.\n", retry)
	}
	if errors.Is(runErr, errors.ErrShutdown) {
		fmt.Fprintln(out, "Stopped early; remaining accounts resume on the next run.")
	}
	if runErr != nil {
		return fmt.Errorf("run finished with errors: %w", runErr)
	}
	return nil
}
