package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoderDKai/oai-team-automation/internal/accounts"
	"github.com/CoderDKai/oai-team-automation/internal/event"
	"github.com/CoderDKai/oai-team-automation/internal/provision"
	"github.com/CoderDKai/oai-team-automation/internal/report"
)

var (
	registerFile    string
	registerNoDelay bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register accounts from a list",
	Long: `Register every account in a list without tracking them in a team.

--file takes a path or an inline JSON document. Accepted shapes:
  ["a@example.com", "b@example.com"]
  [{"email": "a@example.com", "password": "..."}]
  {"accounts": [...]}
Accounts without a password use provisioning.default_password.

One CSV row is appended per account. Exits non-zero if any account failed.`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().StringVarP(&registerFile, "file", "f", "accounts.json", "accounts file path or JSON string")
	registerCmd.Flags().BoolVar(&registerNoDelay, "no-delay", false, "skip the pause between accounts")
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := accounts.Load(registerFile, a.cfg.Provisioning.DefaultPassword, a.logger)
	if err != nil {
		return err
	}
	bl, err := a.openBlacklist()
	if err != nil {
		return fmt.Errorf("failed to load blacklist: %w", err)
	}

	out := cmd.OutOrStdout()
	styled := isTerminal(out)
	bus := event.NewBus(a.logger)
	report.Progress(bus, out, styled)

	delay := provision.Delay{Min: a.cfg.Provisioning.MinDelay(), Max: a.cfg.Provisioning.MaxDelay()}
	if registerNoDelay {
		delay = provision.Delay{}
	}
	machine := provision.NewMachine(nil, a.registrar(), bl,
		provision.WithBus(bus),
		provision.WithLogger(a.logger),
		provision.WithDelay(delay),
	)

	ctx, stop := withShutdown(cmd.Context(), machine.Shutdown, cmd.ErrOrStderr())
	defer stop()

	reqs := make([]provision.Request, 0, len(list))
	for _, acc := range list {
		reqs = append(reqs, provision.Request{Email: acc.Email, Password: acc.Password, Mode: provision.ModeRegister})
	}
	fmt.Fprintf(out, "Registering %d account(s)\n", len(reqs))
	outcomes := machine.RegisterList(ctx, reqs)

	now := time.Now()
	rows := make([]report.Row, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		rows = append(rows, report.FromOutcome(o, now))
		if o.Err != nil {
			failed++
		}
	}
	if err := report.AppendCSV(a.cfg.Paths.CSV(), rows...); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not write %s: %v\n", a.cfg.Paths.CSV(), err)
	}

	fmt.Fprintln(out)
	if err := report.RenderOutcomes(out, "Registration", outcomes, styled); err != nil {
		return err
	}
	if failed > 0 || len(outcomes) < len(reqs) {
		return fmt.Errorf("%d of %d account(s) registered", len(outcomes)-failed, len(reqs))
	}
	return nil
}
