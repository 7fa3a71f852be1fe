package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoderDKai/oai-team-automation/internal/persist"
	"github.com/CoderDKai/oai-team-automation/internal/storage"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

var (
	trackerDryRun    bool
	trackerBackupDir string
	trackerTeam      string
	trackerEmail     string
	trackerPassword  string
	ownersPassword   string
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Maintain the account tracker",
}

var trackerMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade the tracker file to the current format",
	Long: `Rewrite the tracker in its canonical shape: legacy "status" fields become
invitation_status and every account gets a storage entry for each provider.

The original file is copied to the backup directory first (default: next to
the tracker). With --dry-run only the change report is printed.`,
	RunE: runTrackerMigrate,
}

var trackerImportOwnersCmd = &cobra.Command{
	Use:   "import-owners",
	Short: "Track each team owner as an account",
	RunE:  runTrackerImportOwners,
}

var trackerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Track an invited account",
	RunE:  runTrackerAdd,
}

var trackerRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Stop tracking an account",
	RunE:  runTrackerRemove,
}

func init() {
	rootCmd.AddCommand(trackerCmd)
	trackerCmd.AddCommand(trackerMigrateCmd, trackerImportOwnersCmd, trackerAddCmd, trackerRemoveCmd)

	trackerMigrateCmd.Flags().BoolVar(&trackerDryRun, "dry-run", false, "report changes without writing")
	trackerMigrateCmd.Flags().StringVar(&trackerBackupDir, "backup-dir", "", "directory for the backup copy")

	trackerImportOwnersCmd.Flags().StringVar(&ownersPassword, "default-password", "", "password for owners without one (default: provisioning.default_password)")

	for _, c := range []*cobra.Command{trackerAddCmd, trackerRemoveCmd} {
		c.Flags().StringVar(&trackerTeam, "team", "", "team name")
		c.Flags().StringVar(&trackerEmail, "email", "", "account email")
		_ = c.MarkFlagRequired("team")
		_ = c.MarkFlagRequired("email")
	}
	trackerAddCmd.Flags().StringVar(&trackerPassword, "password", "", "account password (default: provisioning.default_password)")
}

func runTrackerMigrate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	path := a.cfg.Paths.TrackerPath()
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tracker %s: %w", path, err)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("tracker %s is not valid JSON, refusing to migrate", path)
	}

	tr, err := a.openTracker()
	if err != nil {
		return err
	}
	r := tr.UpgradeReport()
	fmt.Fprintf(out, "Tracker: %s\n", path)
	fmt.Fprintf(out, "  teams:              %d\n", r.Teams)
	fmt.Fprintf(out, "  accounts:           %d\n", r.Accounts)
	fmt.Fprintf(out, "  status migrated:    %d\n", r.StatusMigrated)
	fmt.Fprintf(out, "  status initialized: %d\n", r.StatusInitialized)
	fmt.Fprintf(out, "  storage added:      %d\n", r.StorageAdded)
	fmt.Fprintf(out, "  storage fixed:      %d\n", r.StorageFixed)
	fmt.Fprintf(out, "  dropped:            %d\n", r.Dropped)
	for _, name := range tr.Teams() {
		if n := r.TeamChanges[name]; n > 0 {
			fmt.Fprintf(out, "    %s: %d account(s) changed\n", name, n)
		}
	}

	if !r.Changed() {
		fmt.Fprintln(out, "Already up to date.")
		return nil
	}
	if trackerDryRun {
		fmt.Fprintln(out, "Dry run, nothing written.")
		return nil
	}

	backup, err := backupTracker(path, trackerBackupDir, raw, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Backup: %s\n", backup)

	if err := tr.Save(cmd.Context()); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("re-read tracker: %w", err)
	}
	if problems := tracker.Validate(data, storage.Known); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", p)
		}
		return fmt.Errorf("tracker still has %d problem(s) after migration; backup kept at %s", len(problems), backup)
	}
	fmt.Fprintln(out, "Migrated.")
	return nil
}

// backupTracker writes data, the tracker at path as read before migrating,
// into dir (default: the tracker's directory) as <name>.bak-<timestamp> and
// returns the copy's path.
func backupTracker(path, dir string, data []byte, now time.Time) (string, error) {
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(path)+".bak-"+now.Format("20060102-150405"))
	if err := persist.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return dst, nil
}

func runTrackerImportOwners(cmd *cobra.Command, args []string) error {
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
		return err
	}

	password := ownersPassword
	if password == "" {
		password = a.cfg.Provisioning.DefaultPassword
	}
	added := tr.ImportOwners(teams.Teams, password)
	if added == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No new owners to import.")
		return nil
	}
	if err := tr.Save(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d owner(s).\n", added)
	return nil
}

func runTrackerAdd(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	tr, err := a.openTracker()
	if err != nil {
		return err
	}
	if _, ok := tr.Find(trackerTeam, trackerEmail); ok {
		return fmt.Errorf("%s is already tracked in team %s", trackerEmail, trackerTeam)
	}
	password := trackerPassword
	if password == "" {
		password = a.cfg.Provisioning.DefaultPassword
	}
	tr.Upsert(trackerTeam, trackerEmail, tracker.StatusInvited, password, "")
	if err := tr.Save(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s in team %s.\n", trackerEmail, trackerTeam)
	return nil
}

func runTrackerRemove(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	tr, err := a.openTracker()
	if err != nil {
		return err
	}
	if !tr.Remove(trackerTeam, trackerEmail) {
		return fmt.Errorf("%s is not tracked in team %s", trackerEmail, trackerTeam)
	}
	if err := tr.Save(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from team %s.\n", trackerEmail, trackerTeam)
	return nil
}
