package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CoderDKai/oai-team-automation/internal/migration"
)

var (
	recordsList       bool
	recordsCreate     bool
	recordsVerify     bool
	recordsStatus     string
	recordsID         string
	recordsLegacy     string
	recordsNew        string
	recordsCapability string
	recordsVerifiedBy string
	recordsNotes      string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage migration records",
}

var migrateRecordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List, create or verify migration records",
	Long: `Maintain the log of configuration migrations.

  oai-team migrate records --list
  oai-team migrate records --create --legacy old/path --new new/path [--id ID] [--capability-id C]
  oai-team migrate records --verify --id ID --verified-by NAME [--notes ...]
  oai-team migrate records --set-status failed --id ID [--notes ...]`,
	RunE: runMigrateRecords,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateRecordsCmd)

	f := migrateRecordsCmd.Flags()
	f.BoolVar(&recordsList, "list", false, "list migration records")
	f.BoolVar(&recordsCreate, "create", false, "create a migration record")
	f.BoolVar(&recordsVerify, "verify", false, "mark a migration record verified")
	f.StringVar(&recordsStatus, "set-status", "", "move a record to pending, migrated, verified or failed")
	f.StringVar(&recordsID, "id", "", "record id (generated when creating without one)")
	f.StringVar(&recordsLegacy, "legacy", "", "legacy path")
	f.StringVar(&recordsNew, "new", "", "new path")
	f.StringVar(&recordsCapability, "capability-id", "", "capability id")
	f.StringVar(&recordsVerifiedBy, "verified-by", "", "who verified the migration")
	f.StringVar(&recordsNotes, "notes", "", "free-form notes")
	migrateRecordsCmd.MarkFlagsMutuallyExclusive("list", "create", "verify", "set-status")
	migrateRecordsCmd.MarkFlagsOneRequired("list", "create", "verify", "set-status")
}

func runMigrateRecords(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := migration.Open(a.cfg.Paths.Migration(), a.logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	switch {
	case recordsList:
		records := store.List()
		if len(records) == 0 {
			fmt.Fprintln(out, "No migration records.")
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s: %s -> %s (%s)\n", r.ID, r.LegacyPath, r.NewPath, r.Status)
		}
		return nil

	case recordsCreate:
		if recordsLegacy == "" || recordsNew == "" {
			return fmt.Errorf("--create requires --legacy and --new")
		}
		r, err := store.Create(ctx, migration.Record{
			ID:           recordsID,
			LegacyPath:   recordsLegacy,
			NewPath:      recordsNew,
			CapabilityID: recordsCapability,
			Notes:        recordsNotes,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created migration record %s\n", r.ID)
		return nil

	case recordsVerify:
		if recordsID == "" || recordsVerifiedBy == "" {
			return fmt.Errorf("--verify requires --id and --verified-by")
		}
		r, err := store.Verify(ctx, recordsID, recordsVerifiedBy, recordsNotes)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Verified migration record %s at %s\n", r.ID, r.VerifiedAt)
		return nil

	default:
		if recordsID == "" {
			return fmt.Errorf("--set-status requires --id")
		}
		r, err := store.SetStatus(ctx, recordsID, migration.Status(recordsStatus), recordsNotes)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Migration record %s is now %s\n", r.ID, r.Status)
		return nil
	}
}
