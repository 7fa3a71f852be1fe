package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CoderDKai/oai-team-automation/internal/config"
	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/storage"
	"github.com/CoderDKai/oai-team-automation/internal/team"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration, team file and tracker",
	Long: `Check that a configuration file was found and is valid, that the team
file can be read, that the tracker is in its canonical shape and that the
registrar command can be found. Exits non-zero when anything blocks a run.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// checker prints check results and remembers whether anything failed.
type checker struct {
	w      io.Writer
	failed bool
}

func (c *checker) ok(format string, args ...any) {
	fmt.Fprintf(c.w, "  ok    "+format+"\n", args...)
}

func (c *checker) warn(format string, args ...any) {
	fmt.Fprintf(c.w, "  warn  "+format+"\n", args...)
}

func (c *checker) fail(format string, args ...any) {
	c.failed = true
	fmt.Fprintf(c.w, "  FAIL  "+format+"\n", args...)
}

func runValidate(cmd *cobra.Command, args []string) error {
	c := &checker{w: cmd.OutOrStdout()}

	if used := viper.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err != nil {
			c.fail("config file %s: %v", used, err)
		} else {
			c.ok("config file %s", used)
		}
	} else {
		c.fail("no config file found (looked in %s and .)", config.ConfigDir())
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		c.fail("config cannot be decoded: %v", err)
		return fmt.Errorf("validation failed")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			c.fail("%s", e.Error())
		}
	} else {
		c.ok("configuration valid")
	}

	teamPath := cfg.Paths.Team()
	switch teams, err := team.Load(teamPath); {
	case errors.Is(err, errors.ErrNotFound):
		c.warn("team file %s not found", teamPath)
	case err != nil:
		c.fail("team file %s: %v", teamPath, err)
	default:
		c.ok("team file %s (%d team(s))", teamPath, len(teams.Teams))
	}

	trackerPath := cfg.Paths.TrackerPath()
	switch data, err := os.ReadFile(trackerPath); {
	case os.IsNotExist(err):
		c.warn("tracker %s not found, it will be created on first save", trackerPath)
	case err != nil:
		c.fail("tracker %s: %v", trackerPath, err)
	default:
		if problems := tracker.Validate(data, storage.Known); len(problems) > 0 {
			c.warn("tracker %s needs an upgrade (run 'oai-team tracker migrate'):", trackerPath)
			for _, p := range problems {
				fmt.Fprintf(c.w, "          %s\n", p)
			}
		} else {
			c.ok("tracker %s", trackerPath)
		}
	}

	var enabled []string
	for _, s := range cfg.Providers.Specs() {
		if s.Enabled() {
			enabled = append(enabled, s.Name)
		}
	}
	if len(enabled) == 0 {
		c.warn("no storage provider enabled")
	} else {
		c.ok("storage providers: %s", strings.Join(enabled, ", "))
	}

	if cfg.Registrar.Command == "" {
		c.warn("registrar.command not set")
	} else if _, err := exec.LookPath(cfg.Registrar.Command); err != nil {
		c.fail("registrar command %s: %v", cfg.Registrar.Command, err)
	} else {
		c.ok("registrar command %s", cfg.Registrar.Command)
	}

	if c.failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}
