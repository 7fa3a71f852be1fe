package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/CoderDKai/oai-team-automation/internal/config"
	"github.com/CoderDKai/oai-team-automation/internal/persist"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create the oai-team configuration",
	Long: `View or create the oai-team configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration (secrets redacted)",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathCmd)
}

// redacted lists the leaf keys whose values are never printed.
var redacted = []string{"secret", "client_secret", "default_password"}

func redact(settings map[string]any) {
	for k, v := range settings {
		if nested, ok := v.(map[string]any); ok {
			redact(nested)
			continue
		}
		for _, r := range redacted {
			if k == r {
				if s, ok := v.(string); ok && s != "" {
					settings[k] = "********"
				}
			}
		}
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	settings := viper.AllSettings()
	delete(settings, "config")
	redact(settings)

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

const defaultConfigTemplate = `# oai-team configuration
# Every key can also be set through the environment, e.g.
# OAI_TEAM_PROVIDERS_CRS_SECRET for providers.crs.secret.

paths:
  # Base directory for the relative paths below (default: current directory)
  data_dir: ""
  team_file: team.json
  tracker_file: team_tracker.json
  csv_file: accounts.csv
  blacklist_file: domain_blacklist.json
  migration_file: migration_records.json

logging:
  enabled: true
  dir: logs
  # debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3

tracker:
  # How long a save waits for the tracker lock
  lock_timeout_seconds: 10

token:
  url: https://auth.openai.com/oauth/token
  client_id: ""
  # Refresh tokens expiring within this many seconds
  buffer_seconds: 3600

# A provider is enabled when both base_url and secret are set.
providers:
  crs:
    base_url: ""
    secret: ""
  cpa:
    base_url: ""
    secret: ""
  s2a:
    base_url: ""
    secret: ""
    catalog: openai

provisioning:
  default_password: ""
  min_delay_seconds: 5
  max_delay_seconds: 15
  blacklist: []

# Executable run once per account. It receives OAI_TEAM_EMAIL,
# OAI_TEAM_PASSWORD, OAI_TEAM_MODE (register|authorize) and OAI_TEAM_TEAM,
# and prints {"status": "...", "session": {...}} on stdout.
registrar:
  command: ""
  args: []
  timeout_minutes: 10

# Waiting for a freshly created backend account to become visible
poll:
  max_attempts: 5
  # tiered: fast_attempts waits of fast_interval_ms, then interval_ms
  # fibonacci: 3, 5, 8, 13, ... seconds, capped at max_interval_seconds
  schedule: tiered
  fast_attempts: 3
  fast_interval_ms: 1000
  interval_ms: 3000
  max_interval_seconds: 30

http:
  timeout_seconds: 30
  user_agent: oai-team
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}
	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// The file will hold backend secrets.
	if err := persist.WriteFile(configFile, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(out, used)
		return nil
	}
	fmt.Fprintf(out, "%s (not created yet)\n", config.ConfigFile())
	return nil
}
