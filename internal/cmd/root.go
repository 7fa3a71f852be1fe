// Package cmd implements the oai-team command line.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CoderDKai/oai-team-automation/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "oai-team",
	Short: "Team account provisioning and tracking",
	Long: `oai-team drives invited team accounts through registration and
authorization, mirrors them into the configured storage backends and keeps
each team's access token fresh. Progress is checkpointed in the tracker file
after every step, so an interrupted run resumes where it stopped.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/oai-team/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for the team, tracker and report files")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OAI_TEAM")
	// Replace dots with underscores for nested keys in env vars
	// e.g., OAI_TEAM_PROVIDERS_CRS_SECRET for providers.crs.secret
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
