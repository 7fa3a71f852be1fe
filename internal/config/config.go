package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/CoderDKai/oai-team-automation/internal/poll"
	"github.com/CoderDKai/oai-team-automation/internal/storage"
)

// Config holds all configuration for oai-team
type Config struct {
	Paths        PathsConfig        `mapstructure:"paths"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Tracker      TrackerConfig      `mapstructure:"tracker"`
	Token        TokenConfig        `mapstructure:"token"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Registrar    RegistrarConfig    `mapstructure:"registrar"`
	Poll         PollConfig         `mapstructure:"poll"`
	HTTP         HTTPConfig         `mapstructure:"http"`
}

// PathsConfig controls where the durable files live.
// Relative file paths are resolved against DataDir.
type PathsConfig struct {
	// DataDir is the base directory for relative file paths.
	// Empty means the current working directory.
	DataDir string `mapstructure:"data_dir"`

	// TeamFile holds the team credential records.
	TeamFile string `mapstructure:"team_file"`

	// TrackerFile is the account tracker document.
	TrackerFile string `mapstructure:"tracker_file"`

	// CSVFile receives one row per processed account.
	CSVFile string `mapstructure:"csv_file"`

	// BlacklistFile persists domains that refused registration.
	BlacklistFile string `mapstructure:"blacklist_file"`

	// MigrationFile holds the migration record log.
	MigrationFile string `mapstructure:"migration_file"`
}

// Resolve returns path joined to DataDir unless it is absolute or empty.
// A leading ~ is expanded to the home directory.
func (p *PathsConfig) Resolve(path string) string {
	if path == "" {
		return ""
	}
	path = expandHome(path)
	if filepath.IsAbs(path) || p.DataDir == "" {
		return path
	}
	return filepath.Join(expandHome(p.DataDir), path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Team returns the resolved team file path.
func (p *PathsConfig) Team() string { return p.Resolve(p.TeamFile) }

// TrackerPath returns the resolved tracker file path.
func (p *PathsConfig) TrackerPath() string { return p.Resolve(p.TrackerFile) }

// CSV returns the resolved CSV report path.
func (p *PathsConfig) CSV() string { return p.Resolve(p.CSVFile) }

// Blacklist returns the resolved blacklist file path.
func (p *PathsConfig) Blacklist() string { return p.Resolve(p.BlacklistFile) }

// Migration returns the resolved migration record file path.
func (p *PathsConfig) Migration() string { return p.Resolve(p.MigrationFile) }

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes the run log to Dir. When false, warnings and errors
	// still go to stderr.
	Enabled bool `mapstructure:"enabled"`

	// Dir is the log directory (default: <data_dir>/logs)
	Dir string `mapstructure:"dir"`

	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`

	// MaxSizeMB is the size at which the log file rotates (0 disables rotation)
	MaxSizeMB int `mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated files kept
	MaxBackups int `mapstructure:"max_backups"`
}

// TrackerConfig controls the tracker store.
type TrackerConfig struct {
	// LockTimeoutSeconds bounds how long a save waits for the file lock.
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds"`
}

// LockTimeout returns the lock timeout as a duration.
func (c *TrackerConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// TokenConfig controls team access token refresh.
type TokenConfig struct {
	URL          string `mapstructure:"url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Audience     string `mapstructure:"audience"`
	Scope        string `mapstructure:"scope"`

	// BufferSeconds refreshes tokens expiring within this window.
	BufferSeconds int `mapstructure:"buffer_seconds"`
}

// Buffer returns the expiry buffer as a duration.
func (c *TokenConfig) Buffer() time.Duration {
	return time.Duration(c.BufferSeconds) * time.Second
}

// ProviderConfig is one storage backend. A provider is enabled only when
// both BaseURL and Secret are set.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Secret  string `mapstructure:"secret"`
	// Catalog is the s2a platform scanned for accounts.
	Catalog string `mapstructure:"catalog"`
}

// ProvidersConfig groups the storage backends.
type ProvidersConfig struct {
	CRS ProviderConfig `mapstructure:"crs"`
	CPA ProviderConfig `mapstructure:"cpa"`
	S2A ProviderConfig `mapstructure:"s2a"`
}

// Specs returns one storage.Spec per known provider, in storage.Known order.
func (c *ProvidersConfig) Specs() []storage.Spec {
	return []storage.Spec{
		{Name: storage.CRS, BaseURL: c.CRS.BaseURL, Secret: c.CRS.Secret},
		{Name: storage.CPA, BaseURL: c.CPA.BaseURL, Secret: c.CPA.Secret},
		{Name: storage.S2A, BaseURL: c.S2A.BaseURL, Secret: c.S2A.Secret, Catalog: c.S2A.Catalog},
	}
}

// ProvisioningConfig controls the account state machine.
type ProvisioningConfig struct {
	// DefaultPassword is used for accounts listed without a password.
	DefaultPassword string `mapstructure:"default_password"`

	// MinDelaySeconds and MaxDelaySeconds bound the randomised pause
	// between accounts.
	MinDelaySeconds int `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds int `mapstructure:"max_delay_seconds"`

	// Blacklist seeds domains that are never registered.
	Blacklist []string `mapstructure:"blacklist"`
}

// MinDelay returns the minimum inter-account delay.
func (c *ProvisioningConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelaySeconds) * time.Second
}

// MaxDelay returns the maximum inter-account delay.
func (c *ProvisioningConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySeconds) * time.Second
}

// RegistrarConfig configures the external registration command.
type RegistrarConfig struct {
	// Command is the executable invoked once per account.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	// Dir is the working directory of the command (default: current).
	Dir string `mapstructure:"dir"`
	// TimeoutMinutes bounds one invocation.
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
}

// Timeout returns the per-invocation timeout.
func (c *RegistrarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Poll schedules.
const (
	ScheduleTiered    = "tiered"
	ScheduleFibonacci = "fibonacci"
)

// ValidSchedules returns the accepted poll.schedule values.
func ValidSchedules() []string {
	return []string{ScheduleTiered, ScheduleFibonacci}
}

// PollConfig controls how long a freshly created backend account is
// waited for.
type PollConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	// Schedule is "tiered" (fast retries then a fixed interval) or
	// "fibonacci" (3, 5, 8, ... seconds up to max_interval_seconds).
	Schedule           string `mapstructure:"schedule"`
	FastAttempts       int    `mapstructure:"fast_attempts"`
	FastIntervalMS     int    `mapstructure:"fast_interval_ms"`
	IntervalMS         int    `mapstructure:"interval_ms"`
	MaxIntervalSeconds int    `mapstructure:"max_interval_seconds"`
}

// FastInterval returns the wait used for the first FastAttempts retries.
func (c *PollConfig) FastInterval() time.Duration {
	return time.Duration(c.FastIntervalMS) * time.Millisecond
}

// Interval returns the wait used after the fast retries.
func (c *PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// MaxInterval caps the fibonacci schedule.
func (c *PollConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalSeconds) * time.Second
}

// Options returns poll options using the configured schedule.
func (c *PollConfig) Options(name string) poll.Options {
	var schedule poll.Schedule
	switch c.Schedule {
	case ScheduleFibonacci:
		schedule = poll.NewFibonacci(c.MaxInterval())
	default:
		schedule = poll.NewTiered(c.FastAttempts, c.FastInterval(), c.Interval())
	}
	return poll.Options{
		Name:        name,
		MaxAttempts: c.MaxAttempts,
		Schedule:    schedule,
	}
}

// HTTPConfig controls the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// Timeout returns the per-request timeout.
func (c *HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:       "",
			TeamFile:      "team.json",
			TrackerFile:   "team_tracker.json",
			CSVFile:       "accounts.csv",
			BlacklistFile: "domain_blacklist.json",
			MigrationFile: "migration_records.json",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Dir:        "logs",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Tracker: TrackerConfig{
			LockTimeoutSeconds: 10,
		},
		Token: TokenConfig{
			URL:           "https://auth.openai.com/oauth/token",
			BufferSeconds: 3600,
		},
		Providers: ProvidersConfig{
			S2A: ProviderConfig{Catalog: storage.DefaultCatalog},
		},
		Provisioning: ProvisioningConfig{
			MinDelaySeconds: 5,
			MaxDelaySeconds: 15,
			Blacklist:       []string{},
		},
		Registrar: RegistrarConfig{
			Args:           []string{},
			TimeoutMinutes: 10,
		},
		Poll: PollConfig{
			MaxAttempts:        5,
			Schedule:           ScheduleTiered,
			FastAttempts:       3,
			FastIntervalMS:     1000,
			IntervalMS:         3000,
			MaxIntervalSeconds: 30,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
			UserAgent:      "oai-team",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Paths defaults
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
	viper.SetDefault("paths.team_file", defaults.Paths.TeamFile)
	viper.SetDefault("paths.tracker_file", defaults.Paths.TrackerFile)
	viper.SetDefault("paths.csv_file", defaults.Paths.CSVFile)
	viper.SetDefault("paths.blacklist_file", defaults.Paths.BlacklistFile)
	viper.SetDefault("paths.migration_file", defaults.Paths.MigrationFile)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	viper.SetDefault("tracker.lock_timeout_seconds", defaults.Tracker.LockTimeoutSeconds)

	// Token defaults
	viper.SetDefault("token.url", defaults.Token.URL)
	viper.SetDefault("token.client_id", defaults.Token.ClientID)
	viper.SetDefault("token.client_secret", defaults.Token.ClientSecret)
	viper.SetDefault("token.audience", defaults.Token.Audience)
	viper.SetDefault("token.scope", defaults.Token.Scope)
	viper.SetDefault("token.buffer_seconds", defaults.Token.BufferSeconds)

	// Provider defaults (empty means disabled; registered so env overrides bind)
	for _, name := range storage.Known {
		viper.SetDefault("providers."+name+".base_url", "")
		viper.SetDefault("providers."+name+".secret", "")
	}
	viper.SetDefault("providers.s2a.catalog", defaults.Providers.S2A.Catalog)

	// Provisioning defaults
	viper.SetDefault("provisioning.default_password", defaults.Provisioning.DefaultPassword)
	viper.SetDefault("provisioning.min_delay_seconds", defaults.Provisioning.MinDelaySeconds)
	viper.SetDefault("provisioning.max_delay_seconds", defaults.Provisioning.MaxDelaySeconds)
	viper.SetDefault("provisioning.blacklist", defaults.Provisioning.Blacklist)

	// Registrar defaults
	viper.SetDefault("registrar.command", defaults.Registrar.Command)
	viper.SetDefault("registrar.args", defaults.Registrar.Args)
	viper.SetDefault("registrar.dir", defaults.Registrar.Dir)
	viper.SetDefault("registrar.timeout_minutes", defaults.Registrar.TimeoutMinutes)

	// Poll defaults
	viper.SetDefault("poll.max_attempts", defaults.Poll.MaxAttempts)
	viper.SetDefault("poll.fast_attempts", defaults.Poll.FastAttempts)
	viper.SetDefault("poll.fast_interval_ms", defaults.Poll.FastIntervalMS)
	viper.SetDefault("poll.interval_ms", defaults.Poll.IntervalMS)
	viper.SetDefault("poll.schedule", defaults.Poll.Schedule)
	viper.SetDefault("poll.max_interval_seconds", defaults.Poll.MaxIntervalSeconds)

	// HTTP defaults
	viper.SetDefault("http.timeout_seconds", defaults.HTTP.TimeoutSeconds)
	viper.SetDefault("http.user_agent", defaults.HTTP.UserAgent)
}

// Load reads the configuration from viper into a Config struct and validates it.
// Returns an error if unmarshaling fails or if validation errors are found.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "oai-team")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oai-team"
	}
	return filepath.Join(home, ".config", "oai-team")
}

// ConfigFile returns the path to the default config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
