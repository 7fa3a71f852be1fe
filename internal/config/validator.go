package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/CoderDKai/oai-team-automation/internal/blacklist"
)

// ValidationError represents a single configuration validation error
type ValidationError struct {
	Field   string // The config field path (e.g., "providers.crs.base_url")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

const maxPathLength = 4096

// Validate checks the configuration and returns all errors found.
// An empty slice means the configuration is valid.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTracker()...)
	errors = append(errors, c.validateToken()...)
	errors = append(errors, c.validateProviders()...)
	errors = append(errors, c.validateProvisioning()...)
	errors = append(errors, c.validateRegistrar()...)
	errors = append(errors, c.validatePoll()...)
	errors = append(errors, c.validateHTTP()...)

	return errors
}

func validatePath(field, path string, required bool) []ValidationError {
	if path == "" {
		if required {
			return []ValidationError{{Field: field, Value: path, Message: "must not be empty"}}
		}
		return nil
	}
	if strings.ContainsRune(path, '\x00') {
		return []ValidationError{{Field: field, Value: path, Message: "path contains invalid null character"}}
	}
	if len(path) > maxPathLength {
		return []ValidationError{{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		}}
	}
	return nil
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validatePath("paths.data_dir", c.Paths.DataDir, false)...)
	errors = append(errors, validatePath("paths.team_file", c.Paths.TeamFile, true)...)
	errors = append(errors, validatePath("paths.tracker_file", c.Paths.TrackerFile, true)...)
	errors = append(errors, validatePath("paths.csv_file", c.Paths.CSVFile, true)...)
	errors = append(errors, validatePath("paths.blacklist_file", c.Paths.BlacklistFile, true)...)
	errors = append(errors, validatePath("paths.migration_file", c.Paths.MigrationFile, true)...)

	// The tracker and team file are locked and rewritten independently.
	if c.Paths.TeamFile != "" && c.Paths.Team() == c.Paths.TrackerPath() {
		errors = append(errors, ValidationError{
			Field:   "paths.tracker_file",
			Value:   c.Paths.TrackerFile,
			Message: "must differ from paths.team_file",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	if c.Logging.Enabled {
		errors = append(errors, validatePath("logging.dir", c.Logging.Dir, true)...)
	}

	return errors
}

// validateTracker validates the TrackerConfig
func (c *Config) validateTracker() []ValidationError {
	if c.Tracker.LockTimeoutSeconds <= 0 {
		return []ValidationError{{
			Field:   "tracker.lock_timeout_seconds",
			Value:   c.Tracker.LockTimeoutSeconds,
			Message: "must be positive",
		}}
	}
	return nil
}

// validateToken validates the TokenConfig
func (c *Config) validateToken() []ValidationError {
	var errors []ValidationError

	if err := validateURL(c.Token.URL); err != "" {
		errors = append(errors, ValidationError{Field: "token.url", Value: c.Token.URL, Message: err})
	}

	if c.Token.BufferSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "token.buffer_seconds",
			Value:   c.Token.BufferSeconds,
			Message: "must be non-negative",
		})
	}

	if c.Token.ClientSecret != "" && c.Token.ClientID == "" {
		errors = append(errors, ValidationError{
			Field:   "token.client_id",
			Value:   c.Token.ClientID,
			Message: "required when token.client_secret is set",
		})
	}

	return errors
}

// validateProviders validates every configured storage backend. An entry
// with only one of base_url and secret set is almost always a typo, so it
// is reported instead of silently disabling the provider.
func (c *Config) validateProviders() []ValidationError {
	var errors []ValidationError

	check := func(name string, p ProviderConfig) {
		prefix := "providers." + name
		hasURL := strings.TrimSpace(p.BaseURL) != ""
		hasSecret := strings.TrimSpace(p.Secret) != ""

		if hasURL {
			if err := validateURL(p.BaseURL); err != "" {
				errors = append(errors, ValidationError{Field: prefix + ".base_url", Value: p.BaseURL, Message: err})
			}
		}
		switch {
		case hasURL && !hasSecret:
			errors = append(errors, ValidationError{
				Field:   prefix + ".secret",
				Value:   "",
				Message: "required when base_url is set",
			})
		case hasSecret && !hasURL:
			errors = append(errors, ValidationError{
				Field:   prefix + ".base_url",
				Value:   "",
				Message: "required when secret is set",
			})
		}
	}

	check("crs", c.Providers.CRS)
	check("cpa", c.Providers.CPA)
	check("s2a", c.Providers.S2A)

	if strings.TrimSpace(c.Providers.S2A.BaseURL) != "" && strings.TrimSpace(c.Providers.S2A.Catalog) == "" {
		errors = append(errors, ValidationError{
			Field:   "providers.s2a.catalog",
			Value:   c.Providers.S2A.Catalog,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateProvisioning validates the ProvisioningConfig
func (c *Config) validateProvisioning() []ValidationError {
	var errors []ValidationError
	p := c.Provisioning

	if p.MinDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "provisioning.min_delay_seconds",
			Value:   p.MinDelaySeconds,
			Message: "must be non-negative",
		})
	}
	if p.MaxDelaySeconds < p.MinDelaySeconds {
		errors = append(errors, ValidationError{
			Field:   "provisioning.max_delay_seconds",
			Value:   p.MaxDelaySeconds,
			Message: fmt.Sprintf("must be at least provisioning.min_delay_seconds (%d)", p.MinDelaySeconds),
		})
	}

	for i, domain := range p.Blacklist {
		if _, err := blacklist.Normalize(domain); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("provisioning.blacklist[%d]", i),
				Value:   domain,
				Message: "is not a valid domain",
			})
		}
	}

	return errors
}

// validateRegistrar validates the RegistrarConfig. The command itself is
// optional: run reports a missing registrar only when an account needs it.
func (c *Config) validateRegistrar() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validatePath("registrar.command", c.Registrar.Command, false)...)
	errors = append(errors, validatePath("registrar.dir", c.Registrar.Dir, false)...)

	if c.Registrar.TimeoutMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "registrar.timeout_minutes",
			Value:   c.Registrar.TimeoutMinutes,
			Message: "must be positive",
		})
	}

	return errors
}

// validatePoll validates the PollConfig
func (c *Config) validatePoll() []ValidationError {
	var errors []ValidationError

	if c.Poll.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "poll.max_attempts",
			Value:   c.Poll.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if c.Poll.FastAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.fast_attempts",
			Value:   c.Poll.FastAttempts,
			Message: "must be non-negative",
		})
	}
	if c.Poll.FastIntervalMS <= 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.fast_interval_ms",
			Value:   c.Poll.FastIntervalMS,
			Message: "must be positive",
		})
	}
	if c.Poll.IntervalMS <= 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.interval_ms",
			Value:   c.Poll.IntervalMS,
			Message: "must be positive",
		})
	}
	switch c.Poll.Schedule {
	case ScheduleTiered:
	case ScheduleFibonacci:
		if c.Poll.MaxIntervalSeconds <= 0 {
			errors = append(errors, ValidationError{
				Field:   "poll.max_interval_seconds",
				Value:   c.Poll.MaxIntervalSeconds,
				Message: "must be positive for the fibonacci schedule",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "poll.schedule",
			Value:   c.Poll.Schedule,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSchedules(), ", ")),
		})
	}

	return errors
}

// validateHTTP validates the HTTPConfig
func (c *Config) validateHTTP() []ValidationError {
	if c.HTTP.TimeoutSeconds <= 0 {
		return []ValidationError{{
			Field:   "http.timeout_seconds",
			Value:   c.HTTP.TimeoutSeconds,
			Message: "must be positive",
		}}
	}
	return nil
}

// validateURL returns a message describing why raw is not an absolute
// http(s) URL, or "" when it is.
func validateURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "is not a valid URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "must use http or https"
	}
	if u.Host == "" {
		return "must include a host"
	}
	return ""
}
