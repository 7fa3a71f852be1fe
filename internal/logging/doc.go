// Package logging provides structured logging for provisioning runs.
//
// It wraps log/slog with a JSON handler. Child loggers carry persistent
// attributes for the team, account and storage provider being processed so
// a run log can be filtered per account after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/oai-team", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithTeam("alpha").WithAccount("user@example.com")
//	log.Info("status changed", "from", "processing", "to", "registered")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"status changed","team":"alpha","email":"user@example.com","from":"processing","to":"registered"}
//
// # Rotation
//
// [RotatingWriter] rotates the log file once it would exceed MaxSizeMB,
// keeping MaxBackups numbered copies.
//
// Use [NopLogger] in tests.
package logging
