package worker

import (
	"fmt"
	"time"
)

// Config holds maintenance worker configuration.
type Config struct {
	// PollInterval is how often the maintenance tasks run.
	PollInterval time.Duration

	// StaleSessionCutoff is how long an open chat session may sit idle before
	// the worker marks it completed.
	StaleSessionCutoff time.Duration

	// ReportExportEnabled turns on the daily usage-report CSV export.
	ReportExportEnabled bool

	// ReportWindow is how far back the usage-report export aggregates.
	ReportWindow time.Duration

	// ShutdownTimeout is how long Stop() waits for an in-flight run.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the maintenance worker.
func DefaultConfig() Config {
	return Config{
		PollInterval:       10 * time.Minute,
		StaleSessionCutoff: 24 * time.Hour,
		ReportWindow:       24 * time.Hour,
		ShutdownTimeout:    30 * time.Second,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.StaleSessionCutoff <= 0 {
		return fmt.Errorf("stale session cutoff must be positive, got %v", c.StaleSessionCutoff)
	}
	if c.ReportExportEnabled && c.ReportWindow <= 0 {
		return fmt.Errorf("report window must be positive, got %v", c.ReportWindow)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", c.ShutdownTimeout)
	}
	return nil
}
