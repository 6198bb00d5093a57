// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package followcfg owns the follow-list scheduler's persistent settings.

Exactly zero or one configuration exists per deployment: it lives as a
single JSON value under a well-known key in the app_config table. Absence
reads as the disabled default, so a fresh install never schedules checks
until someone turns them on.
*/
package followcfg

import "time"

// ConfigKey is the app_config row holding the serialized configuration.
const ConfigKey = "follow_config"

// DefaultIntervalHours is applied when a stored or submitted interval is
// missing.
const DefaultIntervalHours = 12

// Config is the follow-list scheduler configuration.
type Config struct {
	// Enabled turns the periodic follow-list check on.
	Enabled bool `json:"enabled"`

	// CheckIntervalHours is the check cadence; always >= 1 when stored.
	CheckIntervalHours int `json:"check_interval_hours"`

	// URLs is the legacy global follow list, kept for deployments that
	// predate per-library follow.txt files. Order is preserved.
	URLs []string `json:"urls,omitempty"`

	// LastCheckTime is stamped after every completed check run.
	LastCheckTime *time.Time `json:"last_check_time,omitempty"`
}

// Default returns the disabled out-of-box configuration.
func Default() Config {
	return Config{Enabled: false, CheckIntervalHours: DefaultIntervalHours}
}

// Interval converts the configured cadence to a duration.
func (c Config) Interval() time.Duration {
	hours := c.CheckIntervalHours
	if hours < 1 {
		hours = DefaultIntervalHours
	}
	return time.Duration(hours) * time.Hour
}
