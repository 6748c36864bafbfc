package config

import "fmt"

// RefreshConfig controls snapshot reload behavior.
type RefreshConfig struct {
	// IntervalSeconds is the periodic background refresh. Zero disables it.
	IntervalSeconds int `json:"interval_seconds"`
	// ActiveTechsOnly limits the roster fetch to active technicians.
	ActiveTechsOnly bool `json:"active_techs_only"`
	// MinReloadIntervalMS rate-limits event-triggered reloads so a storm of
	// structural events collapses into a bounded number of snapshot pulls.
	MinReloadIntervalMS int `json:"min_reload_interval_ms"`
	// ReloadBurst is the rate limiter's burst allowance.
	ReloadBurst int `json:"reload_burst"`
}

// SetDefaults applies sane defaults.
func (c *RefreshConfig) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 60
	}
	if c.MinReloadIntervalMS <= 0 {
		c.MinReloadIntervalMS = 1000
	}
	if c.ReloadBurst <= 0 {
		c.ReloadBurst = 1
	}
}

// Validate checks field ranges.
func (c RefreshConfig) Validate() error {
	if c.IntervalSeconds < 0 {
		return fmt.Errorf("interval_seconds must not be negative")
	}
	return nil
}
