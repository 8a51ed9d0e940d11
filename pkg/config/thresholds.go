package config

import "time"

// ReaperConfig controls how the reaper scans for and reaps stuck
// Meetings, settable through the T_REAP / T_RESERVE_STALE /
// T_STARTING_STALE / T_HEARTBEAT_STALE / T_STOPPING_STALE knobs.
type ReaperConfig struct {
	// TickInterval is how often the reaper scans the store.
	TickInterval time.Duration `yaml:"t_reap"`

	// ReserveStale is how long a Meeting may sit in "reserved" before the
	// reaper fails it with reason "startup_timeout".
	ReserveStale time.Duration `yaml:"t_reserve_stale"`

	// StartingStale is how long a Meeting may sit in "starting" before the
	// reaper fails it with reason "join_timeout".
	StartingStale time.Duration `yaml:"t_starting_stale"`

	// HeartbeatStale is how long an "active" Meeting may go without a
	// heartbeat before the reaper fails it with reason "heartbeat_lost".
	HeartbeatStale time.Duration `yaml:"t_heartbeat_stale"`

	// StoppingStale is how long a Meeting may sit in "stopping" before the
	// reaper fails it with reason "shutdown_timeout".
	StoppingStale time.Duration `yaml:"t_stopping_stale"`
}

// DefaultReaperConfig returns the built-in reaper thresholds.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		TickInterval:   60 * time.Second,
		ReserveStale:   5 * time.Minute,
		StartingStale:  10 * time.Minute,
		HeartbeatStale: 2 * time.Minute,
		StoppingStale:  5 * time.Minute,
	}
}

// Validate checks that every threshold is positive.
func (c ReaperConfig) Validate() error {
	for name, d := range map[string]time.Duration{
		"t_reap":            c.TickInterval,
		"t_reserve_stale":   c.ReserveStale,
		"t_starting_stale":  c.StartingStale,
		"t_heartbeat_stale": c.HeartbeatStale,
		"t_stopping_stale":  c.StoppingStale,
	} {
		if d <= 0 {
			return NewValidationError(name, ErrInvalidValue)
		}
	}
	return nil
}
