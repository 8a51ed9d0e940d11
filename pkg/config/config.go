// Package config loads and validates the Bot Lifecycle Manager's runtime
// configuration from environment variables, with optional YAML overrides for
// the reaper thresholds.
package config

import "time"

// OrchestratorKind selects the container orchestrator adapter backend.
type OrchestratorKind string

// Recognized orchestrator backends.
const (
	OrchestratorLocal   OrchestratorKind = "local"
	OrchestratorCluster OrchestratorKind = "cluster"
)

// Config is the umbrella configuration object for the BLM process.
type Config struct {
	// StoreURL is the Postgres connection string for the state store.
	StoreURL string

	// BusURL is the Postgres connection string for the pool the command bus
	// publishes through. Usually equal to StoreURL.
	BusURL string

	// OrchKind selects the Container Orchestrator Adapter backend.
	OrchKind OrchestratorKind

	// BotImage is the worker container image reference passed to the
	// orchestrator on create.
	BotImage string

	// CallbackBaseURL is the externally reachable base URL workers use to
	// reach the callback ingress, e.g. "https://blm.internal".
	CallbackBaseURL string

	// HTTPPort is the port the REST API listens on.
	HTTPPort string

	// GinMode is one of "debug", "release", "test".
	GinMode string

	// StartRPCTimeout bounds Coordinator.StartBot end-to-end.
	StartRPCTimeout time.Duration

	// Reaper holds the reaper's scan thresholds.
	Reaper ReaperConfig

	// DB holds connection pool tuning for the store.
	DB DBPoolConfig

	// AllowedPlatformHosts restricts meeting_url validation at admission to
	// known-good hostnames per platform.
	AllowedPlatformHosts map[string][]string
}

// DBPoolConfig tunes the underlying *sql.DB connection pool.
type DBPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultDBPoolConfig returns production-ready pool defaults.
func DefaultDBPoolConfig() DBPoolConfig {
	return DBPoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

// defaultAllowedPlatformHosts is the built-in platform → host allowlist that
// Load installs; neither env nor blm.yaml overrides it.
func defaultAllowedPlatformHosts() map[string][]string {
	return map[string][]string{
		"zoom":        {"zoom.us", "*.zoom.us"},
		"google_meet": {"meet.google.com"},
		"teams":       {"teams.microsoft.com", "teams.live.com"},
	}
}
