package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// reaperYAMLConfig is the optional blm.yaml override for reaper thresholds.
// All fields are string durations ("60s", "5m", ...) parsed with
// time.ParseDuration, layered over the hardcoded defaults.
type reaperYAMLConfig struct {
	TReap           string `yaml:"t_reap"`
	TReserveStale   string `yaml:"t_reserve_stale"`
	TStartingStale  string `yaml:"t_starting_stale"`
	THeartbeatStale string `yaml:"t_heartbeat_stale"`
	TStoppingStale  string `yaml:"t_stopping_stale"`
}

// blmYAMLConfig is the top-level shape of an optional blm.yaml file.
type blmYAMLConfig struct {
	Reaper *reaperYAMLConfig `yaml:"reaper"`
}

// Load reads configuration from environment variables, applies an optional
// blm.yaml override (if configPath is non-empty and exists) for reaper
// thresholds, validates the result, and returns it ready for use.
//
// This is the primary entry point for configuration loading: load, then
// validate.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		StoreURL:             os.Getenv("STORE_URL"),
		BusURL:               getEnvOrDefault("BUS_URL", os.Getenv("STORE_URL")),
		OrchKind:             OrchestratorKind(getEnvOrDefault("ORCH_KIND", string(OrchestratorLocal))),
		BotImage:             os.Getenv("BOT_IMAGE"),
		CallbackBaseURL:      os.Getenv("CALLBACK_BASE_URL"),
		HTTPPort:             getEnvOrDefault("HTTP_PORT", "8080"),
		GinMode:              getEnvOrDefault("GIN_MODE", "debug"),
		Reaper:               DefaultReaperConfig(),
		DB:                   DefaultDBPoolConfig(),
		AllowedPlatformHosts: defaultAllowedPlatformHosts(),
	}

	startRPCTimeout, err := parseDurationEnv("T_START_RPC", 30*time.Second)
	if err != nil {
		return nil, NewLoadError("T_START_RPC", err)
	}
	cfg.StartRPCTimeout = startRPCTimeout

	// Reaper thresholds load env-first; a blm.yaml reaper section, when
	// present, still wins below.
	for _, th := range []struct {
		key  string
		dest *time.Duration
	}{
		{"T_REAP", &cfg.Reaper.TickInterval},
		{"T_RESERVE_STALE", &cfg.Reaper.ReserveStale},
		{"T_STARTING_STALE", &cfg.Reaper.StartingStale},
		{"T_HEARTBEAT_STALE", &cfg.Reaper.HeartbeatStale},
		{"T_STOPPING_STALE", &cfg.Reaper.StoppingStale},
	} {
		d, err := parseDurationEnv(th.key, *th.dest)
		if err != nil {
			return nil, NewLoadError(th.key, err)
		}
		*th.dest = d
	}

	if maxOpen, ok, err := parseIntEnv("DB_MAX_OPEN_CONNS"); err != nil {
		return nil, NewLoadError("DB_MAX_OPEN_CONNS", err)
	} else if ok {
		cfg.DB.MaxOpenConns = maxOpen
	}
	if maxIdle, ok, err := parseIntEnv("DB_MAX_IDLE_CONNS"); err != nil {
		return nil, NewLoadError("DB_MAX_IDLE_CONNS", err)
	} else if ok {
		cfg.DB.MaxIdleConns = maxIdle
	}

	if configPath != "" {
		if err := applyYAMLOverride(cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Info("Configuration loaded",
		"orch_kind", cfg.OrchKind,
		"http_port", cfg.HTTPPort,
		"t_reap", cfg.Reaper.TickInterval)

	return cfg, nil
}

// applyYAMLOverride merges a blm.yaml file's reaper section into cfg, if the
// file exists. A missing file is not an error — the env-derived defaults
// stand on their own.
func applyYAMLOverride(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return NewLoadError(path, err)
	}

	var yamlCfg blmYAMLConfig
	if err := yaml.Unmarshal(ExpandEnv(data), &yamlCfg); err != nil {
		return NewLoadError(path, err)
	}
	if yamlCfg.Reaper == nil {
		return nil
	}

	overrides := []struct {
		raw  string
		dest *time.Duration
		name string
	}{
		{yamlCfg.Reaper.TReap, &cfg.Reaper.TickInterval, "reaper.t_reap"},
		{yamlCfg.Reaper.TReserveStale, &cfg.Reaper.ReserveStale, "reaper.t_reserve_stale"},
		{yamlCfg.Reaper.TStartingStale, &cfg.Reaper.StartingStale, "reaper.t_starting_stale"},
		{yamlCfg.Reaper.THeartbeatStale, &cfg.Reaper.HeartbeatStale, "reaper.t_heartbeat_stale"},
		{yamlCfg.Reaper.TStoppingStale, &cfg.Reaper.StoppingStale, "reaper.t_stopping_stale"},
	}
	for _, o := range overrides {
		if o.raw == "" {
			continue
		}
		d, err := time.ParseDuration(o.raw)
		if err != nil {
			return NewLoadError(path, fmt.Errorf("%s: %w", o.name, err))
		}
		*o.dest = d
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func parseIntEnv(key string) (int, bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
