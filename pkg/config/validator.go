package config

import "fmt"

// Validate checks that cfg is complete and internally consistent, failing
// fast at the first problem: infra first, then policy.
func Validate(cfg *Config) error {
	if cfg.StoreURL == "" {
		return NewValidationError("STORE_URL", ErrMissingRequiredField)
	}
	if cfg.BotImage == "" {
		return NewValidationError("BOT_IMAGE", ErrMissingRequiredField)
	}
	if cfg.CallbackBaseURL == "" {
		return NewValidationError("CALLBACK_BASE_URL", ErrMissingRequiredField)
	}
	switch cfg.OrchKind {
	case OrchestratorLocal, OrchestratorCluster:
	default:
		return NewValidationError("ORCH_KIND", fmt.Errorf("%w: %q", ErrInvalidValue, cfg.OrchKind))
	}
	if err := cfg.Reaper.Validate(); err != nil {
		return fmt.Errorf("reaper: %w", err)
	}
	if cfg.DB.MaxIdleConns > cfg.DB.MaxOpenConns {
		return NewValidationError("DB_MAX_IDLE_CONNS", fmt.Errorf("%w: cannot exceed DB_MAX_OPEN_CONNS (%d)", ErrInvalidValue, cfg.DB.MaxOpenConns))
	}
	if cfg.DB.MaxOpenConns < 1 {
		return NewValidationError("DB_MAX_OPEN_CONNS", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if cfg.StartRPCTimeout <= 0 {
		return NewValidationError("T_START_RPC", ErrInvalidValue)
	}
	return nil
}
