package store

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/botlifecycle/pkg/models"
)

func marshalConfig(cfg models.BotConfig) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode bot config: %w", err)
	}
	return data, nil
}

func unmarshalConfig(data []byte, cfg *models.BotConfig) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode bot config: %w", err)
	}
	return nil
}
