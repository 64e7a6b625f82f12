// Package config loads the master's and node's JSON configuration files.
// Grounded on the teacher's host-capable JSON path (services/hal/config,
// internal/util.DecodeJSON) rather than its TinyGo-only
// andreyvit/tinyjson dependency, which is not declared in the teacher's
// own go.mod and has no host-side build target in this module.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PineWarbler/iosim-go/internal/catalog"
)

// RuntimeSettings mirrors spec.md §6's runtime_settings object.
type RuntimeSettings struct {
	ErrorStackMaxLen   int  `json:"error_stack_max_len"`
	EnableVerboseLog   bool `json:"enable_verbose_logging"`
	AiLPFBoxcarLength  int  `json:"ai_LPF_boxcar_length"`
	PollBufferPeriodMs int  `json:"poll_buffer_period_ms"`
	SocketTimeoutS     int  `json:"socket_timeout_s"`
}

func (r RuntimeSettings) validate() error {
	if r.ErrorStackMaxLen < 1 {
		return fmt.Errorf("runtime_settings.error_stack_max_len must be >= 1")
	}
	if r.AiLPFBoxcarLength < 1 {
		return fmt.Errorf("runtime_settings.ai_LPF_boxcar_length must be >= 1")
	}
	if r.PollBufferPeriodMs < 1 {
		return fmt.Errorf("runtime_settings.poll_buffer_period_ms must be >= 1")
	}
	if r.SocketTimeoutS < 0 {
		return fmt.Errorf("runtime_settings.socket_timeout_s must be >= 0")
	}
	return nil
}

// MasterConfig is the master's config file shape (spec.md §6).
type MasterConfig struct {
	Signals         []catalog.Record `json:"signals"`
	RuntimeSettings RuntimeSettings  `json:"runtime_settings"`
}

// NodeConfig is the node-side analogue: it has no channel catalog (the
// node operates purely on pins), but needs the same runtime_settings
// shape for its AI averaging default and error-list cap.
type NodeConfig struct {
	ListenAddr      string          `json:"listen_addr"`
	AcceptTimeoutMs int             `json:"accept_timeout_ms"`
	RuntimeSettings RuntimeSettings `json:"runtime_settings"`
}

// LoadMaster reads and decodes a master config file.
func LoadMaster(path string) (*MasterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg MasterConfig
	if err := DecodeJSON(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.RuntimeSettings.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadNode reads and decodes a node config file.
func LoadNode(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg NodeConfig
	if err := DecodeJSON(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "192.168.80.1:5000"
	}
	if cfg.AcceptTimeoutMs <= 0 {
		cfg.AcceptTimeoutMs = 3000
	}
	if err := cfg.RuntimeSettings.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// DecodeJSON decodes src (raw bytes, a string, or an already-parsed
// map[string]any) into dst. Generalizes the teacher's
// services/hal/internal/util.DecodeJSON[T] helper, used the same way by
// bus-fed components that may receive either wire bytes or a pre-decoded
// value.
func DecodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
