package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Sim holds the simulation parameters. Every field is required on load;
// a config file missing any of them is rejected at startup.
type Sim struct {
	// BlockMean is the exponential mean for the mining delay, seconds
	BlockMean float64 `json:"block_mean"`
	// BlockDuration multiplies the sampled mining delay
	BlockDuration uint32 `json:"block_duration"`
	// BlockSize is the number of transactions per block
	BlockSize uint32 `json:"block_size"`
	// TxMean is the exponential mean for inter-arrival time, seconds
	TxMean float64 `json:"tx_mean"`
	// TxDuration multiplies the sampled inter-arrival delay
	TxDuration uint32 `json:"tx_duration"`
	// MaxTxOutputs bounds the outputs of a generated transaction
	MaxTxOutputs int `json:"max_tx_outputs"`
	// InvalidTxMeanRatio is 1/p for intentional-invalid injection;
	// 0 disables injection entirely
	InvalidTxMeanRatio uint32 `json:"invalid_tx_mean_ratio"`
}

// Default mirrors the built-in simulation constants
func Default() Sim {
	return Sim{
		BlockMean:          1.0,
		BlockDuration:      10,
		BlockSize:          8,
		TxMean:             1.0,
		TxDuration:         5,
		MaxTxOutputs:       3,
		InvalidTxMeanRatio: 0,
	}
}

// Load reads and validates a config file. Missing file, malformed
// JSON, absent fields, and out-of-range values are all fatal at init;
// unknown fields are ignored.
func Load(path string) (Sim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sim{}, errors.Wrapf(err, "config: reading %s", path)
	}

	// Required-field tracking: decode into a raw map first, then into
	// the struct, so an omitted field is an error instead of a zero.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Sim{}, errors.Wrapf(err, "config: parsing %s", path)
	}
	for _, field := range []string{
		"block_mean", "block_duration", "block_size",
		"tx_mean", "tx_duration", "max_tx_outputs", "invalid_tx_mean_ratio",
	} {
		if _, ok := raw[field]; !ok {
			return Sim{}, errors.Errorf("config: %s: missing required field %q", path, field)
		}
	}

	var cfg Sim
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Sim{}, errors.Wrapf(err, "config: parsing %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return Sim{}, err
	}
	return cfg, nil
}

// Validate checks the ranges the simulation depends on
func (c Sim) Validate() error {
	if c.BlockMean <= 0 {
		return errors.Errorf("config: block_mean must be positive, got %v", c.BlockMean)
	}
	if c.TxMean <= 0 {
		return errors.Errorf("config: tx_mean must be positive, got %v", c.TxMean)
	}
	if c.BlockSize == 0 {
		return errors.New("config: block_size must be at least 1")
	}
	if c.MaxTxOutputs < 1 {
		return errors.Errorf("config: max_tx_outputs must be at least 1, got %d", c.MaxTxOutputs)
	}
	return nil
}
