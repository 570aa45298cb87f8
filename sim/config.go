// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// A Config bounds a simulation run. The zero value is not usable; start
// from DefaultConfig.
//
type Config struct {
	Run   RunConfig   `toml:"run"`
	Trace TraceConfig `toml:"trace"`
}

// RunConfig holds the run-control limits.
//
type RunConfig struct {
	// Ticks stops the run after this many clock half-periods; 0 means no
	// tick limit (the run ends when all processes complete).
	Ticks uint64 `toml:"ticks"`
	// StepLimit stops the run after this many scheduler steps (ticks plus
	// process resumptions); 0 means no limit.
	StepLimit int `toml:"step-limit"`
	// SettleLimit bounds the settle passes per evaluation instant; going
	// over it is a SimulationInstabilityError.
	SettleLimit int `toml:"settle-limit"`
}

// TraceConfig controls the value-change feed.
//
type TraceConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the default run configuration.
//
func DefaultConfig() Config {
	return Config{
		Run: RunConfig{
			SettleLimit: 64,
		},
		Trace: TraceConfig{Enabled: true},
	}
}

// LoadConfig reads a TOML run configuration from path, on top of the
// defaults.
//
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrap(err, "load sim config")
	}
	if cfg.Run.SettleLimit < 1 {
		return cfg, errors.Errorf("config %s: settle-limit must be positive", path)
	}
	return cfg, nil
}
