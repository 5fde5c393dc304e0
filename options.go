// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package tessera

import (
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type Options struct {
	// Initial size of the dynamically allocated part of the memory arena,
	// in bytes.
	DynamicMemory uint32 `envconfig:"DYNAMIC_MEMORY" default:"4194304"`
	// The dynamic part of the arena grows up to this size before a render
	// fails with ErrMemory.
	MaxMemory uint32 `envconfig:"MAX_MEMORY" default:"268435456"`
	// Start from an estimate of the memory a scene needs if it is larger
	// than DynamicMemory.
	EstimateMemory bool `envconfig:"ESTIMATE_MEMORY" default:"true"`
	// Maximum number of workgroups running at once. Zero uses GOMAXPROCS.
	Workers int `envconfig:"WORKERS" default:"0"`
	// Level for loggers built from these options. The renderer itself
	// logs through Logger.
	LogLevel slog.Level `envconfig:"LOG_LEVEL" default:"info"`
}

// DefaultOptions returns the options used when no environment variables are
// set.
func DefaultOptions() Options {
	return Options{
		DynamicMemory:  4 << 20,
		MaxMemory:      256 << 20,
		EstimateMemory: true,
		LogLevel:       slog.LevelInfo,
	}
}

// LoadOptions reads options from TESSERA_* environment variables.
func LoadOptions() (Options, error) {
	var opts Options
	if err := envconfig.Process("TESSERA", &opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}
