package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    GraphBaseURL string `env:"GRAPH_BASE_URL" envDefault:"https://graph.facebook.com"`
//	    MaxBatchSize int    `env:"GRAPH_MAX_BATCH_SIZE" envDefault:"50"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
