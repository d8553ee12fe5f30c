package main

import (
	"fmt"
	"io"

	"github.com/evolyn/concierge/internal/config"
	"github.com/evolyn/concierge/internal/store"
)

// runSeed loads a mock-data JSON file into the configured database.
func runSeed(stdout io.Writer, configPath string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: concierge seed <mock_data.json>")
	}

	configPath, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := store.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	stats, err := s.Seed(data)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	fmt.Fprintf(stdout, "Seeded %d accounts, %d facilities, %d notes from %s\n",
		stats.Accounts, stats.Facilities, stats.Notes, args[0])
	return nil
}
