package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, initializes the database and assigns this install
// a client identifier.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = shared.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file exists", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		shared.ResolvePaths(config)
		r.config = config
	}

	if err := shared.EnsureDir(r.config.Cache.Dir); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.store(); err != nil {
		return err
	}

	clientID, err := r.settings.ClientID()
	if err != nil {
		return fmt.Errorf("failed to assign client identifier: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s\n", r.config.Database.Path)
	r.writePlain("✓ Client identifier: %s\n", clientID)
	r.writePlainln("Next: run `plexaa auth login` to sign in.")
	return nil
}
