package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/kbx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a starter config when none exists, then creates the
// database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else {
				r.writePlain("✓ Wrote %s\n", r.configPath)
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if _, err := r.openLocal(); err != nil {
		return err
	}

	applied, err := shared.AppliedMigrations(r.db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s (%d migrations applied)\n", r.config.Database.Path, len(applied))
}

// SetupMigrations prints the applied migration versions.
func (r *Runner) SetupMigrations(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(applied, false)
	}
	if len(applied) == 0 {
		return r.writePlain("No migrations applied. Run 'kbx setup database'.\n")
	}
	for _, v := range applied {
		r.writePlain("%03d\n", v)
	}
	return nil
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}
	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}

	version := applied[len(applied)-1]
	r.logger.Warn("rolled back migration", "version", version)
	return r.writePlain("✓ Rolled back migration %03d\n", version)
}
