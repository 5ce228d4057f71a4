package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Wrote %s", path)))
	r.writePlain("Next steps:\n")
	r.writePlain("1. Export DASHSCOPE_API_KEY or add it to .env\n")
	r.writePlain("2. Run 'animx setup database' to create the history database\n")
	return r.writePlain("3. Run 'animx serve' and open http://localhost:%d\n", r.config.Server.Port)
}

// SetupDatabase initializes the database and runs migrations, or rolls back / reports with flags.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	}

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations")
	for _, s := range states {
		mark := ui.Success("✓ applied")
		if !s.Applied {
			mark = ui.Warn("· pending")
		}
		r.writePlain("%03d %-28s %s\n", s.Version, s.Name, mark)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}
