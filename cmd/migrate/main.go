package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/lib/pq"
	"github.com/saasfilter/backend/internal/infrastructure/config"
	"github.com/saasfilter/backend/internal/infrastructure/logger"
	"github.com/saasfilter/backend/internal/infrastructure/migration"
	"github.com/saasfilter/backend/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flags = struct {
	path     string
	logLevel string
}{}

var log *zap.Logger

func main() {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "SaaSFilter database migration tool",
		Long: `Applies the numbered SQL migrations to the postgres database named by config.toml
or the SAASFILTER_DATABASE_* environment variables.

Migrations are embedded in the binary. Pass --path to read them from a directory instead.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logger.New(&logger.Config{
				Level:      flags.logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync(log)
		},
	}
	root.PersistentFlags().StringVar(&flags.path, "path", "", "read migrations from this directory instead of the embedded set")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		migratorCommand("up", "Apply all pending migrations", cobra.NoArgs, func(m *migration.Migrator, _ []string) error {
			return m.Up()
		}),
		migratorCommand("down", "Roll back all migrations", cobra.NoArgs, func(m *migration.Migrator, _ []string) error {
			return m.Down()
		}),
		migratorCommand("steps <n>", "Apply n migrations (positive up, negative down)", cobra.ExactArgs(1), func(m *migration.Migrator, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return m.Steps(n)
		}),
		migratorCommand("goto <version>", "Migrate up or down to a version", cobra.ExactArgs(1), func(m *migration.Migrator, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return m.GoTo(uint(v))
		}),
		migratorCommand("version", "Show the current migration version", cobra.NoArgs, func(m *migration.Migrator, _ []string) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if v == 0 {
				log.Info("No migrations applied")
				return nil
			}
			log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
			return nil
		}),
		migratorCommand("force <version>", "Set the version without running migrations (clears dirty)", cobra.ExactArgs(1), func(m *migration.Migrator, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			log.Warn("Forcing migration version", zap.Int("version", v))
			return m.Force(v)
		}),
		newListCommand(),
		newCreateCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// migratorCommand builds a subcommand that runs fn against a connected migrator
func migratorCommand(use, short string, args cobra.PositionalArgs, fn func(*migration.Migrator, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeDB, err := connect()
			if err != nil {
				return err
			}
			defer closeDB()
			return fn(m, args)
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := migration.ListMigrations(migrationFS())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				log.Info("No migrations found")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), "  -", name)
			}
			return nil
		},
	}
}

func newCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create a new up/down migration pair (requires --path)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.path == "" {
				return errors.New("create writes files on disk: pass --path")
			}
			description := ""
			if len(args) == 2 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(flags.path, args[0], description)
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	}
}

func migrationFS() fs.FS {
	if flags.path != "" {
		return os.DirFS(flags.path)
	}
	return migrations.FS
}

func connect() (*migration.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		log.Warn("database.driver is not postgres; migrating the postgres DSN anyway",
			zap.String("driver", cfg.Database.Driver))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var src source.Driver
	if flags.path != "" {
		src, err = migration.DirSource(flags.path)
	} else {
		src, err = migration.EmbeddedSource(migrations.FS, ".")
	}
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	m, err := migration.New(db, src, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return m, func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
		_ = db.Close()
	}, nil
}
