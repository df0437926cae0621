// Package main applies or rolls back the database schema.
//
// Usage:
//
//	migrate up
//	migrate down [steps]
//	migrate version
//	migrate force <version>
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/caarlos0/env/v10"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Exit codes for the migrate command.
const (
	exitSuccess = 0
	exitFailure = 1
)

type migrateConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("service", "linkpulse-migrate")
	os.Exit(run(os.Args[1:], logger))
}

func run(args []string, logger *slog.Logger) int {
	cmd, err := parseCommand(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "Usage: migrate <up|down [steps]|version|force <version>>")
		return exitFailure
	}

	var cfg migrateConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Error("failed to load config", "error", err)
		return exitFailure
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database connection", "error", err)
		return exitFailure
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Error("create postgres driver", "error", err)
		return exitFailure
	}

	dir := cfg.MigrationsDir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		logger.Error("create migrate instance", "error", err, "migrations_dir", dir)
		return exitFailure
	}

	if err := cmd.apply(m, logger); err != nil {
		logger.Error("migration failed", "command", cmd.name, "error", err)
		return exitFailure
	}
	return exitSuccess
}

type command struct {
	name string
	n    int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("missing command")
	}

	switch name := args[0]; name {
	case "up", "version":
		if len(args) > 1 {
			return command{}, fmt.Errorf("%s takes no arguments", name)
		}
		return command{name: name}, nil
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return command{}, fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		return command{name: name, n: steps}, nil
	case "force":
		if len(args) != 2 {
			return command{}, errors.New("force needs a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < -1 {
			return command{}, fmt.Errorf("invalid version %q", args[1])
		}
		return command{name: name, n: v}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", name)
	}
}

func (c command) apply(m *migrate.Migrate, logger *slog.Logger) error {
	var err error
	switch c.name {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-c.n)
	case "force":
		err = m.Force(c.n)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			logger.Info("no migrations applied")
			return nil
		}
		if verr != nil {
			return verr
		}
		logger.Info("current version", "version", version, "dirty", dirty)
		return nil
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to apply", "command", c.name)
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("migration completed", "command", c.name)
	return nil
}
