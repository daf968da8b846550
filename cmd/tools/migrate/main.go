package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gastro-rechner/internal/config"
	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/store"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-steps n] up|down|version\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	steps := flag.Int("steps", 0, "limit up/down to n migrations; 0 means all for up and one for down")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := obs.NewLogger("console", "info")

	m, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrator")
	}
	defer store.CloseMigrator(m, logger)

	if err := run(m, flag.Arg(0), *steps, logger); err != nil {
		logger.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migration failed")
	}
}

func run(m *migrate.Migrate, command string, steps int, logger zerolog.Logger) error {
	switch command {
	case "up":
		if steps > 0 {
			return ignoreNoChange(m.Steps(steps))
		}
		return store.RunUp(m)
	case "down":
		if steps <= 0 {
			steps = 1
		}
		return ignoreNoChange(m.Steps(-steps))
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info().Msg("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
