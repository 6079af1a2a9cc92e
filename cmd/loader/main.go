package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"budgetchef/internal/catalog"
	"budgetchef/internal/config"
	"budgetchef/internal/platform/logger"
	"budgetchef/internal/platform/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	dataDir := flag.String("data", "data", "directory holding the reference CSV files")
	reset := flag.Bool("reset", false, "drop the schema before migrating")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	log := logger.New(cfg.Log)
	defer log.Sync()

	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrator, err := postgres.NewMigrator(db, log)
	if err != nil {
		log.Fatal("failed to create migrator", zap.Error(err))
	}
	if *reset {
		if err := migrator.Down(); err != nil {
			log.Fatal("failed to reset schema", zap.Error(err))
		}
	}
	if err := migrator.Up(); err != nil {
		log.Fatal("failed to migrate schema", zap.Error(err))
	}

	stats, err := catalog.NewLoader(db, log).Load(context.Background(), os.DirFS(*dataDir))
	if err != nil {
		log.Fatal("failed to load reference data", zap.String("dir", *dataDir), zap.Error(err))
	}

	total := 0
	for _, n := range stats {
		total += n
	}
	log.Info("reference data loaded", zap.Int("tables", len(stats)), zap.Int("rows", total))
}
