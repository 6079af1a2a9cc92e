package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"budgetchef/internal/config"
	"budgetchef/internal/console"
	"budgetchef/internal/platform/logger"
	"budgetchef/internal/platform/postgres"
	"budgetchef/internal/price"
	"budgetchef/internal/recipe"
	"budgetchef/internal/user"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	// Logs go to stderr so they stay out of the menus.
	log := logger.New(cfg.Log)
	defer log.Sync()

	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := console.New(os.Stdin, os.Stdout,
		recipe.NewService(recipe.NewPostgresStore(db), log),
		price.NewService(price.NewPostgresStore(db), log),
		user.NewService(user.NewPostgresStore(db), log),
		log,
	)
	if err := c.Run(ctx); err != nil {
		log.Error("console session ended", zap.Error(err))
	}
}
