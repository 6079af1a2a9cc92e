package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budgetchef/internal/api"
	"budgetchef/internal/config"
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

	log := logger.New(cfg.Log)
	defer log.Sync()

	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	handler := api.NewHandler(
		recipe.NewService(recipe.NewPostgresStore(db), log),
		price.NewService(price.NewPostgresStore(db), log),
		user.NewService(user.NewPostgresStore(db), log),
		log,
	)

	r := newRouter(handler, cfg.AllowOrigins)

	log.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

// newRouter builds the gin engine with CORS and the API routes.
func newRouter(handler *api.Handler, allowOrigins []string) *gin.Engine {
	r := gin.Default()

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.Routes(r)
	return r
}
