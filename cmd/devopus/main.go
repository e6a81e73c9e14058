package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/devopus/devopus/src"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg := src.LoadConfig()
	if cfg.AnthropicAPIKey == "" {
		log.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store src.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = src.NewPGStore(pool)
		log.Info("database configured")
	} else {
		log.Warn("DATABASE_URL not set, persistence disabled")
	}

	var storage *src.AssetStorage
	if cfg.StorageConfigured() {
		storage = src.NewAssetStorage(cfg.SupabaseURL, cfg.SupabaseServiceKey, log)
	}

	models := src.NewModels(cfg.AnthropicAPIKey)
	pipeline := src.NewPipeline(models, store, log)
	server := src.NewServer(cfg.ListenAddr, pipeline, store, storage, log)

	log.Info("listening", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
