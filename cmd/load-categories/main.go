package main

import (
	"context"
	"flag"
	"os"
	"time"

	"spy-game/internal/config"
	"spy-game/internal/db"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	filePath := flag.String("file", "categories.yaml", "path to categories yaml")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	seeds, err := db.ReadCategorySeeds(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("failed to read categories")
	}

	cfg := config.Load()
	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	loaded, err := db.LoadCategories(ctx, db.NewStore(conn), seeds)
	if err != nil {
		log.Fatal().Err(err).Int("loaded", loaded).Msg("failed to load categories")
	}
	log.Info().Int("loaded", loaded).Str("file", *filePath).Msg("categories loaded")
}
