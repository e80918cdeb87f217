package main

import (
	"copro-backend/internal/config"
	"copro-backend/internal/infrastructure/database"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	config.SetupLogger(cfg)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database open")
	}
	applied, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal().Err(err).Ints("applied", applied).Msg("migrations failed")
	}
	log.Info().Ints("applied", applied).Msg("done")
}
