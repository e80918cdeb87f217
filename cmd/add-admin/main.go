package main

import (
	"context"
	"flag"
	"os"

	"copro-backend/internal/application/user"
	"copro-backend/internal/config"
	"copro-backend/internal/infrastructure/database"
	"copro-backend/internal/middleware"
	"copro-backend/internal/pkg/constants"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	email := flag.String("email", "", "account email (required)")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "account password, defaults to $ADMIN_PASSWORD")
	fullname := flag.String("fullname", "Administrateur", "display name")
	role := flag.String("role", constants.Admin, "role: viewer, gestionnaire, admin or superadmin")
	promote := flag.Bool("promote", false, "change the role of an existing account instead of creating one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	config.SetupLogger(cfg)
	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database open")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = middleware.NewRedisClient(cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, live sessions are kept")
		}
	}
	svc := &user.Service{DB: db, Rdb: rdb}
	ctx := context.Background()

	if *promote {
		u, err := svc.SetRole(ctx, *email, *role)
		if err != nil {
			log.Fatal().Err(err).Msg("role change failed")
		}
		log.Info().Str("email", u.Email).Str("role", u.Role).Msg("role updated")
		return
	}
	u, err := svc.CreateUser(ctx, user.CreateUserInput{
		Email:    *email,
		Password: *password,
		Fullname: *fullname,
		Role:     *role,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("user creation failed")
	}
	log.Info().Str("user_id", u.UserID.String()).Str("email", u.Email).Str("role", u.Role).Msg("account created")
}
