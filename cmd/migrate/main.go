package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(zerolog.NewConsoleWriter())
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel).With().Str("cmd", "migrate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, db.PoolOptions{DSN: cfg.PostgresDSN, MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	log.Info().Msg("schema up to date")
}
