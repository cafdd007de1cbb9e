package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/api"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/doctor"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(zerolog.NewConsoleWriter())
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("timezone", cfg.Location.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, db.PoolOptions{DSN: cfg.PostgresDSN, MaxConns: cfg.DBMaxConns})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	if cfg.AutoMigrate {
		if err := db.Migrate(rootCtx, pgPool, log); err != nil {
			log.Fatal().Err(err).Msg("migration error")
		}
	}

	// Redis is optional: without it the unique index alone prevents double booking
	var (
		locker     redisclient.Locker
		redisProbe api.Pinger
	)
	if cfg.LockEnabled() {
		rdb, err := redisclient.NewRedisClient(redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
		redisProbe = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis, slot lock enabled")
	} else {
		log.Warn().Msg("REDIS_ADDR not set, slot lock disabled")
	}

	var m *metrics.Metrics
	opts := []appointment.Option{}
	if cfg.MetricsEnabled {
		m = metrics.New(cfg.ServiceName)
		opts = append(opts, appointment.WithMetrics(m))
	}

	doctorRepo := doctor.NewPgRepository(pgPool)
	doctorSvc := doctor.NewService(doctorRepo, log)
	apptSvc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		doctorRepo,
		locker,
		cfg,
		log,
		opts...,
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Doctors:      doctorSvc,
		Verifier:     auth.NewVerifier(cfg.JWTSecret),
		Health:       api.NewHealthHandler(pgPool, redisProbe, cfg.Env, cfg.Version),
		Logger:       log,
		Metrics:      m,
		MetricsPath:  cfg.MetricsPath,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()

	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("api-server stopped")
}
