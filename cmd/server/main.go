package main // auth API entry point

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/authcore/internal/config"
	"github.com/iliyamo/authcore/internal/database"
	"github.com/iliyamo/authcore/internal/handler"
	"github.com/iliyamo/authcore/internal/lock"
	"github.com/iliyamo/authcore/internal/middleware"
	"github.com/iliyamo/authcore/internal/oauth"
	"github.com/iliyamo/authcore/internal/queue"
	"github.com/iliyamo/authcore/internal/repository"
	"github.com/iliyamo/authcore/internal/router"
	"github.com/iliyamo/authcore/internal/service"
	"github.com/iliyamo/authcore/internal/utils"
)

func main() {
	cfg := config.Load()         // read env (and .env) into an immutable Config
	log := config.NewLogger(cfg) // JSON in production, console otherwise

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, db := openStore(ctx, cfg, log) // MySQL or in-memory user directory
	if db != nil {
		defer db.Close()
	}

	locker := newLocker(cfg, log) // serializes refresh-token rotation
	hasher := utils.NewHasher(cfg.BcryptCost)
	codec := utils.NewTokenCodec()
	providers := oauth.NewRegistry(cfg)
	log.Info().Strs("providers", providers.Enabled()).Msg("oauth providers configured")

	sessions := service.NewSessionManager(users, hasher, codec, locker, service.SettingsFrom(cfg), log)
	recovery := service.NewPasswordRecovery(users, hasher,
		queue.NewPublisher(cfg.RabbitMQURL, cfg.NotificationQueue, log), cfg.ResetTTL, log)
	federation := service.NewFederation(providers, users, hasher, sessions, cfg.ClientURL, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// c.Validate runs go-playground/validator rules
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())   // turn handler panics into 500s
	e.Use(echomw.RequestID()) // X-Request-ID for log correlation
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db})
	router.RegisterAuth(e,
		handler.NewAuthHandler(sessions, recovery, federation),
		handler.NewUserHandler(sessions),
		codec, cfg.AccessSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done() // wait for SIGINT/SIGTERM
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore returns the user directory selected by STORE_DRIVER. The *sql.DB
// is nil for the in-memory store.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (service.UserDirectory, *sql.DB) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepo(), nil
	}
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}
	}
	return repository.NewUserRepo(db), db
}

// newLocker prefers Redis so rotations are serialized across instances and
// falls back to an in-process lock.
func newLocker(cfg config.Config, log zerolog.Logger) lock.Locker {
	if rdb := config.NewRedisClient(cfg); rdb != nil {
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis rotation lock")
		return lock.NewRedis(rdb, "authcore:rotate:")
	}
	if cfg.Redis.Addr != "" {
		log.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unreachable, using local rotation lock")
	}
	return lock.NewLocal()
}
