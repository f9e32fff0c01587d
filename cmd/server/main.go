// Command server runs the in-app purchase validation and wallet API.
//
//	@title          IAP Wallet API
//	@version        1.0
//	@description    In-app purchase receipt validation and virtual currency wallets.
//	@BasePath       /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-iap-wallet/docs"
	"github.com/tbourn/go-iap-wallet/internal/config"
	httpapi "github.com/tbourn/go-iap-wallet/internal/http"
	"github.com/tbourn/go-iap-wallet/internal/iap"
	"github.com/tbourn/go-iap-wallet/internal/observability"
	"github.com/tbourn/go-iap-wallet/internal/repo"
	"github.com/tbourn/go-iap-wallet/internal/sysutil"
)

// Version is set by ldflags.
var Version = "dev"

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), Version)

	log.Info().
		Str("version", version).
		Str("db_driver", cfg.DBDriver).
		Strs("wallets", cfg.WalletNames).
		Msg("starting go-iap-wallet")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.WalletNames)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if !sysutil.IsTruthy(os.Getenv("SKIP_MIGRATIONS")) {
		if err := repo.Migrate(db, cfg.DBDriver); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	go repo.SweepIdempotency(ctx, db, cfg.IdempotencySweep)

	apple := iap.NewAppleVerifier(cfg.Apple, cfg.VerifyTimeout)
	apple.Client = observability.HTTPClient(nil)
	google := iap.NewGoogleVerifier(cfg.Google, cfg.VerifyTimeout)
	google.Client = observability.HTTPClient(nil)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, apple, google, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
