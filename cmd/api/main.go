package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/api"
	"github.com/example/stock-ledger/internal/api/middleware"
	"github.com/example/stock-ledger/internal/auth"
	"github.com/example/stock-ledger/internal/bootstrap"
	"github.com/example/stock-ledger/internal/config"
	"github.com/example/stock-ledger/internal/obs"
	"github.com/example/stock-ledger/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] config: %v", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	logger, err := obs.NewLogger(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("[API] logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	backend, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	publisher, closePublisher := bootstrap.NewPublisher(cfg, logger)
	defer closePublisher()

	idempotency, closeIdempotency, err := bootstrap.NewIdempotency(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeIdempotency()

	if cfg.OperatorPasswordHash == "" {
		logger.Warn("OPERATOR_PASSWORD_HASH not set, operator login is disabled")
	} else if err := auth.ValidateOperatorHash(cfg.OperatorPasswordHash); err != nil {
		return err
	}
	jwtService := auth.NewJWTService(
		cfg.JWTSecret,
		15*time.Minute, // Access token expiry
		7*24*time.Hour, // Refresh token expiry (7 days)
	)

	cmdHandler := bootstrap.NewCommandHandler(backend.Store, publisher, logger)
	queryHandler := query.NewHandler(backend.Store, logger)

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(cmdHandler, queryHandler, backend.Health, logger),
		AuthHandlers: api.NewAuthHandlers(auth.Operator{Email: cfg.OperatorEmail, PasswordHash: cfg.OperatorPasswordHash}, jwtService, logger),
		JWTService:   jwtService,
		Idempotency:  idempotency,
		RateLimiter:  middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Logger:       logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("db_driver", cfg.DBDriver),
			zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
