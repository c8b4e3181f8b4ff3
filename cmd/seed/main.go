package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/bootstrap"
	"github.com/example/stock-ledger/internal/command"
	"github.com/example/stock-ledger/internal/config"
	"github.com/example/stock-ledger/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Seed] config: %v", err)
	}
	logger, err := obs.NewLogger(cfg.ServiceName+"-seed", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("[Seed] logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer backend.Close()

	publisher, closePublisher := bootstrap.NewPublisher(cfg, logger)
	defer closePublisher()

	handler := bootstrap.NewCommandHandler(backend.Store, publisher, logger)
	if _, err := command.Seed(ctx, handler, backend.Store, logger); err != nil {
		logger.Fatal("seed", zap.Error(err))
	}
}
