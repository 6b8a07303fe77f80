package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/logger"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConsumer()
	if err != nil {
		panic("load config: " + err.Error())
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := queue.NewAuditConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.AuditQueue, log.Named("audit"))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("audit consumer stopped", zap.Error(err))
	}
	log.Info("audit consumer stopped")
}
