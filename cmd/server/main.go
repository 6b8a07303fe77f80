package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/holdindex"
	"github.com/iliyamo/showtime-booking/internal/logger"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/router"
	"github.com/iliyamo/showtime-booking/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("load config: " + err.Error())
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(sctx)
	}()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.ApplySchema {
		if err := database.ApplySchema(ctx, db); err != nil {
			return err
		}
		log.Info("schema applied")
	}

	catalog := repository.NewCatalog(db)
	store := repository.NewReservationRepo(db)

	opts := []booking.Option{
		booking.WithLogger(log),
		booking.WithHoldTTL(cfg.Booking.HoldTTL),
		booking.WithMaxSeatsPerHold(cfg.Booking.MaxSeatsPerHold),
	}
	health := handler.NewHealth().Require("mysql", db.PingContext)

	// Redis and RabbitMQ are optional: without them holds go straight to
	// MySQL and no events are sent.
	var rdb redis.UniversalClient
	if client := config.NewRedisClient(cfg.Redis); client != nil {
		defer client.Close()
		rdb = client
		opts = append(opts, booking.WithHoldIndex(holdindex.New(client, cfg.Booking.HoldIndexPrefix)))
		health.Optional("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
	} else {
		log.Warn("redis unavailable, hold index and rate limiting disabled", zap.String("addr", cfg.Redis.Address()))
	}
	if cfg.RabbitMQ.URL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, lifecycle events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			opts = append(opts, booking.WithPublisher(pub))
		}
	}

	holds := booking.NewHoldManager(catalog, store, opts...)
	lifecycle := booking.NewLifecycle(store, opts...)
	status := booking.NewStatusReader(catalog, store, opts...)

	if cfg.Reaper.Enabled {
		reaper := booking.NewReaper(store, booking.ReaperConfig{
			Interval:  cfg.Reaper.Interval,
			BatchSize: cfg.Reaper.BatchSize,
		}, opts...)
		if err := reaper.Start(ctx); err != nil {
			return err
		}
		defer reaper.Stop()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(telemetry.Middleware())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		RDB:       rdb,
		Log:       log,
		Health:    health,
		Booking:   handler.NewBookingHandler(holds, lifecycle, status, log),
		Schedule:  handler.NewScheduleHandler(booking.NewOverlapValidator(catalog), log),
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
