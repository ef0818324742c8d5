package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/logger"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/router"
	"github.com/iliyamo/parking-reservation/internal/scheduler"
	"github.com/iliyamo/parking-reservation/internal/service"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.New(logger.Config{}).Fatal("load .env", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{}).Fatal("load config", "error", err)
	}
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "parking-reservation",
	})

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("migrate database", "error", err)
		}
	}

	rdb := config.NewRedisClient(log.Logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	var events service.EventPublisher
	if cfg.RabbitMQURL != "" {
		publisher := queue.NewPublisher(cfg.RabbitMQURL, log.Logger)
		events = publisher
		go func() {
			if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking publisher stopped", "error", err)
			}
		}()
		consumer := queue.NewConsumer(cfg.RabbitMQURL, "logs", log.Logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", "error", err)
			}
		}()
	} else {
		log.Info("RABBITMQ_URL not set, booking events are not published")
	}

	store := repository.NewMySQLStore(db)
	bookings := service.NewBookingService(store, events, log.Logger)
	access := service.NewAccessValidator(store, cfg.QRPrefix, log.Logger)
	facilities := service.NewFacilityService(store)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal("create scheduler", "error", err)
	}
	if err := sched.ScheduleSweep(cfg.SweepInterval, bookings); err != nil {
		log.Fatal("schedule sweep", "error", err)
	}
	sched.Start()

	e := router.New(log.Logger)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), log.Logger), cfg.JWTSecret)
	router.RegisterBookings(e, handler.NewBookingHandler(bookings, access, log.Logger), cfg.JWTSecret)
	router.RegisterAccess(e, handler.NewAccessHandler(access, log.Logger),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Logger))
	router.RegisterFacilities(e, handler.NewFacilityHandler(facilities, log.Logger),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Error("scheduler shutdown", "error", err)
	}
}
