package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cabin-reservation/internal/apperror"
	"github.com/iliyamo/cabin-reservation/internal/auth"
	"github.com/iliyamo/cabin-reservation/internal/cache"
	"github.com/iliyamo/cabin-reservation/internal/config"
	"github.com/iliyamo/cabin-reservation/internal/database"
	"github.com/iliyamo/cabin-reservation/internal/handler"
	"github.com/iliyamo/cabin-reservation/internal/logger"
	"github.com/iliyamo/cabin-reservation/internal/middleware"
	"github.com/iliyamo/cabin-reservation/internal/queue"
	"github.com/iliyamo/cabin-reservation/internal/repository"
	"github.com/iliyamo/cabin-reservation/internal/router"
	"github.com/iliyamo/cabin-reservation/internal/selection"
	"github.com/iliyamo/cabin-reservation/internal/service"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "cabin-reservation",
	})

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	mctx, mcancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(mctx, db); err != nil {
		mcancel()
		log.Fatal("database migration failed", "error", err)
	}
	mcancel()

	// Selections live in Redis, so it is required.  The cache and rate
	// limiter share the client.
	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer rdb.Close()

	cacheCfg := config.LoadCacheConfig()
	var views *cache.Tagged
	if cacheCfg.Enabled {
		views = cache.NewTagged(rdb, cacheCfg.Prefix, cacheCfg.TTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := startEvents(ctx, cfg, log)
	defer publisher.Close()

	bookingRepo := repository.NewBookingRepo(db)
	cabinRepo := repository.NewCabinRepo(db)
	guestRepo := repository.NewGuestRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	selections := selection.NewRedisStore(rdb, cfg.SelectionPrefix, cfg.SelectionTTL)
	validate := service.NewValidator()
	sessions := auth.ContextProvider{}

	bookings := service.NewBookingService(service.BookingDeps{
		Sessions:   sessions,
		Bookings:   bookingRepo,
		Cabins:     cabinRepo,
		Selections: selections,
		Views:      views,
		Events:     publisher,
		Validate:   validate,
		Log:        log.Logger,
		Timeout:    cfg.DBTimeout,
	})
	catalog := service.NewCatalogService(cabinRepo, bookingRepo, selections, log.Logger, cfg.DBTimeout, nil)
	guests := service.NewGuestService(sessions, guestRepo, views, validate, log.Logger, cfg.DBTimeout)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(log.Logger)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Logger))

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, guestRepo, tokenRepo),
		Cabins:   handler.NewCabinHandler(catalog),
		Bookings: handler.NewBookingHandler(bookings),
		Account:  handler.NewAccountHandler(guests),
		Health:   handler.Health(db),
	}, router.Middleware{
		JWTSecret: cfg.JWTSecret,
		Viewer:    middleware.Viewer(cfg.Env == "prod", cfg.SelectionTTL),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Logger),
		Cache:     middleware.NewResponseCache(cacheCfg, views, log.Logger),
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "broker", cfg.EventBroker)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

// startEvents picks the booking event broker and starts the audit consumer
// for it.  Unknown or "none" brokers publish nowhere.
func startEvents(ctx context.Context, cfg config.Config, log *logger.Logger) queue.Publisher {
	audit := queue.NewAuditLog(cfg.AuditLogPath)
	switch cfg.EventBroker {
	case "rabbitmq":
		go func() {
			if err := queue.ConsumeRabbit(ctx, cfg.RabbitMQURL, audit, log.Logger); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking audit consumer stopped", "error", err)
			}
		}()
		return queue.NewRabbitPublisher(cfg.RabbitMQURL, log.Logger)
	case "kafka":
		p, err := queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log.Logger)
		if err != nil {
			log.Fatal("kafka publisher", "error", err)
		}
		go func() {
			if err := queue.ConsumeKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, "booking-audit", audit, log.Logger); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking audit consumer stopped", "error", err)
			}
		}()
		return p
	}
	log.Warn("booking events disabled", "broker", cfg.EventBroker)
	return queue.Noop{}
}
