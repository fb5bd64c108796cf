package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Frida144/site-segnorito/internal/config"
	"github.com/Frida144/site-segnorito/internal/event"
	"github.com/Frida144/site-segnorito/internal/feedback"
	handler "github.com/Frida144/site-segnorito/internal/handler/http"
	"github.com/Frida144/site-segnorito/internal/repository"
	"github.com/Frida144/site-segnorito/internal/repository/memory"
	redisrepo "github.com/Frida144/site-segnorito/internal/repository/redis"
	"github.com/Frida144/site-segnorito/internal/service"
	"github.com/Frida144/site-segnorito/internal/view"
	"github.com/Frida144/site-segnorito/pkg/database"
	"github.com/Frida144/site-segnorito/pkg/health"
	pkgkafka "github.com/Frida144/site-segnorito/pkg/kafka"
	"github.com/Frida144/site-segnorito/pkg/tracing"
)

const serviceName = "senorito-cart"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	flasher        *feedback.Flasher
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Tracing.
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracerShutdown = shutdown

	// Storage.
	kv, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	// Cart listeners.
	var listeners []service.Listener
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err := a.producer.Ping(ctx); err != nil {
			// Events are best effort; the cart keeps working without a broker.
			logger.Warn("kafka brokers unreachable at startup", slog.String("error", err.Error()))
		}
		listeners = append(listeners, event.NewProducer(a.producer, cfg.CurrencyCode, logger))
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("no kafka brokers configured, cart events disabled")
	}

	// Presentation.
	prices, err := view.NewPriceFormatter(cfg.Locale, cfg.CurrencySymbol)
	if err != nil {
		return nil, err
	}
	renderer, err := view.NewRenderer(prices)
	if err != nil {
		return nil, err
	}
	a.flasher = feedback.New(nil, cfg.FeedbackDuration())

	// Build the dependency graph.
	carts := service.NewCarts(kv, cfg.StorageKey, logger, listeners...)
	cartHandler := handler.NewCartHandler(carts, renderer, a.flasher, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterPinger("storage", kv)

	// HTTP router.
	router := handler.NewRouter(cartHandler, healthHandler, logger, handler.RouterConfig{
		Session: handler.SessionConfig{
			CookieName: cfg.SessionCookie,
			MaxAge:     cfg.TTL(),
			Secure:     cfg.IsProduction(),
		},
		CORSOrigins: cfg.CORSOrigins,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (repository.KeyValueStore, error) {
	if a.cfg.StorageBackend == config.BackendMemory {
		a.logger.Warn("using in-memory cart storage, carts are lost on restart")
		return memory.NewStore(), nil
	}

	rcfg := database.DefaultRedisConfig()
	rcfg.Addr = a.cfg.RedisAddr
	rcfg.Password = a.cfg.RedisPass
	rcfg.DB = a.cfg.RedisDB

	rdb, err := database.NewRedisClient(ctx, rcfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	a.logger.Info("connected to Redis",
		slog.String("addr", a.cfg.RedisAddr),
		slog.Int("db", a.cfg.RedisDB),
	)
	return redisrepo.NewStore(rdb, a.cfg.TTL()), nil
}

// Handler returns the HTTP handler the server runs.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.flasher.Stop()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
