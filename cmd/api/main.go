package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gallery/docs"
	"gallery/internal/auth"
	"gallery/internal/config"
	"gallery/internal/database"
	"gallery/internal/database/migration"
	handlers "gallery/internal/http/handler"
	"gallery/internal/http/middleware"
	"gallery/internal/logging"
	"gallery/internal/otel"
	"gallery/internal/repository"
	"gallery/internal/repository/kv"
	"gallery/internal/repository/postgres"
	"gallery/internal/service"
	"gallery/internal/storage"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	jwksTimeout     = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// @title       Gallery API
// @version     1.0
// @description Direct-upload authorization and image catalog.
// @BasePath    /
// @securityDefinitions.apikey ApiKeyAuth
// @in   header
// @name X-API-Key
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, logging.LoadLocation(cfg.TimeZone)).
		With().Str("service", "gallery").Str("version", version).Logger()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("gallery stopped")
	}
}

func run(cfg *config.AppConfig, log zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, version, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	catalogRepo, closeCatalog, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCatalog(); err != nil {
			log.Error().Err(err).Msg("catalog close failed")
		}
	}()

	gate, err := auth.NewAccessGate(cfg.Auth.GateEnabled, cfg.Auth.APIKey)
	if err != nil {
		return err
	}
	jwksClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   jwksTimeout,
	}
	verifier, err := auth.NewVerifier(cfg.Auth, jwksClient)
	if err != nil {
		return fmt.Errorf("init identity verifier: %w", err)
	}
	if cfg.Auth.Verifier == config.VerifierStructural {
		log.Warn().Msg("structural identity verifier accepts unsigned tokens; do not expose this instance")
	}

	uploadSvc := service.NewUploadService(store, cfg.Storage.URLExpiry)
	catalogSvc := service.NewCatalogService(store, catalogRepo)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestID(log))
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())
	app.Use(otelfiber.Middleware())

	handlers.RegisterRoutes(app, handlers.Dependencies{
		Index:    catalogRepo,
		Gate:     gate,
		Verifier: verifier,
		Uploads:  uploadSvc,
		Catalog:  catalogSvc,
		Gatherer: reg,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", ":"+cfg.Port).
			Str("storage_backend", cfg.Storage.Backend).
			Str("catalog_backend", cfg.Catalog.Backend).
			Str("identity_verifier", cfg.Auth.Verifier).
			Bool("access_gate", gate.Enabled()).
			Msg("gallery listening")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openCatalog connects the configured metadata index and returns its closer.
func openCatalog(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (repository.CatalogRepository, func() error, error) {
	switch cfg.Catalog.Backend {
	case config.CatalogPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, cfg.Catalog.Table, log.With().Str("db_host", cfg.Database.Host).Logger()); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate catalog: %w", err)
		}
		return postgres.NewCatalogPostgres(db, cfg.Catalog.Table), db.Close, nil

	case config.CatalogBadger:
		store, err := kv.Open(cfg.Catalog.BadgerDir, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Catalog.BadgerDir == "" {
			log.Warn().Msg("badger catalog is in memory; entries are lost on restart")
		}
		return store, store.Close, nil

	default:
		return nil, nil, errors.New("unknown catalog backend " + cfg.Catalog.Backend)
	}
}
