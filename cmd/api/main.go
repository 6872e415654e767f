package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docingest/docs"
	"docingest/internal/config"
	"docingest/internal/database"
	"docingest/internal/database/migration"
	"docingest/internal/folder"
	"docingest/internal/gateway"
	handlers "docingest/internal/http/handler"
	"docingest/internal/http/middleware"
	"docingest/internal/notifier"
	"docingest/internal/otel"
	"docingest/internal/repository"
	"docingest/internal/repository/postgres"
	"docingest/internal/service"
	"docingest/internal/storage"
	"docingest/internal/validate"
)

// @title Document Ingestion API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()
	loc := time.UTC

	// Initialize OpenTelemetry tracing (no-op when OTEL_SDK_DISABLED=true)
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Shared metrics registry: HTTP middleware and notifier counters
	reg := prometheus.NewRegistry()

	// Realtime gateway and the change-event notifier feeding it
	hub := gateway.NewHub()
	defer hub.Close()

	events, err := notifier.New(hub, reg, notifier.Options{
		QueueSize:   cfg.Notifier.QueueSize,
		MaxAttempts: cfg.Notifier.MaxAttempts,
	})
	if err != nil {
		log.Fatalf("failed to initialize notifier: %v", err)
	}
	defer events.Close()

	// Repository with the change feed attached: every committed write is
	// observed and broadcast best-effort.
	docRepo := repository.Observe(postgres.NewDocumentPostgres(db), events.OnChange)

	// External folder directory client
	folders := folder.NewClient(cfg.Folders.BaseURL, time.Duration(cfg.Folders.TimeoutSec)*time.Second)

	validator := validate.New(cfg.Upload.AllowedTypes, cfg.Upload.MaxSizeBytes)
	uploadSvc := service.NewUploadService(
		objStore, docRepo, folders, validator,
		cfg.Upload.Namespace,
		time.Duration(cfg.Upload.PresignTTLSec)*time.Second,
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// The transport cap must clear the upload ceiling or direct
		// uploads die with 413 before validation runs.
		BodyLimit: handlers.BodyLimit(cfg.Upload.MaxSizeBytes),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(cors.New())
	app.Use(otelfiber.Middleware())

	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to initialize metrics middleware: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, uploadSvc, hub)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
