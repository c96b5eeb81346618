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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feeledger_app_echo/internal/config"
	"feeledger_app_echo/internal/handlers"
	authMiddleware "feeledger_app_echo/internal/middleware"
	"feeledger_app_echo/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize Firebase
	var verifier authMiddleware.TokenVerifier
	authClient, err := services.InitFirebase(cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("API requests will be rejected until valid credentials are provided")
	} else {
		verifier = authClient
	}

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, cfg.GormLogLevel())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional; reports are computed on every request without it
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, report cache disabled: %v", err)
			cache = nil
		}
	}
	defer cache.Close()

	payments := services.NewPaymentService(db, cache, services.NewReceiptSequencer(), services.PaymentConfig{
		RecentPaymentsLimit: cfg.RecentPaymentsLimit,
		MaxRetries:          cfg.PaymentMaxRetries,
		NotifyReceipts:      cfg.NotifyReceipts,
	})
	api := &handlers.API{
		Catalog:     handlers.NewCatalogHandler(services.NewCatalogService(db), services.NewSchoolService(db)),
		Structures:  handlers.NewFeeStructureHandler(services.NewFeeStructureService(db)),
		Enrollments: handlers.NewEnrollmentHandler(services.NewEnrollmentService(db, cache, cfg.PaymentMaxRetries)),
		Payments:    handlers.NewPaymentHandler(payments, services.NewReversalService(db, cache, cfg.PaymentMaxRetries)),
		Reports:     handlers.NewReportHandler(services.NewReportService(db, cache, cfg.ReportCacheTTL)),
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	apiGroup := e.Group("/api")
	apiGroup.Use(authMiddleware.RequireAuth(verifier))
	apiGroup.Use(authMiddleware.RequestTimeout(cfg.RequestTimeout))
	api.RegisterRoutes(apiGroup)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
