package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/batchpass-api/api/swagger"
	"github.com/noah-isme/batchpass-api/internal/gateway"
	"github.com/noah-isme/batchpass-api/internal/handler"
	internalmiddleware "github.com/noah-isme/batchpass-api/internal/middleware"
	"github.com/noah-isme/batchpass-api/internal/repository"
	"github.com/noah-isme/batchpass-api/internal/service"
	"github.com/noah-isme/batchpass-api/pkg/cache"
	"github.com/noah-isme/batchpass-api/pkg/config"
	"github.com/noah-isme/batchpass-api/pkg/database"
	"github.com/noah-isme/batchpass-api/pkg/export"
	"github.com/noah-isme/batchpass-api/pkg/jobs"
	"github.com/noah-isme/batchpass-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/batchpass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/batchpass-api/pkg/middleware/requestid"
	"github.com/noah-isme/batchpass-api/pkg/storage"
	"github.com/noah-isme/batchpass-api/pkg/tracing"
)

// @title Batchpass API
// @version 0.1.0
// @description Batch purchase, payment settlement and content entitlement for the learning portal.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if cfg.Catalog.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, "batchpass", logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cacheRepo != nil)

	gatewayClient, err := newGatewayClient(cfg.Gateway, logr)
	if err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}

	receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		return fmt.Errorf("init receipt storage: %w", err)
	}

	catalogRepo := repository.NewCatalogRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	reconciliationRepo := repository.NewReconciliationRepository(db)

	catalogSvc := service.NewCatalogService(catalogRepo, cacheSvc, cfg.Catalog.CacheTTL, logr)
	entitlementSvc := service.NewEntitlementService(catalogSvc, enrollmentRepo, logr)
	orderSvc := service.NewOrderService(catalogSvc, enrollmentRepo, paymentRepo, gatewayClient, validate, metrics, logr, service.OrderConfig{
		TaxRateBps:      cfg.Payments.TaxRateBps,
		DefaultCurrency: cfg.Payments.DefaultCurrency,
		GatewayTimeout:  cfg.Gateway.Timeout,
	})
	reconciliationSvc := service.NewReconciliationService(reconciliationRepo, jobs.QueueConfig{
		Workers:    cfg.Reconciliation.Workers,
		MaxRetries: cfg.Reconciliation.MaxRetries,
		RetryDelay: cfg.Reconciliation.RetryDelay,
	}, logr)
	settlementSvc := service.NewSettlementService(paymentRepo, settlementRepo, reconciliationSvc, cfg.Gateway.SigningSecret, validate, metrics, logr)
	historySvc := service.NewPaymentHistoryService(
		paymentRepo,
		receiptStore,
		storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL),
		export.NewCSVExporter(),
		export.NewReceiptRenderer(cfg.Receipts.Issuer),
		validate,
		logr,
		service.PaymentHistoryConfig{ReceiptBaseURL: cfg.Receipts.PublicBaseURL},
	)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Leeway:            cfg.JWT.Leeway,
	})

	reconciliationSvc.Start(ctx)
	go cleanupReceipts(ctx, historySvc, cfg.Receipts, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.Routes{
		Orders:       handler.NewOrderHandler(orderSvc),
		Payments:     handler.NewPaymentHandler(settlementSvc, historySvc),
		Entitlements: handler.NewEntitlementHandler(entitlementSvc),
		Admin:        handler.NewAdminHandler(reconciliationSvc, catalogSvc),
		Metrics:      handler.NewMetricsHandler(metrics, db),
	}.Register(r, cfg.APIPrefix, internalmiddleware.JWT(authSvc), paymentRepo, logr)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	// Settlement failures raised by in-flight requests are still persisted.
	reconciliationSvc.Stop(shutdownCtx)
	return nil
}

func newGatewayClient(cfg config.GatewayConfig, logr *zap.Logger) (gateway.Client, error) {
	switch cfg.Mode {
	case config.GatewayModeHTTP:
		return gateway.NewHTTPClient(gateway.HTTPConfig{
			BaseURL:   cfg.BaseURL,
			KeyID:     cfg.KeyID,
			KeySecret: cfg.KeySecret,
			Timeout:   cfg.Timeout,
		}, logr)
	case config.GatewayModeSandbox, "":
		logr.Warn("payment gateway running in sandbox mode")
		return gateway.NewSandboxClient(cfg.KeyID), nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.Mode)
	}
}

func cleanupReceipts(ctx context.Context, history *service.PaymentHistoryService, cfg config.ReceiptsConfig, logr *zap.Logger) {
	if cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := history.CleanupReceipts(cfg.RetainFor); err != nil {
				logr.Warn("receipt cleanup failed", zap.Error(err))
			}
		}
	}
}
