package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/batchpass-api/internal/middleware"
	"github.com/noah-isme/batchpass-api/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Orders       *OrderHandler
	Payments     *PaymentHandler
	Entitlements *EntitlementHandler
	Admin        *AdminHandler
	Metrics      *MetricsHandler
}

// Register mounts ops endpoints at the root and the API under prefix. auth must populate
// middleware.ContextUserKey.
func (r Routes) Register(engine *gin.Engine, prefix string, auth gin.HandlerFunc, audit middleware.AuditWriter, logger *zap.Logger) {
	engine.GET("/health", r.Metrics.Health)
	engine.GET("/ready", r.Metrics.Ready)
	engine.GET("/metrics", r.Metrics.Prometheus)

	api := engine.Group(prefix)
	// The signed token is the credential for receipt downloads.
	api.GET("/receipts/:token", r.Payments.DownloadReceipt)

	secured := api.Group("", auth)
	secured.GET("/entitlement", r.Entitlements.Check)
	secured.GET("/batches/:batchId/content", r.Entitlements.Content)

	students := secured.Group("", middleware.RequireRoles(models.RoleStudent))
	students.POST("/orders", r.Orders.Create)
	students.POST("/payments/verify", r.Payments.Verify)
	students.GET("/payments", r.Payments.List)
	students.GET("/payments/export", r.Payments.Export)
	students.GET("/payments/:id", r.Payments.Get)
	students.GET("/payments/:id/receipt", r.Payments.ReceiptLink)

	admin := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.GET("/reconciliations", r.Admin.Reconciliations)
	admin.DELETE("/catalog/:batchId/cache",
		middleware.Audit(audit, logger, models.AuditActionCacheInvalidate, "batch", "batchId"),
		r.Admin.InvalidateCatalog,
	)
}
