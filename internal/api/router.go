package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turbofy/charge-engine/internal/handlers"
	"github.com/turbofy/charge-engine/internal/service"
	"github.com/turbofy/charge-engine/internal/telemetry"
)

func NewRouter(issuance *service.IssuanceService, processor *service.InboundProcessor) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "charge-engine"})
	})

	chargeHandler := handlers.NewChargeHandler(issuance)
	r.POST("/charges", chargeHandler.CreateCharge)
	r.GET("/charges/:id", chargeHandler.GetCharge)
	r.POST("/charges/:id/payment", chargeHandler.IssuePayment)

	webhookHandler := handlers.NewWebhookHandler(processor)
	r.POST("/webhooks/:provider", webhookHandler.HandleProviderWebhook)

	return r
}
