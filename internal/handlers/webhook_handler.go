package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/service"
	"github.com/turbofy/charge-engine/internal/telemetry"
)

// inboundSignatureHeader carries the provider's "t=...,v1=..." signature.
const inboundSignatureHeader = "x-signature"

// maxInboundBody bounds how much of a callback we are willing to read.
const maxInboundBody = 1 << 20

type WebhookHandler struct {
	processor *service.InboundProcessor
}

func NewWebhookHandler(processor *service.InboundProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleProviderWebhook receives provider callbacks. Response contract:
// 401 only when authentication fails; 200 for probes and for every
// authenticated request, even when processing later fails — retry and
// alerting are owned here, never delegated back to the provider.
func (h *WebhookHandler) HandleProviderWebhook(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboundBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	sigHeader := c.GetHeader(inboundSignatureHeader)
	if service.IsProbe(sigHeader, body, c.GetHeader("User-Agent")) {
		// The provider checks reachability before a webhook is fully
		// registered. Answer OK and do nothing.
		telemetry.Logger.Info("Answered provider connectivity probe",
			zap.String("provider", provider),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	env, cfg, err := h.processor.Authenticate(c.Request.Context(), provider, sigHeader, body)
	if err != nil {
		var authErr *service.AuthError
		if errors.As(err, &authErr) {
			telemetry.Logger.Warn("Rejected inbound webhook",
				zap.String("provider", provider),
				zap.String("code", authErr.Code),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Code})
			return
		}
		telemetry.Logger.Error("Inbound authentication errored", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.processor.Accept(c.Request.Context(), provider, env, cfg, body); err != nil {
		// Authenticated means 200 regardless; the event is logged and the
		// failure surfaces through internal alerting.
		telemetry.Logger.Error("Failed to accept inbound event",
			zap.String("provider", provider),
			zap.String("provider_event_id", env.ID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
