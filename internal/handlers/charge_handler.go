package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/models"
	"github.com/turbofy/charge-engine/internal/service"
	"github.com/turbofy/charge-engine/internal/telemetry"
)

type ChargeHandler struct {
	issuance *service.IssuanceService
}

func NewChargeHandler(issuance *service.IssuanceService) *ChargeHandler {
	return &ChargeHandler{issuance: issuance}
}

type createChargeRequest struct {
	IdempotencyKey string               `json:"idempotency_key"`
	MerchantID     string               `json:"merchant_id" binding:"required"`
	AmountCents    int64                `json:"amount" binding:"required"`
	Currency       string               `json:"currency"`
	Method         models.PaymentMethod `json:"method"`
	Splits         []models.ChargeSplit `json:"splits"`
	Fees           []models.Fee         `json:"fees"`
	ExternalRef    string               `json:"external_reference"`
	Metadata       map[string]string    `json:"metadata"`
	SessionID      string               `json:"session_id"`
}

func (h *ChargeHandler) CreateCharge(c *gin.Context) {
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// The header form wins over the body field when both are present.
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}
	if req.IdempotencyKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idempotency key is required"})
		return
	}
	if req.Currency == "" {
		req.Currency = "BRL"
	}

	charge, err := h.issuance.Issue(c.Request.Context(), service.IssueChargeInput{
		IdempotencyKey: req.IdempotencyKey,
		MerchantID:     req.MerchantID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		Method:         req.Method,
		Splits:         req.Splits,
		Fees:           req.Fees,
		ExternalRef:    req.ExternalRef,
		Metadata:       req.Metadata,
		SessionID:      req.SessionID,
	})
	if err != nil {
		h.writeIssueError(c, charge, err)
		return
	}

	c.JSON(http.StatusCreated, charge)
}

func (h *ChargeHandler) IssuePayment(c *gin.Context) {
	charge, err := h.issuance.IssuePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeIssueError(c, charge, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}

func (h *ChargeHandler) GetCharge(c *gin.Context) {
	charge, err := h.issuance.GetCharge(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrChargeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "charge not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch charge"})
		return
	}
	c.JSON(http.StatusOK, charge)
}

func (h *ChargeHandler) writeIssueError(c *gin.Context, charge *models.Charge, err error) {
	var (
		validationErr *service.ValidationError
		providerErr   *service.ProviderError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.As(err, &providerErr):
		// The charge is persisted and PENDING; the caller retries issuance
		// against its id, not with a fresh idempotency key.
		body := gin.H{"error": "payment instrument issuance failed"}
		if charge != nil {
			body["charge_id"] = charge.ID
		}
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, service.ErrIssuanceInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "a charge with this idempotency key is being created"})
	case errors.Is(err, service.ErrChargeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "charge not found"})
	case errors.Is(err, service.ErrChargeNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "charge is not pending"})
	default:
		telemetry.Logger.Error("Charge issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create charge"})
	}
}
