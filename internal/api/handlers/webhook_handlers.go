package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	"go.uber.org/zap"
)

// Reconciler processes one bank notification
type Reconciler interface {
	Reconcile(ctx context.Context, n *entities.BankNotification) (*entities.SettlementResult, error)
}

// CassoWebhookHandler handles payment-gateway transaction notifications
type CassoWebhookHandler struct {
	reconciler    Reconciler
	logger        *zap.Logger
	webhookSecret string
}

// NewCassoWebhookHandler creates a new webhook handler
func NewCassoWebhookHandler(reconciler Reconciler, logger *zap.Logger, webhookSecret string) *CassoWebhookHandler {
	return &CassoWebhookHandler{
		reconciler:    reconciler,
		logger:        logger,
		webhookSecret: webhookSecret,
	}
}

// CassoWebhookPayload is the gateway's delivery envelope
type CassoWebhookPayload struct {
	Error int                        `json:"error"`
	Data  []entities.BankNotification `json:"data"`
}

// HandleWebhook handles bank transaction notifications
// POST /webhook/casso
func (h *CassoWebhookHandler) HandleWebhook(c *gin.Context) {
	token := c.GetHeader("Secure-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookSecret)) != 1 {
		h.logger.Warn("Invalid webhook token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var payload CassoWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error("Failed to parse webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Error != 0 || len(payload.Data) == 0 {
		h.logger.Warn("Webhook payload carries error or no data",
			zap.Int("error", payload.Error),
			zap.Int("count", len(payload.Data)))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data format or error in payload"})
		return
	}

	h.logger.Info("Received bank webhook", zap.Int("notifications", len(payload.Data)))

	// Each notification reconciles independently. Benign outcomes
	// (duplicate, unroutable, unmatched) are acknowledged so the
	// gateway does not retry into a worse state; only an unexpected
	// store failure surfaces as 500.
	for i := range payload.Data {
		n := &payload.Data[i]
		result, err := h.reconciler.Reconcile(c, n)
		if err != nil {
			h.logger.Error("Reconciliation failed",
				zap.String("tid", n.TID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		h.logger.Info("Notification processed",
			zap.String("tid", n.TID),
			zap.String("outcome", string(result.Outcome)))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "payment data processed successfully",
	})
}
