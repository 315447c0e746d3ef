// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/middleware"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderSignature = "Stripe-Signature"
	// maxBodyBytes matches the processor's documented payload ceiling.
	maxBodyBytes = 65536
)

type Processor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) error
}

type WebhookHandler struct {
	processor Processor
	logger    *zap.Logger
}

func NewWebhookHandler(processor Processor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// Receive verifies and applies one processor event. The raw body is passed
// through untouched; the signature covers its exact bytes.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		response.Failure(c, http.StatusBadRequest, "could not read request body", nil, false)
		return
	}
	if len(payload) > maxBodyBytes {
		response.Failure(c, http.StatusRequestEntityTooLarge, "payload too large", nil, false)
		return
	}

	signature := c.GetHeader(HeaderSignature)
	if signature == "" {
		response.Failure(c, http.StatusBadRequest, "missing signature header", nil, false)
		return
	}

	if err := h.processor.Process(c.Request.Context(), payload, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			response.Failure(c, http.StatusBadRequest, "webhook signature verification failed", nil, false)
			return
		}
		if errors.Is(err, billing.ErrEventInFlight) {
			response.Failure(c, http.StatusConflict, "event is being processed", nil, false)
			return
		}
		h.logger.Error("webhook handler failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		response.Failure(c, http.StatusInternalServerError, "webhook processing failed", nil, false)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
