// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"context"
	"net/http"
	"strings"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/middleware"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type Service interface {
	CreateSubscription(ctx context.Context, hostname string, req *subscription.CreateSubscriptionRequest, idempotencyKey string) (*subscription.CreateSubscriptionResponse, error)
	GetSubscriptionForUser(ctx context.Context, userID string) (*subscription.Subscription, error)
	CancelSubscription(ctx context.Context, hostname, processorSubscriptionID, userID string) (*subscription.Subscription, error)
}

type SubscriptionHandler struct {
	service       Service
	exposeDetails bool
	logger        *zap.Logger
}

// NewSubscriptionHandler builds the checkout handler. exposeDetails adds the
// underlying error to failure bodies and must be false in production.
func NewSubscriptionHandler(service Service, exposeDetails bool, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:       service,
		exposeDetails: exposeDetails,
		logger:        logger,
	}
}

// CreateSubscription charges the user for a plan
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req subscription.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failure(c, http.StatusBadRequest, "invalid request body", err, h.exposeDetails)
		return
	}

	result, err := h.service.CreateSubscription(
		c.Request.Context(),
		requestHost(c),
		&req,
		strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)),
	)
	if err != nil {
		h.fail(c, "create subscription failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUserSubscription returns the user's latest subscription
func (h *SubscriptionHandler) GetUserSubscription(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.CanActFor(c, userID) {
		response.Failure(c, http.StatusForbidden, "not allowed to view this subscription", nil, false)
		return
	}

	result, err := h.service.GetSubscriptionForUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "get subscription failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelSubscription stops renewal at the end of the current period
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	var req subscription.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failure(c, http.StatusBadRequest, "userId is required", err, h.exposeDetails)
		return
	}
	if !middleware.CanActFor(c, req.UserID) {
		response.Failure(c, http.StatusForbidden, "not allowed to cancel this subscription", nil, false)
		return
	}

	result, err := h.service.CancelSubscription(c.Request.Context(), requestHost(c), c.Param("subscriptionId"), req.UserID)
	if err != nil {
		h.fail(c, "cancel subscription failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SubscriptionHandler) fail(c *gin.Context, op string, err error) {
	f := classify(err)

	log := h.logger.Warn
	if f.status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log(op,
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Int("status", f.status),
		zap.Error(err),
	)

	response.Failure(c, f.status, f.text(err), err, h.exposeDetails)
}

// requestHost is the Host the client addressed. Forwarded headers are
// ignored so a client cannot pick the processor environment.
func requestHost(c *gin.Context) string {
	return c.Request.Host
}
