// internal/handlers/promo/promo_handler.go
package promo

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/middleware"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Service interface {
	CreatePromoCode(ctx context.Context, req *promo.CreatePromoCodeRequest) (*promo.PromoCode, error)
	GetPromoCode(ctx context.Context, id int64) (*promo.PromoCode, error)
	ListPromoCodes(ctx context.Context, filters *promo.PromoListFilters) (*promo.PromoListResponse, error)
	UpdatePromoCode(ctx context.Context, id int64, req *promo.UpdatePromoCodeRequest) (*promo.PromoCode, error)
	DeactivatePromoCode(ctx context.Context, id int64) error
	ValidatePromoCode(ctx context.Context, req *promo.ValidatePromoRequest) (*promo.ValidatePromoResponse, error)
}

type PromoHandler struct {
	promoService Service
	logger       *zap.Logger
}

func NewPromoHandler(promoService Service, logger *zap.Logger) *PromoHandler {
	return &PromoHandler{
		promoService: promoService,
		logger:       logger,
	}
}

// ========== Checkout Endpoints ==========

// ValidatePromoCode prices a promo code for a plan
func (h *PromoHandler) ValidatePromoCode(c *gin.Context) {
	var req promo.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Failure(c, http.StatusBadRequest, "code and planId are required", nil, false)
		return
	}

	result, err := h.promoService.ValidatePromoCode(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
			return
		}
		h.logger.Error("promo validation failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		response.Failure(c, http.StatusInternalServerError, "could not validate promo code", nil, false)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ========== Admin Endpoints ==========

// CreatePromoCode creates a promo code
func (h *PromoHandler) CreatePromoCode(c *gin.Context) {
	var req promo.CreatePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.promoService.CreatePromoCode(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, statusFor(err), "failed to create promo code", err)
		return
	}

	response.Success(c, http.StatusCreated, "promo code created successfully", result)
}

// GetPromoCode retrieves a promo code by ID
func (h *PromoHandler) GetPromoCode(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.promoService.GetPromoCode(c.Request.Context(), id)
	if err != nil {
		response.Error(c, statusFor(err), "promo code not found", err)
		return
	}

	response.Success(c, http.StatusOK, "promo code retrieved", result)
}

// ListPromoCodes retrieves promo codes with filters
func (h *PromoHandler) ListPromoCodes(c *gin.Context) {
	var filters promo.PromoListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.promoService.ListPromoCodes(c.Request.Context(), &filters)
	if err != nil {
		response.Error(c, statusFor(err), "failed to list promo codes", err)
		return
	}

	response.Success(c, http.StatusOK, "promo codes retrieved", result)
}

// UpdatePromoCode updates a promo code
func (h *PromoHandler) UpdatePromoCode(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req promo.UpdatePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.promoService.UpdatePromoCode(c.Request.Context(), id, &req)
	if err != nil {
		response.Error(c, statusFor(err), "failed to update promo code", err)
		return
	}

	response.Success(c, http.StatusOK, "promo code updated successfully", result)
}

// DeactivatePromoCode disables a promo code
func (h *PromoHandler) DeactivatePromoCode(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.promoService.DeactivatePromoCode(c.Request.Context(), id); err != nil {
		response.Error(c, statusFor(err), "failed to deactivate promo code", err)
		return
	}

	response.Success(c, http.StatusOK, "promo code deactivated", nil)
}

// ========== Helpers ==========

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid promo code ID", err)
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
