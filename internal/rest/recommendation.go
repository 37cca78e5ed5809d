package rest

import (
	"context"
	"errors"
	"hybridReco/business/recommendation"
	"hybridReco/domain"
	"hybridReco/pkg/logger"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
)

type (
	RecommendationHandler struct {
		validate *validator.Validate
		service  RecommendationService
		timeout  time.Duration
	}

	RecommendationService interface {
		GetUserRecommendations(ctx context.Context, userID uint64, limit int, algorithm domain.Algorithm) ([]domain.Recommendation, error)
		GetSimilarProducts(ctx context.Context, productID uint64, limit int) ([]domain.Recommendation, error)
		GetTrendingProducts(ctx context.Context, limit int) ([]domain.Recommendation, error)
		RecordInteraction(ctx context.Context, in *domain.Interaction) error
		GetRealTimeUpdates(ctx context.Context, userID uint64) ([]domain.Recommendation, error)
		FindActive(ctx context.Context, userID uint64) ([]domain.Recommendation, error)
		PurgeExpired(ctx context.Context, userID uint64) (int64, error)
		GetRecommendation(ctx context.Context, id uint64) (*domain.Recommendation, error)
		AlgorithmStats(ctx context.Context) ([]domain.AlgorithmStat, error)
	}

	ResponseError struct {
		Message string `json:"message"`
	}

	RecommendationQuery struct {
		Limit     int    `query:"limit" validate:"gte=0,lte=100"`
		Algorithm string `query:"algorithm" validate:"max=32"`
	}

	LimitQuery struct {
		Limit int `query:"limit" validate:"gte=0,lte=100"`
	}

	InteractionRequest struct {
		UserID          uint64                 `json:"user_id" validate:"required"`
		ProductID       uint64                 `json:"product_id" validate:"required"`
		InteractionType string                 `json:"interaction_type" validate:"required,oneof=VIEW PURCHASE LIKE CART_ADD WISHLIST"`
		Rating          *int                   `json:"rating" validate:"omitempty,gte=1,lte=5"`
		Weight          float64                `json:"weight" validate:"gte=0"`
		SessionID       string                 `json:"session_id" validate:"max=128"`
		Context         map[string]interface{} `json:"context"`
	}

	UserRecommendationsResponse struct {
		UserID          uint64                  `json:"user_id"`
		Algorithm       domain.Algorithm        `json:"algorithm"`
		Count           int                     `json:"count"`
		Persisted       bool                    `json:"persisted"`
		Recommendations []domain.Recommendation `json:"recommendations"`
	}
)

func NewRecommendationHandler(svc RecommendationService, timeout time.Duration) *RecommendationHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RecommendationHandler{
		validate: validator.New(),
		service:  svc,
		timeout:  timeout,
	}
}

// GET /api/v1/recommendations/users/:id?limit=10&algorithm=HYBRID
func (h *RecommendationHandler) GetUserRecommendations(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid user id"})
	}

	var q RecommendationQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	algorithm, err := recommendation.ParseAlgorithm(q.Algorithm)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	recs, err := h.service.GetUserRecommendations(ctx, userID, q.Limit, algorithm)
	persisted := true
	if err != nil {
		if perr, ok := domain.AsPersistenceError(err); ok {
			// scored but not saved; still worth serving
			logger.Warn("Serving unsaved recommendations", "user_id", userID, "error", perr.Err)
			recs = perr.Recommendations
			persisted = false
		} else {
			return h.writeError(c, "Failed to generate recommendations", err)
		}
	}

	if recs == nil {
		recs = []domain.Recommendation{}
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(UserRecommendationsResponse{
		UserID:          userID,
		Algorithm:       algorithm,
		Count:           len(recs),
		Persisted:       persisted,
		Recommendations: recs,
	}))
}

// GET /api/v1/recommendations/products/:id/similar?limit=10
func (h *RecommendationHandler) GetSimilarProducts(c echo.Context) error {
	productID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid product id"})
	}

	var q LimitQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	recs, err := h.service.GetSimilarProducts(ctx, productID, q.Limit)
	if err != nil {
		return h.writeError(c, "Failed to find similar products", err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(nonNil(recs)))
}

// GET /api/v1/recommendations/trending?limit=10
func (h *RecommendationHandler) GetTrendingProducts(c echo.Context) error {
	var q LimitQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	recs, err := h.service.GetTrendingProducts(ctx, q.Limit)
	if err != nil {
		return h.writeError(c, "Failed to compute trending products", err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(nonNil(recs)))
}

// POST /api/v1/recommendations/interactions
func (h *RecommendationHandler) RecordInteraction(c echo.Context) error {
	var req InteractionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	// non-admin callers may only record their own activity
	if uid, ok := c.Get("user_id").(uint64); ok && uid != req.UserID {
		if role, _ := c.Get("role").(string); !strings.EqualFold(role, "ADMIN") {
			return c.JSON(http.StatusForbidden, ResponseError{Message: "cannot record interactions for another user"})
		}
	}

	in := &domain.Interaction{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Type:      domain.InteractionType(req.InteractionType),
		Rating:    req.Rating,
		Weight:    req.Weight,
		SessionID: req.SessionID,
	}
	if len(req.Context) > 0 {
		in.Context = datatypes.JSONMap(req.Context)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.service.RecordInteraction(ctx, in); err != nil {
		return h.writeError(c, "Failed to record interaction", err)
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(in))
}

// GET /api/v1/recommendations/users/:id/realtime
func (h *RecommendationHandler) GetRealTimeUpdates(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	recs, err := h.service.GetRealTimeUpdates(ctx, userID)
	if err != nil {
		return h.writeError(c, "Failed to load latest recommendations", err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(nonNil(recs)))
}

// GET /api/v1/recommendations/users/:id/active
func (h *RecommendationHandler) GetActiveRecommendations(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	recs, err := h.service.FindActive(ctx, userID)
	if err != nil {
		return h.writeError(c, "Failed to load active recommendations", err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(nonNil(recs)))
}

// DELETE /api/v1/recommendations/users/:id/expired
func (h *RecommendationHandler) PurgeExpired(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	n, err := h.service.PurgeExpired(ctx, userID)
	if err != nil {
		return h.writeError(c, "Failed to purge expired recommendations", err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]interface{}{
		"user_id": userID,
		"deleted": n,
	}))
}

// GET /api/v1/recommendations/stats
func (h *RecommendationHandler) GetAlgorithmStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	stats, err := h.service.AlgorithmStats(ctx)
	if err != nil {
		return h.writeError(c, "Failed to load algorithm stats", err)
	}
	if stats == nil {
		stats = []domain.AlgorithmStat{}
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(stats))
}

// GET /api/v1/recommendations/:id
func (h *RecommendationHandler) GetRecommendation(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid recommendation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	rec, err := h.service.GetRecommendation(ctx, id)
	if err != nil {
		return h.writeError(c, "Failed to load recommendation", err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(rec))
}

// writeError maps service errors onto status codes.
func (h *RecommendationHandler) writeError(c echo.Context, msg string, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAlgorithm), errors.Is(err, domain.ErrInvalidInteraction):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrBothSourcesFailed):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away
		status = 499
	}

	if status >= http.StatusInternalServerError {
		logger.Error(msg,
			"trace_id", recommendation.TraceIDFromContext(c.Request().Context()),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.JSON(status, ResponseError{Message: err.Error()})
}

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func nonNil(recs []domain.Recommendation) []domain.Recommendation {
	if recs == nil {
		return []domain.Recommendation{}
	}
	return recs
}
