package router

import (
	"hybridReco/internal/rest"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRecommendationRoutes(api *echo.Group, handler *rest.RecommendationHandler, authRequired, adminOnly, selfOrAdmin echo.MiddlewareFunc) {
	reco := api.Group("/recommendations", authRequired)

	reco.GET("/trending", handler.GetTrendingProducts)
	reco.GET("/stats", handler.GetAlgorithmStats, adminOnly)
	reco.GET("/products/:id/similar", handler.GetSimilarProducts)
	reco.POST("/interactions", handler.RecordInteraction)

	reco.GET("/users/:id", handler.GetUserRecommendations, selfOrAdmin)
	reco.GET("/users/:id/realtime", handler.GetRealTimeUpdates, selfOrAdmin)
	reco.GET("/users/:id/active", handler.GetActiveRecommendations, selfOrAdmin)
	reco.DELETE("/users/:id/expired", handler.PurgeExpired, adminOnly)

	reco.GET("/:id", handler.GetRecommendation, adminOnly)
}

// SetupOpsRoutes exposes health and Prometheus scraping outside the auth group.
func SetupOpsRoutes(e *echo.Echo, version string) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
