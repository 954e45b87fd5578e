package api

import (
	"net/http"
	"time"

	"github.com/ct-protocol-manual/internal/config"
	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/ct-protocol-manual/internal/service"
	"github.com/ct-protocol-manual/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Router is the configured gin engine together with resources that must be
// released at shutdown
type Router struct {
	*gin.Engine
	limiter *fixedWindowLimiter
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.limiter.Stop()
}

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, controller *navigation.Controller, cfg *config.Config, log zerolog.Logger) *Router {
	router := gin.New()

	// Middleware
	router.Use(requestIDMiddleware())
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())
	router.Use(sessionMiddleware(&cfg.Session))

	limiter := newFixedWindowLimiter(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow)

	// Handlers
	appHandler := NewAppHandler(services, controller, view.NewRenderer(services, log), limiter, cfg, log)
	exportHandler := NewExportHandler(services, log)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/metrics", metricsHandler(services))

	app := router.Group("/app")
	{
		app.GET("", appHandler.Show)
		app.POST("/start", appHandler.Start)
		app.POST("/login", appHandler.Login)
		app.POST("/logout", appHandler.Logout)
		app.POST("/navigate", appHandler.Navigate)
		app.POST("/back", appHandler.Back)

		app.POST("/search", appHandler.Search)
		app.POST("/search/all", appHandler.ToggleShowAll)
		app.POST("/search/clear", appHandler.ClearSearch)
		app.POST("/protocols/filter", appHandler.FilterProtocols)

		app.POST("/diseases", appHandler.CreateDisease)
		app.PUT("/diseases/:id", appHandler.UpdateDisease)
		app.POST("/notices", appHandler.CreateNotice)
		app.PUT("/notices/:id", appHandler.UpdateNotice)
		app.POST("/protocols", appHandler.CreateProtocol)
		app.PUT("/protocols/:id", appHandler.UpdateProtocol)

		app.POST("/delete", appHandler.Delete)
		app.POST("/admin/users", appHandler.CreateUser)
	}

	admin := router.Group("/admin", appHandler.RequireAdmin)
	{
		admin.GET("/export", exportHandler.StreamExport)
	}

	return &Router{Engine: router, limiter: limiter}
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "ct-protocol-manual",
	})
}

// metricsHandler returns content counts
func metricsHandler(services *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		counts := gin.H{}
		for _, resource := range []string{
			service.ResourceDiseases,
			service.ResourceNotices,
			service.ResourceProtocols,
			service.ResourceUsers,
		} {
			n, err := services.Export.GetCount(ctx, resource)
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
				return
			}
			counts[resource] = n
		}

		c.JSON(http.StatusOK, gin.H{
			"database":  counts,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
