// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthkit-link/internal/config"
	"healthkit-link/internal/handler"
	"healthkit-link/internal/middleware"
	"healthkit-link/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config     *config.Config
	logger     *zap.Logger
	controller handler.LinkController
	eventBus   *handler.EventBus
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	controller handler.LinkController,
	eventBus *handler.EventBus,
) *Router {
	return &Router{
		config:     config,
		logger:     logger,
		controller: controller,
		eventBus:   eventBus,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case r.config.App.Environment == "test":
		gin.SetMode(gin.TestMode)
	case r.config.IsDebugEnabled() && !r.config.IsProduction():
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		r.logger.Warn("Failed to reset trusted proxies", zap.Error(err))
	}

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	deviceID := r.config.Link.DeviceID

	wsHandler := handler.NewWebSocketHandler(r.controller, r.eventBus, deviceID, r.logger)
	healthHandler := handler.NewHealthHandler(r.controller, wsHandler, r.config, r.logger)
	linkHandler := handler.NewLinkHandler(r.controller, deviceID, r.logger)

	healthHandler.RegisterRoutes(router.Group(""))
	api := router.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(r.config.Security.RateLimit))
	linkHandler.RegisterRoutes(api)
	wsHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Info("All routes configured successfully")
}
