// internal/handler/health_handler.go
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthkit-link/internal/config"
	"healthkit-link/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	controller LinkController
	websockets *WebSocketHandler
	config     *config.Config
	startedAt  time.Time
	logger     *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(controller LinkController, websockets *WebSocketHandler, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		controller: controller,
		websockets: websockets,
		config:     config,
		startedAt:  time.Now(),
		logger:     utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports service health. The service stays healthy while the
// kit is disconnected; link state is informational.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	transport := h.controller.TransportStats()

	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).String(),
		Checks:    make(map[string]CheckResult),
	}

	health.Checks["link"] = CheckResult{
		Status:  "healthy",
		Message: "Link is " + h.controller.State().String(),
		Data: map[string]interface{}{
			"device_id":        h.controller.DeviceID(),
			"is_connected":     transport.IsConnected,
			"last_activity":    transport.LastActivity,
			"frames_delivered": transport.FramesDelivered,
			"error_count":      transport.ErrorCount,
		},
	}

	if h.websockets != nil {
		stats := h.websockets.GetConnectionStats()
		health.Checks["websocket"] = CheckResult{
			Status:  "healthy",
			Message: fmt.Sprintf("%d display client(s) connected", stats.TotalConnections),
			Data: map[string]interface{}{
				"clients": stats.TotalConnections,
				"details": stats.Clients,
			},
		}
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck reports whether the service accepts traffic
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"link":      h.controller.State(),
		"timestamp": time.Now(),
	})
}

// LivenessCheck reports that the process is up
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
