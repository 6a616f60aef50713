// internal/handler/link_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthkit-link/internal/link"
	"healthkit-link/internal/model"
	"healthkit-link/internal/protocol"
	"healthkit-link/internal/utils"
)

// LinkController is the part of link.Controller the handlers drive
type LinkController interface {
	Connect(identifier string) error
	Disconnect() error
	State() model.ConnectionState
	DeviceID() string
	Stats() link.Stats
	TransportStats() protocol.ProtocolStats
}

// ConnectRequest is the optional body of a connect command
type ConnectRequest struct {
	DeviceID string `json:"device_id"`
}

// LinkStatus describes the link for the display layer
type LinkStatus struct {
	State           model.ConnectionState  `json:"state"`
	DeviceID        string                 `json:"device_id"`
	DefaultDeviceID string                 `json:"default_device_id"`
	CanConnect      bool                   `json:"can_connect"`
	CanDisconnect   bool                   `json:"can_disconnect"`
	Controller      link.Stats             `json:"controller"`
	Transport       protocol.ProtocolStats `json:"transport"`
}

// LinkHandler handles link command HTTP requests
type LinkHandler struct {
	controller      LinkController
	defaultDeviceID string
	logger          *utils.ServiceLogger
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(controller LinkController, defaultDeviceID string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		controller:      controller,
		defaultDeviceID: defaultDeviceID,
		logger:          utils.NewServiceLogger(logger, "link-handler"),
	}
}

// RegisterRoutes registers link routes
func (h *LinkHandler) RegisterRoutes(router *gin.RouterGroup) {
	linkRoutes := router.Group("/link")
	{
		linkRoutes.GET("", h.GetStatus)
		linkRoutes.POST("/connect", h.Connect)
		linkRoutes.POST("/disconnect", h.Disconnect)
	}
}

// GetStatus returns the current link status
// @Summary Get link status
// @Description Returns the connection state, the connected kit and the decode counters
// @Tags Link
// @Produce json
// @Success 200 {object} utils.APIResponse{data=LinkStatus} "Link status retrieved"
// @Router /link [get]
func (h *LinkHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Link status retrieved", h.status())
}

// Connect requests a connection to the body's device_id, or the
// configured kit when none is given
// @Summary Connect to the kit
// @Description Starts a connection attempt. Only accepted while the link is idle; the outcome arrives on /ws/events
// @Tags Link
// @Accept json
// @Produce json
// @Param request body ConnectRequest false "Kit to connect to, defaults to the configured device"
// @Success 202 {object} utils.APIResponse{data=LinkStatus} "Connection requested"
// @Failure 400 {object} utils.APIResponse "Invalid request body"
// @Failure 409 {object} utils.APIResponse "Connect rejected"
// @Router /link/connect [post]
func (h *LinkHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	deviceID := h.resolveDeviceID(req.DeviceID)
	if err := h.controller.Connect(deviceID); err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "Connect rejected", err)
		return
	}

	h.logger.Info("Connect requested over HTTP", zap.String("device_id", deviceID))
	utils.SuccessResponse(c, http.StatusAccepted, "Connection requested", h.status())
}

// Disconnect requests the link be closed
// @Summary Disconnect from the kit
// @Description Requests the link be closed. Rejected while the link is already idle
// @Tags Link
// @Produce json
// @Success 202 {object} utils.APIResponse{data=LinkStatus} "Disconnection requested"
// @Failure 409 {object} utils.APIResponse "Disconnect rejected"
// @Router /link/disconnect [post]
func (h *LinkHandler) Disconnect(c *gin.Context) {
	if err := h.controller.Disconnect(); err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "Disconnect rejected", err)
		return
	}

	h.logger.Info("Disconnect requested over HTTP")
	utils.SuccessResponse(c, http.StatusAccepted, "Disconnection requested", h.status())
}

func (h *LinkHandler) resolveDeviceID(requested string) string {
	if requested != "" {
		return requested
	}
	return h.defaultDeviceID
}

func (h *LinkHandler) status() LinkStatus {
	return buildLinkStatus(h.controller, h.defaultDeviceID)
}

// buildLinkStatus derives the status a display layer needs to enable or
// disable its controls
func buildLinkStatus(controller LinkController, defaultDeviceID string) LinkStatus {
	state := controller.State()
	return LinkStatus{
		State:           state,
		DeviceID:        controller.DeviceID(),
		DefaultDeviceID: defaultDeviceID,
		CanConnect:      state == model.StateIdle,
		CanDisconnect:   state != model.StateIdle,
		Controller:      controller.Stats(),
		Transport:       controller.TransportStats(),
	}
}
