package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthkit-link/internal/link"
	"healthkit-link/internal/model"
	"healthkit-link/internal/protocol"
	"healthkit-link/internal/utils"
)

const testDeviceID = "20C38F8E85AA"

// fakeController mimics the controller's command guards without a transport
type fakeController struct {
	mutex       sync.Mutex
	state       model.ConnectionState
	deviceID    string
	connects    []string
	disconnects int
}

func (f *fakeController) Connect(identifier string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.state != model.StateIdle {
		return link.ErrConnectRejected
	}
	f.state = model.StateConnecting
	f.deviceID = identifier
	f.connects = append(f.connects, identifier)
	return nil
}

func (f *fakeController) Disconnect() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.state == model.StateIdle {
		return link.ErrNotConnected
	}
	f.disconnects++
	return nil
}

func (f *fakeController) State() model.ConnectionState {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.state
}

func (f *fakeController) DeviceID() string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.deviceID
}

func (f *fakeController) Stats() link.Stats {
	return link.Stats{FramesDecoded: 4, FramesDropped: 1}
}

func (f *fakeController) TransportStats() protocol.ProtocolStats {
	return protocol.ProtocolStats{Sessions: 2}
}

func (f *fakeController) connectCalls() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.connects...)
}

func newLinkRouter(controller LinkController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewLinkHandler(controller, testDeviceID, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))
	return router
}

type linkResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    linkStatusBody  `json:"data"`
	Error   *utils.APIError `json:"error"`
}

// linkStatusBody mirrors LinkStatus with the state as its wire name
type linkStatusBody struct {
	State           string                 `json:"state"`
	DeviceID        string                 `json:"device_id"`
	DefaultDeviceID string                 `json:"default_device_id"`
	CanConnect      bool                   `json:"can_connect"`
	CanDisconnect   bool                   `json:"can_disconnect"`
	Controller      link.Stats             `json:"controller"`
	Transport       protocol.ProtocolStats `json:"transport"`
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, linkResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp linkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestLinkHandler_GetStatus(t *testing.T) {
	router := newLinkRouter(&fakeController{})

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/link", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "idle", resp.Data.State)
	assert.Equal(t, testDeviceID, resp.Data.DefaultDeviceID)
	assert.True(t, resp.Data.CanConnect)
	assert.False(t, resp.Data.CanDisconnect)
	assert.Equal(t, int64(4), resp.Data.Controller.FramesDecoded)
	assert.Equal(t, int64(2), resp.Data.Transport.Sessions)
}

func TestLinkHandler_ConnectDefaultsToConfiguredKit(t *testing.T) {
	controller := &fakeController{}
	router := newLinkRouter(controller)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/link/connect", "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "connecting", resp.Data.State)
	assert.False(t, resp.Data.CanConnect)
	assert.True(t, resp.Data.CanDisconnect)
	assert.Equal(t, []string{testDeviceID}, controller.connectCalls())
}

func TestLinkHandler_ConnectWithDeviceID(t *testing.T) {
	controller := &fakeController{}
	router := newLinkRouter(controller)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/link/connect", `{"device_id":"/dev/rfcomm1"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/dev/rfcomm1", resp.Data.DeviceID)
	assert.Equal(t, []string{"/dev/rfcomm1"}, controller.connectCalls())
}

func TestLinkHandler_ConnectRejectedWhenNotIdle(t *testing.T) {
	controller := &fakeController{state: model.StateConnected, deviceID: "X"}
	router := newLinkRouter(controller)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/link/connect", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_LINK_STATE", resp.Error.Code)
	assert.Equal(t, link.ErrConnectRejected.Error(), resp.Error.Details)
	assert.Empty(t, controller.connectCalls())
}

func TestLinkHandler_ConnectInvalidBody(t *testing.T) {
	controller := &fakeController{}
	router := newLinkRouter(controller)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/link/connect", `{"device_id":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
	assert.Empty(t, controller.connectCalls())
}

func TestLinkHandler_Disconnect(t *testing.T) {
	t.Run("rejected when idle", func(t *testing.T) {
		controller := &fakeController{}
		w, resp := doRequest(t, newLinkRouter(controller), http.MethodPost, "/api/v1/link/disconnect", "")

		assert.Equal(t, http.StatusConflict, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, link.ErrNotConnected.Error(), resp.Error.Details)
		assert.Zero(t, controller.disconnects)
	})

	t.Run("accepted when connected", func(t *testing.T) {
		controller := &fakeController{state: model.StateConnected, deviceID: "X"}
		w, resp := doRequest(t, newLinkRouter(controller), http.MethodPost, "/api/v1/link/disconnect", "")

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, 1, controller.disconnects)
	})
}
