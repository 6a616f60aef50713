package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthkit-link/internal/config"
	"healthkit-link/internal/handler"
	"healthkit-link/internal/link"
	"healthkit-link/internal/model"
	"healthkit-link/internal/protocol"
	"healthkit-link/internal/simulator"
)

type stack struct {
	server     *httptest.Server
	controller *link.Controller
	kitAddr    string
}

func newStack(t *testing.T) *stack {
	t.Helper()

	cfg, err := config.LoadFrom(t.TempDir())
	require.NoError(t, err)
	cfg.App.Environment = "test"

	logger := zap.NewNop()

	kit := simulator.NewServer(simulator.Config{
		ListenAddr: "127.0.0.1:0",
		Interval:   10 * time.Millisecond,
		Seed:       11,
	}, logger)
	require.NoError(t, kit.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	go kit.Serve(ctx)

	transport, err := protocol.CreateTransport(protocol.TransportTCP, protocol.Options{
		TCP: protocol.DefaultTCPConfig(),
	}, logger)
	require.NoError(t, err)

	bus := handler.NewEventBus(logger)
	go bus.Start()
	controller := link.NewController(transport, bus, logger)

	server := httptest.NewServer(NewRouter(cfg, logger, controller, bus).SetupRouter())

	t.Cleanup(func() {
		controller.Disconnect()
		server.Close()
		cancel()
		bus.Close()
	})

	return &stack{server: server, controller: controller, kitAddr: kit.Addr().String()}
}

func TestRouter_HealthEndpoints(t *testing.T) {
	s := newStack(t)

	for _, path := range []string{"/health", "/ready", "/live"} {
		resp, err := http.Get(s.server.URL + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"), path)
	}
}

func TestRouter_LinkSessionAgainstSimulatedKit(t *testing.T) {
	s := newStack(t)

	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/events"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	var initial handler.WebSocketMessage
	require.NoError(t, ws.ReadJSON(&initial))
	assert.Equal(t, "initial_status", initial.Type)

	body := `{"device_id":"` + s.kitAddr + `"}`
	resp, err := http.Post(s.server.URL+"/api/v1/link/connect", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return s.controller.State() == model.StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	// connect is refused while the session is up
	resp, err = http.Post(s.server.URL+"/api/v1/link/connect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	seen := map[string]bool{}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for !seen[string(model.EventReadingDecoded)] {
		var message handler.WebSocketMessage
		require.NoError(t, ws.ReadJSON(&message))
		seen[message.Type] = true
	}
	assert.True(t, seen[string(model.EventStateChanged)])

	resp, err = http.Post(s.server.URL+"/api/v1/link/disconnect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return s.controller.State() == model.StateIdle
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(s.server.URL + "/api/v1/link")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status struct {
		Data struct {
			State      string     `json:"state"`
			Controller link.Stats `json:"controller"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "idle", status.Data.State)
	assert.Positive(t, status.Data.Controller.FramesDecoded)
}

func TestSetupRouterMode(t *testing.T) {
	defer gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		environment string
		debug       bool
		want        string
	}{
		{"test environment", "test", true, gin.TestMode},
		{"development", "development", false, gin.DebugMode},
		{"staging with debug", "staging", true, gin.DebugMode},
		{"staging", "staging", false, gin.ReleaseMode},
		{"production ignores debug", "production", true, gin.ReleaseMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadFrom(t.TempDir())
			require.NoError(t, err)
			cfg.App.Environment = tt.environment
			cfg.App.Debug = tt.debug

			bus := handler.NewEventBus(zap.NewNop())
			go bus.Start()
			defer bus.Close()
			NewRouter(cfg, zap.NewNop(), nil, bus).SetupRouter()

			assert.Equal(t, tt.want, gin.Mode())
		})
	}
}
