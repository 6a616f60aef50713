// internal/link/controller.go
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthkit-link/internal/model"
	"healthkit-link/internal/protocol"
	"healthkit-link/internal/telemetry"
	"healthkit-link/internal/utils"
)

var (
	// ErrConnectRejected is returned by Connect when the link is not idle
	ErrConnectRejected = errors.New("connect rejected: link is not idle")
	// ErrNotConnected is returned by Disconnect when the link is idle
	ErrNotConnected = errors.New("disconnect rejected: link is idle")
)

const idlePollInterval = 20 * time.Millisecond

// Consumer receives the events the controller emits, typically a display
// layer. Callbacks are invoked in transition order and must not block or
// call back into OnOutcome/OnMessage.
type Consumer interface {
	OnStateChanged(event model.StateChange)
	OnReading(event model.ReadingEvent)
}

// Stats counts what the controller has seen since it was created
type Stats struct {
	Outcomes        int64 `json:"outcomes"`
	FramesDecoded   int64 `json:"frames_decoded"`
	FramesDropped   int64 `json:"frames_dropped"`
	MessagesIgnored int64 `json:"messages_ignored"`
}

// Controller owns the connection state of the single kit link. It forwards
// connect and disconnect intents to the transport and turns transport
// callbacks into consumer events.
type Controller struct {
	transport protocol.Transport
	consumer  Consumer
	logger    *zap.Logger
	now       func() time.Time

	mutex    sync.Mutex
	state    model.ConnectionState
	deviceID string
	stats    Stats

	// delivery serializes transport callbacks so events reach the consumer
	// in transition order; it is always taken before mutex
	delivery sync.Mutex
}

// NewController creates a controller and registers it as the transport's handler
func NewController(transport protocol.Transport, consumer Consumer, logger *zap.Logger) *Controller {
	c := &Controller{
		transport: transport,
		consumer:  consumer,
		logger:    logger.With(zap.String("component", "link")),
		now:       time.Now,
		state:     model.StateIdle,
	}
	transport.SetHandler(c)
	return c
}

// Connect starts a connection attempt to identifier. It is only accepted
// while idle; otherwise nothing is sent to the transport.
func (c *Controller) Connect(identifier string) error {
	c.mutex.Lock()
	if c.state != model.StateIdle {
		state := c.state
		c.mutex.Unlock()
		c.logger.Warn("Connect rejected",
			zap.String("device_id", identifier),
			zap.Stringer("state", state),
		)
		return ErrConnectRejected
	}
	c.state = model.StateConnecting
	c.deviceID = identifier
	c.mutex.Unlock()

	utils.NewDeviceLogger(c.logger, identifier).LogConnection("connect_requested", true, nil)
	c.transport.RequestConnect(identifier)
	return nil
}

// Disconnect asks the transport to end the current attempt or link. The
// state only changes when the transport reports the outcome.
func (c *Controller) Disconnect() error {
	c.mutex.Lock()
	if c.state == model.StateIdle {
		c.mutex.Unlock()
		c.logger.Debug("Disconnect rejected, link is idle")
		return ErrNotConnected
	}
	deviceID := c.deviceID
	c.mutex.Unlock()

	utils.NewDeviceLogger(c.logger, deviceID).LogConnection("disconnect_requested", true, nil)
	c.transport.RequestDisconnect()
	return nil
}

// OnOutcome applies a transport outcome and emits a state change
func (c *Controller) OnOutcome(outcome model.ConnectionOutcome) {
	c.delivery.Lock()
	defer c.delivery.Unlock()

	c.mutex.Lock()
	c.state = outcome.ResultingState()
	c.stats.Outcomes++
	event := model.NewStateChange(c.deviceID, outcome, c.now())
	c.mutex.Unlock()

	utils.NewDeviceLogger(c.logger, event.DeviceID).LogConnection(event.Classification, outcome == model.OutcomeConnected, nil)
	c.consumer.OnStateChanged(event)
}

// OnMessage decodes a raw frame received while connected and emits the
// reading. Frames outside a connection and malformed frames are dropped.
func (c *Controller) OnMessage(raw string) {
	c.delivery.Lock()
	defer c.delivery.Unlock()

	c.mutex.Lock()
	if c.state != model.StateConnected {
		c.stats.MessagesIgnored++
		state := c.state
		c.mutex.Unlock()
		c.logger.Debug("Ignoring message outside an active connection",
			zap.Stringer("state", state),
		)
		return
	}

	reading, err := telemetry.Decode(raw)
	if err != nil {
		c.stats.FramesDropped++
		c.mutex.Unlock()
		c.logger.Debug("Dropping frame", zap.String("raw", raw), zap.Error(err))
		return
	}

	c.stats.FramesDecoded++
	event := model.ReadingEvent{
		DeviceID:  c.deviceID,
		Reading:   reading,
		Timestamp: c.now(),
	}
	c.mutex.Unlock()

	c.consumer.OnReading(event)
}

// State returns the current connection state
func (c *Controller) State() model.ConnectionState {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// WaitIdle blocks until the link is idle or ctx is done
func (c *Controller) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for c.State() != model.StateIdle {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// DeviceID returns the identifier of the current or last attempt
func (c *Controller) DeviceID() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.deviceID
}

// Stats returns a snapshot of the controller counters
func (c *Controller) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}

// TransportStats returns the transport's statistics
func (c *Controller) TransportStats() protocol.ProtocolStats {
	return c.transport.Stats()
}
