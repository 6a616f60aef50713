// internal/protocol/stream.go
package protocol

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthkit-link/internal/model"
)

// Dialer opens the byte stream to the kit identified by identifier
type Dialer func(ctx context.Context, identifier string) (io.ReadWriteCloser, error)

// Classifier maps a dial failure to the outcome reported to the handler
type Classifier func(err error) model.ConnectionOutcome

// StreamTransport implements Transport over any byte stream carrying kit
// frames: a BLE-UART serial bridge, a TCP bridge, or a test pipe.
type StreamTransport struct {
	kind     TransportType
	dial     Dialer
	classify Classifier
	logger   *zap.Logger

	mutex   sync.Mutex
	handler Handler
	cancel  context.CancelFunc
	stats   ProtocolStats
}

// NewStreamTransport creates a transport that opens streams with dial
func NewStreamTransport(kind TransportType, dial Dialer, classify Classifier, logger *zap.Logger) *StreamTransport {
	if classify == nil {
		classify = func(error) model.ConnectionOutcome { return model.OutcomeDisconnected }
	}
	return &StreamTransport{
		kind:     kind,
		dial:     dial,
		classify: classify,
		logger:   logger.With(zap.String("protocol", string(kind))),
	}
}

// SetHandler registers the callback receiver
func (t *StreamTransport) SetHandler(h Handler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handler = h
}

// RequestConnect starts a session in the background. A request made while
// a session is active is ignored.
func (t *StreamTransport) RequestConnect(identifier string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.cancel != nil {
		t.logger.Warn("Connect requested while a session is active, ignoring",
			zap.String("device_id", identifier),
		)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.stats.Sessions++

	go t.run(ctx, identifier)
}

// RequestDisconnect tears down the active session, if any. The resulting
// Disconnected outcome is reported by the session goroutine.
func (t *StreamTransport) RequestDisconnect() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.cancel == nil {
		t.logger.Debug("Disconnect requested without an active session")
		return
	}
	t.cancel()
}

// Type returns the transport type
func (t *StreamTransport) Type() TransportType {
	return t.kind
}

// Stats returns a snapshot of the transport statistics
func (t *StreamTransport) Stats() ProtocolStats {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.stats
}

// run owns one session from dial to teardown
func (t *StreamTransport) run(ctx context.Context, identifier string) {
	logger := t.logger.With(zap.String("device_id", identifier))
	logger.Info("Opening kit link")

	conn, err := t.dial(ctx, identifier)
	if err == nil && ctx.Err() != nil {
		_ = conn.Close()
		err = ctx.Err()
	}
	if err != nil {
		outcome := model.OutcomeDisconnected
		if ctx.Err() == nil {
			outcome = t.classify(err)
		}
		logger.Warn("Failed to open kit link",
			zap.Error(err),
			zap.Stringer("outcome", outcome),
		)
		t.endSession(ctx.Err() == nil)
		t.report(outcome)
		return
	}

	t.mutex.Lock()
	t.stats.IsConnected = true
	t.stats.LastActivity = time.Now()
	t.mutex.Unlock()

	logger.Info("Kit link opened")
	t.report(model.OutcomeConnected)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})

	failed := false
	scanner := newFrameScanner(&countingReader{r: conn, t: t})
	for scanner.Scan() {
		t.mutex.Lock()
		t.stats.FramesDelivered++
		t.mutex.Unlock()

		t.deliver(scanner.Text())
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		failed = true
		logger.Warn("Kit link read failed", zap.Error(err))
	}

	if stop() {
		_ = conn.Close()
	}

	if ctx.Err() != nil {
		logger.Info("Kit link closed on request")
	} else {
		logger.Info("Kit link dropped")
	}

	t.endSession(failed)
	t.report(model.OutcomeDisconnected)
}

// endSession clears the active session so a new connect can be accepted
func (t *StreamTransport) endSession(failed bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.stats.IsConnected = false
	if failed {
		t.stats.ErrorCount++
	}
}

func (t *StreamTransport) report(outcome model.ConnectionOutcome) {
	if h := t.currentHandler(); h != nil {
		h.OnOutcome(outcome)
	}
}

func (t *StreamTransport) deliver(raw string) {
	if h := t.currentHandler(); h != nil {
		h.OnMessage(raw)
	}
}

func (t *StreamTransport) currentHandler() Handler {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.handler
}

// countingReader feeds read statistics back to the transport
type countingReader struct {
	r io.Reader
	t *StreamTransport
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.t.mutex.Lock()
		c.t.stats.BytesRead += int64(n)
		c.t.stats.LastActivity = time.Now()
		c.t.mutex.Unlock()
	}
	return n, err
}
