// internal/protocol/protocol.go
package protocol

import (
	"time"

	"healthkit-link/internal/model"
)

// TransportType identifies the link a transport speaks over
type TransportType string

const (
	TransportSerial TransportType = "serial"
	TransportTCP    TransportType = "tcp"
)

// Handler receives transport callbacks. A transport reports exactly one
// outcome per connect attempt, plus Disconnected when an established link
// drops. OnMessage is only called while connected.
type Handler interface {
	OnOutcome(outcome model.ConnectionOutcome)
	OnMessage(raw string)
}

// Transport is the wireless link to the kit. Requests are fire-and-forget;
// results arrive through the registered Handler.
type Transport interface {
	SetHandler(h Handler)
	RequestConnect(identifier string)
	RequestDisconnect()

	Type() TransportType
	Stats() ProtocolStats
}

// ProtocolStats provides transport-level statistics
type ProtocolStats struct {
	BytesRead       int64     `json:"bytes_read"`
	FramesDelivered int64     `json:"frames_delivered"`
	ErrorCount      int64     `json:"error_count"`
	Sessions        int64     `json:"sessions"`
	LastActivity    time.Time `json:"last_activity"`
	IsConnected     bool      `json:"is_connected"`
}
