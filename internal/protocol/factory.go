// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"
)

// Options carries per-transport settings for CreateTransport
type Options struct {
	Serial SerialConfig
	TCP    TCPConfig
}

// CreateTransport creates a transport based on its type
func CreateTransport(kind TransportType, opts Options, logger *zap.Logger) (Transport, error) {
	switch kind {
	case TransportSerial:
		return NewSerialTransport(opts.Serial, logger), nil
	case TransportTCP:
		return NewTCPTransport(opts.TCP, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", kind)
	}
}
