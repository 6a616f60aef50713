// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"go.uber.org/zap"

	"healthkit-link/internal/model"
)

// NewTCPTransport creates a transport for a kit reached through a network
// bridge; the identifier is its host:port address.
func NewTCPTransport(config TCPConfig, logger *zap.Logger) *StreamTransport {
	logger.Info("Creating TCP transport",
		zap.Duration("connect_timeout", config.ConnectTimeout),
		zap.Bool("keep_alive", config.KeepAlive),
	)
	return NewStreamTransport(TransportTCP, tcpDialer(config), classifyTCPError, logger)
}

func tcpDialer(config TCPConfig) Dialer {
	return func(ctx context.Context, address string) (io.ReadWriteCloser, error) {
		dialer := &net.Dialer{
			Timeout: config.ConnectTimeout,
		}
		if !config.KeepAlive {
			dialer.KeepAlive = -1
		}

		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
		}
		return conn, nil
	}
}

// classifyTCPError reports unresolvable or unanswered addresses as no
// device found; anything else is a failed connection.
func classifyTCPError(err error) model.ConnectionOutcome {
	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &addrErr):
		return model.OutcomeNoDeviceFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return model.OutcomeNoDeviceFound
	default:
		return model.OutcomeDisconnected
	}
}
