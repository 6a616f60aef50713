// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"healthkit-link/internal/model"
)

// NewSerialTransport creates a transport for a kit reached through a
// BLE-UART bridge exposed as a serial port (e.g. /dev/rfcomm0).
func NewSerialTransport(config SerialConfig, logger *zap.Logger) *StreamTransport {
	logger.Info("Creating serial transport",
		zap.Int("baud_rate", config.BaudRate),
		zap.String("parity", config.Parity),
	)
	return NewStreamTransport(TransportSerial, serialDialer(config), classifySerialError, logger)
}

func serialDialer(config SerialConfig) Dialer {
	return func(ctx context.Context, portName string) (io.ReadWriteCloser, error) {
		port, err := serial.Open(portName, serialMode(config))
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
		}
		return port, nil
	}
}

// serialMode converts the configuration into a port mode
func serialMode(config SerialConfig) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		StopBits: serial.OneStopBit,
	}

	if config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode
}

// classifySerialError reports a missing port as no device found
func classifySerialError(err error) model.ConnectionOutcome {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound {
		return model.OutcomeNoDeviceFound
	}
	return model.OutcomeDisconnected
}
