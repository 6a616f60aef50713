// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial link configuration. The port name itself
// is the device identifier passed to RequestConnect.
type SerialConfig struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// TCPConfig represents TCP bridge configuration. The host:port address is
// the device identifier passed to RequestConnect.
type TCPConfig struct {
	ConnectTimeout time.Duration `json:"connect_timeout"`
	KeepAlive      bool          `json:"keep_alive"`
}

// DefaultSerialConfig matches the kit's BLE-UART bridge
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
	}
}

// DefaultTCPConfig returns sane TCP bridge defaults
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		ConnectTimeout: 10 * time.Second,
		KeepAlive:      true,
	}
}
