// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"healthkit-link/internal/protocol"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Link     LinkConfig     `mapstructure:"link"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds API requests per client IP
type RateLimitConfig struct {
	RequestsPerMin int `mapstructure:"requests_per_min"`
	Burst          int `mapstructure:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LinkConfig represents the kit link configuration
type LinkConfig struct {
	DeviceID    string           `mapstructure:"device_id"`
	Transport   string           `mapstructure:"transport"`
	AutoConnect bool             `mapstructure:"auto_connect"`
	Serial      SerialLinkConfig `mapstructure:"serial"`
	TCP         TCPLinkConfig    `mapstructure:"tcp"`
}

// SerialLinkConfig represents BLE-UART bridge port settings
type SerialLinkConfig struct {
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
}

// TCPLinkConfig represents network bridge settings
type TCPLinkConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	KeepAlive      bool          `mapstructure:"keep_alive"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// DefaultConfigPaths are searched in order for config.yaml
var DefaultConfigPaths = []string{".", "./config", "/etc/healthkit-link"}

// Load loads configuration from the default paths and environment variables
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPaths...)
}

// LoadFrom loads configuration from config.yaml in the given directories.
// A missing file is not an error; defaults and environment apply.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	// Environment variable support
	v.SetEnvPrefix("HEALTHKIT_LINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("security.allowed_origins", []string{})
	v.SetDefault("security.rate_limit.requests_per_min", 120)
	v.SetDefault("security.rate_limit.burst", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Link defaults, the serial number printed on the kit
	v.SetDefault("link.device_id", "20C38F8E85AA")
	v.SetDefault("link.transport", "serial")
	v.SetDefault("link.auto_connect", false)

	serialDefaults := protocol.DefaultSerialConfig()
	v.SetDefault("link.serial.baud_rate", serialDefaults.BaudRate)
	v.SetDefault("link.serial.data_bits", serialDefaults.DataBits)
	v.SetDefault("link.serial.stop_bits", serialDefaults.StopBits)
	v.SetDefault("link.serial.parity", serialDefaults.Parity)

	tcpDefaults := protocol.DefaultTCPConfig()
	v.SetDefault("link.tcp.connect_timeout", tcpDefaults.ConnectTimeout)
	v.SetDefault("link.tcp.keep_alive", tcpDefaults.KeepAlive)

	// App defaults
	v.SetDefault("app.name", "healthkit-link")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if !oneOf(config.App.Environment, "development", "staging", "production", "test") {
		return fmt.Errorf("app.environment must be one of: [development staging production test]")
	}
	if !oneOf(config.Logging.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("logging.level must be one of: [debug info warn error]")
	}
	if !oneOf(config.Link.Transport, "serial", "tcp") {
		return fmt.Errorf("link.transport must be one of: [serial tcp]")
	}
	if config.Security.RateLimit.RequestsPerMin > 0 && config.Security.RateLimit.Burst < 1 {
		return fmt.Errorf("security.rate_limit.burst must be at least 1")
	}
	if config.Link.Serial.StopBits != 1 && config.Link.Serial.StopBits != 2 {
		return fmt.Errorf("link.serial.stop_bits must be 1 or 2")
	}

	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
