package finger

import (
	"fmt"
	"time"
)

// Config holds the finger adapter's listener and session settings.
//
// Zero values are replaced with defaults by New. All limits are
// test-overridable by constructing the struct directly.
type Config struct {
	// Enabled controls whether the finger adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Host is the listen address. Empty means all interfaces.
	Host string `mapstructure:"host"`

	// Port is the TCP port to listen on. The finger protocol standard
	// port is 79; running unprivileged usually means picking a high
	// port. 0 binds an OS-assigned ephemeral port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections bounds concurrent in-flight connections.
	// Acceptance stalls at the bound until a slot frees. 0 means
	// unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// MaxLineLength bounds the request line, excluding the terminator.
	// A longer line is answered with the malformed-request response.
	// If 0, defaults to 256.
	MaxLineLength int `mapstructure:"max_line_length" validate:"min=0"`

	// ReadTimeout is the maximum time to wait for the request line.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout is the maximum time allowed for writing the
	// response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is how long graceful shutdown waits for active
	// connections before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = 256
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxLineLength < 1 {
		return fmt.Errorf("invalid MaxLineLength %d: must be >= 1", c.MaxLineLength)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}
