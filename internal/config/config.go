package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	AuthTimeout       time.Duration `mapstructure:"auth_timeout" yaml:"auth_timeout"`
	ActivityTimeout   time.Duration `mapstructure:"activity_timeout" yaml:"activity_timeout"`
	WatchdogInterval  time.Duration `mapstructure:"watchdog_interval" yaml:"watchdog_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	OutboundBuffer    int           `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
	MaxLineBytes      int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	MaxLinesPerMinute int           `mapstructure:"max_lines_per_minute" yaml:"max_lines_per_minute"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	SeedDemoUsers     bool          `mapstructure:"seed_demo_users" yaml:"seed_demo_users"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8081",
		HTTPAddr:          ":8080",
		DatabasePath:      "linechat.db",
		LogLevel:          "info",
		LogFormat:         "console",
		AuthTimeout:       120 * time.Second,
		ActivityTimeout:   180 * time.Second,
		WatchdogInterval:  100 * time.Millisecond,
		WriteTimeout:      10 * time.Second,
		OutboundBuffer:    64,
		MaxLineBytes:      64 << 10,
		MaxLinesPerMinute: 0,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		JWTSecret:         "change-me",
		JWTIssuer:         "linechat",
		JWTAudience:       "linechat-admin",
		SeedDemoUsers:     true,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// SeedDemoUsers is a plain bool and is never overwritten here.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.AuthTimeout != 0 {
		c.AuthTimeout = other.AuthTimeout
	}
	if other.ActivityTimeout != 0 {
		c.ActivityTimeout = other.ActivityTimeout
	}
	if other.WatchdogInterval != 0 {
		c.WatchdogInterval = other.WatchdogInterval
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.OutboundBuffer != 0 {
		c.OutboundBuffer = other.OutboundBuffer
	}
	if other.MaxLineBytes != 0 {
		c.MaxLineBytes = other.MaxLineBytes
	}
	if other.MaxLinesPerMinute != 0 {
		c.MaxLinesPerMinute = other.MaxLinesPerMinute
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errInvalid("addr must not be empty")
	case c.AuthTimeout <= 0:
		return errInvalid("auth_timeout must be positive")
	case c.ActivityTimeout <= 0:
		return errInvalid("activity_timeout must be positive")
	case c.WatchdogInterval <= 0 || c.WatchdogInterval >= time.Second:
		return errInvalid("watchdog_interval must be between 0 and 1s")
	case c.OutboundBuffer <= 0:
		return errInvalid("outbound_buffer must be positive")
	case c.MaxLineBytes <= 0:
		return errInvalid("max_line_bytes must be positive")
	}
	return nil
}

type invalidError string

func (e invalidError) Error() string { return "invalid config: " + string(e) }

func errInvalid(msg string) error { return invalidError(msg) }
