package config

import "time"

// LiveKitConfig configures the optional call media backend.
type LiveKitConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	URL       string `mapstructure:"url" yaml:"url"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	JWTRequired bool          `mapstructure:"jwt_required" yaml:"jwt_required"`

	MaxMessageBytes    int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	ClientBufferSize   int   `mapstructure:"client_buffer_size" yaml:"client_buffer_size"`
	EventQueueSize     int   `mapstructure:"event_queue_size" yaml:"event_queue_size"`
	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	LiveKit LiveKitConfig `mapstructure:"livekit" yaml:"livekit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "agriai.db",
		JWTSecret:          "change-me-in-production",
		JWTIssuer:          "agriai",
		JWTAudience:        "agriai-clients",
		JWTTTL:             24 * time.Hour,
		JWTRequired:        false,
		MaxMessageBytes:    1 << 20,
		ClientBufferSize:   64,
		EventQueueSize:     256,
		RateLimitPerMinute: 600,
		LiveKit: LiveKitConfig{
			URL: "ws://localhost:7880",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans only ever switch on.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
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
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.JWTRequired {
		c.JWTRequired = true
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.ClientBufferSize != 0 {
		c.ClientBufferSize = other.ClientBufferSize
	}
	if other.EventQueueSize != 0 {
		c.EventQueueSize = other.EventQueueSize
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.LiveKit.Enabled {
		c.LiveKit.Enabled = true
	}
	if other.LiveKit.APIKey != "" {
		c.LiveKit.APIKey = other.LiveKit.APIKey
	}
	if other.LiveKit.APISecret != "" {
		c.LiveKit.APISecret = other.LiveKit.APISecret
	}
	if other.LiveKit.URL != "" {
		c.LiveKit.URL = other.LiveKit.URL
	}
}
