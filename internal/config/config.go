// Package config provides the configuration schema for chatgate.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Auth configures token verification and issuance.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Session configures the session store and connection supervision.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Redis configures the Redis session backend. Only read when
	// session.backend is "redis".
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// Users configures the user store.
	Users UsersConfig `yaml:"users" mapstructure:"users"`

	// DevMode enables development features (debug logging, trace export to
	// stdout, in-memory user store by default).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server listener.
type ServerConfig struct {
	// HTTPAddr is the listen address. Default: ":8080".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr"`
	// LogLevel is one of debug, info, warn, error. Default: "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// ShutdownTimeout bounds graceful shutdown (e.g. "10s"). Default: "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty,duration"`
}

// AuthConfig configures the token verifier and issuer.
type AuthConfig struct {
	// JWTSecret is the HS256 shared secret. Required; at least 32 bytes.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret" validate:"required,min=32"`
	// Issuer is stamped on minted tokens and enforced on verification when
	// set.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// TokenTTL is the lifetime of minted tokens (e.g. "1h"). Default: "1h".
	TokenTTL string `yaml:"token_ttl" mapstructure:"token_ttl" validate:"omitempty,duration"`
	// Leeway tolerates clock skew during verification. Default: "0s".
	Leeway string `yaml:"leeway" mapstructure:"leeway" validate:"omitempty,duration"`
	// Timeout bounds one authentication attempt at upgrade time.
	// Default: "5s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
}

// SessionConfig configures session lifetimes and supervision.
type SessionConfig struct {
	// Backend selects the session store: "memory" or "redis".
	// Default: "memory".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory redis"`
	// TTL is the session lifetime (e.g. "30m"). Default: "30m".
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`
	// SweepInterval is the period of the background expiry sweep.
	// Default: "1m".
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval" validate:"omitempty,duration"`
	// LivenessInterval is how often each live connection's session is
	// rechecked. Default: "30s".
	LivenessInterval string `yaml:"liveness_interval" mapstructure:"liveness_interval" validate:"omitempty,duration"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	// Addr is the host:port of the Redis server. Default: "localhost:6379".
	Addr string `yaml:"addr" mapstructure:"addr"`
	// Password authenticates against Redis. Optional.
	Password string `yaml:"password" mapstructure:"password"`
	// DB selects the logical database. Default: 0.
	DB int `yaml:"db" mapstructure:"db" validate:"gte=0"`
}

// UsersConfig configures user persistence.
type UsersConfig struct {
	// SQLitePath is the path of the user database. Empty selects the
	// in-memory store, which dev mode defaults to.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SetDefaults applies defaults for everything left unset.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = "1h"
	}
	if c.Auth.Timeout == "" {
		c.Auth.Timeout = "5s"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "30m"
	}
	if c.Session.SweepInterval == "" {
		c.Session.SweepInterval = "1m"
	}
	if c.Session.LivenessInterval == "" {
		c.Session.LivenessInterval = "30s"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}

// SetDevDefaults applies development-mode overrides on top of the regular
// defaults. Call after SetDefaults when DevMode is set.
func (c *Config) SetDevDefaults() {
	c.Server.LogLevel = "debug"
	if c.Auth.JWTSecret == "" {
		// Deterministic dev secret so tokens survive restarts.
		c.Auth.JWTSecret = "chatgate-dev-secret-do-not-use-in-production"
	}
}

// Duration getters. The string fields are validated as durations, so these
// fall back to the documented default instead of returning an error.

func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(c.ShutdownTimeout, 10*time.Second)
}

func (c *AuthConfig) GetTokenTTL() time.Duration {
	return parseDuration(c.TokenTTL, time.Hour)
}

func (c *AuthConfig) GetLeeway() time.Duration {
	return parseDuration(c.Leeway, 0)
}

func (c *AuthConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 5*time.Second)
}

func (c *SessionConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 30*time.Minute)
}

func (c *SessionConfig) GetSweepInterval() time.Duration {
	return parseDuration(c.SweepInterval, time.Minute)
}

func (c *SessionConfig) GetLivenessInterval() time.Duration {
	return parseDuration(c.LivenessInterval, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Unmarshal decodes the current viper state into a Config.
func Unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
