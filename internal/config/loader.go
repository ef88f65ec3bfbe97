package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for chatgate.yaml/.yml in
// standard locations. The search requires an explicit YAML extension so the
// binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("chatgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: CHATGATE_AUTH_JWT_SECRET
	viper.SetEnvPrefix("CHATGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a chatgate config file
// with an explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".chatgate"),
		"/etc/chatgate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "chatgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all nested config keys for environment variable
// support. Example: CHATGATE_SERVER_HTTP_ADDR overrides server.http_addr.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.shutdown_timeout")

	_ = viper.BindEnv("auth.jwt_secret")
	_ = viper.BindEnv("auth.issuer")
	_ = viper.BindEnv("auth.token_ttl")
	_ = viper.BindEnv("auth.leeway")
	_ = viper.BindEnv("auth.timeout")

	_ = viper.BindEnv("session.backend")
	_ = viper.BindEnv("session.ttl")
	_ = viper.BindEnv("session.sweep_interval")
	_ = viper.BindEnv("session.liveness_interval")

	_ = viper.BindEnv("redis.addr")
	_ = viper.BindEnv("redis.password")
	_ = viper.BindEnv("redis.db")

	_ = viper.BindEnv("users.sqlite_path")

	_ = viper.BindEnv("dev_mode")
}

// ConfigFileUsed returns the path of the config file viper loaded, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// LoadConfig reads the configuration file, applies environment overrides,
// and returns the Config. Caller should apply any CLI flag overrides
// (e.g. --dev), then call SetDefaults/SetDevDefaults and Validate.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: run on environment variables and defaults alone.
	}
	return Unmarshal()
}
