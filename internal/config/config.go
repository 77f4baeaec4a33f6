package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Token     TokenConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	SMTP      SMTPConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// TokenConfig drives the emergency token service. Keys maps key id to signing
// secret; ActiveKeyID selects the key used for new tokens. Rotating the active
// key and dropping old entries invalidates all outstanding tokens at once.
type TokenConfig struct {
	Keys        map[string]string `mapstructure:"keys"`
	ActiveKeyID string            `mapstructure:"active_key_id"`
	DefaultTTL  time.Duration     `mapstructure:"default_ttl"`
	MaxTTL      time.Duration     `mapstructure:"max_ttl"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Token.ActiveKeyID == "" {
		return nil, fmt.Errorf("token.active_key_id is required")
	}
	if _, ok := config.Token.Keys[config.Token.ActiveKeyID]; !ok {
		return nil, fmt.Errorf("token.keys is missing the active key %q", config.Token.ActiveKeyID)
	}

	return &config, nil
}
