package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type WebhooksConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	WorkerCount    int           `mapstructure:"worker_count"`
	MaxRetries     int           `mapstructure:"max_retries"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`
	TriggerToken   string        `mapstructure:"trigger_token"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type RateLimitConfig struct {
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("webhooks.batch_size", 50)
	viper.SetDefault("webhooks.worker_count", 10)
	viper.SetDefault("webhooks.max_retries", 5)
	viper.SetDefault("webhooks.timeout_seconds", 10)
	viper.SetDefault("webhooks.backoff_base", time.Second)
	viper.SetDefault("webhooks.backoff_cap", time.Hour)
	viper.SetDefault("webhooks.poll_interval", time.Minute)
	viper.SetDefault("rate_limit.api_read_per_minute", 1000)
	viper.SetDefault("rate_limit.api_write_per_minute", 100)
	viper.SetDefault("logging.level", "info")
}
