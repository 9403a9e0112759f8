package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"  validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// UpstreamConfig contains settings for the upstream generation endpoint
// the relay proxies to.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// Timeout bounds a single upstream attempt. Retries happen above the
	// transport, so this is per-attempt, not per logical call.
	Timeout time.Duration `mapstructure:"timeout" validate:"required"`
}

// SchedulerConfig contains settings for the background task scheduler.
type SchedulerConfig struct {
	// MaxConcurrent is the number of tasks allowed to execute at once.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0"`

	// MaxRetries is the default retry ceiling applied to submitted tasks
	// that do not specify their own.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}
