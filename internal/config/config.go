// Package config loads the service configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable of the backend. Values come from environment
// variables (see the envconfig tags); main loads .env first so local runs
// work without exporting anything.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"user"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"omiliadb"`

	JWTSecret string `envconfig:"JWT_SECRET_KEY" required:"true"`

	// Valid room capacities accepted by join.
	MinRoomSize int `envconfig:"MIN_ROOM_SIZE" default:"2"`
	MaxRoomSize int `envconfig:"MAX_ROOM_SIZE" default:"10"`

	// StoreTimeout bounds every single Redis operation; a timeout surfaces
	// as an Unreachable error instead of hanging a connection loop.
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	// LockTTL is the expiry on per-capacity advisory locks, so a crashed
	// holder cannot wedge a capacity forever.
	LockTTL time.Duration `envconfig:"LOCK_TTL" default:"5s"`

	// TelegramBotToken enables the admin notifier bot when set.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	// TelegramAdminChat is the chat ID complaints are pushed to.
	TelegramAdminChat int64 `envconfig:"TELEGRAM_ADMIN_CHAT"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN builds the PostgreSQL connection string for GORM.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=disable"
}
