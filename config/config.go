package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting. Values come from the process
// environment, optionally seeded from a .env file.
type Config struct {
	Env     string `envconfig:"APP_ENV" default:"development"`
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`
	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DBDriver   string `envconfig:"DB_DRIVER" default:"mysql"` // mysql | sqlite
	DBUser     string `envconfig:"DB_USER" default:"root"`
	DBPass     string `envconfig:"DB_PASS"`
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort     string `envconfig:"DB_PORT" default:"3306"`
	DBName     string `envconfig:"DB_NAME" default:"restaurant_booking"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"restaurant_booking.db"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// LockStore selects the slot lock backend: "database" or "redis".
	LockStore         string        `envconfig:"LOCK_STORE" default:"database"`
	LockSweepInterval time.Duration `envconfig:"LOCK_SWEEP_INTERVAL" default:"5s"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`

	// AMQPURL enables cross-process broadcast when set.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"restaurant.realtime"`

	Timezone string `envconfig:"RESTAURANT_TIMEZONE" default:"Local"`

	RateLimitPerSecond float64 `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
	RateLimitBurst     int     `envconfig:"RATE_LIMIT_BURST" default:"50"`

	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"*"`
}

// Load reads .env (when present) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Location resolves the restaurant timezone used for "not in the past" checks.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
