package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds everything the bot reads from the environment.
type Config struct {
	Port    int    `env:"PORT" envDefault:"8080"`
	Storage string `env:"DOGBOT_STORAGE" envDefault:"postgres"`

	// DatabaseURL takes precedence over the individual DB_* settings.
	DatabaseURL string `env:"DATABASE_URL"`
	DBDriver    string `env:"DB_DRIVER" envDefault:"pgx"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"dogbot"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`

	JWTSecret string `env:"JWT_SECRET"`
	// bcrypt hash of the secret the chat gateway presents to mint member tokens.
	ClientSecretHash string        `env:"BOT_CLIENT_SECRET_HASH"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	RequiredVotes int           `env:"DOG_ACT_VOTES" envDefault:"2"`
	VoteTimeout   time.Duration `env:"DOG_ACT_TIMEOUT" envDefault:"5m"`
	Owners        []int64       `env:"BOT_OWNERS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment (and any .env file) into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the bot cannot run without.
func (c Config) Validate() error {
	if c.RequiredVotes < 1 {
		return fmt.Errorf("DOG_ACT_VOTES must be at least 1, got %d", c.RequiredVotes)
	}
	if c.VoteTimeout <= 0 {
		return fmt.Errorf("DOG_ACT_TIMEOUT must be positive, got %s", c.VoteTimeout)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	switch c.DBDriver {
	case "pgx", "postgres":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// DSN builds the Postgres connection string.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c Config) IsOwner(id int64) bool {
	return slices.Contains(c.Owners, id)
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
