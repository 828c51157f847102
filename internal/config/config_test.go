package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 2, cfg.RequiredVotes)
	assert.Equal(t, 5*time.Minute, cfg.VoteTimeout)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DOG_ACT_VOTES", "3")
	t.Setenv("DOG_ACT_TIMEOUT", "90s")
	t.Setenv("BOT_OWNERS", "11,22")
	t.Setenv("DOGBOT_STORAGE", "memory")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RequiredVotes)
	assert.Equal(t, 90*time.Second, cfg.VoteTimeout)
	assert.Equal(t, []int64{11, 22}, cfg.Owners)
	assert.True(t, cfg.IsOwner(22))
	assert.False(t, cfg.IsOwner(33))
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestValidate(t *testing.T) {
	valid := Config{
		Storage:       StorageMemory,
		DBDriver:      "pgx",
		JWTSecret:     "secret",
		RequiredVotes: 2,
		VoteTimeout:   time.Minute,
	}
	require.NoError(t, valid.Validate())

	noVotes := valid
	noVotes.RequiredVotes = 0
	assert.Error(t, noVotes.Validate())

	noSecret := valid
	noSecret.JWTSecret = ""
	assert.Error(t, noSecret.Validate())

	badStorage := valid
	badStorage.Storage = "sqlite"
	assert.Error(t, badStorage.Validate())

	badDriver := valid
	badDriver.DBDriver = "mysql"
	assert.Error(t, badDriver.Validate())
}

func TestDSN(t *testing.T) {
	cfg := Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "dogbot", DBSSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=dogbot sslmode=disable TimeZone=UTC", cfg.DSN())

	cfg.DatabaseURL = "postgres://u:p@db/dogbot"
	assert.Equal(t, "postgres://u:p@db/dogbot", cfg.DSN())
}
