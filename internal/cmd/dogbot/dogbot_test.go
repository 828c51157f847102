package dogbot

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wejrox/dogbot/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	fs := flag.NewFlagSet("dogbot", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, config.StoragePostgres, cfg.Storage)
	assert.Equal(t, 2, cfg.RequiredVotes)
	assert.Equal(t, 5*time.Minute, cfg.VoteTimeout)
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DOGBOT_STORAGE", "postgres")

	fs := flag.NewFlagSet("dogbot", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9100", "-storage", "memory", "-log-level", "debug"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, config.StorageMemory, cfg.Storage)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestParseConfigRejectsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("dogbot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	_, err := ParseConfig(fs, []string{"-nope"})
	assert.Error(t, err)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Config{Storage: config.StorageMemory, DBDriver: "pgx", RequiredVotes: 0, VoteTimeout: time.Minute, JWTSecret: "x"}
	err := Run(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "invalid config")
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := config.Config{
		Port:          0,
		Storage:       config.StorageMemory,
		DBDriver:      "pgx",
		JWTSecret:     "secret",
		RequiredVotes: 2,
		VoteTimeout:   time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, discardLogger()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
