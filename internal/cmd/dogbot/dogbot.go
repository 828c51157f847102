package dogbot

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wejrox/dogbot/internal/adjudication"
	"github.com/wejrox/dogbot/internal/chat"
	"github.com/wejrox/dogbot/internal/config"
	"github.com/wejrox/dogbot/internal/database"
	"github.com/wejrox/dogbot/internal/server"
)

const shutdownTimeout = 10 * time.Second

// ParseConfig loads the environment and overlays command-line flags.
func ParseConfig(fs *flag.FlagSet, args []string) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "The HTTP server port")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "Storage backend: postgres or memory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Run serves the bot's HTTP API until ctx is cancelled, then drains running
// adjudications.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	repo, health, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	board := chat.NewBoard()
	svc := adjudication.NewService(repo, board, adjudication.Settings{
		RequiredVotes: cfg.RequiredVotes,
		VoteTimeout:   cfg.VoteTimeout,
		Owners:        cfg.Owners,
	}, logger)

	srv := server.NewServer(ctx, cfg, server.Deps{
		Service: svc,
		Board:   board,
		Health:  health,
		Logger:  logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	svc.Wait()
	return nil
}

func openStore(cfg config.Config, logger *slog.Logger) (adjudication.Repository, server.HealthChecker, func(), error) {
	if cfg.Storage == config.StorageMemory {
		store := database.NewMemoryStore()
		return store, store, func() {}, nil
	}

	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("close database", "error", err)
		}
	}
	return database.NewStore(db.GetDB()), db, closeDB, nil
}
