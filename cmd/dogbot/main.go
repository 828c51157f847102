package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dogbotcmd "github.com/wejrox/dogbot/internal/cmd/dogbot"
)

func main() {
	cfg, err := dogbotcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dogbotcmd.Run(ctx, cfg, logger); err != nil {
		logger.Error("dogbot stopped", "error", err)
		os.Exit(1)
	}
}
