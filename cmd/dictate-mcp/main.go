// Package main provides the entry point for the dictate MCP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/dictate-go/internal/app"
	"github.com/raphaelgruber/dictate-go/internal/config"
	"github.com/raphaelgruber/dictate-go/internal/server"
	"github.com/raphaelgruber/dictate-go/internal/service"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// stdout carries the protocol, so logs go to stderr and the log file.
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("dictate-mcp starting",
		"version", version,
		"provider", cfg.LLMProvider,
		"store", cfg.Store,
		"audit", cfg.Audit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing connections")
		_ = a.Close(context.Background())
	}()

	jobs := service.NewJobManager(a.Pipeline, cfg.Concurrency, logger)
	srv := server.New(version, a.ToolDeps(jobs))

	logger.Info("server ready, awaiting connections")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
