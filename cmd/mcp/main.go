package main

import (
	"log/slog"
	"os"

	mcpadapter "github.com/datareveal/docverse/internal/adapters/mcp"
	"github.com/datareveal/docverse/internal/bootstrap"
	"github.com/datareveal/docverse/internal/config"
	"github.com/datareveal/docverse/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "docverse-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(version, app.Engine, app.Searcher)
	if err := server.ServeStdio(); err != nil {
		slog.Error("mcp_server_error", "error", err)
		os.Exit(1)
	}
}
