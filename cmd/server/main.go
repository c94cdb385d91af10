package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/loggerimport/internal/config"
	"github.com/JonMunkholm/loggerimport/internal/importer"
	"github.com/JonMunkholm/loggerimport/internal/logging"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
	"github.com/JonMunkholm/loggerimport/internal/web"
)

func main() {
	configPath := flag.String("config", config.DefaultFile, "configuration file (optional)")
	flag.Usage = func() {
		flag.CommandLine.Output().Write([]byte("Usage: server [-config file]\n\n"))
		flag.PrintDefaults()
		flag.CommandLine.Output().Write([]byte("\n" + config.Usage()))
	}
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	mds, err := metadata.NewLoader(metadata.WithLogger(logger)).LoadDir(cfg.Metadata.Dir)
	if err != nil {
		slog.Error("failed to load metadata", "dir", cfg.Metadata.Dir, "error", err)
		os.Exit(1)
	}
	for _, md := range mds {
		slog.Debug("logger loaded", "logger", md.LoggerName, "tables", len(md.Tables()))
	}
	if len(mds) > 0 {
		coll, err := metadata.CollectLoggers(mds)
		if err != nil {
			slog.Error("invalid metadata set", "dir", cfg.Metadata.Dir, "error", err)
			os.Exit(1)
		}
		mds = coll.Metadatas()
	}
	slog.Info("metadata loaded", "dir", cfg.Metadata.Dir, "loggers", len(mds))

	opts := cfg.Import.Options()
	opts.Logger = logger
	server := web.NewServer(cfg, importer.New(mds, opts))

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
