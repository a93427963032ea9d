// streamwatch connects to a streaming endpoint and prints inbound messages.
// Usage: go run ./cmd/streamwatch --config configs/client.example.yaml
//
// The endpoint URL may reference environment variables (${VAR}) which are
// expanded at load time, optionally from a .env file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lmartz/streamsock/internal/config"
	"github.com/lmartz/streamsock/internal/connection"
	"github.com/lmartz/streamsock/internal/strategy"
	"github.com/lmartz/streamsock/internal/transport"
	"github.com/lmartz/streamsock/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load config first so the logger honors the configured level
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	tr := transport.NewWS(transport.Config{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		PingTimeout:      cfg.Transport.PingTimeout,
	}, logger)

	opts := []connection.Option{
		connection.WithLogger(logger),
		connection.WithMessageCallback(printMessage(logger, *verbose)),
		connection.WithReconnectCallback(func() {
			logger.Info("stream resumed after reconnect")
		}),
	}
	if cfg.Endpoint.HeartbeatInterval > 0 {
		opts = append(opts, connection.WithStrategy(
			strategy.NewHeartbeat(cfg.Endpoint.HeartbeatInterval, logger),
		))
	}

	mgr := connection.New(connection.Config{
		URL:                  cfg.Endpoint.URL,
		ReconnectBaseWait:    cfg.Connection.ReconnectBaseWait,
		ReconnectMaxWait:     cfg.Connection.ReconnectMaxWait,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		SessionMaxAge:        cfg.Connection.SessionMaxAge,
	}, tr, opts...)

	logger.Info("connecting", "url", cfg.Endpoint.URL, "version", version.String())
	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	// Stop unblocks the run loop; ctx alone cannot interrupt a pending receive
	go func() {
		<-ctx.Done()
		mgr.Stop()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mgr.Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("stream status", "state", mgr.State())
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("stream terminated", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printMessage(logger *slog.Logger, verbose bool) connection.MessageFunc {
	return func(msg connection.Message) {
		if verbose {
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warn("failed to render message", "error", err)
				return
			}
			fmt.Println(string(data))
			return
		}

		// Compact view: whichever of the common type keys is present
		for _, key := range []string{"type", "method", "channel"} {
			if v, ok := msg[key].(string); ok {
				logger.Info("message", key, v)
				return
			}
		}
		logger.Info("message", "keys", len(msg))
	}
}
