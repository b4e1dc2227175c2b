package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/exceptionless/exceptionless-go/server/internal/auth"
	"github.com/exceptionless/exceptionless-go/server/internal/config"
	"github.com/exceptionless/exceptionless-go/server/internal/receiver"
	"github.com/exceptionless/exceptionless-go/server/internal/store"
	"github.com/exceptionless/exceptionless-go/server/internal/ws"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (defaults are used when empty)")
	port := pflag.Int("port", 0, "override server.http_port")
	faultStatus := pflag.Int("fault-status", 0, "answer every submission with this HTTP status")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	slog.Info("exceptionless-mock-server starting", "config", *configPath)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}
	if *faultStatus != 0 {
		cfg.Server.Fault.Status = *faultStatus
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"max_body_bytes", cfg.Server.MaxBodyBytes,
		"retention", cfg.Server.Retention,
		"fault_status", cfg.Server.Fault.Status,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Received-events store with background TTL eviction.
	st := store.New(cfg.Server.Retention)
	go st.Run(ctx)

	// WebSocket hub: pushes accepted batches live, summary every 5 seconds.
	hub := ws.New(st, 5*time.Second)
	go hub.Run(ctx)

	rcv := receiver.New(st, receiver.Options{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Fault: receiver.Fault{
			Status:  cfg.Server.Fault.Status,
			Message: cfg.Server.Fault.Message,
		},
		Notifier: hub,
	})

	key := cfg.Server.Auth.Key()
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", auth.APIKey(cfg.Server.Auth.Mode, key, rcv))
	httpMux.Handle("/ws/events", auth.APIKey(cfg.Server.Auth.Mode, key, hub))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("exceptionless-mock-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
