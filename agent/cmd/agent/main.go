package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/exceptionless/exceptionless-go/agent/internal/config"
	"github.com/exceptionless/exceptionless-go/agent/internal/ingest"
	"github.com/exceptionless/exceptionless-go/agent/internal/queue"
	"github.com/exceptionless/exceptionless-go/agent/internal/storage"
	"github.com/exceptionless/exceptionless-go/agent/internal/submission"
	"github.com/exceptionless/exceptionless-go/pkg/types"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to config file")
	pflag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("exceptionless-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Agent.Level())
	slog.Info("config loaded",
		"enabled", cfg.Agent.Enabled,
		"server_url", cfg.Agent.ServerURL,
		"batch_size", cfg.Agent.SubmissionBatchSize,
		"process_interval", cfg.Agent.ProcessInterval,
		"storage", cfg.Agent.Storage.Backend,
	)

	store, err := openStorage(cfg.Agent.Storage)
	if err != nil {
		slog.Error("failed to open queue storage", "err", err)
		os.Exit(1)
	}
	defer store.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := submission.NewHTTPClient(submission.HTTPConfig{
		Timeout:  cfg.Agent.SubmissionTimeout,
		Compress: cfg.Agent.Compress,
		TLS: submission.TLSConfig{
			InsecureSkipVerify: cfg.Agent.TLS.InsecureSkipVerify,
			CAFile:             cfg.Agent.TLS.CAFile,
		},
	})
	if err != nil {
		slog.Error("failed to build submission client", "err", err)
		os.Exit(1)
	}
	engine := queue.New(store, client, queue.Options{
		Settings: submission.Settings{
			Enabled:             cfg.Agent.Enabled,
			APIKey:              cfg.Agent.Key(),
			ServerURL:           cfg.Agent.ServerURL,
			SubmissionBatchSize: cfg.Agent.SubmissionBatchSize,
		},
		ProcessInterval: cfg.Agent.ProcessInterval,
	})
	engine.OnEventsPosted(func(events []*types.Event, resp *submission.Response) {
		slog.Debug("events posted", "count", len(events), "status", resp.StatusCode)
	})
	engine.Start()

	// Watch config file for hot-reload of submission settings and log level.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.Agent.Level())
			engine.Reconfigure(updated.Agent.Enabled, updated.Agent.Key(), updated.Agent.ServerURL)
			slog.Info("config hot-reloaded")
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Agent.ListenAddr,
		Handler:           ingest.New(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("ingest endpoint listening", "addr", cfg.Agent.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ingest endpoint stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("exceptionless-agent shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	engine.Stop()
}

type closingStorage interface {
	storage.Storage
	io.Closer
}

func openStorage(cfg config.StorageConfig) (closingStorage, error) {
	if cfg.Backend == "memory" {
		slog.Warn("using memory queue storage: queued events are lost on restart")
		return storage.NewMemory(), nil
	}
	s, err := storage.OpenSQLite(storage.SQLiteConfig{Path: cfg.Path})
	if err != nil {
		return nil, err
	}
	return s, nil
}
