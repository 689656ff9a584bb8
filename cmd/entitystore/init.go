package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AndreasM009/entitystore-go/internal/backend"
	"github.com/AndreasM009/entitystore-go/internal/config"
	"github.com/AndreasM009/entitystore-go/store"
	"github.com/AndreasM009/entitystore-go/store/changefeed"
)

// initLogger sets the global slog.Logger, JSON or text
func initLogger(cfg config.LoggerConfig) {
	opts := &slog.HandlerOptions{AddSource: true, Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", "level", cfg.Level, "json", cfg.JSON)
}

// initRepositoryOptions translates the store section into repository options
func initRepositoryOptions(cfg config.StoreConfig, entityType string, feed *changefeed.ChangeFeed) []store.Option {
	opts := []store.Option{
		store.WithEntityType(entityType),
		store.WithLogger(slog.Default()),
	}
	if cfg.Concurrency == "optimistic" {
		opts = append(opts, store.WithConcurrency(store.Optimistic))
	}
	if cfg.Upsert {
		opts = append(opts, store.WithUpsert())
	}
	if cfg.StrictDelete {
		opts = append(opts, store.WithStrictDelete())
	}
	if feed != nil {
		opts = append(opts, store.WithHooks(feed))
	}
	return opts
}

// initBackends opens one backend per entity type, closing the ones
// already opened if a later one fails.
func initBackends(cfg config.StoreConfig, entityTypes ...string) ([]store.Backend, error) {
	backends := make([]store.Backend, 0, len(entityTypes))
	for _, et := range entityTypes {
		b, err := backend.Open(cfg.Backend, cfg.Properties, et)
		if err != nil {
			closeBackends(backends)
			return nil, fmt.Errorf("open %s store: %w", et, err)
		}
		backends = append(backends, b)
	}
	return backends, nil
}

func closeBackends(backends []store.Backend) {
	for _, b := range backends {
		if err := b.Close(); err != nil {
			slog.Warn("failed to close backend", "error", err)
		}
	}
}
