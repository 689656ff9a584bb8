package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AndreasM009/entitystore-go/internal/config"
	"github.com/AndreasM009/entitystore-go/internal/domain"
	apihttp "github.com/AndreasM009/entitystore-go/internal/http"
	"github.com/AndreasM009/entitystore-go/store"
	"github.com/AndreasM009/entitystore-go/store/changefeed"
)

const (
	customers = "customers"
	events    = "events"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	initLogger(cfg.Logger)

	var feed *changefeed.ChangeFeed
	if cfg.ChangeFeed.Enabled {
		feed = changefeed.New(cfg.ChangeFeed.Brokers, cfg.ChangeFeed.Topic)
		defer func() {
			if err := feed.Close(); err != nil {
				slog.Warn("failed to close changefeed", "error", err)
			}
		}()
		slog.Info("changefeed enabled", "brokers", cfg.ChangeFeed.Brokers, "topic", cfg.ChangeFeed.Topic)
	}

	backends, err := initBackends(cfg.Store, customers, events)
	if err != nil {
		return err
	}
	defer closeBackends(backends)

	customerRepo := store.NewRepository[domain.Customer](backends[0],
		initRepositoryOptions(cfg.Store, customers, feed)...)
	eventRepo := store.NewRepository[domain.Event](backends[1],
		initRepositoryOptions(cfg.Store, events, feed)...)

	server := apihttp.NewServer(cfg.Server.Port,
		[]apihttp.Resource{
			apihttp.NewResource(customers, customerRepo),
			apihttp.NewResource(events, eventRepo),
		},
		apihttp.WithTimeouts(cfg.Server.ReadHeaderTimeout, cfg.Server.ShutdownTimeout),
	)
	if err := server.Start(); err != nil {
		return err
	}
	slog.Info("entitystore started", "backend", cfg.Store.Backend, "url", server.URL)

	<-ctx.Done()

	slog.Info("entitystore stopping")
	return server.Stop()
}
