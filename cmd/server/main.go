package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"venuehub/internal/aggregator"
	"venuehub/internal/alerts"
	"venuehub/internal/cache"
	"venuehub/internal/handler"
	"venuehub/internal/kvstore"
	"venuehub/internal/normalize"
	"venuehub/internal/platform/config"
	"venuehub/internal/platform/httpserver"
	"venuehub/internal/platform/logger"
	"venuehub/internal/platform/metrics"
	platformredis "venuehub/internal/platform/redis"
	"venuehub/internal/provider"
	"venuehub/internal/provider/citydata"
	"venuehub/internal/provider/foursquare"
	"venuehub/internal/provider/yelp"
	"venuehub/internal/quality"
	"venuehub/internal/registry"
	"venuehub/internal/resilience"
)

// main wires every component explicitly and tears them down in reverse.
// Business logic lives in the internal packages, not here.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	cold, coldClose, err := buildColdStore(ctx, cfg)
	if err != nil {
		return err
	}
	if coldClose != nil {
		defer coldClose()
	}
	cacheMgr := cache.NewManager(cold, cfg.MemoryBudget, m, log)
	if pg, ok := cold.(*kvstore.Postgres); ok {
		go reapExpired(ctx, pg, log)
	}

	reg, err := registry.Load(cfg.RegistryPath, log)
	if err != nil {
		return fmt.Errorf("load provider registry: %w", err)
	}

	publisher, err := alerts.New(splitBrokers(cfg.KafkaBrokers), cfg.AlertTopic, log)
	if err != nil {
		return err
	}
	defer publisher.Close()
	var alerter resilience.Alerter
	if publisher != nil {
		alerter = publisher
	}

	adapters := buildAdapters(reg, m, alerter, log)
	if len(adapters) == 0 {
		return fmt.Errorf("no usable providers in %s", cfg.RegistryPath)
	}

	merger := normalize.NewEngine(reg.Priority, m, log)
	agg := aggregator.New(reg, adapters, cacheMgr, merger, quality.New(), m, log, cfg.QueryTimeout)

	h := handler.New(agg, log)
	srv := httpserver.New(cfg.Addr, h.Router(prometheus.DefaultGatherer))

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "providers", len(adapters))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	// Hot entries survive a restart through the cold tier.
	if err := cacheMgr.FlushHot(shutdownCtx); err != nil {
		log.Error("cache flush failed", "error", err)
	}
	return nil
}

// buildColdStore picks the persistent cache tier: Redis when configured,
// Postgres as the next choice, in-process memory as the fallback for
// local runs.
func buildColdStore(ctx context.Context, cfg config.Server) (kvstore.Store, func(), error) {
	if cfg.RedisURL != "" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return kvstore.NewRedis(client.Client), func() { _ = client.Close() }, nil
	}

	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if _, err := db.ExecContext(ctx, kvstore.Schema); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("apply cache schema: %w", err)
		}
		return kvstore.NewPostgres(db), func() { db.Close() }, nil
	}

	return kvstore.NewMemory(), nil, nil
}

// buildAdapters constructs one guarded adapter per registered provider.
// Unknown ids are skipped with a warning so a registry typo cannot take
// the whole service down.
func buildAdapters(reg *registry.Registry, m *metrics.Metrics, alerter resilience.Alerter, log *slog.Logger) []provider.Adapter {
	var adapters []provider.Adapter
	for _, cfg := range reg.All() {
		var source provider.Source
		switch cfg.ID {
		case "yelp":
			source = yelp.New(cfg)
		case "foursquare":
			source = foursquare.New(cfg)
		case "citydata":
			source = citydata.New(cfg)
		default:
			log.Warn("no adapter for provider, skipping", "provider", cfg.ID)
			continue
		}
		guard := resilience.NewGuard(cfg, m, alerter, log)
		adapters = append(adapters, resilience.WrapAdapter(source, guard))
	}
	return adapters
}

// reapExpired clears expired cache rows so the kv table does not grow without
// bound. Redis and memory expire keys natively and need no reaper.
func reapExpired(ctx context.Context, pg *kvstore.Postgres, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.Reap(ctx)
			if err != nil {
				log.Warn("cache reap failed", "error", err)
			} else if n > 0 {
				log.Debug("expired cache rows reaped", "rows", n)
			}
		}
	}
}

func splitBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
