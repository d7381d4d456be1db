package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/square-catalog-cache/internal/config"
	"github.com/Sternrassler/square-catalog-cache/pkg/cache"
	"github.com/Sternrassler/square-catalog-cache/pkg/catalog"
	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/Sternrassler/square-catalog-cache/pkg/logging"
	"github.com/Sternrassler/square-catalog-cache/pkg/notify"
	"github.com/Sternrassler/square-catalog-cache/pkg/pagination"
	"github.com/Sternrassler/square-catalog-cache/pkg/ratelimit"
	"github.com/Sternrassler/square-catalog-cache/pkg/square"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger, logCloser := logging.Setup(logging.Config{
		Level:  logging.LevelFromDebug(cfg.Debug, cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
		File:   cfg.LogFile,
	})
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer closeStore()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("Connected to store")

	svc, closeNotifiers, err := buildService(cfg, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build catalog service")
	}
	defer closeNotifiers()

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: newRouter(&server{
			products: svc,
			store:    store,
			logger:   logging.NewLogger("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("Starting catalog proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Graceful shutdown failed")
	}
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg config.Config) (kv.LeaseStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := kv.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := kv.NewRedisStore(rdb)
		if err := store.Ping(ctx); err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return store, func() { rdb.Close() }, nil
	}
}

// buildService wires the provider client, resolver, reconciler and notifiers.
func buildService(cfg config.Config, store kv.LeaseStore) (*catalog.Service, func(), error) {
	tracker := ratelimit.NewTracker(store, logging.NewLogger("ratelimit"))

	client, err := square.New(square.Config{
		BaseURL:     cfg.SquareBaseURL,
		AccessToken: cfg.SquareAccessToken,
		Version:     cfg.SquareVersion,
		Timeout:     cfg.HTTPTimeout(),
		Pagination:  pagination.DefaultConfig(),
		RateLimiter: tracker,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("square client: %w", err)
	}

	resolverCfg := catalog.DefaultResolverConfig(cfg.SquareLocationID)
	resolverCfg.LeaseTTL = cfg.PaymentLinkLease()
	resolver, err := catalog.NewResolver(store, client, resolverCfg, logging.NewLogger("payment-links"))
	if err != nil {
		return nil, nil, fmt.Errorf("payment link resolver: %w", err)
	}

	notifier, closers := buildNotifier(cfg)
	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close notifier")
			}
		}
	}

	manager := cache.NewManager(store, logging.NewLogger("cache"))
	reconciler := catalog.NewReconciler(client, resolver, manager, notifier, logging.NewLogger("reconciler"))
	svc := catalog.NewService(manager, reconciler, cfg.CacheExpirationMinutes, logging.NewLogger("catalog"))

	return svc, closeAll, nil
}

// buildNotifier fans out to every configured change notifier.
func buildNotifier(cfg config.Config) (*notify.Multi, []io.Closer) {
	var (
		notifiers []notify.Notifier
		closers   []io.Closer
	)
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURL, cfg.HTTPTimeout()))
	}
	if len(cfg.KafkaBrokers) > 0 {
		k := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaChangeTopic)
		notifiers = append(notifiers, k)
		closers = append(closers, k)
	}
	return notify.NewMulti(notifiers...), closers
}
