package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/api"
	"github.com/aquibsayyed9/coin-analyze/cache"
	"github.com/aquibsayyed9/coin-analyze/config"
	"github.com/aquibsayyed9/coin-analyze/fallback"
	"github.com/aquibsayyed9/coin-analyze/history"
	"github.com/aquibsayyed9/coin-analyze/logger"
	"github.com/aquibsayyed9/coin-analyze/notification"
	"github.com/aquibsayyed9/coin-analyze/pipeline"
	"github.com/aquibsayyed9/coin-analyze/refresh"
	"github.com/aquibsayyed9/coin-analyze/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		// If .env file doesn't exist, continue with the environment as is
		if !errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("Error loading .env file: %v", err)
		}
	}

	port := flag.String("port", "", "Port to listen on (overrides PORT)")
	assets := flag.String("assets", "", "Comma-separated asset IDs or symbols to aggregate")
	exchanges := flag.String("exchanges", "", "Comma-separated exchanges to keep (overrides DEFAULT_EXCHANGES)")
	once := flag.Bool("once", false, "Run one aggregation, print it as JSON and exit")
	flag.Parse()

	logger.Init()
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)
	if *port != "" {
		cfg.Port = *port
	}

	sel := types.Selection{
		AssetIDs:  splitList(*assets),
		Exchanges: cfg.DefaultExchanges,
	}
	if *exchanges != "" {
		sel.Exchanges = splitList(*exchanges)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifications := notification.NewNotificationManager(cfg.MaxNotifications)

	store, err := cfg.OpenCache(ctx, log)
	if err != nil {
		log.WithError(err).Warn("Falling back to in-memory cache")
		notifications.AddNotification(notification.CreateSystemAlertNotification(
			"Redis unavailable", "Responses are cached in memory", nil))
		store = cache.NewMemoryStore(cfg.CacheTTL)
	}
	if store != nil {
		defer store.Close()
	}

	catalog, pairs, err := cfg.BuildProviders(store, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to build providers")
	}

	resolver := fallback.NewResolver(pairs,
		fallback.WithTimeout(cfg.CallTimeout),
		fallback.WithLogger(log),
		fallback.WithEventHandler(notifications.HandleEvent),
	)
	aggregator := pipeline.New(catalog, resolver,
		pipeline.WithTopLimit(cfg.TopAssetsLimit),
		pipeline.WithDefaultAssetCount(cfg.DefaultAssetCount),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithCallTimeout(cfg.CallTimeout),
		pipeline.WithLogger(log),
		pipeline.WithEventHandler(notifications.HandleEvent),
	)

	if *once {
		os.Exit(runOnce(ctx, aggregator, sel, log))
	}

	if err := aggregator.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid provider configuration")
	}

	var runs *history.Store
	if cfg.DatabaseURL != "" {
		runs, err = history.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.WithError(config.NewError(config.ErrDBConnect, "Failed to open history database", err)).Fatal("Startup failed")
		}
		defer runs.Close()
	}

	hub := api.NewHub(log)
	defer hub.Close()

	refresher := refresh.New(ctx, aggregator, cfg.RefreshSchedule, sel, log)
	refresher.SetResultHandler(func(sel types.Selection, result *types.AggregationResult) {
		hub.Broadcast(sel, result)
		if runs == nil {
			return
		}
		id, err := runs.Save(ctx, sel, result)
		if err != nil {
			log.WithError(err).Error("Failed to store run")
			return
		}
		log.WithField("run_id", id).Debug("Stored run")
	})
	if err := refresher.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start refresher")
	}
	defer refresher.Stop()

	mux := http.NewServeMux()
	var recent api.HistoryStore
	if runs != nil {
		recent = runs
	}
	handler := api.NewHandler(aggregator, refresher, recent, hub, log)
	if redisStore, ok := store.(*cache.RedisStore); ok {
		handler.SetCache(redisStore)
	}
	handler.RegisterRoutes(mux)
	notification.NewNotificationHandler(notifications, log).RegisterRoutes(mux)

	notifications.AddNotification(notification.CreateSystemAlertNotification(
		"System Started", "Volume aggregation service initialized", map[string]interface{}{
			"providers": resolver.Providers(),
		}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
}

func runOnce(ctx context.Context, aggregator *pipeline.Pipeline, sel types.Selection, log *logrus.Logger) int {
	result, err := aggregator.Run(ctx, sel)
	if err != nil {
		log.WithError(err).Error("Aggregation failed")
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.WithError(err).Error("Failed to write result")
		return 1
	}
	return 0
}

func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
