// Package main wires together the relay service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/api"
	"github.com/reelcast/reelcast/internal/channel/noop"
	"github.com/reelcast/reelcast/internal/channel/telegram"
	"github.com/reelcast/reelcast/internal/clock/system"
	"github.com/reelcast/reelcast/internal/config"
	collyextractor "github.com/reelcast/reelcast/internal/extractor/colly"
	imagefetcher "github.com/reelcast/reelcast/internal/fetcher/image"
	"github.com/reelcast/reelcast/internal/harvest"
	"github.com/reelcast/reelcast/internal/inventory"
	"github.com/reelcast/reelcast/internal/logging"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/publisher"
	"github.com/reelcast/reelcast/internal/relay"
	"github.com/reelcast/reelcast/internal/release"
	"github.com/reelcast/reelcast/internal/scheduler"
	memorystore "github.com/reelcast/reelcast/internal/store/memory"
	mongostore "github.com/reelcast/reelcast/internal/store/mongo"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	var (
		ledger    relay.Ledger
		snapshots relay.SnapshotStore
		cursor    relay.PageCursor
		pinger    api.Pinger
	)
	switch cfg.Store.Provider {
	case "mongo":
		store, err := mongostore.New(ctx, mongostore.Config{
			URI:      cfg.Store.URI,
			Database: cfg.Store.Database,
		}, logger.Named("mongo"))
		if err != nil {
			logger.Fatal("mongo store init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := store.Close(context.Background()); closeErr != nil {
				logger.Error("mongo store close failed", zap.Error(closeErr))
			}
		}()
		ledger, snapshots, cursor, pinger = store, store, store, store
	default:
		logger.Warn("using in-memory store, state is lost on restart")
		ledger = memorystore.NewLedger()
		snapshots = memorystore.NewSnapshotStore()
		cursor = memorystore.NewPageCursor()
	}

	var channel relay.Channel
	var tgChannel *telegram.Channel
	if cfg.Telegram.Token != "" {
		tgChannel, err = telegram.New(cfg.Telegram.Token, cfg.Telegram.ChannelID, logger.Named("telegram"))
		if err != nil {
			logger.Fatal("telegram channel init failed", zap.Error(err))
		}
		channel = tgChannel
	} else {
		logger.Warn("no telegram token configured, using no-op channel")
		channel = noop.New(logger.Named("channel"))
	}

	clock := system.New()
	images := imagefetcher.New(imagefetcher.Config{
		Timeout: cfg.Publisher.ImageTimeout(),
	})
	extractor := collyextractor.New(collyextractor.Config{
		BaseURL:   cfg.Source.BaseURL,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
	}, logger.Named("extractor"))

	pub := publisher.New(channel, images, publisher.Config{
		PostDelay:       cfg.Publisher.PostDelay(),
		FailureCooldown: cfg.Publisher.FailureCooldown(),
	}, logger.Named("publisher"))

	selector := inventory.New(ledger)
	controller := release.NewController(snapshots, ledger, selector, pub, clock, logger.Named("release"))
	harvester := harvest.New(extractor, snapshots, cursor, clock, logger.Named("harvest"))

	entries, err := cfg.Schedule.Entries()
	if err != nil {
		logger.Fatal("compile schedule failed", zap.Error(err))
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		logger.Fatal("load schedule timezone failed", zap.Error(err))
	}
	sched := scheduler.New(entries, loc, clock, controller, harvester, logger.Named("scheduler"))

	apiServer := api.NewServer(controller, pinger, cfg.Schedule.BatchSize, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("scheduler started", zap.Int("entries", len(entries)), zap.String("timezone", cfg.Schedule.Timezone))
		sched.Run(ctx)
	}()

	if tgChannel != nil && cfg.Telegram.Commands {
		listener := telegram.NewListener(tgChannel, controller, cfg.Schedule.BatchSize, entries, logger.Named("commands"))
		go listener.Run(ctx)
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
