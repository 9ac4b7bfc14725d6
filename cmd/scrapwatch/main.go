package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"scrapwatch/internal/api"
	"scrapwatch/internal/config"
	"scrapwatch/internal/engine"
	"scrapwatch/internal/hub"
	"scrapwatch/internal/ingest"
	"scrapwatch/internal/logging"
	"scrapwatch/internal/model"
	"scrapwatch/internal/observability"
	"scrapwatch/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to yaml or json config (defaults apply when omitted)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.New(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	h := hub.New(cfg.Hub.ObserverBuffer, logger, metrics)
	eng := engine.NewEngine(cfg, logger, h, metrics, store)

	events := make(chan model.Event, cfg.Ingest.ChannelBuffer)
	eng.Start(ctx, events)
	eng.StartSweeper(ctx, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	if err := ingest.StartMQTT(ctx, cfg.Ingest.MQTT, events, logger, metrics); err != nil {
		logger.Error("mqtt ingest failed to start", "err", err)
		os.Exit(1)
	}
	ingest.StartKafka(ctx, cfg.Ingest.Kafka, events, logger, metrics)
	ingest.StartREST(ctx, cfg.Ingest.REST, events, logger, metrics)
	api.Start(ctx, cfg.API, eng, h, logger)

	logger.Info("scrapwatch started",
		"window_seconds", cfg.WindowSeconds,
		"api", cfg.API.Addr,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	cancel()
}
