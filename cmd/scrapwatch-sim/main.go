package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"scrapwatch/internal/logging"
	"scrapwatch/internal/simulate"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "mqtt broker url")
	clientID := flag.String("client-id", "scrapwatch-sim", "mqtt client id")
	flag.Parse()

	logger := logging.NewLogger("info", "console")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	if err := simulate.Run(ctx, *broker, *clientID, logger); err != nil {
		logger.Error("simulator failed", "err", err)
		os.Exit(1)
	}
}
