package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"alert-systemv1/internal/alertsvc"
	"alert-systemv1/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := alertsvc.LoadConfig()
	slogger := logger.Init("alertengine", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[alertengine] feed: %s, intervals: %v, eval every %s", cfg.FeedURL, cfg.CandleIntervals, cfg.EvalInterval)

	svc, err := alertsvc.New(cfg, slogger)
	if err != nil {
		log.Fatalf("[alertengine] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[alertengine] fatal: %v", err)
	}
}
