// Command tidesyncd runs the background sync daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"tidesync/internal/config"
	"tidesync/internal/daemon"
	"tidesync/internal/journal"
	"tidesync/internal/logging"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configPath, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open journal store", logging.Error(err))
		return
	}

	provider := config.NewFileProvider(cfg, configPath, logger)

	d, err := daemon.New(cfg, provider, store, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("tidesyncd shutting down")
}
