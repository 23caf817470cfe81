package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
	"github.com/shappi-app/warehouse-bundles-dashboard/config"
	"github.com/shappi-app/warehouse-bundles-dashboard/hub"
	"github.com/shappi-app/warehouse-bundles-dashboard/server"
)

var (
	configPath string
	httpPort   string
	dataFile   string
	verbose    bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&httpPort, "http-port", "", "HTTP web server port (overrides config)")
	flag.StringVar(&dataFile, "data", "", "Path to the card snapshot file (overrides config)")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

func main() {
	// Load Config
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	if httpPort != "" {
		cfg.HTTPPort = httpPort
	}
	if dataFile != "" {
		cfg.DataFile = dataFile
	}
	if verbose {
		cfg.Verbose = true
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		log.Fatalf("Creating logger: %v", err)
	}
	defer logger.Sync()

	// Broadcast hub, started before the store so load-time events have a sink
	broadcastHub := hub.New(logger)
	go broadcastHub.Run()

	// Authoritative card store
	store, err := board.Open(cfg.DataFile, logger, broadcastHub)
	if err != nil {
		log.Fatalf("Opening card store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Closing card store", zap.Error(err))
		}
	}()

	// Start Web Server
	webserver := server.NewWebServer(store, broadcastHub, cfg, logger)
	webserver.Start()

	// Wait for interrupt signal to gracefully shut down the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	// Create deadline to wait for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := webserver.Shutdown(ctx); err != nil {
		logger.Error("Shutting down HTTP web server", zap.Error(err))
	}
	logger.Info("HTTP web server gracefully stopped")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return logCfg.Build()
}
