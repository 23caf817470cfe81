// boardwatch mirrors the board from a running server: it keeps a local cache,
// follows the event stream, and prints summary lines as the board changes.
// With -csv it uploads a trip export and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
	"github.com/shappi-app/warehouse-bundles-dashboard/client"
	"github.com/shappi-app/warehouse-bundles-dashboard/config"
	"github.com/shappi-app/warehouse-bundles-dashboard/view"
)

var (
	configPath string
	serverURL  string
	cacheDir   string
	csvPath    string
	filterName string
	assignee   string
	verbose    bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&serverURL, "server", "http://localhost:3000", "Board server base URL")
	flag.StringVar(&cacheDir, "cache-dir", "", "Local card cache directory (overrides config)")
	flag.StringVar(&csvPath, "csv", "", "Upload this CSV export and exit")
	flag.StringVar(&filterName, "filter", "all", "Board filter: all, today, this-week, next-week, ambassadors, assignee")
	flag.StringVar(&assignee, "assignee", "", "Assignee name for the assignee filter")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if verbose {
		cfg.Verbose = true
	}

	logCfg := zap.NewProductionConfig()
	if cfg.Verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("Creating logger: %v", err)
	}
	defer logger.Sync()

	cache, err := client.OpenCache(cfg.CacheDir, logger)
	if err != nil {
		log.Fatalf("Opening card cache: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("Closing card cache", zap.Error(err))
		}
	}()

	observer := client.NewObserver(serverURL, cache, logger)
	if err := observer.LoadCache(); err != nil {
		logger.Warn("Starting without cached cards", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if csvPath != "" {
		uploadAndExit(ctx, observer, csvPath, logger)
		return
	}

	filter := view.Filter{Name: view.FilterName(filterName), Assignee: assignee}
	roster := view.NewRoster(cfg.Ambassadors)

	observer.OnChange = func() {
		printBoard(observer.Cards(), filter, roster, cfg.Assignees)
	}

	go func() {
		if err := observer.Listen(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Event stream ended", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	cancel()
	logger.Info("Observer stopped")
}

func uploadAndExit(ctx context.Context, observer *client.Observer, path string, logger *zap.Logger) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Opening CSV file: %v", err)
	}
	defer f.Close()

	report, err := observer.UploadCSV(ctx, f)
	if err != nil {
		log.Fatalf("Uploading CSV: %v", err)
	}

	fmt.Printf("Merged %d cards\n", report.Count)
	for _, warning := range report.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	logger.Info("Upload complete", zap.Int("count", report.Count), zap.Int("warnings", len(report.Warnings)))
}

func printBoard(cards []board.Card, filter view.Filter, roster view.Roster, assignees []string) {
	visible := view.Visible(cards, filter, roster, time.Now())
	fmt.Println(view.Summarize(visible))

	counts := view.BucketCounts(visible)
	for i, bucket := range board.Buckets {
		if counts[i] > 0 {
			fmt.Printf("  %-32s %d\n", bucket, counts[i])
		}
	}

	byAssignee := view.AssignmentCounts(visible, assignees)
	for _, name := range assignees {
		if byAssignee[name] > 0 {
			fmt.Printf("  assigned to %-20s %d\n", name, byAssignee[name])
		}
	}
}
