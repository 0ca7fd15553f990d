// Command crawler runs a one-shot batch crawl over the audience-sorted
// movie list and stores everything it finds.
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

	"github.com/moviedeck/cine-scraper/internal/browser"
	"github.com/moviedeck/cine-scraper/internal/config"
	"github.com/moviedeck/cine-scraper/internal/database"
	"github.com/moviedeck/cine-scraper/internal/ratelimit"
	"github.com/moviedeck/cine-scraper/internal/scraper"
	"github.com/moviedeck/cine-scraper/pkg/logger"
)

func main() {
	var (
		pages        = flag.Int("pages", 0, "Number of list pages to crawl (0 = use config)")
		headless     = flag.Bool("headless", true, "Run browser in headless mode")
		sleepMin     = flag.Float64("sleep-min", 0, "Min seconds between detail visits (0 = use config)")
		sleepMax     = flag.Float64("sleep-max", 0, "Max seconds between detail visits (0 = use config)")
		pageSleepMin = flag.Float64("page-sleep-min", 0, "Min seconds between list pages (0 = use config)")
		pageSleepMax = flag.Float64("page-sleep-max", 0, "Max seconds between list pages (0 = use config)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *pages > 0 {
		cfg.Scraper.Pages = *pages
	}
	if *sleepMin > 0 {
		cfg.Scraper.ItemSleepMinSec = *sleepMin
	}
	if *sleepMax > 0 {
		cfg.Scraper.ItemSleepMaxSec = *sleepMax
	}
	if *pageSleepMin > 0 {
		cfg.Scraper.PageSleepMinSec = *pageSleepMin
	}
	if *pageSleepMax > 0 {
		cfg.Scraper.PageSleepMaxSec = *pageSleepMax
	}

	logr := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logr.Info("starting batch crawl", "pages", cfg.Scraper.Pages)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logr.Info("shutdown signal received")
		cancel()
	}()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logr.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.CreateSchema(ctx); err != nil {
		logr.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	opts := browser.DefaultOptions()
	opts.Headless = *headless
	opts.Timeout = time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second
	b, err := browser.New(opts)
	if err != nil {
		logr.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	itemLimiter := ratelimit.NewSimpleRateLimiter(
		secondsToDuration(cfg.Scraper.ItemSleepMinSec),
		secondsToDuration(cfg.Scraper.ItemSleepMaxSec))
	pageLimiter := ratelimit.NewSimpleRateLimiter(
		secondsToDuration(cfg.Scraper.PageSleepMinSec),
		secondsToDuration(cfg.Scraper.PageSleepMaxSec))

	svc := scraper.NewService(b, db, itemLimiter, pageLimiter, cfg.Scraper.MaxReviewRounds)

	summary, err := svc.RunFullCrawl(ctx, cfg.Scraper.Pages)
	if err != nil {
		logr.Error("crawl failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("pages visited:  %d\n", summary.PagesVisited)
	fmt.Printf("cards collected: %d\n", summary.Collected)
	fmt.Printf("details enriched: %d\n", summary.Enriched)
	fmt.Printf("rows inserted:  %d\n", summary.Inserted)
	fmt.Printf("duplicates kept: %d\n", summary.Duplicates)

	stats, err := db.GetFieldStats(ctx)
	if err != nil {
		logr.Warn("failed to load catalog stats", "error", err)
		return
	}
	fmt.Printf("catalog size:   %d movies\n", stats.Total)
	fmt.Printf("with ratings:   %d critic / %d audience\n", stats.WithCritic, stats.WithAudience)
	fmt.Printf("with synopsis:  %d\n", stats.WithSynopsis)
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
