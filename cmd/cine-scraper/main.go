package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/moviedeck/cine-scraper/internal/api"
	"github.com/moviedeck/cine-scraper/internal/browser"
	"github.com/moviedeck/cine-scraper/internal/config"
	"github.com/moviedeck/cine-scraper/internal/database"
	"github.com/moviedeck/cine-scraper/internal/events"
	"github.com/moviedeck/cine-scraper/internal/jobs"
	"github.com/moviedeck/cine-scraper/internal/keywords"
	"github.com/moviedeck/cine-scraper/internal/ratelimit"
	"github.com/moviedeck/cine-scraper/internal/scraper"
	"github.com/moviedeck/cine-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.CreateSchema(ctx); err != nil {
		log.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	opts := browser.DefaultOptions()
	opts.Headless = cfg.Scraper.Headless
	opts.Timeout = time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second
	b, err := browser.New(opts)
	if err != nil {
		log.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(db, redisClient, 5*time.Second)
	go relay.Run(ctx)

	store := events.NewStore(db, cfg.Redis.Stream)

	itemLimiter := ratelimit.NewSimpleRateLimiter(
		secondsToDuration(cfg.Scraper.ItemSleepMinSec),
		secondsToDuration(cfg.Scraper.ItemSleepMaxSec))
	pageLimiter := ratelimit.NewSimpleRateLimiter(
		secondsToDuration(cfg.Scraper.PageSleepMinSec),
		secondsToDuration(cfg.Scraper.PageSleepMaxSec))

	scraperService := scraper.NewService(b, store, itemLimiter, pageLimiter, cfg.Scraper.MaxReviewRounds)

	kw := keywords.Default()
	if cfg.Scraper.KeywordTablePath != "" {
		loaded, loadErr := keywords.Load(cfg.Scraper.KeywordTablePath)
		if loadErr != nil {
			log.Error("failed to load keyword table", "path", cfg.Scraper.KeywordTablePath, "error", loadErr)
			os.Exit(1)
		}
		kw = loaded
		log.Info("keyword table loaded", "path", cfg.Scraper.KeywordTablePath, "entries", kw.Size())
	}

	runner := jobs.NewRunner()
	jobManager := jobs.NewManager(db, scraperService, runner, log)
	go jobManager.StartWorker(ctx)

	handlers := api.NewHandlers(scraperService, jobManager, runner, db, kw, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/crawl", func(r chi.Router) {
			r.Post("/movie", handlers.ScrapeMovie)
			r.Post("/movie-by-id", handlers.ScrapeMovieByID)
			r.Post("/search", handlers.Search)
		})

		r.Post("/jobs", handlers.CreateJob)
		r.Get("/jobs", handlers.ListJobs)
		r.Get("/jobs/{jobID}", handlers.GetJob)

		r.Get("/movies", handlers.ListMovies)
		r.Get("/movies/{externalID}", handlers.GetMovie)

		r.Get("/stats", handlers.GetStats)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
