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

	"github.com/gin-gonic/gin"

	"market-screener/api"
	"market-screener/config"
	"market-screener/models"
	"market-screener/scraper/ebay"
	"market-screener/scraper/reddit"
	"market-screener/services"
	"market-screener/storage"
	"market-screener/utils"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exiting.
func run() int {
	query := flag.String("query", "", "product to analyze once and print a report for")
	serve := flag.Bool("serve", false, "serve the HTTP API instead of a one-off run")
	csvPath := flag.String("csv", "", "append normalized listings to this CSV file (overrides CSV_OUTPUT_PATH)")
	flag.Parse()

	cfg := config.Load()
	logger := utils.NewLogger().WithLevel(utils.ParseLevel(cfg.LogLevel))
	if *csvPath != "" {
		cfg.CSVOutputPath = *csvPath
	}

	if !*serve && *query == "" {
		fmt.Fprintln(os.Stderr, "usage: market-screener -query \"<product>\" | -serve")
		flag.PrintDefaults()
		return 2
	}

	logger.Info("=== Market Screener starting ===")
	logger.Info("Config: marketplace %s | page cap %d | post limit %d | wait %v",
		cfg.MarketplaceURL, cfg.PageCap, cfg.PostLimit, cfg.WaitTimeout)

	pipeline, closeAll, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		closeAll()
		return 1
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := serveHTTP(ctx, cfg.HTTPAddr, pipeline, logger); err != nil {
			logger.Error("HTTP server: %v", err)
			return 1
		}
		return 0
	}

	res, err := pipeline.Analyze(ctx, *query)
	if err != nil {
		if services.IsCollectionFailure(err) {
			logger.Error("Marketplace collection is broken, this is not an empty result: %v", err)
		} else {
			logger.Error("Analysis failed: %v", err)
		}
		return 1
	}

	pipeline.KPIs.Print(os.Stdout, res)
	if res.NoResults() {
		logger.Warn("No listings or posts found for %q", res.Query)
	}
	return 0
}

// buildPipeline wires collectors, caches and sinks from cfg. The returned func
// releases every opened resource.
func buildPipeline(cfg *config.Config, logger *utils.Logger) (*services.Pipeline, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Close: %v", err)
			}
		}
	}

	vocab := services.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		v, err := services.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, closeAll, err
		}
		vocab = v
		logger.Info("Loaded vocabulary from %s", cfg.VocabularyPath)
	}

	selectors := ebay.DefaultSelectors()
	factory := ebay.NewChromeSessionFactory(ebay.ChromeOptions{
		StartURL:     cfg.MarketplaceURL,
		ChromeBin:    cfg.ChromeBin,
		Headless:     cfg.Headless,
		WaitTimeout:  cfg.WaitTimeout,
		PollInterval: cfg.PollInterval,
		Selectors:    selectors,
	}, logger)

	p := &services.Pipeline{
		Listings:   ebay.NewCollector(factory, selectors, cfg.PageCap, logger),
		Normalizer: services.NewNormalizer(vocab, logger),
		Scorer:     services.NewSentimentScorer(services.NewVaderAnalyzer(), logger),
		KPIs:       services.NewKPIService(logger),
		Logger:     logger,
	}

	posts, err := reddit.NewCollector(reddit.Credentials{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
	}, logger,
		reddit.WithLimit(cfg.PostLimit),
		reddit.WithRateLimit(cfg.RedditRateLimitMs),
		reddit.WithRetries(cfg.MaxRetries),
	)
	var credErr *models.CredentialError
	switch {
	case errors.As(err, &credErr):
		logger.Warn("Social sentiment disabled: %v", err)
		p.PostsError = err
	case err != nil:
		return nil, closeAll, err
	default:
		p.Posts = posts
	}

	if cfg.RedisAddr != "" {
		cache, err := storage.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, cache.Close)
		p.Cache = cache
		logger.Info("Caching results in Redis at %s (ttl %v)", cfg.RedisAddr, cfg.CacheTTL)
	} else {
		p.Cache = storage.NewMemoryCache(cfg.CacheTTL)
	}

	if cfg.CSVOutputPath != "" {
		w, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, w.Close)
		p.Sinks = append(p.Sinks, w)
		logger.Info("Writing listings to %s", cfg.CSVOutputPath)
	}

	if cfg.ArchivePostgres {
		pw, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Make sure PostgreSQL is running: docker compose up -d")
			return nil, closeAll, err
		}
		closers = append(closers, pw.Close)
		p.Sinks = append(p.Sinks, pw)
		logger.Info("Archiving runs to PostgreSQL")
	}

	return p, closeAll, nil
}

func serveHTTP(ctx context.Context, addr string, p *services.Pipeline, logger *utils.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(p, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
