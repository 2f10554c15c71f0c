package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/verist/marketbrief/pkg/analyzer"
	"github.com/verist/marketbrief/pkg/collector"
	"github.com/verist/marketbrief/pkg/config"
	"github.com/verist/marketbrief/pkg/content"
	"github.com/verist/marketbrief/pkg/llm"
	"github.com/verist/marketbrief/pkg/notify"
	"github.com/verist/marketbrief/pkg/pipeline"
	"github.com/verist/marketbrief/pkg/ranker"
	"github.com/verist/marketbrief/pkg/repository"
	"github.com/verist/marketbrief/pkg/scheduler"
	"github.com/verist/marketbrief/pkg/search"
	"github.com/verist/marketbrief/pkg/translator"
	"github.com/verist/marketbrief/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"conf" env:"CONF" default:"config.yml" description:"configuration file"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Fatalf("[ERROR] failed to load config from %s: %v", opts.Config, err)
	}

	setupLog(opts.Debug, secrets(cfg)...)
	log.Printf("[INFO] starting marketbrief version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run wires all components and blocks until the context is canceled
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	store, err := repository.New(repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open run history store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	aggregator := makeAggregator(cfg)

	if len(cfg.LLM.Providers) == 0 {
		return fmt.Errorf("no llm providers configured")
	}
	providers := make([]llm.Provider, 0, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		providers = append(providers, llm.NewOpenAIProvider(p))
	}
	chain := llm.NewChain(providers...)

	var searchMgr *search.Manager
	var contextProvider analyzer.ContextProvider
	if cfg.Search.Enabled {
		searchMgr = search.NewManager(search.NewDuckDuckGo(cfg.Search.Timeout, cfg.Search.MaxResults), cfg.Search)
		contextProvider = searchMgr
	}

	var enricher pipeline.Enricher
	if cfg.Extraction.Enabled {
		enricher = content.NewExtractor(cfg.Extraction)
	}

	pipe := pipeline.New(
		aggregator,
		enricher,
		analyzer.New(chain, contextProvider, cfg.Analysis),
		ranker.New(chain, cfg.Ranking),
		translator.New(chain, cfg.Translation),
		store,
		pipeline.Config{AnalyzeLimit: cfg.Analysis.MaxArticles, DefaultWindow: cfg.Collectors.TimeWindow},
	)

	line := notify.NewLine(cfg.Delivery)
	if !line.Available() {
		log.Printf("[WARN] delivery channel token not set, bulletins will not be sent")
	}

	sched, err := scheduler.New(pipe, line, store, scheduler.Config{
		BroadcastTimes: cfg.Schedule.BroadcastTimes,
		HealthInterval: cfg.Schedule.HealthInterval,
		RunWindow:      cfg.Collectors.TimeWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start(ctx)
	defer sched.Stop()

	var cacheStats server.CacheStats
	if searchMgr != nil {
		cacheStats = searchMgr
	}
	srv := server.New(cfg, pipe, sched, store, cacheStats, revision, debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// makeAggregator registers all configured collectors in priority order
func makeAggregator(cfg *config.Config) *collector.Aggregator {
	filter := collector.NewRelevanceFilter(cfg.Collectors.FinanceKeywords, cfg.Analysis.LargeCaps)

	aggregator := collector.NewAggregator(cfg.Collectors.MinTitleLength)
	if cfg.Collectors.NewsAPIKey != "" {
		aggregator.Register(collector.NewNewsAPI(cfg.Collectors.NewsAPIKey, filter,
			cfg.Collectors.RequestTimeout, cfg.Collectors.MaxPerSource))
	} else {
		log.Printf("[WARN] newsapi key not set, collector disabled")
	}
	if cfg.Collectors.AlphaVantageKey != "" {
		aggregator.Register(collector.NewAlphaVantage(cfg.Collectors.AlphaVantageKey, filter,
			cfg.Collectors.RequestTimeout, cfg.Collectors.MinSentimentMag, cfg.Collectors.MaxPerSource))
	} else {
		log.Printf("[WARN] alphavantage key not set, collector disabled")
	}
	if len(cfg.Collectors.RSSFeeds) > 0 {
		aggregator.Register(collector.NewRSS(cfg.Collectors.RSSFeeds, filter,
			cfg.Collectors.RequestTimeout, cfg.Collectors.RSSUserAgent, cfg.Collectors.MaxPerSource))
	}
	return aggregator
}

// secrets collects sensitive config values to mask in logs
func secrets(cfg *config.Config) []string {
	var res []string
	if cfg.Collectors.NewsAPIKey != "" {
		res = append(res, cfg.Collectors.NewsAPIKey)
	}
	if cfg.Collectors.AlphaVantageKey != "" {
		res = append(res, cfg.Collectors.AlphaVantageKey)
	}
	if cfg.Delivery.ChannelToken != "" {
		res = append(res, cfg.Delivery.ChannelToken)
	}
	for _, p := range cfg.LLM.Providers {
		if p.APIKey != "" {
			res = append(res, p.APIKey)
		}
	}
	return res
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
