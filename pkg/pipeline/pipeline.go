package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/analyzer"
	"github.com/verist/marketbrief/pkg/domain"
	"github.com/verist/marketbrief/pkg/ranker"
)

// Collectors aggregates all news sources
type Collectors interface {
	CollectAll(ctx context.Context, window time.Duration) []domain.Article
	Stats() map[string]domain.CollectorStat
	Statuses() map[string]domain.CollectorStatus
}

// Enricher fills missing article content before analysis
type Enricher interface {
	Enrich(ctx context.Context, articles []domain.Article)
}

// Analyzer scores articles and filters by impact threshold
type Analyzer interface {
	Analyze(ctx context.Context, articles []domain.Article, limit int) []domain.AnalyzedArticle
}

// Ranker orders analyzed articles by importance
type Ranker interface {
	Rank(ctx context.Context, analyzed []domain.AnalyzedArticle) []domain.RankedArticle
}

// Translator localizes ranked articles and assembles the bulletin
type Translator interface {
	Translate(ctx context.Context, ranked []domain.RankedArticle) ([]domain.TranslatedLine, domain.TranslationSummary)
	FormatBulletin(lines []domain.TranslatedLine) string
}

// Store persists run results; optional collaborator
type Store interface {
	SaveResult(ctx context.Context, result domain.PipelineResult) error
}

// Config holds orchestration limits
type Config struct {
	AnalyzeLimit  int           // maximum articles passed to the analyzer
	DefaultWindow time.Duration // collection window when the caller passes zero
}

// Pipeline sequences collect, analyze, rank, translate and format. Each run
// produces exactly one PipelineResult; the most recent one is retained for
// status queries.
type Pipeline struct {
	collectors Collectors
	enricher   Enricher // may be nil
	analyzer   Analyzer
	ranker     Ranker
	translator Translator
	store      Store // may be nil
	cfg        Config

	mu         sync.RWMutex
	lastResult *domain.PipelineResult
}

// New creates a pipeline; enricher and store may be nil
func New(collectors Collectors, enricher Enricher, analyzer Analyzer, ranker Ranker, translator Translator, store Store, cfg Config) *Pipeline {
	if cfg.AnalyzeLimit == 0 {
		cfg.AnalyzeLimit = 50
	}
	if cfg.DefaultWindow == 0 {
		cfg.DefaultWindow = 3 * time.Hour
	}
	return &Pipeline{
		collectors: collectors,
		enricher:   enricher,
		analyzer:   analyzer,
		ranker:     ranker,
		translator: translator,
		store:      store,
		cfg:        cfg,
	}
}

// Run executes one complete pipeline pass over the given time window. An
// empty collect or analyze stage fails the run with a descriptive reason;
// ranking and translation only degrade.
func (p *Pipeline) Run(ctx context.Context, window time.Duration) domain.PipelineResult {
	if window == 0 {
		window = p.cfg.DefaultWindow
	}

	start := time.Now()
	lgr.Printf("[INFO] starting pipeline run for last %v", window)

	var durations domain.StageDurations

	// stage 1: collect
	stageStart := time.Now()
	articles := p.collectors.CollectAll(ctx, window)
	durations.Collect = time.Since(stageStart)
	if len(articles) == 0 {
		return p.finish(ctx, p.failed("no news articles found", durations, start))
	}

	if p.enricher != nil {
		p.enricher.Enrich(ctx, articles)
	}

	// stage 2: analyze
	stageStart = time.Now()
	analyzed := p.analyzer.Analyze(ctx, articles, p.cfg.AnalyzeLimit)
	durations.Analyze = time.Since(stageStart)
	if len(analyzed) == 0 {
		return p.finish(ctx, p.failed("no high-impact news found", durations, start))
	}

	// stage 3: rank (degrades, never fails the run)
	stageStart = time.Now()
	ranked := p.ranker.Rank(ctx, analyzed)
	durations.Rank = time.Since(stageStart)

	// stage 4: translate (degrades, never fails the run)
	stageStart = time.Now()
	lines, translationSummary := p.translator.Translate(ctx, ranked)
	durations.Translate = time.Since(stageStart)

	// stage 5: format
	message := p.translator.FormatBulletin(lines)

	result := domain.PipelineResult{
		Success:    true,
		Collected:  len(articles),
		Analyzed:   len(analyzed),
		Ranked:     len(ranked),
		Translated: len(lines),
		Message:    message,
		Elapsed:    time.Since(start),
		Durations:  durations,
		Timestamp:  time.Now(),
		Stats: domain.StageStats{
			Collection:  p.collectors.Stats(),
			Analysis:    analyzer.Summary(analyzed),
			Ranking:     ranker.Summary(ranked),
			Translation: translationSummary,
		},
	}

	lgr.Printf("[INFO] pipeline completed in %v: %d collected -> %d analyzed -> %d ranked -> %d translated",
		result.Elapsed.Round(time.Millisecond), result.Collected, result.Analyzed, result.Ranked, result.Translated)

	return p.finish(ctx, result)
}

// failed builds the defined-shape failure result with all counts zero
func (p *Pipeline) failed(reason string, durations domain.StageDurations, start time.Time) domain.PipelineResult {
	lgr.Printf("[WARN] pipeline run failed: %s", reason)
	return domain.PipelineResult{
		Success:   false,
		Error:     reason,
		Message:   p.translator.FormatBulletin(nil),
		Elapsed:   time.Since(start),
		Durations: durations,
		Timestamp: time.Now(),
		Stats:     domain.StageStats{Collection: p.collectors.Stats()},
	}
}

// finish retains the result as the latest and persists it when a store is set
func (p *Pipeline) finish(ctx context.Context, result domain.PipelineResult) domain.PipelineResult {
	p.mu.Lock()
	p.lastResult = &result
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.SaveResult(ctx, result); err != nil {
			lgr.Printf("[WARN] failed to persist run result: %v", err)
		}
	}
	return result
}

// LastResult returns the most recent run result, nil before the first run
func (p *Pipeline) LastResult() *domain.PipelineResult {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.lastResult == nil {
		return nil
	}
	result := *p.lastResult
	return &result
}

// CollectorStatuses reports current collector health for status endpoints
func (p *Pipeline) CollectorStatuses() map[string]domain.CollectorStatus {
	return p.collectors.Statuses()
}
