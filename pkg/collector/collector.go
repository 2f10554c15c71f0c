package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/domain"
)

// Collector fetches raw articles from one external news provider. Collect
// never fails to the caller: on any internal error it returns an empty slice
// and reports the condition through Status.
type Collector interface {
	Name() string
	Collect(ctx context.Context, window time.Duration) []domain.Article
	Status() domain.CollectorStatus
}

// Aggregator runs all registered collectors and merges their output.
// Collectors are invoked sequentially in registration order; a failing
// collector contributes zero articles and an error stat without affecting
// the others.
type Aggregator struct {
	collectors     []Collector
	minTitleLength int

	mu    sync.RWMutex
	stats map[string]domain.CollectorStat
}

// NewAggregator creates an aggregator over the given collectors
func NewAggregator(minTitleLength int, collectors ...Collector) *Aggregator {
	if minTitleLength <= 0 {
		minTitleLength = 10
	}
	return &Aggregator{
		collectors:     collectors,
		minTitleLength: minTitleLength,
		stats:          map[string]domain.CollectorStat{},
	}
}

// Register appends a collector; registration order determines invocation
// and deduplication priority.
func (a *Aggregator) Register(c Collector) {
	a.collectors = append(a.collectors, c)
	lgr.Printf("[INFO] registered collector %s", c.Name())
}

// CollectAll invokes every collector, records per-source stats and returns
// the deduplicated merge of all results.
func (a *Aggregator) CollectAll(ctx context.Context, window time.Duration) []domain.Article {
	var merged []domain.Article
	stats := make(map[string]domain.CollectorStat, len(a.collectors))

	for _, c := range a.collectors {
		articles := c.Collect(ctx, window)
		status := c.Status()

		stat := domain.CollectorStat{Status: status, Count: len(articles)}
		if status.State == domain.CollectorError {
			stat.Error = status.Detail
		}
		stats[c.Name()] = stat

		lgr.Printf("[INFO] collector %s: %d articles, state %s", c.Name(), len(articles), status.State)
		merged = append(merged, articles...)
	}

	unique := a.Dedup(merged)
	lgr.Printf("[INFO] collected %d total, %d unique articles", len(merged), len(unique))

	a.mu.Lock()
	a.stats = stats
	a.mu.Unlock()

	return unique
}

// Dedup keeps the first occurrence per normalized title and per URL, dropping
// articles with too-short titles. The operation is idempotent.
func (a *Aggregator) Dedup(articles []domain.Article) []domain.Article {
	seenTitles := make(map[string]struct{}, len(articles))
	seenURLs := make(map[string]struct{}, len(articles))
	unique := make([]domain.Article, 0, len(articles))

	for _, article := range articles {
		title := strings.ToLower(strings.TrimSpace(article.Title))
		url := strings.ToLower(strings.TrimSpace(article.URL))

		if len(title) < a.minTitleLength {
			continue
		}
		if _, ok := seenTitles[title]; ok {
			continue
		}
		if _, ok := seenURLs[url]; ok {
			continue
		}

		seenTitles[title] = struct{}{}
		if url != "" {
			seenURLs[url] = struct{}{}
		}
		unique = append(unique, article)
	}

	return unique
}

// Stats returns per-collector results of the last CollectAll pass
func (a *Aggregator) Stats() map[string]domain.CollectorStat {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]domain.CollectorStat, len(a.stats))
	for k, v := range a.stats {
		out[k] = v
	}
	return out
}

// Statuses reports the current health of every registered collector,
// independent of any collection pass.
func (a *Aggregator) Statuses() map[string]domain.CollectorStatus {
	out := make(map[string]domain.CollectorStatus, len(a.collectors))
	for _, c := range a.collectors {
		out[c.Name()] = c.Status()
	}
	return out
}
