package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/config"
	"github.com/verist/marketbrief/pkg/domain"
)

// Searcher runs a web query and returns hits
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Manager decides when an analysis needs web context and caches results with
// a TTL. Writes happen from the analyzer only; readers (status endpoint) see
// eventually-consistent size.
type Manager struct {
	searcher Searcher
	cfg      config.SearchConfig
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	context string
	stored  time.Time
}

// NewManager creates a search manager; a nil searcher disables enrichment
func NewManager(searcher Searcher, cfg config.SearchConfig) *Manager {
	return &Manager{
		searcher: searcher,
		cfg:      cfg,
		now:      time.Now,
		cache:    map[string]cacheEntry{},
	}
}

// Enabled reports whether search enrichment is active
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled && m.searcher != nil
}

// ShouldSearch reports whether the given analysis is uncertain enough to
// justify a verification search: high impact claims, missing tickers, or an
// unrecognized category.
func (m *Manager) ShouldSearch(analysis domain.Analysis) bool {
	if !m.Enabled() {
		return false
	}

	if analysis.ImpactScore >= m.cfg.HighImpactScore {
		return true
	}
	if len(analysis.Tickers) < m.cfg.MinTickers {
		return true
	}

	switch analysis.Category {
	case domain.CategoryEarnings, domain.CategoryMA, domain.CategoryTechAI, domain.CategoryMacro, domain.CategoryTrading:
		return false
	default:
		return true
	}
}

// ContextFor fetches (or replays from cache) web context for an article.
// Failures degrade to an empty context, never an error to the caller.
func (m *Manager) ContextFor(ctx context.Context, article domain.Article) string {
	if !m.Enabled() {
		return ""
	}

	key := cacheKey(article)

	m.mu.Lock()
	if entry, ok := m.cache[key]; ok && m.now().Sub(entry.stored) < m.cfg.CacheTTL {
		m.mu.Unlock()
		lgr.Printf("[DEBUG] search cache hit for %q", article.Title)
		return entry.context
	}
	m.mu.Unlock()

	results, err := m.searcher.Search(ctx, article.Title)
	if err != nil {
		lgr.Printf("[WARN] web search failed for %q: %v", article.Title, err)
		return ""
	}

	context := Context(results)

	m.mu.Lock()
	m.evictExpired()
	m.cache[key] = cacheEntry{context: context, stored: m.now()}
	m.mu.Unlock()

	return context
}

// CacheSize returns the number of live cache entries
func (m *Manager) CacheSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entry := range m.cache {
		if m.now().Sub(entry.stored) < m.cfg.CacheTTL {
			n++
		}
	}
	return n
}

// evictExpired drops stale entries, called with the lock held
func (m *Manager) evictExpired() {
	for k, entry := range m.cache {
		if m.now().Sub(entry.stored) >= m.cfg.CacheTTL {
			delete(m.cache, k)
		}
	}
}

func cacheKey(article domain.Article) string {
	if article.URL != "" {
		return strings.ToLower(article.URL)
	}
	return strings.ToLower(strings.TrimSpace(article.Title))
}
