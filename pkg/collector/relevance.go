package collector

import (
	"strings"
	"sync"

	"github.com/verist/marketbrief/pkg/domain"
)

// RelevanceFilter matches articles against a finance vocabulary and a
// priority ticker list. Shared by all collectors so the vocabulary lives in
// one place.
type RelevanceFilter struct {
	keywords []string
	tickers  []string
}

// NewRelevanceFilter creates a filter over the given finance vocabulary and tickers
func NewRelevanceFilter(keywords, tickers []string) *RelevanceFilter {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &RelevanceFilter{keywords: lowered, tickers: tickers}
}

// Relevant reports whether the article mentions the finance vocabulary or a
// priority ticker in its title or description.
func (f *RelevanceFilter) Relevant(a domain.Article) bool {
	content := strings.ToLower(a.Title + " " + a.Description)

	for _, kw := range f.keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	for _, t := range f.tickers {
		if strings.Contains(content, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Filter returns only relevant articles, preserving order
func (f *RelevanceFilter) Filter(articles []domain.Article) []domain.Article {
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if f.Relevant(a) {
			out = append(out, a)
		}
	}
	return out
}

// statusHolder is the mutex-guarded status shared by collector implementations
type statusHolder struct {
	mu     sync.RWMutex
	status domain.CollectorStatus
}

func (h *statusHolder) set(state domain.CollectorState, detail string) {
	h.mu.Lock()
	h.status = domain.CollectorStatus{State: state, Detail: detail}
	h.mu.Unlock()
}

func (h *statusHolder) get() domain.CollectorStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}
