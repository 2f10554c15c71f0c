package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/marketbrief/pkg/domain"
)

type fakeCollectors struct {
	articles []domain.Article
	window   time.Duration
}

func (f *fakeCollectors) CollectAll(_ context.Context, window time.Duration) []domain.Article {
	f.window = window
	return f.articles
}
func (f *fakeCollectors) Stats() map[string]domain.CollectorStat {
	return map[string]domain.CollectorStat{"fake": {Count: len(f.articles)}}
}
func (f *fakeCollectors) Statuses() map[string]domain.CollectorStatus {
	return map[string]domain.CollectorStatus{"fake": {State: domain.CollectorActive}}
}

type fakeAnalyzer struct{ analyzed []domain.AnalyzedArticle }

func (f *fakeAnalyzer) Analyze(_ context.Context, _ []domain.Article, _ int) []domain.AnalyzedArticle {
	return f.analyzed
}

type fakeRanker struct{ ranked []domain.RankedArticle }

func (f *fakeRanker) Rank(_ context.Context, _ []domain.AnalyzedArticle) []domain.RankedArticle {
	return f.ranked
}

type fakeTranslator struct {
	lines []domain.TranslatedLine
}

func (f *fakeTranslator) Translate(_ context.Context, _ []domain.RankedArticle) ([]domain.TranslatedLine, domain.TranslationSummary) {
	return f.lines, domain.TranslationSummary{Translated: len(f.lines)}
}
func (f *fakeTranslator) FormatBulletin(lines []domain.TranslatedLine) string {
	if len(lines) == 0 {
		return "no news"
	}
	return "bulletin"
}

type fakeStore struct {
	saved []domain.PipelineResult
	err   error
}

func (f *fakeStore) SaveResult(_ context.Context, result domain.PipelineResult) error {
	f.saved = append(f.saved, result)
	return f.err
}

type fakeEnricher struct{ called bool }

func (f *fakeEnricher) Enrich(_ context.Context, _ []domain.Article) { f.called = true }

func successFixture() (*fakeCollectors, *fakeAnalyzer, *fakeRanker, *fakeTranslator) {
	collectors := &fakeCollectors{articles: []domain.Article{{Title: "one"}, {Title: "two"}, {Title: "three"}}}
	analyzed := []domain.AnalyzedArticle{
		{Analysis: domain.Analysis{ImpactScore: 8, Category: domain.CategoryEarnings}},
		{Analysis: domain.Analysis{ImpactScore: 6, Category: domain.CategoryMacro}},
	}
	ranked := []domain.RankedArticle{
		{AnalyzedArticle: analyzed[0], Rank: 1, ModelRanked: true},
		{AnalyzedArticle: analyzed[1], Rank: 2},
	}
	lines := []domain.TranslatedLine{{Rank: 1, Line: "[1.] line"}, {Rank: 2, Line: "[2.] line"}}
	return collectors, &fakeAnalyzer{analyzed: analyzed}, &fakeRanker{ranked: ranked}, &fakeTranslator{lines: lines}
}

func TestPipeline_RunSuccess(t *testing.T) {
	collectors, analyzer, ranker, translator := successFixture()
	store := &fakeStore{}
	enricher := &fakeEnricher{}

	p := New(collectors, enricher, analyzer, ranker, translator, store, Config{})
	result := p.Run(context.Background(), time.Hour)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, 3, result.Collected)
	assert.Equal(t, 2, result.Analyzed)
	assert.Equal(t, 2, result.Ranked)
	assert.Equal(t, 2, result.Translated)
	assert.Equal(t, "bulletin", result.Message)
	assert.True(t, enricher.called)

	assert.Equal(t, 2, result.Stats.Analysis.TotalAnalyzed)
	assert.Equal(t, 1, result.Stats.Ranking.ModelRanked)
	assert.Equal(t, 1, result.Stats.Ranking.Fallback)
	assert.Equal(t, 2, result.Stats.Translation.Translated)
	assert.Equal(t, 3, result.Stats.Collection["fake"].Count)

	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].Success)
}

func TestPipeline_RunEmptyCollect(t *testing.T) {
	collectors := &fakeCollectors{}
	_, analyzer, ranker, translator := successFixture()

	p := New(collectors, nil, analyzer, ranker, translator, nil, Config{})
	result := p.Run(context.Background(), time.Hour)

	assert.False(t, result.Success)
	assert.Equal(t, "no news articles found", result.Error)
	assert.Zero(t, result.Collected)
	assert.Zero(t, result.Analyzed)
	assert.Zero(t, result.Ranked)
	assert.Zero(t, result.Translated)
	assert.Equal(t, "no news", result.Message, "failure still carries the placeholder bulletin")
}

func TestPipeline_RunEmptyAnalyze(t *testing.T) {
	collectors, _, ranker, translator := successFixture()

	p := New(collectors, nil, &fakeAnalyzer{}, ranker, translator, nil, Config{})
	result := p.Run(context.Background(), time.Hour)

	assert.False(t, result.Success)
	assert.Equal(t, "no high-impact news found", result.Error)
	assert.Zero(t, result.Analyzed)
	assert.Zero(t, result.Ranked)
}

func TestPipeline_RunEmptyTranslationStillSucceeds(t *testing.T) {
	collectors, analyzer, ranker, _ := successFixture()

	p := New(collectors, nil, analyzer, ranker, &fakeTranslator{}, nil, Config{})
	result := p.Run(context.Background(), time.Hour)

	assert.True(t, result.Success, "translation degradation never fails the run")
	assert.Zero(t, result.Translated)
	assert.Equal(t, "no news", result.Message)
}

func TestPipeline_RunDefaultWindow(t *testing.T) {
	collectors, analyzer, ranker, translator := successFixture()

	p := New(collectors, nil, analyzer, ranker, translator, nil, Config{DefaultWindow: 2 * time.Hour})
	p.Run(context.Background(), 0)

	assert.Equal(t, 2*time.Hour, collectors.window)
}

func TestPipeline_LastResult(t *testing.T) {
	collectors, analyzer, ranker, translator := successFixture()
	p := New(collectors, nil, analyzer, ranker, translator, nil, Config{})

	assert.Nil(t, p.LastResult(), "nil before the first run")

	p.Run(context.Background(), time.Hour)
	last := p.LastResult()
	require.NotNil(t, last)
	assert.True(t, last.Success)

	// returned copy is detached from internal state
	last.Success = false
	assert.True(t, p.LastResult().Success)
}

func TestPipeline_RunStoreFailureDoesNotFailRun(t *testing.T) {
	collectors, analyzer, ranker, translator := successFixture()
	store := &fakeStore{err: errors.New("disk full")}

	p := New(collectors, nil, analyzer, ranker, translator, store, Config{})
	result := p.Run(context.Background(), time.Hour)

	assert.True(t, result.Success)
	assert.Len(t, store.saved, 1)
}

func TestPipeline_StageDurationsPopulated(t *testing.T) {
	collectors, analyzer, ranker, translator := successFixture()

	p := New(collectors, nil, analyzer, ranker, translator, nil, Config{})
	result := p.Run(context.Background(), time.Hour)

	assert.GreaterOrEqual(t, result.Elapsed, time.Duration(0))
	assert.GreaterOrEqual(t, result.Durations.Collect, time.Duration(0))
	assert.False(t, result.Timestamp.IsZero())
}
