package domain

import "time"

// StageStats aggregates per-stage details of a pipeline run
type StageStats struct {
	Collection  map[string]CollectorStat `json:"collection,omitempty"`
	Analysis    AnalysisSummary          `json:"analysis,omitempty"`
	Ranking     RankingSummary           `json:"ranking,omitempty"`
	Translation TranslationSummary       `json:"translation,omitempty"`
}

// AnalysisSummary summarizes the analysis stage
type AnalysisSummary struct {
	TotalAnalyzed int              `json:"total_analyzed"`
	HighImpact    int              `json:"high_impact"`
	MediumImpact  int              `json:"medium_impact"`
	Categories    map[Category]int `json:"categories,omitempty"`
}

// RankingSummary summarizes the ranking stage
type RankingSummary struct {
	Total       int `json:"total"`
	ModelRanked int `json:"model_ranked"`
	Fallback    int `json:"fallback"`
}

// TranslationSummary summarizes the translation stage
type TranslationSummary struct {
	Translated    int `json:"translated"`
	Reconstructed int `json:"reconstructed"`
	Dropped       int `json:"dropped"`
}

// StageDurations records elapsed time per pipeline stage
type StageDurations struct {
	Collect   time.Duration `json:"collect"`
	Analyze   time.Duration `json:"analyze"`
	Rank      time.Duration `json:"rank"`
	Translate time.Duration `json:"translate"`
}

// PipelineResult is the single record produced by one orchestrator run.
// On failure Success is false, Error holds a human-readable reason and all
// counts are zero.
type PipelineResult struct {
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Collected  int            `json:"collected"`
	Analyzed   int            `json:"analyzed"`
	Ranked     int            `json:"ranked"`
	Translated int            `json:"translated"`
	Message    string         `json:"message"`
	Elapsed    time.Duration  `json:"elapsed"`
	Durations  StageDurations `json:"durations"`
	Stats      StageStats     `json:"stats"`
	Timestamp  time.Time      `json:"timestamp"`
}
