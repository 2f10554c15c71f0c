package ranker

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/config"
	"github.com/verist/marketbrief/pkg/domain"
)

// Completer produces a free-text completion for a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Ranker orders analyzed articles by market importance. A deterministic
// composite-score sort is the baseline; the model refines ordering among the
// top candidates, and any model failure falls back to the baseline.
type Ranker struct {
	completer Completer
	cfg       config.RankingConfig
}

// New creates a ranker
func New(completer Completer, cfg config.RankingConfig) *Ranker {
	return &Ranker{completer: completer, cfg: cfg}
}

// rankLineRe matches "Rank N: Article [i] - reasoning" lines from the model
var rankLineRe = regexp.MustCompile(`(?i)^\s*rank\s+(\d+)\s*:\s*article\s*\[(\d+)\]\s*-?\s*(.*)$`)

// Rank orders articles and returns at most the configured output size.
// Model-ranked items precede fallback items; ranks are a dense 1..K sequence.
func (r *Ranker) Rank(ctx context.Context, analyzed []domain.AnalyzedArticle) []domain.RankedArticle {
	if len(analyzed) == 0 {
		return nil
	}

	// deterministic baseline, stable so equal scores keep input order
	baseline := make([]domain.AnalyzedArticle, len(analyzed))
	copy(baseline, analyzed)
	sort.SliceStable(baseline, func(i, j int) bool {
		return baseline[i].CompositeScore > baseline[j].CompositeScore
	})

	candidates := baseline
	if len(candidates) > r.cfg.Candidates {
		candidates = candidates[:r.cfg.Candidates]
	}

	placements := r.modelRank(ctx, candidates)
	ordered := merge(candidates, placements)

	if len(ordered) > r.cfg.OutputSize {
		ordered = ordered[:r.cfg.OutputSize]
	}

	// final ranks are dense over the truncated output
	for i := range ordered {
		ordered[i].Rank = i + 1
	}
	return ordered
}

// placement is one parsed model ranking decision for candidate index
type placement struct {
	order     int
	reasoning string
}

// modelRank asks the model for a fine ordering of the candidate slice and
// parses its line-structured response. Any failure returns no placements,
// which pushes everything onto the fallback path.
func (r *Ranker) modelRank(ctx context.Context, candidates []domain.AnalyzedArticle) map[int]placement {
	resp, err := r.completer.Complete(ctx, r.buildPrompt(candidates), r.cfg.Temperature)
	if err != nil {
		lgr.Printf("[WARN] model ranking failed, using score ordering: %v", err)
		return nil
	}

	placements := map[int]placement{}
	seen := 0
	for _, line := range strings.Split(resp, "\n") {
		m := rankLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		idx, err := strconv.Atoi(m[2])
		if err != nil || idx < 1 || idx > len(candidates) {
			lgr.Printf("[DEBUG] ignoring unparsable ranking line: %s", strings.TrimSpace(line))
			continue
		}
		idx-- // model references candidates 1-based

		if _, dup := placements[idx]; dup {
			continue
		}

		reasoning := strings.TrimSpace(m[3])
		reasoning = strings.TrimPrefix(reasoning, "Most important because ")
		reasoning = strings.TrimPrefix(reasoning, "because ")
		if len(reasoning) > r.cfg.ReasoningMax {
			reasoning = reasoning[:r.cfg.ReasoningMax]
		}

		seen++
		placements[idx] = placement{order: seen, reasoning: reasoning}
	}

	lgr.Printf("[INFO] model ranked %d of %d candidates", len(placements), len(candidates))
	return placements
}

// merge puts model-ranked candidates first (by assigned order), then the
// rest by composite score descending. Both groups are stable.
func merge(candidates []domain.AnalyzedArticle, placements map[int]placement) []domain.RankedArticle {
	ranked := make([]domain.RankedArticle, 0, len(placements))
	fallback := make([]domain.RankedArticle, 0, len(candidates)-len(placements))

	for i, c := range candidates {
		if p, ok := placements[i]; ok {
			ranked = append(ranked, domain.RankedArticle{
				AnalyzedArticle: c,
				Rank:            p.order,
				ModelRanked:     true,
				Reasoning:       p.reasoning,
			})
			continue
		}
		fallback = append(fallback, domain.RankedArticle{AnalyzedArticle: c})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })
	// candidates are already score-sorted, so fallback keeps that order

	return append(ranked, fallback...)
}

// buildPrompt renders the candidate slice for the model
func (r *Ranker) buildPrompt(candidates []domain.AnalyzedArticle) string {
	var sb strings.Builder
	sb.WriteString("Rank these financial news articles by market importance (highest to lowest):\n\n")

	for i, c := range candidates {
		fmt.Fprintf(&sb, "Article [%d]: Score %d/%d | Tickers: %s | Category: %s | Impact: %s | Title: %s\n",
			i+1, c.Analysis.ImpactScore, c.CompositeScore,
			strings.Join(c.Analysis.Tickers, ", "), c.Analysis.Category, c.Analysis.PriceImpact,
			c.Article.Title)
	}

	fmt.Fprintf(&sb, `
Ranking Criteria:
1. Impact Score: Higher scores should rank higher
2. Large-Cap Focus: News about major companies ranks higher
3. Market Significance: How this affects the broader market/S&P500
4. News Type Priority: earnings and M&A first, then tech/AI and macro,
   then product launches and analyst moves, trading updates last

Rank the articles from 1 (most important) to %d and provide brief reasoning.

Return the ranking in this exact format:
Rank 1: Article [X] - brief reasoning
Rank 2: Article [Y] - brief reasoning
(continue through rank %d)

Focus on what moves the entire market, not single stocks unless they are large-caps.
`, len(candidates), len(candidates))

	return sb.String()
}

// Summary aggregates ranking results for the run record
func Summary(ranked []domain.RankedArticle) domain.RankingSummary {
	s := domain.RankingSummary{Total: len(ranked)}
	for _, r := range ranked {
		if r.ModelRanked {
			s.ModelRanked++
		} else {
			s.Fallback++
		}
	}
	return s
}
