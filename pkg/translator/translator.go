package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/config"
	"github.com/verist/marketbrief/pkg/domain"
)

// Completer produces a free-text completion for a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Translator converts ranked articles into fixed-format Thai bulletin lines.
// A line that fails validation is rebuilt from extractable fragments; if that
// also fails the article is omitted rather than emitted malformed.
type Translator struct {
	completer Completer
	cfg       config.TranslationConfig
	now       func() time.Time
}

// New creates a translator
func New(completer Completer, cfg config.TranslationConfig) *Translator {
	return &Translator{completer: completer, cfg: cfg, now: time.Now}
}

// noNewsMessage is returned by FormatBulletin when there is nothing to report
const noNewsMessage = "📈 **ไม่พบข่าวสำคัญในช่วงเวลาที่กำหนด**\n\n*ระบบจะค้นหาข่าวใหม่ในรอบถัดไป*"

// Translate localizes the top ranked articles, one formatted line each.
// Failed articles are skipped; the stage degrades instead of failing.
func (t *Translator) Translate(ctx context.Context, ranked []domain.RankedArticle) ([]domain.TranslatedLine, domain.TranslationSummary) {
	var summary domain.TranslationSummary

	limit := len(ranked)
	if limit > t.cfg.MaxLines {
		limit = t.cfg.MaxLines
	}

	lines := make([]domain.TranslatedLine, 0, limit)
	for _, article := range ranked[:limit] {
		line, reconstructed, ok := t.translateOne(ctx, article)
		if !ok {
			summary.Dropped++
			lgr.Printf("[WARN] dropped untranslatable article rank %d: %s", article.Rank, article.Article.Title)
			continue
		}
		if reconstructed {
			summary.Reconstructed++
		}
		summary.Translated++
		lines = append(lines, domain.TranslatedLine{Rank: article.Rank, Line: line})
	}

	return lines, summary
}

// translateOne returns the validated line, whether it was reconstructed, and
// whether anything usable came out at all.
func (t *Translator) translateOne(ctx context.Context, article domain.RankedArticle) (line string, reconstructed, ok bool) {
	resp, err := t.completer.Complete(ctx, t.buildPrompt(article), t.cfg.Temperature)
	if err != nil {
		lgr.Printf("[WARN] translation call failed for rank %d: %v", article.Rank, err)
		return "", false, false
	}

	if line, ok := extractLine(resp, article.Rank); ok {
		return line, false, true
	}

	lgr.Printf("[DEBUG] exact format not found for rank %d, reconstructing", article.Rank)
	if line, ok := reconstruct(resp, article); ok {
		return line, true, true
	}
	return "", false, false
}

// buildPrompt renders the localization prompt for one article
func (t *Translator) buildPrompt(a domain.RankedArticle) string {
	tickers := strings.Join(a.Analysis.Tickers, ", ")
	if tickers == "" {
		tickers = "N/A"
	}

	var sb strings.Builder
	sb.WriteString("Persona: US Stock Market Screener reporting to Thai investors.\n\n")
	sb.WriteString("Translate this news analysis to Thai following the exact format:\n\n")
	sb.WriteString("ARTICLE TO TRANSLATE:\n")
	fmt.Fprintf(&sb, "Rank: %d\n", a.Rank)
	fmt.Fprintf(&sb, "Headline: %s\n", a.Article.Title)
	fmt.Fprintf(&sb, "Tickers: %s\n", tickers)
	fmt.Fprintf(&sb, "Impact Score: %d/10\n", a.Analysis.ImpactScore)
	fmt.Fprintf(&sb, "Price Impact: %s\n", a.Analysis.PriceImpact)
	fmt.Fprintf(&sb, "Source: %s\n", a.Article.Source)

	sb.WriteString("\nOUTPUT FORMAT REQUIRED:\n")
	sb.WriteString("[Rank.] | \"English Headline\" | Thai News Summary | Stock(s)/Ticker(s) | News Source | Price Impact | Impact Score\n\n")
	sb.WriteString("Example:\n")
	sb.WriteString(`[1.] | "Microsoft announces $10B investment in OpenAI, expanding Azure AI integration" | ข่าวนี้สะท้อนการเร่งลงทุนใน AI ของ MSFT ทำให้มี Upside ต่อรายได้ Cloud และ AI services | MSFT | Bloomberg | Positive price impact | 9/10`)
	sb.WriteString("\n\nReturn ONLY the formatted line in Thai following the exact format.")

	return sb.String()
}

// extractLine scans the response for a line matching the expected rank marker
// with seven pipe-delimited fields and a Thai summary field.
func extractLine(response string, rank int) (string, bool) {
	marker := fmt.Sprintf("[%d.]", rank)

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, marker) || !strings.Contains(line, "|") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 7 {
			continue
		}

		if containsThai(strings.TrimSpace(parts[2])) {
			return line, true
		}
		lgr.Printf("[DEBUG] summary field has no thai characters: %s", truncate(parts[2], 50))
	}

	return "", false
}

// reconstruct builds a reduced-fidelity line from whatever fragments are
// extractable: the quoted headline and any Thai tokens in the response.
func reconstruct(response string, article domain.RankedArticle) (string, bool) {
	title := quotedSpan(response)
	if title == "" {
		title = fmt.Sprintf("%q", article.Article.Title)
	}

	var thaiTokens []string
	for _, word := range strings.Fields(response) {
		if containsThai(word) {
			thaiTokens = append(thaiTokens, word)
			if len(thaiTokens) == 10 {
				break
			}
		}
	}
	if len(thaiTokens) == 0 {
		return "", false
	}

	tickers := strings.Join(article.Analysis.Tickers, ", ")
	if tickers == "" {
		tickers = "Various"
	}

	line := fmt.Sprintf("[%d.] | %s | %s | %s | %s | %s price impact | %d/10",
		article.Rank, title, strings.Join(thaiTokens, " "), tickers,
		article.Article.Source, article.Analysis.PriceImpact, article.Analysis.ImpactScore)
	return line, true
}

// quotedSpan returns the first double-quoted span in s, quotes included
func quotedSpan(s string) string {
	start := strings.Index(s, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(s[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return s[start : start+end+2]
}

// containsThai reports whether the text has at least one Thai script rune
func containsThai(text string) bool {
	for _, r := range text {
		if r >= 0x0E01 && r <= 0x0E5B {
			return true
		}
	}
	return false
}

// FormatBulletin assembles the final message: header with count, ordered
// lines, and a methodology footer. An empty line list yields the fixed
// "no significant news" message.
func (t *Translator) FormatBulletin(lines []domain.TranslatedLine) string {
	if len(lines) == 0 {
		return noNewsMessage
	}

	var sb strings.Builder
	sb.WriteString("📈 **ข่าวหุ้น US สำคัญล่าสุด**\n")
	fmt.Fprintf(&sb, "📊 **Top %d ข่าวที่มีผลกระทบสูงสุด**\n", len(lines))
	fmt.Fprintf(&sb, "⏰ **อัพเดท %s**\n\n", t.now().Format("02/01 15:04"))

	for i, line := range lines {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line.Line)
	}

	sb.WriteString("\n\n---\n")
	sb.WriteString("💡 *สรุปโดย AI วิเคราะห์จากแหล่งข่าวที่เชื่อถือได้*\n")
	sb.WriteString("📊 *Impact Score 1-10 (10 = ผลกระทบสูงสุด)*")

	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
