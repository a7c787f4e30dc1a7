package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/internal/stringutils"
	"github.com/samber/lo"
)

const (
	promptHeader  = "## Retrieved Context (from memory)\n\n"
	debugRule     = "=================================================="
	debugNoneLine = "  (none)"
)

// ScoredItem is a retrieved item with its similarity in [0, 1].
type ScoredItem struct {
	ID       string
	Text     string
	Metadata map[string]any
	Score    float64
}

func (i ScoredItem) meta(key, fallback string) string {
	if v, ok := i.Metadata[key]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return fallback
}

type RetrievalResult struct {
	SchemaItems      []ScoredItem
	QueryItems       []ScoredItem
	ObservationItems []ScoredItem
}

func (r *RetrievalResult) Total() int {
	return len(r.SchemaItems) + len(r.QueryItems) + len(r.ObservationItems)
}

func (r *RetrievalResult) Empty() bool {
	return r.Total() == 0
}

func bestScore(items []ScoredItem) float64 {
	if len(items) == 0 {
		return 0
	}
	return items[0].Score
}

// Summary is a one-line description for logs.
func (r *RetrievalResult) Summary() string {
	var parts []string
	if len(r.SchemaItems) > 0 {
		parts = append(parts, fmt.Sprintf("%d schema (best: %.2f)", len(r.SchemaItems), bestScore(r.SchemaItems)))
	}
	if len(r.QueryItems) > 0 {
		parts = append(parts, fmt.Sprintf("%d queries (best: %.2f)", len(r.QueryItems), bestScore(r.QueryItems)))
	}
	if len(r.ObservationItems) > 0 {
		parts = append(parts, fmt.Sprintf("%d obs", len(r.ObservationItems)))
	}
	if len(parts) == 0 {
		return "no matches"
	}
	return strings.Join(parts, ", ")
}

// Retriever turns a question into a prompt-ready block of remembered context.
type Retriever struct {
	service *Service
	conf    config.RetrievalConfig
	logger  *slog.Logger
}

type RetrieverOption func(*Retriever)

func WithRetrieverLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

func NewRetriever(service *Service, conf config.RetrievalConfig, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		service: service,
		conf:    conf,
		logger:  mylog.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retriever) Service() *Service {
	return r.service
}

func (r *Retriever) score(distance float64) float64 {
	return max(0, 1-distance/r.conf.DistanceScale)
}

func (r *Retriever) RetrieveWithScores(ctx context.Context, question string) (*RetrievalResult, error) {
	hits, err := r.service.SearchAll(ctx, question, map[Collection]int{
		CollectionSchema:       r.conf.SchemaLimit,
		CollectionQueries:      r.conf.QueryLimit,
		CollectionObservations: r.conf.ObservationLimit,
	})
	if err != nil {
		return nil, err
	}

	toScored := func(h Hit, _ int) ScoredItem {
		return ScoredItem{ID: h.ID, Text: h.Text, Metadata: h.Metadata, Score: r.score(h.Distance)}
	}
	result := &RetrievalResult{
		SchemaItems:      lo.Map(hits[CollectionSchema], toScored),
		QueryItems:       lo.Map(hits[CollectionQueries], toScored),
		ObservationItems: lo.Map(hits[CollectionObservations], toScored),
	}
	r.logger.Debug("retrieved context", "question", question, "summary", result.Summary())
	return result, nil
}

// Retrieve returns the formatted context for question, or "" when nothing matches.
func (r *Retriever) Retrieve(ctx context.Context, question string) (string, error) {
	result, err := r.RetrieveWithScores(ctx, question)
	if err != nil {
		return "", err
	}
	return r.FormatForPrompt(result), nil
}

func (r *Retriever) FormatForPrompt(result *RetrievalResult) string {
	var sections []string
	if s := r.formatSchema(result.SchemaItems); s != "" {
		sections = append(sections, s)
	}
	if s := r.formatQueries(result.QueryItems); s != "" {
		sections = append(sections, s)
	}
	if s := r.formatObservations(result.ObservationItems); s != "" {
		sections = append(sections, s)
	}
	if len(sections) == 0 {
		return ""
	}
	return promptHeader + strings.Join(sections, "\n\n")
}

// withinBudget keeps entries in order until the next one, with its joining
// newline, would exceed maxChars.
func withinBudget(entries []string, maxChars int) []string {
	total := 0
	for i, e := range entries {
		n := stringutils.RuneLen(e)
		if i > 0 {
			n++
		}
		if total+n > maxChars {
			return entries[:i]
		}
		total += n
	}
	return entries
}

// section renders title and entries; the whole section, title included, fits the budget.
func (r *Retriever) section(title string, entries []string, budgetTokens int) string {
	maxChars := budgetTokens*r.conf.CharsPerToken - stringutils.RuneLen(title) - 1
	entries = withinBudget(entries, maxChars)
	if len(entries) == 0 {
		return ""
	}
	return title + "\n" + strings.Join(entries, "\n")
}

func (r *Retriever) formatSchema(items []ScoredItem) string {
	var entries []string
	for _, it := range items {
		switch it.meta("type", "") {
		case TypeTable:
			cols := strings.ReplaceAll(it.meta("column_names", ""), ",", ", ")
			entries = append(entries, fmt.Sprintf("- **%s**: %s", it.meta("table_name", "?"), cols))
		case TypeColumn:
			entries = append(entries, fmt.Sprintf("- %s.%s (%s)", it.meta("table_name", "?"), it.meta("column_name", "?"), it.meta("column_type", "?")))
		}
	}
	return r.section("### Relevant Schema", entries, r.conf.SchemaTokenBudget)
}

func (r *Retriever) formatQueries(items []ScoredItem) string {
	var entries []string
	for _, it := range items {
		question, sql := it.meta("question", ""), it.meta("sql", "")
		if question == "" || sql == "" {
			continue
		}
		lines := []string{"**Q:** " + question, "```sql\n" + sql + "\n```"}
		if summary := it.meta("result_summary", ""); summary != "" {
			lines = append(lines, "*Result: "+stringutils.Prefix(summary, r.conf.ResultSummaryChars)+"*")
		}
		lines = append(lines, "")
		entries = append(entries, strings.Join(lines, "\n"))
	}
	return r.section("### Similar Past Queries", entries, r.conf.QueryTokenBudget)
}

func (r *Retriever) formatObservations(items []ScoredItem) string {
	var entries []string
	for _, it := range items {
		if it.Text == "" {
			continue
		}
		limit := r.conf.ObservationMaxChars
		entries = append(entries, "- "+stringutils.Ellipsis(it.Text, limit, limit-3))
	}
	return r.section("### Related Insights", entries, r.conf.ObservationTokenBudget)
}

// FormatDebug renders every retrieved item with its score.
func (r *Retriever) FormatDebug(result *RetrievalResult) string {
	lines := []string{"RAG Retrieval Results:", debugRule}

	lines = append(lines, "\nSchema matches:")
	for _, it := range result.SchemaItems {
		if it.meta("type", "") == TypeTable {
			cols := stringutils.Prefix(strings.ReplaceAll(it.meta("column_names", ""), ",", ", "), 50)
			lines = append(lines, fmt.Sprintf("  %.2f  %s (%s)", it.Score, it.meta("table_name", "?"), cols))
		} else {
			lines = append(lines, fmt.Sprintf("  %.2f  %s.%s", it.Score, it.meta("table_name", "?"), it.meta("column_name", "?")))
		}
	}
	if len(result.SchemaItems) == 0 {
		lines = append(lines, debugNoneLine)
	}

	lines = append(lines, "\nSimilar past queries:")
	for _, it := range result.QueryItems {
		lines = append(lines,
			fmt.Sprintf("  %.2f  \"%s\"", it.Score, stringutils.Prefix(it.meta("question", "?"), 40)),
			"        -> "+stringutils.Prefix(it.meta("sql", ""), 50),
		)
	}
	if len(result.QueryItems) == 0 {
		lines = append(lines, debugNoneLine)
	}

	lines = append(lines, "\nRelevant observations:")
	for _, it := range result.ObservationItems {
		lines = append(lines, fmt.Sprintf("  %.2f  \"%s\"", it.Score, stringutils.Prefix(it.Text, 60)))
	}
	if len(result.ObservationItems) == 0 {
		lines = append(lines, debugNoneLine)
	}

	lines = append(lines, debugRule)
	return strings.Join(lines, "\n")
}

// RetrieveTables returns the distinct table names relevant to question.
func (r *Retriever) RetrieveTables(ctx context.Context, question string) ([]string, error) {
	hits, err := r.service.Search(ctx, CollectionSchema, question, r.conf.SchemaLimit, nil)
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, h := range hits {
		if name, ok := h.Metadata["table_name"].(string); ok && name != "" {
			tables = append(tables, name)
		}
	}
	return lo.Uniq(tables), nil
}

func (r *Retriever) IndexSuccessfulQuery(ctx context.Context, question, sql, resultSummary, sessionID string) error {
	_, err := r.service.IndexQuery(ctx, question, sql, resultSummary, sessionID)
	return err
}

func (r *Retriever) IndexObservation(ctx context.Context, observation, topic, sessionID string) error {
	_, err := r.service.IndexObservation(ctx, observation, topic, sessionID)
	return err
}
