// Package alerts summarizes ML-classified security alerts from the log
// store into risk-scored situation reports.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smartxdr/core/internal/config"
	"github.com/smartxdr/core/internal/prompts"
	"github.com/smartxdr/core/internal/rag"
)

// AIAnalyzer produces the optional LLM assessment. Satisfied by
// rag.Pipeline; nil disables AI analysis.
type AIAnalyzer interface {
	Query(ctx context.Context, text string, topK int, filters map[string]string, sessionID string) (*rag.Result, error)
}

// Result is the outcome of one summarization window.
type Result struct {
	Success       bool      `json:"success"`
	Status        string    `json:"status,omitempty"`
	Count         int       `json:"count"`
	Groups        []Group   `json:"grouped_alerts,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	RiskScore     float64   `json:"risk_score"`
	Visualization string    `json:"visualization,omitempty"`
	AIAnalysis    string    `json:"ai_analysis,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Summarizer runs the alert triage flow.
type Summarizer struct {
	store   LogStore
	ai      AIAnalyzer
	prompts *prompts.Builder
	cfg     config.AlertsConfig
	logger  *slog.Logger
	now     func() time.Time

	// charts is swappable for tests; defaults to renderCharts.
	charts func([]Group) (string, error)
}

// NewSummarizer creates a Summarizer. ai may be nil.
func NewSummarizer(store LogStore, ai AIAnalyzer, builder *prompts.Builder, cfg config.AlertsConfig, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		store:   store,
		ai:      ai,
		prompts: builder,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		charts:  renderCharts,
	}
}

// Summarize fetches, filters, groups, scores and reports on the alert
// window. Zero arguments fall back to the configured defaults; the AI
// assessment runs only when requested and an analyzer is wired.
func (s *Summarizer) Summarize(ctx context.Context, windowMinutes int, sourceIP, indexPattern string, includeAI bool) (*Result, error) {
	if windowMinutes <= 0 {
		windowMinutes = s.cfg.TimeWindowMinutes
	}
	if indexPattern == "" {
		indexPattern = s.cfg.IndexPattern
	}

	to := s.now()
	from := to.Add(-time.Duration(windowMinutes) * time.Minute)

	records, err := s.store.Search(ctx, SearchQuery{
		IndexPattern: indexPattern,
		From:         from,
		To:           to,
		SourceIP:     sourceIP,
		SourceTypes:  s.cfg.SourceTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("searching alerts: %w", err)
	}

	records = filterRecords(records, s.cfg.MinProbability, s.cfg.WhitelistIPs)
	if len(records) == 0 {
		return &Result{
			Success:   true,
			Status:    "no_alerts",
			Count:     0,
			Timestamp: to,
		}, nil
	}

	groups := groupRecords(records)
	score := RiskScore(groups)
	summary := buildSummary(groups, score, windowMinutes)

	result := &Result{
		Success:   true,
		Status:    "ok",
		Count:     len(records),
		Groups:    groups,
		Summary:   summary,
		RiskScore: score,
		Timestamp: to,
	}

	if s.cfg.ChartsEnabled {
		viz, err := s.charts(groups)
		if err != nil {
			s.logger.Warn("chart rendering failed", "error", err)
		} else {
			result.Visualization = viz
		}
	}

	if includeAI && s.ai != nil {
		analysis, err := s.aiAnalysis(ctx, groups, summary)
		if err != nil {
			s.logger.Warn("ai analysis failed", "error", err)
		} else {
			result.AIAnalysis = analysis
		}
	}

	return result, nil
}

// aiAnalysis asks the RAG pipeline for an assessment of the window.
func (s *Summarizer) aiAnalysis(ctx context.Context, groups []Group, summary string) (string, error) {
	var compact strings.Builder
	for i, g := range groups {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&compact, "%s: %s/%s x%d (confidence %.0f%%)\n",
			g.SourceIP, g.Pattern, g.Severity, g.AlertCount, g.AvgProbability*100)
	}

	_, user, err := s.prompts.Build(prompts.AlertAIAnalysis, map[string]string{
		"summary": summary,
		"context": compact.String(),
	})
	if err != nil {
		return "", err
	}

	res, err := s.ai.Query(ctx, user, 3, nil, "")
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}
