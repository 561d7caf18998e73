package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/smartxdr/core/internal/analyzers"
	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/prompts"
	"github.com/smartxdr/core/internal/rag"
)

// maxFindings caps the analyzer findings passed to the LLM.
const maxFindings = 15

// maxGuidanceChars caps the knowledge-base guidance injected into the
// enrichment prompt.
const maxGuidanceChars = 1500

// RiskLevel maps a 0-100 score to the four-level scale.
func RiskLevel(score int) string {
	switch {
	case score >= 80:
		return "CRITICAL"
	case score >= 60:
		return "HIGH"
	case score >= 30:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// ContextProvider supplies organization-specific guidance from the
// knowledge base. Satisfied by rag.Pipeline.
type ContextProvider interface {
	BuildContextFromQuery(ctx context.Context, text string, topK int, filters map[string]string, useReranking bool) (string, []rag.Source, error)
}

// Explanation is the LLM-backed interpretation of analyzer reports.
type Explanation struct {
	Analysis  string              `json:"analysis"`
	RiskScore int                 `json:"risk_score"`
	RiskLevel string              `json:"risk_level"`
	Findings  []analyzers.Summary `json:"findings"`
}

// Explainer reduces raw analyzer reports to findings and asks the LLM
// for an operator-facing explanation.
type Explainer struct {
	registry  *analyzers.Registry
	rag       ContextProvider
	client    *llm.Client
	prompts   *prompts.Builder
	chatModel string
	logger    *slog.Logger
}

// NewExplainer creates an Explainer. rag may be nil; guidance is then
// omitted from the prompt.
func NewExplainer(registry *analyzers.Registry, rag ContextProvider, client *llm.Client, builder *prompts.Builder, chatModel string, logger *slog.Logger) *Explainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explainer{
		registry:  registry,
		rag:       rag,
		client:    client,
		prompts:   builder,
		chatModel: chatModel,
		logger:    logger,
	}
}

// Explain interprets the raw analyzer data for one indicator.
func (e *Explainer) Explain(ctx context.Context, rawData map[string]any, iocValue string) (*Explanation, error) {
	findings, maxScore := e.collectFindings(rawData)
	level := RiskLevel(maxScore)
	iocType := Classify(iocValue)

	guidance := e.fetchGuidance(ctx, iocType, level)

	findingsJSON, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return nil, err
	}

	system, user, err := e.prompts.Build(prompts.IOCEnrichment, map[string]string{
		"ioc":        iocValue,
		"ioc_type":   iocType,
		"risk_level": level,
		"risk_score": fmt.Sprintf("%d", maxScore),
		"findings":   string(findingsJSON),
		"guidance":   guidance,
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Chat(ctx, system, user, e.chatModel, 1500, 0.3)
	if err != nil {
		return nil, err
	}

	return &Explanation{
		Analysis:  resp.Content,
		RiskScore: maxScore,
		RiskLevel: level,
		Findings:  findings,
	}, nil
}

// collectFindings walks the per-analyzer sub-reports, resolves handlers
// and gathers summaries sorted by handler priority (highest first,
// capped), plus the maximum risk score across sub-reports.
func (e *Explainer) collectFindings(rawData map[string]any) ([]analyzers.Summary, int) {
	type scored struct {
		summary  analyzers.Summary
		priority int
	}
	var all []scored
	maxScore := 0

	names := make([]string, 0, len(rawData))
	for name := range rawData {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		report, ok := subReport(rawData[name])
		if !ok {
			continue
		}
		handler, _ := e.registry.Lookup(name)
		if s := handler.RiskScore(report); s > maxScore {
			maxScore = s
		}
		all = append(all, scored{summary: handler.Summarize(report), priority: handler.Priority()})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].priority > all[j].priority })
	if len(all) > maxFindings {
		all = all[:maxFindings]
	}

	findings := make([]analyzers.Summary, len(all))
	for i, s := range all {
		findings[i] = s.summary
	}
	return findings, maxScore
}

// subReport unwraps one analyzer's entry: either a job envelope with a
// success flag and a nested report, or the report itself.
func subReport(v any) (analyzers.Report, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if success, ok := m["success"].(bool); ok && !success {
		return nil, false
	}
	for _, key := range []string{"report", "full_report", "results"} {
		if inner, ok := m[key].(map[string]any); ok {
			return inner, true
		}
	}
	return m, true
}

func (e *Explainer) fetchGuidance(ctx context.Context, iocType, level string) string {
	if e.rag == nil {
		return ""
	}
	query := fmt.Sprintf("incident response guidance for a %s risk malicious %s indicator", level, iocType)
	guidance, _, err := e.rag.BuildContextFromQuery(ctx, query, 3, nil, false)
	if err != nil {
		e.logger.Debug("guidance retrieval failed", "error", err)
		return ""
	}
	if len(guidance) > maxGuidanceChars {
		guidance = guidance[:maxGuidanceChars]
	}
	return guidance
}
