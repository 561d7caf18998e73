package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/prompts"
)

// maxSummaryChars caps the description summary written into the case.
const maxSummaryChars = 1000

const analysisSectionOpen = "--- [SmartXDR AI Analysis"
const analysisSectionClose = "--- [/SmartXDR AI Analysis] ---"

// reAnalysisSection matches a previously written analysis section in an
// IOC description, so re-enrichment replaces instead of stacking.
var reAnalysisSection = regexp.MustCompile(`(?s)--- \[SmartXDR AI Analysis[^\]]*\] ---.*?--- \[/SmartXDR AI Analysis\] ---\n*`)

// Result is the outcome of one enrichment run.
type Result struct {
	Status             string   `json:"status"`
	Summary            string   `json:"summary,omitempty"`
	RiskLevel          string   `json:"risk_level,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
	DescriptionUpdated bool     `json:"description_updated"`
	DataSource         string   `json:"data_source,omitempty"`
}

// Orchestrator drives the enrichment flow: fetch report, explain,
// comment, and optionally rewrite the IOC description and tags.
type Orchestrator struct {
	adapter      CaseAdapter
	explainer    *Explainer
	client       *llm.Client
	prompts      *prompts.Builder
	summaryModel string
	logger       *slog.Logger
	now          func() time.Time
}

// NewOrchestrator creates an Orchestrator. summaryModel is the cheaper
// model used for description summarization.
func NewOrchestrator(adapter CaseAdapter, explainer *Explainer, client *llm.Client, builder *prompts.Builder, summaryModel string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapter:      adapter,
		explainer:    explainer,
		client:       client,
		prompts:      builder,
		summaryModel: summaryModel,
		logger:       logger,
		now:          time.Now,
	}
}

// EnrichIOC runs the full enrichment flow for one indicator.
func (o *Orchestrator) EnrichIOC(ctx context.Context, caseID, iocID string, updateDescription bool) (*Result, error) {
	report, err := o.adapter.FetchEnrichment(ctx, caseID, iocID)
	if err != nil {
		return nil, fmt.Errorf("fetching enrichment report: %w", err)
	}
	if report == nil {
		return &Result{Status: "no_report"}, nil
	}

	expl, err := o.explainer.Explain(ctx, report.RawData, report.IOCValue)
	if err != nil {
		return nil, fmt.Errorf("explaining ioc %s: %w", report.IOCValue, err)
	}

	comment := fmt.Sprintf("[SmartXDR AI Analysis | source: %s]\n\n%s", report.DataSource, expl.Analysis)
	if err := o.adapter.PostComment(ctx, caseID, iocID, comment); err != nil {
		return nil, fmt.Errorf("posting analysis comment: %w", err)
	}

	summary := expl.Analysis
	descriptionUpdated := false
	if updateDescription {
		summary, err = o.summarize(ctx, report.IOCValue, expl.Analysis)
		if err != nil {
			// The comment is already posted; a failed summary only
			// degrades the description update.
			o.logger.Warn("description summary failed, using full analysis", "error", err)
			summary = truncateText(expl.Analysis, maxSummaryChars)
		}
		if err := o.updateDescription(ctx, caseID, iocID, summary, expl.RiskLevel, report.DataSource); err != nil {
			return nil, fmt.Errorf("updating ioc description: %w", err)
		}
		descriptionUpdated = true
	}

	return &Result{
		Status:             "success",
		Summary:            summary,
		RiskLevel:          expl.RiskLevel,
		Recommendations:    Recommendations(expl.RiskLevel),
		DescriptionUpdated: descriptionUpdated,
		DataSource:         report.DataSource,
	}, nil
}

// summarize compresses the analysis with the cheaper summary model.
func (o *Orchestrator) summarize(ctx context.Context, iocValue, analysis string) (string, error) {
	system, user, err := o.prompts.Build(prompts.IOCSummary, map[string]string{
		"ioc":      iocValue,
		"analysis": analysis,
	})
	if err != nil {
		return "", err
	}
	resp, err := o.client.Chat(ctx, system, user, o.summaryModel, 400, 0.2)
	if err != nil {
		return "", err
	}
	return truncateText(resp.Content, maxSummaryChars), nil
}

// updateDescription rewrites the IOC description: any earlier analysis
// section is stripped, the fresh one is prepended, and the bookkeeping
// tags are merged in.
func (o *Orchestrator) updateDescription(ctx context.Context, caseID, iocID, summary, riskLevel, dataSource string) error {
	rec, err := o.adapter.GetIOC(ctx, caseID, iocID)
	if err != nil {
		return err
	}

	existing := reAnalysisSection.ReplaceAllString(rec.Description, "")
	existing = strings.TrimSpace(existing)

	section := fmt.Sprintf("%s - %s | Risk: %s] ---\n%s\n%s",
		analysisSectionOpen,
		o.now().Format("2006-01-02 15:04"),
		riskLevel,
		summary,
		analysisSectionClose,
	)

	description := section
	if existing != "" {
		description = section + "\n\n" + existing
	}

	tags := mergeTags(rec.Tags,
		"smartxdr-analyzed",
		"risk:"+strings.ToLower(riskLevel),
		"source:"+dataSource,
	)

	return o.adapter.UpdateIOC(ctx, caseID, iocID, description, tags)
}

// Recommendations returns the response actions templated per risk level.
func Recommendations(riskLevel string) []string {
	switch riskLevel {
	case "CRITICAL":
		return []string{
			"Block the indicator at the perimeter immediately",
			"Isolate hosts that communicated with the indicator",
			"Open an incident and begin forensic collection",
			"Notify the incident response lead",
		}
	case "HIGH":
		return []string{
			"Block the indicator at the perimeter",
			"Search historical logs for prior contact",
			"Review endpoints that resolved or connected to it",
		}
	case "MEDIUM":
		return []string{
			"Add the indicator to the watchlist",
			"Review recent traffic involving the indicator",
		}
	default:
		return []string{
			"No immediate action required; keep the indicator on record",
		}
	}
}

// mergeTags appends the extras that are not already present, preserving
// existing order. Risk tags from earlier runs are replaced.
func mergeTags(existing []string, extras ...string) []string {
	out := make([]string, 0, len(existing)+len(extras))
	seen := map[string]bool{}
	for _, t := range existing {
		// A re-run may change the risk level or source; drop stale ones.
		if strings.HasPrefix(t, "risk:") || strings.HasPrefix(t, "source:") {
			continue
		}
		if !seen[t] {
			out = append(out, t)
			seen[t] = true
		}
	}
	for _, t := range extras {
		if !seen[t] {
			out = append(out, t)
			seen[t] = true
		}
	}
	return out
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
