package enrich

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smartxdr/core/internal/analyzers"
	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/prompts"
)

func TestClassify(t *testing.T) {
	cases := []struct{ value, want string }{
		{"8.8.8.8", TypeIP},
		{"2001:db8::1", TypeIP},
		{"d41d8cd98f00b204e9800998ecf8427e", TypeHash},
		{"da39a3ee5e6b4b0d3255bfef95601890afd80709", TypeHash},
		{"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", TypeHash},
		{"evil.example.com", TypeDomain},
		{"example.co", TypeDomain},
		{"not a domain", TypeUnknown},
		{"300.400.500.600", TypeUnknown},
		{"", TypeUnknown},
		{"justaword", TypeUnknown},
		{"-bad-.example.com", TypeUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.value); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.value, got, c.want)
		}
	}
}

func TestRiskLevel(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{95, "CRITICAL"}, {80, "CRITICAL"}, {79, "HIGH"}, {60, "HIGH"},
		{59, "MEDIUM"}, {30, "MEDIUM"}, {29, "LOW"}, {0, "LOW"},
	}
	for _, c := range cases {
		if got := RiskLevel(c.score); got != c.want {
			t.Errorf("RiskLevel(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestMergeTags(t *testing.T) {
	got := mergeTags(
		[]string{"phishing", "risk:low", "source:fallback", "smartxdr-analyzed"},
		"smartxdr-analyzed", "risk:high", "source:primary",
	)
	want := []string{"phishing", "smartxdr-analyzed", "risk:high", "source:primary"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags = %v, want %v", got, want)
		}
	}
}

func TestAnalysisSectionStripped(t *testing.T) {
	old := "--- [SmartXDR AI Analysis - 2026-01-01 09:00 | Risk: LOW] ---\nold analysis\n--- [/SmartXDR AI Analysis] ---\n\nAnalyst notes stay."
	got := reAnalysisSection.ReplaceAllString(old, "")
	if strings.Contains(got, "old analysis") {
		t.Fatalf("old section not stripped: %q", got)
	}
	if !strings.Contains(got, "Analyst notes stay.") {
		t.Fatalf("analyst notes lost: %q", got)
	}
}

// fakeAdapter records orchestrator interactions.
type fakeAdapter struct {
	report      *EnrichmentReport
	record      IOCRecord
	comments    []string
	description string
	tags        []string
}

func (f *fakeAdapter) FetchEnrichment(context.Context, string, string) (*EnrichmentReport, error) {
	return f.report, nil
}

func (f *fakeAdapter) GetIOC(context.Context, string, string) (*IOCRecord, error) {
	rec := f.record
	return &rec, nil
}

func (f *fakeAdapter) PostComment(_ context.Context, _, _, comment string) error {
	f.comments = append(f.comments, comment)
	return nil
}

func (f *fakeAdapter) UpdateIOC(_ context.Context, _, _, description string, tags []string) error {
	f.description = description
	f.tags = tags
	return nil
}

type fakeProvider struct {
	replies []string
	calls   int
}

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return &llm.CompletionResponse{Content: reply, Model: req.Model}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func testOrchestrator(adapter *fakeAdapter, provider *fakeProvider) *Orchestrator {
	client := llm.NewClient(provider)
	builder := prompts.NewBuilder("")
	explainer := NewExplainer(analyzers.NewDefaultRegistry(), nil, client, builder, "gpt-4o", nil)
	o := NewOrchestrator(adapter, explainer, client, builder, "gpt-4o-mini", nil)
	o.now = func() time.Time { return time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC) }
	return o
}

func maliciousReport() *EnrichmentReport {
	return &EnrichmentReport{
		IOCValue:   "45.77.10.20",
		IOCType:    "ip",
		DataSource: "primary",
		RawData: map[string]any{
			"VirusTotal_GetReport_3_1": map[string]any{
				"success": true,
				"report":  map[string]any{"positives": float64(22), "total": float64(70)},
			},
			"MISP_2_1": map[string]any{
				"success": true,
				"report": map[string]any{
					"response": []any{
						map[string]any{"Event": map[string]any{"info": "botnet C2", "threat_level_id": "1"}},
					},
				},
			},
		},
	}
}

func TestEnrichIOCNoReport(t *testing.T) {
	o := testOrchestrator(&fakeAdapter{}, &fakeProvider{replies: []string{"unused"}})
	res, err := o.EnrichIOC(context.Background(), "case-1", "ioc-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "no_report" {
		t.Fatalf("status = %s, want no_report", res.Status)
	}
}

func TestEnrichIOCFullFlow(t *testing.T) {
	adapter := &fakeAdapter{
		report: maliciousReport(),
		record: IOCRecord{
			Description: "--- [SmartXDR AI Analysis - 2026-01-01 00:00 | Risk: LOW] ---\nstale\n--- [/SmartXDR AI Analysis] ---\n\nSeen in ticket #42.",
			Tags:        []string{"c2", "risk:low"},
		},
	}
	provider := &fakeProvider{replies: []string{"This IP is a known botnet C2.", "Short summary of the C2 verdict."}}
	o := testOrchestrator(adapter, provider)

	res, err := o.EnrichIOC(context.Background(), "case-1", "ioc-1", true)
	if err != nil {
		t.Fatal(err)
	}

	if res.Status != "success" {
		t.Fatalf("status = %s", res.Status)
	}
	// 22 VirusTotal positives and a level-1 MISP event both score >= 80.
	if res.RiskLevel != "CRITICAL" {
		t.Fatalf("risk level = %s, want CRITICAL", res.RiskLevel)
	}
	if res.DataSource != "primary" {
		t.Fatalf("data source = %s", res.DataSource)
	}
	if !res.DescriptionUpdated {
		t.Fatal("description should be updated")
	}
	if len(res.Recommendations) == 0 || !strings.Contains(res.Recommendations[0], "Block") {
		t.Fatalf("recommendations = %v", res.Recommendations)
	}

	if len(adapter.comments) != 1 {
		t.Fatalf("comments posted = %d, want 1", len(adapter.comments))
	}
	if !strings.HasPrefix(adapter.comments[0], "[SmartXDR AI Analysis | source: primary]") {
		t.Fatalf("comment missing source label: %q", adapter.comments[0])
	}

	if strings.Contains(adapter.description, "stale") {
		t.Fatal("stale analysis section must be stripped")
	}
	if !strings.Contains(adapter.description, "Seen in ticket #42.") {
		t.Fatal("analyst notes must survive the rewrite")
	}
	if !strings.HasPrefix(adapter.description, "--- [SmartXDR AI Analysis - 2026-08-26 10:30 | Risk: CRITICAL] ---") {
		t.Fatalf("new section header wrong: %q", adapter.description)
	}
	if !strings.Contains(adapter.description, "Short summary of the C2 verdict.") {
		t.Fatal("summary missing from description")
	}

	for _, want := range []string{"c2", "smartxdr-analyzed", "risk:critical", "source:primary"} {
		found := false
		for _, tag := range adapter.tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("tag %q missing from %v", want, adapter.tags)
		}
	}
	for _, tag := range adapter.tags {
		if tag == "risk:low" {
			t.Fatal("stale risk tag must be replaced")
		}
	}
}

func TestEnrichIOCCommentOnly(t *testing.T) {
	adapter := &fakeAdapter{report: maliciousReport()}
	provider := &fakeProvider{replies: []string{"analysis text"}}
	o := testOrchestrator(adapter, provider)

	res, err := o.EnrichIOC(context.Background(), "case-1", "ioc-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.DescriptionUpdated {
		t.Fatal("description must not be touched when update_description=false")
	}
	if adapter.description != "" {
		t.Fatal("UpdateIOC must not be called")
	}
	if res.Summary != "analysis text" {
		t.Fatalf("summary = %q, want full analysis", res.Summary)
	}
}

func TestExplainerFindingsOrderAndCap(t *testing.T) {
	client := llm.NewClient(&fakeProvider{replies: []string{"ok"}})
	e := NewExplainer(analyzers.NewDefaultRegistry(), nil, client, prompts.NewBuilder(""), "gpt-4o", nil)

	raw := map[string]any{
		"SomeOtherEngine": map[string]any{"verdict": "suspicious"},
		"MISP_2_1": map[string]any{
			"response": []any{map[string]any{"Event": map[string]any{"threat_level_id": float64(2)}}},
		},
		"VirusTotal_GetReport_3_1": map[string]any{"positives": float64(5), "total": float64(70)},
		"FailedJob":                map[string]any{"success": false, "report": map[string]any{"positives": float64(60)}},
	}

	expl, err := e.Explain(context.Background(), raw, "evil.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(expl.Findings) != 3 {
		t.Fatalf("findings = %d, want 3 (failed job excluded)", len(expl.Findings))
	}
	if expl.Findings[0].Analyzer != "VirusTotal" {
		t.Fatalf("first finding = %s, want VirusTotal (priority 100)", expl.Findings[0].Analyzer)
	}
	if expl.Findings[1].Analyzer != "MISP" {
		t.Fatalf("second finding = %s, want MISP (priority 90)", expl.Findings[1].Analyzer)
	}
	if expl.Findings[2].Analyzer != "Generic Analyzer" {
		t.Fatalf("third finding = %s", expl.Findings[2].Analyzer)
	}
	// MISP level-2 event: 70 + 10 = 80 dominates VirusTotal's 66.
	if expl.RiskScore != 80 {
		t.Fatalf("risk score = %d, want 80", expl.RiskScore)
	}
	if expl.RiskLevel != "CRITICAL" {
		t.Fatalf("risk level = %s", expl.RiskLevel)
	}
}
