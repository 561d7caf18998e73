package analyzers

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) Report {
	t.Helper()
	var m Report
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRegistryLookup(t *testing.T) {
	r := NewDefaultRegistry()

	h, ok := r.Lookup("virustotal")
	if !ok || h.DisplayName() != "VirusTotal" {
		t.Fatalf("exact lookup failed: %v %v", h, ok)
	}

	// Substring match in both directions.
	if h, ok := r.Lookup("VirusTotal_GetReport_3_1"); !ok || h.DisplayName() != "VirusTotal" {
		t.Fatal("job-style analyzer name should resolve by substring")
	}
	if h, ok := r.Lookup("MISP_2_1"); !ok || h.DisplayName() != "MISP" {
		t.Fatal("MISP job name should resolve by substring")
	}

	// Unknown names fall back to the generic handler.
	h, ok = r.Lookup("SomeObscureEngine")
	if ok {
		t.Fatal("unknown analyzer should report fallback")
	}
	if h.DisplayName() != "Generic Analyzer" {
		t.Fatalf("fallback = %s", h.DisplayName())
	}
	if h, _ := r.Lookup(""); h.DisplayName() != "Generic Analyzer" {
		t.Fatal("empty name must use the fallback")
	}
}

func TestRegistryPriorities(t *testing.T) {
	r := NewDefaultRegistry()
	vt, _ := r.Lookup("virustotal")
	misp, _ := r.Lookup("misp")
	gen, _ := r.Lookup("unknown")
	if vt.Priority() != 100 || misp.Priority() != 90 || gen.Priority() != 10 {
		t.Fatalf("priorities = %d %d %d", vt.Priority(), misp.Priority(), gen.Priority())
	}
}

func TestVirusTotalV2(t *testing.T) {
	h := &VirusTotalHandler{}

	clean := decode(t, `{"positives": 0, "total": 70}`)
	if got := h.RiskScore(clean); got != 0 {
		t.Fatalf("clean v2 score = %d, want 0", got)
	}
	if h.IsMalicious(clean) {
		t.Fatal("zero positives is not malicious")
	}

	low := decode(t, `{"positives": 2, "total": 70}`)
	if got := h.RiskScore(low); got < 30 || got > 60 {
		t.Fatalf("2 positives score = %d, want 30-60 band", got)
	}
	if s := h.Summarize(low); s.Verdict != VerdictSuspicious {
		t.Fatalf("verdict = %s, want suspicious", s.Verdict)
	}

	mid := decode(t, `{"positives": 8, "total": 70}`)
	if got := h.RiskScore(mid); got < 60 || got > 80 {
		t.Fatalf("8 positives score = %d, want 60-80 band", got)
	}

	high := decode(t, `{"positives": 45, "total": 70}`)
	if got := h.RiskScore(high); got < 80 || got > 100 {
		t.Fatalf("45 positives score = %d, want 80-100 band", got)
	}
	if !h.IsMalicious(high) {
		t.Fatal("broad consensus must be malicious")
	}
}

func TestVirusTotalV3(t *testing.T) {
	h := &VirusTotalHandler{}
	report := decode(t, `{
		"data": {"attributes": {
			"last_analysis_stats": {"malicious": 12, "suspicious": 2, "harmless": 50, "undetected": 6},
			"reputation": -40
		}}
	}`)

	stats := h.ExtractStats(report)
	if stats["positives"] != 14 {
		t.Fatalf("positives = %v, want 14", stats["positives"])
	}
	if stats["total"] != 70 {
		t.Fatalf("total = %v, want 70", stats["total"])
	}
	if stats["reputation"] != -40 {
		t.Fatalf("reputation = %v", stats["reputation"])
	}

	if got := h.RiskScore(report); got < 80 {
		t.Fatalf("14 positives score = %d, want >= 80", got)
	}
	if s := h.Summarize(report); s.Verdict != VerdictMalicious {
		t.Fatalf("verdict = %s", s.Verdict)
	}
}

func TestVirusTotalNoData(t *testing.T) {
	h := &VirusTotalHandler{}
	report := decode(t, `{"message": "not found"}`)
	if got := h.RiskScore(report); got != 0 {
		t.Fatalf("score without detections = %d", got)
	}
	if s := h.Summarize(report); s.Verdict != VerdictUnknown {
		t.Fatalf("verdict = %s, want unknown", s.Verdict)
	}
}

func TestMISPBaseline(t *testing.T) {
	h := &MISPHandler{}

	empty := decode(t, `{"response": []}`)
	if got := h.RiskScore(empty); got != 0 {
		t.Fatalf("no events score = %d", got)
	}
	if s := h.Summarize(empty); s.Verdict != VerdictClean {
		t.Fatalf("verdict = %s", s.Verdict)
	}

	one := decode(t, `{"response": [{"Event": {"info": "Emotet drop", "threat_level_id": "3"}}]}`)
	if got := h.RiskScore(one); got != 70 {
		t.Fatalf("single low-level event score = %d, want 70 baseline", got)
	}
	if !h.IsMalicious(one) {
		t.Fatal("any MISP sighting is malicious")
	}
}

func TestMISPThreatLevelBump(t *testing.T) {
	h := &MISPHandler{}

	high := decode(t, `{"response": [
		{"Event": {"info": "APT infra", "threat_level_id": "1"}},
		{"Event": {"info": "Related event", "threat_level_id": "3"}}
	]}`)
	// 70 baseline + 20 (level 1) + 2 (one extra event) = 92.
	if got := h.RiskScore(high); got != 92 {
		t.Fatalf("score = %d, want 92", got)
	}

	stats := h.ExtractStats(high)
	if stats["event_count"] != 2 {
		t.Fatalf("event_count = %v", stats["event_count"])
	}
	if stats["lowest_threat_level"] != 1 {
		t.Fatalf("lowest_threat_level = %v", stats["lowest_threat_level"])
	}
}

func TestGenericHandlerSignals(t *testing.T) {
	h := &GenericHandler{}
	cases := []struct {
		raw       string
		min, max  int
		malicious bool
	}{
		{`{"malicious": true}`, 75, 75, true},
		{`{"score": 85}`, 85, 85, true},
		{`{"score": 8.5}`, 85, 85, true},
		{`{"verdict": "malicious"}`, 80, 80, true},
		{`{"verdict": "suspicious"}`, 50, 50, true},
		{`{"detected": true}`, 60, 60, true},
		{`{"threat_level_id": 1}`, 90, 90, true},
		{`{"threat_level_id": 3}`, 50, 50, true},
		{`{"irrelevant": "data"}`, 0, 0, false},
	}
	for _, c := range cases {
		report := decode(t, c.raw)
		got := h.RiskScore(report)
		if got < c.min || got > c.max {
			t.Errorf("RiskScore(%s) = %d, want [%d,%d]", c.raw, got, c.min, c.max)
		}
		if h.IsMalicious(report) != c.malicious {
			t.Errorf("IsMalicious(%s) = %v, want %v", c.raw, !c.malicious, c.malicious)
		}
	}
}

func TestGenericTakesStrongestSignal(t *testing.T) {
	h := &GenericHandler{}
	report := decode(t, `{"score": 20, "verdict": "malicious", "detected": false}`)
	if got := h.RiskScore(report); got != 80 {
		t.Fatalf("score = %d, want strongest signal 80", got)
	}
}
