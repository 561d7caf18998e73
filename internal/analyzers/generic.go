package analyzers

import "strings"

// GenericHandler is the fallback for analyzers without a dedicated
// handler. It probes the common field names seen across engines and
// normalizes them heuristically.
type GenericHandler struct{}

func (h *GenericHandler) DisplayName() string { return "Generic Analyzer" }
func (h *GenericHandler) Priority() int       { return 10 }

func (h *GenericHandler) ExtractStats(report Report) map[string]any {
	stats := map[string]any{}
	for _, key := range []string{"malicious", "score", "verdict", "detected", "threat_level_id"} {
		if v, ok := report[key]; ok {
			stats[key] = v
		}
	}
	return stats
}

func (h *GenericHandler) Summarize(report Report) Summary {
	score := h.RiskScore(report)
	verdict := VerdictUnknown
	switch {
	case score >= maliciousThreshold:
		verdict = VerdictMalicious
	case score >= 30:
		verdict = VerdictSuspicious
	case len(h.ExtractStats(report)) > 0:
		verdict = VerdictClean
	}
	return Summary{
		Analyzer: h.DisplayName(),
		Type:     "generic",
		Verdict:  verdict,
		Stats:    h.ExtractStats(report),
	}
}

// RiskScore takes the strongest of the recognized signals.
func (h *GenericHandler) RiskScore(report Report) int {
	score := 0

	if v, ok := report["score"]; ok {
		if f, ok := asFloat(v); ok {
			s := int(f)
			// Some engines score 0..10, normalize to 0..100.
			if f <= 10 {
				s = int(f * 10)
			}
			score = max(score, clampScore(s))
		}
	}

	if v, ok := report["malicious"]; ok {
		switch m := v.(type) {
		case bool:
			if m {
				score = max(score, 75)
			}
		default:
			if f, ok := asFloat(m); ok && f > 0 {
				score = max(score, clampScore(30+int(f)*5))
			}
		}
	}

	if v, ok := report["verdict"].(string); ok {
		switch strings.ToLower(v) {
		case VerdictMalicious:
			score = max(score, 80)
		case VerdictSuspicious:
			score = max(score, 50)
		}
	}

	if v, ok := report["detected"].(bool); ok && v {
		score = max(score, 60)
	}

	// MISP-style threat levels: 1 is highest.
	if f, ok := digFloat(report, "threat_level_id"); ok {
		switch int(f) {
		case 1:
			score = max(score, 90)
		case 2:
			score = max(score, 70)
		case 3:
			score = max(score, 50)
		}
	}

	return score
}

func (h *GenericHandler) IsMalicious(report Report) bool {
	return h.RiskScore(report) >= maliciousThreshold
}
