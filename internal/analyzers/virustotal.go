package analyzers

// VirusTotalHandler reads both the v2 report shape (positives/total)
// and the v3 shape (data.attributes.last_analysis_stats).
type VirusTotalHandler struct{}

func (h *VirusTotalHandler) DisplayName() string { return "VirusTotal" }
func (h *VirusTotalHandler) Priority() int       { return 100 }

// detections returns (positives, total, found).
func (h *VirusTotalHandler) detections(report Report) (int, int, bool) {
	// v3: data.attributes.last_analysis_stats or a bare last_analysis_stats.
	for _, path := range [][]string{
		{"data", "attributes", "last_analysis_stats"},
		{"last_analysis_stats"},
	} {
		stats, ok := dig(report, path...)
		if !ok {
			continue
		}
		m, ok := stats.(map[string]any)
		if !ok {
			continue
		}
		malicious, _ := asFloat(m["malicious"])
		suspicious, _ := asFloat(m["suspicious"])
		harmless, _ := asFloat(m["harmless"])
		undetected, _ := asFloat(m["undetected"])
		total := malicious + suspicious + harmless + undetected
		return int(malicious + suspicious), int(total), true
	}

	// v2: positives/total.
	if positives, ok := digFloat(report, "positives"); ok {
		total, _ := digFloat(report, "total")
		return int(positives), int(total), true
	}

	return 0, 0, false
}

func (h *VirusTotalHandler) ExtractStats(report Report) map[string]any {
	positives, total, found := h.detections(report)
	if !found {
		return map[string]any{}
	}
	stats := map[string]any{
		"positives": positives,
		"total":     total,
	}
	if permalink, ok := dig(report, "permalink"); ok {
		stats["permalink"] = permalink
	}
	if rep, ok := digFloat(report, "data", "attributes", "reputation"); ok {
		stats["reputation"] = int(rep)
	}
	return stats
}

func (h *VirusTotalHandler) Summarize(report Report) Summary {
	positives, _, found := h.detections(report)
	verdict := VerdictUnknown
	if found {
		switch {
		case positives == 0:
			verdict = VerdictClean
		case positives <= 3:
			verdict = VerdictSuspicious
		default:
			verdict = VerdictMalicious
		}
	}
	return Summary{
		Analyzer: h.DisplayName(),
		Type:     "antivirus_aggregate",
		Verdict:  verdict,
		Stats:    h.ExtractStats(report),
	}
}

// RiskScore bands detection counts: no detections 0, a few engines
// 30-60, a moderate consensus 60-80, broad consensus 80-100.
func (h *VirusTotalHandler) RiskScore(report Report) int {
	positives, _, found := h.detections(report)
	if !found || positives == 0 {
		return 0
	}
	switch {
	case positives <= 3:
		return clampScore(30 + positives*10) // 40, 50, 60
	case positives <= 10:
		return clampScore(60 + (positives-3)*3) // 63 .. 81
	default:
		return clampScore(80 + (positives - 10)) // 81 .. 100
	}
}

func (h *VirusTotalHandler) IsMalicious(report Report) bool {
	return h.RiskScore(report) >= maliciousThreshold
}
