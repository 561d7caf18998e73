package analyzers

// MISPHandler reads MISP search results: a list of events, each with a
// threat_level_id where 1 is the highest severity.
type MISPHandler struct{}

func (h *MISPHandler) DisplayName() string { return "MISP" }
func (h *MISPHandler) Priority() int       { return 90 }

// events extracts the event list from the common MISP response shapes.
func (h *MISPHandler) events(report Report) []map[string]any {
	for _, key := range []string{"response", "results", "events"} {
		raw, ok := report[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		var out []map[string]any
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			// Events may be wrapped in an "Event" envelope.
			if inner, ok := m["Event"].(map[string]any); ok {
				m = inner
			}
			out = append(out, m)
		}
		return out
	}
	return nil
}

// lowestThreatLevel returns the most severe threat_level_id present
// (lower is worse), or 0 when none is set.
func (h *MISPHandler) lowestThreatLevel(events []map[string]any) int {
	lowest := 0
	for _, ev := range events {
		f, ok := digFloat(ev, "threat_level_id")
		if !ok {
			continue
		}
		level := int(f)
		if level > 0 && (lowest == 0 || level < lowest) {
			lowest = level
		}
	}
	return lowest
}

func (h *MISPHandler) ExtractStats(report Report) map[string]any {
	events := h.events(report)
	stats := map[string]any{
		"event_count": len(events),
	}
	if level := h.lowestThreatLevel(events); level > 0 {
		stats["lowest_threat_level"] = level
	}
	var names []string
	for i, ev := range events {
		if i >= 3 {
			break
		}
		if info, ok := ev["info"].(string); ok && info != "" {
			names = append(names, info)
		}
	}
	if len(names) > 0 {
		stats["sample_events"] = names
	}
	return stats
}

func (h *MISPHandler) Summarize(report Report) Summary {
	events := h.events(report)
	verdict := VerdictClean
	if len(events) > 0 {
		verdict = VerdictMalicious
	}
	return Summary{
		Analyzer: h.DisplayName(),
		Type:     "threat_intel",
		Verdict:  verdict,
		Stats:    h.ExtractStats(report),
	}
}

// RiskScore starts at 70 for any sighting: presence in a curated threat
// feed is itself a strong signal. The most severe event threat level
// bumps it further, and every extra correlated event adds a little.
func (h *MISPHandler) RiskScore(report Report) int {
	events := h.events(report)
	if len(events) == 0 {
		return 0
	}

	score := 70
	switch h.lowestThreatLevel(events) {
	case 1:
		score += 20
	case 2:
		score += 10
	}
	score += (len(events) - 1) * 2

	return clampScore(score)
}

func (h *MISPHandler) IsMalicious(report Report) bool {
	return h.RiskScore(report) >= maliciousThreshold
}
