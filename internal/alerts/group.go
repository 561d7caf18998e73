package alerts

import (
	"sort"
	"strings"
)

// maxSampleAlerts caps raw log lines kept per group for prompting.
const maxSampleAlerts = 5

// Group is one (source_ip, pattern, severity) bucket of alerts.
type Group struct {
	SourceIP       string   `json:"source_ip"`
	Pattern        string   `json:"pattern"`
	Severity       string   `json:"severity"`
	AlertCount     int      `json:"alert_count"`
	AvgProbability float64  `json:"avg_probability"`
	Agents         []string `json:"agents,omitempty"`
	SampleAlerts   []string `json:"sample_alerts,omitempty"`
}

// filterRecords drops records that must not be analyzed: severities
// outside the ML taxonomy, probabilities below the configured minimum,
// empty inputs, and whitelisted infrastructure IPs.
func filterRecords(records []Record, minProbability float64, whitelist []string) []Record {
	white := make(map[string]bool, len(whitelist))
	for _, ip := range whitelist {
		white[ip] = true
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		switch strings.ToUpper(r.Severity) {
		case "INFO", "WARNING", "ERROR":
		default:
			continue
		}
		if r.Probability < minProbability {
			continue
		}
		if strings.TrimSpace(r.MLInput) == "" {
			continue
		}
		if white[r.SourceIP] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// groupRecords buckets records by (source_ip, pattern, severity) and
// computes per-group aggregates. Groups come back sorted by alert count
// descending, ties broken by source IP for determinism.
func groupRecords(records []Record) []Group {
	type agg struct {
		group   Group
		probSum float64
		agents  map[string]bool
	}

	buckets := map[string]*agg{}
	for _, r := range records {
		severity := strings.ToUpper(r.Severity)
		pattern := DetectPattern(r.MLInput)
		key := r.SourceIP + "\x00" + pattern + "\x00" + severity

		b, ok := buckets[key]
		if !ok {
			b = &agg{
				group: Group{
					SourceIP: r.SourceIP,
					Pattern:  pattern,
					Severity: severity,
				},
				agents: map[string]bool{},
			}
			buckets[key] = b
		}

		b.group.AlertCount++
		b.probSum += r.Probability
		if r.Agent != "" {
			b.agents[r.Agent] = true
		}
		if len(b.group.SampleAlerts) < maxSampleAlerts {
			b.group.SampleAlerts = append(b.group.SampleAlerts, r.MLInput)
		}
	}

	groups := make([]Group, 0, len(buckets))
	for _, b := range buckets {
		b.group.AvgProbability = b.probSum / float64(b.group.AlertCount)
		for agent := range b.agents {
			b.group.Agents = append(b.group.Agents, agent)
		}
		sort.Strings(b.group.Agents)
		groups = append(groups, b.group)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].AlertCount != groups[j].AlertCount {
			return groups[i].AlertCount > groups[j].AlertCount
		}
		if groups[i].SourceIP != groups[j].SourceIP {
			return groups[i].SourceIP < groups[j].SourceIP
		}
		return groups[i].Pattern < groups[j].Pattern
	})
	return groups
}
