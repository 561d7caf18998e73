package alerts

import (
	"fmt"
	"sort"
	"strings"
)

// buildSummary renders the deterministic situation report: risk label,
// attack-pattern breakdown, top affected assets, and the recommended
// actions for the level. No LLM involved.
func buildSummary(groups []Group, score float64, windowMinutes int) string {
	var b strings.Builder

	label := RiskLabel(score)
	total := 0
	for _, g := range groups {
		total += g.AlertCount
	}

	fmt.Fprintf(&b, "SECURITY ALERT SUMMARY (last %d minutes)\n", windowMinutes)
	fmt.Fprintf(&b, "Risk: %s (%.1f/100) | %d alerts in %d groups\n\n", label, score, total, len(groups))

	b.WriteString("Attack patterns:\n")
	for _, p := range patternBreakdown(groups) {
		fmt.Fprintf(&b, "- %s: %d alerts, avg confidence %.0f%%, %d unique IPs\n",
			p.description, p.count, p.avgProb*100, p.uniqueIPs)
	}

	assets := topAssets(groups, 3)
	if len(assets) > 0 {
		b.WriteString("\nTop affected assets:\n")
		for _, a := range assets {
			fmt.Fprintf(&b, "- %s (%d alerts)\n", a.ip, a.count)
		}
	}

	b.WriteString("\nRecommended actions:\n")
	for _, action := range recommendedActions(label) {
		fmt.Fprintf(&b, "- %s\n", action)
	}

	return b.String()
}

type patternStat struct {
	pattern     string
	description string
	count       int
	avgProb     float64
	uniqueIPs   int
}

// patternBreakdown aggregates groups per pattern, ordered by count
// descending with pattern name as tiebreak.
func patternBreakdown(groups []Group) []patternStat {
	type agg struct {
		count   int
		probSum float64
		ips     map[string]bool
	}
	byPattern := map[string]*agg{}
	for _, g := range groups {
		a, ok := byPattern[g.Pattern]
		if !ok {
			a = &agg{ips: map[string]bool{}}
			byPattern[g.Pattern] = a
		}
		a.count += g.AlertCount
		a.probSum += g.AvgProbability * float64(g.AlertCount)
		a.ips[g.SourceIP] = true
	}

	stats := make([]patternStat, 0, len(byPattern))
	for pattern, a := range byPattern {
		desc, ok := patternDescriptions[pattern]
		if !ok {
			desc = pattern
		}
		stats = append(stats, patternStat{
			pattern:     pattern,
			description: desc,
			count:       a.count,
			avgProb:     a.probSum / float64(a.count),
			uniqueIPs:   len(a.ips),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].pattern < stats[j].pattern
	})
	return stats
}

type assetStat struct {
	ip    string
	count int
}

func topAssets(groups []Group, n int) []assetStat {
	counts := map[string]int{}
	for _, g := range groups {
		counts[g.SourceIP] += g.AlertCount
	}
	assets := make([]assetStat, 0, len(counts))
	for ip, count := range counts {
		assets = append(assets, assetStat{ip: ip, count: count})
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].count != assets[j].count {
			return assets[i].count > assets[j].count
		}
		return assets[i].ip < assets[j].ip
	})
	if len(assets) > n {
		assets = assets[:n]
	}
	return assets
}

func recommendedActions(label string) []string {
	switch label {
	case "CRITICAL":
		return []string{
			"Escalate to the incident response team now",
			"Isolate the top affected assets pending investigation",
			"Preserve logs and begin timeline reconstruction",
		}
	case "HIGH":
		return []string{
			"Investigate the top source IPs within the hour",
			"Verify blocking rules cover the attacking addresses",
			"Increase monitoring on affected assets",
		}
	case "MEDIUM":
		return []string{
			"Review the pattern breakdown during this shift",
			"Confirm the alerts are not misconfigured noise",
		}
	default:
		return []string{
			"Routine monitoring; no immediate action required",
		}
	}
}
