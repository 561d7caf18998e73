package alerts

import "math"

// RiskScore computes the window risk in [0,100]. The formula balances
// alert volume against severity mix so that a flood of INFO noise
// cannot outrank a handful of critical logs, and adds an escalation
// component when attack-chain stages co-occur.
func RiskScore(groups []Group) float64 {
	total := 0
	var errCount, warnCount, infoCount int
	var weightedProb float64

	for _, g := range groups {
		total += g.AlertCount
		weightedProb += g.AvgProbability * float64(g.AlertCount)
		switch g.Severity {
		case "ERROR":
			errCount += g.AlertCount
		case "WARNING":
			warnCount += g.AlertCount
		case "INFO":
			infoCount += g.AlertCount
		}
	}
	if total == 0 {
		return 0
	}

	base := 0.5
	volume := math.Log10(float64(total)+1) * 8

	n := float64(total)
	severity := 40*float64(errCount)/n + 8*float64(warnCount)/n + 2*float64(infoCount)/n

	confidence := weightedProb / n * 15

	escalation := 10 * float64(escalationLevel(groups))

	score := base + volume + severity + confidence + escalation
	if score > 100 {
		score = 100
	}
	return math.Round(score*10) / 10
}

// escalationLevel counts distinct attack-chain stages present: 0 for
// none, 1 for a single stage, 2 for two or more.
func escalationLevel(groups []Group) int {
	stages := map[string]bool{}
	for _, g := range groups {
		if escalationPatterns[g.Pattern] {
			stages[g.Pattern] = true
		}
	}
	switch {
	case len(stages) >= 2:
		return 2
	case len(stages) == 1:
		return 1
	default:
		return 0
	}
}

// RiskLabel maps the score to the reporting scale.
func RiskLabel(score float64) string {
	switch {
	case score >= 70:
		return "CRITICAL"
	case score >= 50:
		return "HIGH"
	case score >= 30:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
