// Package analyzers interprets third-party threat-intelligence reports.
// Each analyzer (VirusTotal, MISP, ...) gets a handler that knows the
// report shape and reduces it to a verdict, a risk score and key facts.
package analyzers

import (
	"strconv"
	"strings"
)

// Verdict values emitted by Summarize.
const (
	VerdictClean      = "clean"
	VerdictSuspicious = "suspicious"
	VerdictMalicious  = "malicious"
	VerdictUnknown    = "unknown"
)

// Report is a raw analyzer sub-report as decoded from JSON.
type Report = map[string]any

// Summary is the compact finding a handler derives from a report.
type Summary struct {
	Analyzer string         `json:"analyzer"`
	Type     string         `json:"type"`
	Verdict  string         `json:"verdict"`
	Stats    map[string]any `json:"stats,omitempty"`
}

// Handler interprets reports of one analyzer family.
type Handler interface {
	// DisplayName is the human-readable analyzer name used in findings.
	DisplayName() string

	// Priority orders findings sent to the LLM, higher first. Range [0,100].
	Priority() int

	// ExtractStats pulls the compact key facts out of a report.
	ExtractStats(report Report) map[string]any

	// Summarize reduces a report to analyzer, type, verdict and numbers.
	Summarize(report Report) Summary

	// RiskScore maps a report to [0,100].
	RiskScore(report Report) int

	// IsMalicious reports whether the analyzer considers the indicator bad.
	IsMalicious(report Report) bool
}

// maliciousThreshold is the default IsMalicious cutoff on RiskScore.
const maliciousThreshold = 50

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// asFloat coerces JSON numbers that may arrive as float64, int or a
// numeric string.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// dig walks nested maps by key path.
func dig(m Report, path ...string) (any, bool) {
	var cur any = m
	for _, key := range path {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = asMap[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func digFloat(m Report, path ...string) (float64, bool) {
	v, ok := dig(m, path...)
	if !ok {
		return 0, false
	}
	return asFloat(v)
}
