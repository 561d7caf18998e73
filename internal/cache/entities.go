package cache

import (
	"regexp"
	"sort"
	"strings"
)

// Entity patterns used both for cache-key derivation and for conflict
// detection between a live query and a semantically similar cached one.
var (
	reIPv4   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	reIPv6   = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b`)
	reMitre  = regexp.MustCompile(`\b[Tt]\d{4}(?:\.\d{3})?\b`)
	reCVE    = regexp.MustCompile(`\b[Cc][Vv][Ee]-\d{4}-\d{4,}\b`)
	reMD5    = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)
	reSHA1   = regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)
	reSHA256 = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)
	reDomain = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`)
	rePort   = regexp.MustCompile(`(?:\bport\s+|:)(\d{1,5})\b`)
	reEmail  = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
)

// oppose-pairs for action conflict detection. Each side is matched as a
// whole word, case-insensitively.
var opposedActions = [][2]string{
	{"bật", "tắt"},
	{"enable", "disable"},
	{"add", "remove"},
	{"allow", "block"},
	{"start", "stop"},
	{"open", "close"},
	{"whitelist", "blacklist"},
}

// extractEntities pulls typed indicator sets out of a query. Longer hash
// forms are extracted first so an SHA256 is not also counted as an MD5.
func extractEntities(query string) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	add := func(kind string, vals []string) {
		if len(vals) == 0 {
			return
		}
		set, ok := out[kind]
		if !ok {
			set = map[string]bool{}
			out[kind] = set
		}
		for _, v := range vals {
			set[strings.ToLower(v)] = true
		}
	}

	rest := query
	for _, h := range []struct {
		kind string
		re   *regexp.Regexp
	}{{"sha256", reSHA256}, {"sha1", reSHA1}, {"md5", reMD5}} {
		add(h.kind, h.re.FindAllString(rest, -1))
		rest = h.re.ReplaceAllString(rest, " ")
	}

	add("ipv4", reIPv4.FindAllString(rest, -1))
	add("ipv6", reIPv6.FindAllString(reIPv4.ReplaceAllString(rest, " "), -1))
	add("cve", reCVE.FindAllString(rest, -1))
	add("mitre", reMitre.FindAllString(rest, -1))
	add("email", reEmail.FindAllString(rest, -1))

	// Domains: match on text with IPs, CVEs and emails blanked out so
	// "1.2.3.4" and "user@corp.com" do not double-count.
	stripped := reIPv4.ReplaceAllString(rest, " ")
	stripped = reEmail.ReplaceAllString(stripped, " ")
	stripped = reCVE.ReplaceAllString(stripped, " ")
	add("domain", reDomain.FindAllString(stripped, -1))

	for _, m := range rePort.FindAllStringSubmatch(rest, -1) {
		add("port", []string{m[1]})
	}
	return out
}

// InfraEntities returns the distinct infrastructure indicators (IPv4
// addresses, CVE IDs, MITRE technique IDs, domains) mentioned in text,
// lowercased. Used by conversation memory to carry entity context across
// turns.
func InfraEntities(text string) []string {
	found := extractEntities(text)
	var out []string
	for _, kind := range []string{"ipv4", "cve", "mitre", "domain"} {
		set := found[kind]
		vals := make([]string, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		out = append(out, vals...)
	}
	return out
}

// hasActionConflict reports whether the two queries sit on opposite
// sides of any oppose-pair.
func hasActionConflict(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range opposedActions {
		if containsWord(la, pair[0]) && containsWord(lb, pair[1]) {
			return true
		}
		if containsWord(la, pair[1]) && containsWord(lb, pair[0]) {
			return true
		}
	}
	return false
}

// hasEntityConflict reports whether, for any entity type present in both
// queries, the value sets differ.
func hasEntityConflict(a, b string) bool {
	ea, eb := extractEntities(a), extractEntities(b)
	for kind, setA := range ea {
		setB, ok := eb[kind]
		if !ok {
			continue
		}
		if !sameSet(setA, setB) {
			return true
		}
	}
	return false
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		before := start == 0 || isBoundary(text[start-1])
		after := end == len(text) || isBoundary(text[end])
		if before && after {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(c byte) bool {
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80)
}
