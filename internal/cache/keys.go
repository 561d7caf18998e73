package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// NormalizeQuery lowercases, strips trailing punctuation and collapses
// whitespace. Idempotent.
func NormalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimRight(q, "?!.,;:")
	return strings.Join(strings.Fields(q), " ")
}

// Key derives the cache key for a query under a given retrieval
// context. Preserved entities (IPv4, MITRE technique IDs, CVE IDs) are
// pulled out of the normalized text, uppercased, sorted and prepended,
// so "block 1.2.3.4" and "please block 1.2.3.4" hash apart while
// reorderings of the same identifiers hash together.
func Key(query, contextHash string) string {
	norm := NormalizeQuery(query)

	var entities []string
	rest := norm
	for _, re := range []*regexp.Regexp{reIPv4, reMitre, reCVE} {
		for _, m := range re.FindAllString(rest, -1) {
			entities = append(entities, strings.ToUpper(m))
		}
		rest = re.ReplaceAllString(rest, " ")
	}
	rest = strings.Join(strings.Fields(rest), " ")

	sort.Strings(entities)
	body := rest
	if len(entities) > 0 {
		body = strings.Join(entities, " ")
		if rest != "" {
			body += " " + rest
		}
	}

	sum := sha256.Sum256([]byte(body + ":" + contextHash))
	return hex.EncodeToString(sum[:])
}
