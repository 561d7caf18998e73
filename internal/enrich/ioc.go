// Package enrich turns third-party IOC analysis reports into analyst
// guidance and writes it back to the case-management system.
package enrich

import (
	"net"
	"regexp"
	"strings"
)

// IOC types produced by Classify.
const (
	TypeIP      = "ip"
	TypeHash    = "hash"
	TypeDomain  = "domain"
	TypeUnknown = "unknown"
)

var (
	reHex         = regexp.MustCompile(`^[a-fA-F0-9]+$`)
	reDomainLabel = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

// Classify determines the indicator type from its value: IPs parse as
// IPv4/IPv6, hashes are 32/40/64 hex characters (MD5/SHA1/SHA256), and
// domains are dotted label sequences that are not IPs.
func Classify(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return TypeUnknown
	}

	if net.ParseIP(v) != nil {
		return TypeIP
	}

	switch len(v) {
	case 32, 40, 64:
		if reHex.MatchString(v) {
			return TypeHash
		}
	}

	if strings.Contains(v, ".") {
		labels := strings.Split(v, ".")
		valid := len(labels) >= 2
		for _, l := range labels {
			if !reDomainLabel.MatchString(l) {
				valid = false
				break
			}
		}
		// The last label must contain a letter, otherwise malformed
		// numeric strings like "300.1.2.3" pass as domains.
		if valid && strings.ContainsFunc(labels[len(labels)-1], isLetter) {
			return TypeDomain
		}
	}

	return TypeUnknown
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}
