package walker

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchesSkip returns true if the given relative path matches any of the
// skip patterns. If patterns is empty, nothing is skipped.
func MatchesSkip(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	// Normalize to forward slashes for consistent matching.
	normalized := filepath.ToSlash(relPath)

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)

		// doublestar matching supports ** across directories.
		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}

		// Also try matching against just the filename, so "*.tmp"
		// catches nested files without needing "**/*.tmp".
		base := filepath.Base(normalized)
		if matched, err := doublestar.PathMatch(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
