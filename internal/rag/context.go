package rag

import (
	"fmt"
	"strings"
)

// fallbackContext is returned when retrieval finds nothing close enough
// to the query. The model is told explicitly instead of being handed an
// empty string.
const fallbackContext = "No relevant context found. Use general knowledge to answer the question, and state clearly that the answer is not based on the internal knowledge base."

const lowQualityHint = "\n\nNote: the retrieved context quality is low; verify the answer against primary sources."

// quality marker thresholds over the best (lowest) cosine distance.
func qualityMarker(bestDistance float64) string {
	switch {
	case bestDistance < 0.6:
		return "HIGH CONFIDENCE"
	case bestDistance < 1.0:
		return "GOOD"
	case bestDistance < 1.3:
		return "MODERATE"
	default:
		return "LOW CONFIDENCE"
	}
}

// assembleContext renders selected documents into the prompt context:
// a quality header, numbered documents separated by dividers, truncated
// to maxChars, and a low-quality hint when the average distance is
// poor.
func assembleContext(docs []candidate, maxChars int) string {
	if len(docs) == 0 {
		return fallbackContext
	}

	best := docs[0].Distance
	sum := 0.0
	for _, d := range docs {
		if d.Distance < best {
			best = d.Distance
		}
		sum += d.Distance
	}
	avg := sum / float64(len(docs))

	// Reserve room for the hint up front so appending it never pushes
	// the assembly past maxChars.
	lowQuality := avg > 1.3
	limit := maxChars
	if lowQuality && limit > 0 {
		limit -= len(lowQualityHint)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Context Quality: %s]\n\n", qualityMarker(best))

	const divider = "\n\n---\n\n"
	for i, d := range docs {
		block := fmt.Sprintf("[Document %d]\n%s", i+1, d.Text)
		if i > 0 {
			block = divider + block
		}
		if maxChars > 0 && b.Len()+len(block) > limit {
			room := limit - b.Len() - len("...")
			if room > 0 {
				b.WriteString(block[:room])
				b.WriteString("...")
			}
			break
		}
		b.WriteString(block)
	}

	if lowQuality {
		b.WriteString(lowQualityHint)
	}
	return b.String()
}
