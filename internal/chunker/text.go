// Package chunker turns heterogeneous documentation files into
// embedding-sized text chunks. Every emitted chunk carries a
// "Source: <filename>" prefix so retrieval answers can cite their origin.
package chunker

import (
	"fmt"
	"strings"
)

// separators tried in order by the recursive splitter: paragraph, line,
// sentence, word, and finally a hard character cut.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Options controls chunk sizing.
type Options struct {
	MaxSize int // maximum chunk length in characters
	MinSize int // chunks shorter than this are discarded
}

// Overlap returns the character overlap between adjacent chunks:
// 15% of the chunk size, capped at 200.
func (o Options) Overlap() int {
	overlap := o.MaxSize * 15 / 100
	if overlap > 200 {
		overlap = 200
	}
	return overlap
}

// TextToChunks splits plain text into overlapping chunks, each prefixed
// with the source filename.
func TextToChunks(text, filename string, opts Options) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	prefix := fmt.Sprintf("Source: %s\n", filename)
	budget := opts.MaxSize - len(prefix)
	if budget < 1 {
		budget = opts.MaxSize
		prefix = ""
	}

	pieces := splitRecursive(text, separators, budget)
	merged := mergePieces(pieces, budget, opts.Overlap())

	var chunks []string
	for _, c := range merged {
		c = strings.TrimSpace(c)
		if len(c) < opts.MinSize {
			continue
		}
		chunks = append(chunks, prefix+c)
	}
	return chunks
}

// splitRecursive breaks text into pieces no longer than size, preferring
// the earliest separator that produces small enough fragments.
func splitRecursive(text string, seps []string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardCut(text, size)
	}

	sep := seps[0]
	if sep == "" {
		return hardCut(text, size)
	}

	parts := strings.Split(text, sep)
	var pieces []string
	for i, part := range parts {
		// Keep the separator attached so merging reconstructs the text.
		if i < len(parts)-1 {
			part += sep
		}
		if len(part) > size {
			pieces = append(pieces, splitRecursive(part, seps[1:], size)...)
		} else if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// hardCut slices text into size-length windows.
func hardCut(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// mergePieces greedily packs pieces into chunks of at most size characters,
// seeding each new chunk with the tail of the previous one for overlap.
func mergePieces(pieces []string, size, overlap int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() string {
		chunk := cur.String()
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		return chunk
	}

	for _, piece := range pieces {
		if cur.Len() > 0 && cur.Len()+len(piece) > size {
			prev := flush()
			if overlap > 0 {
				seed := tail(prev, overlap)
				// Never let the seed push the chunk past its budget.
				if len(seed)+len(piece) <= size {
					cur.WriteString(seed)
				}
			}
		}
		cur.WriteString(piece)
	}
	flush()
	return chunks
}

// tail returns the last n characters of s, starting at a word boundary
// when one is available.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	t := s[len(s)-n:]
	if idx := strings.IndexAny(t, " \n"); idx >= 0 && idx < len(t)-1 {
		t = t[idx+1:]
	}
	return t
}
