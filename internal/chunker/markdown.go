package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// MarkdownToChunks splits markdown along its heading structure. Each section
// keeps its heading line; sections longer than the chunk budget fall through
// to the plain-text splitter.
func MarkdownToChunks(src, filename string, opts Options) []string {
	sections := markdownSections([]byte(src))
	if len(sections) == 0 {
		return TextToChunks(src, filename, opts)
	}

	var chunks []string
	for _, section := range sections {
		chunks = append(chunks, TextToChunks(section, filename, opts)...)
	}
	return chunks
}

// markdownSections parses src with goldmark and cuts it at heading line
// starts, so every section begins with its own heading.
func markdownSections(src []byte) []string {
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(src))

	var starts []int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Lines().Len() > 0 {
			starts = append(starts, lineStart(src, h.Lines().At(0).Start))
		}
		return ast.WalkContinue, nil
	})

	if len(starts) == 0 {
		return nil
	}

	var sections []string
	// Preamble before the first heading.
	if pre := strings.TrimSpace(string(src[:starts[0]])); pre != "" {
		sections = append(sections, pre)
	}
	for i, start := range starts {
		end := len(src)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if sec := strings.TrimSpace(string(src[start:end])); sec != "" {
			sections = append(sections, sec)
		}
	}
	return sections
}

// lineStart walks back from pos to the beginning of its line, covering the
// "#" markers goldmark excludes from the heading segment.
func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}
