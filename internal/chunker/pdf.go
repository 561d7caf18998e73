package chunker

import (
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFToChunks extracts text from a PDF page by page and runs the result
// through the plain-text splitter. Encrypted PDFs are opened with an empty
// password; when that fails the file yields no chunks rather than an error,
// so one unreadable report cannot abort a sync run.
func PDFToChunks(path, filename string, opts Options) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil
	}

	reader, err := pdf.NewReaderEncrypted(f, info.Size(), func() string { return "" })
	if err != nil {
		return nil
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		return nil
	}

	return TextToChunks(strings.Join(pages, "\n\n"), filename, opts)
}
