package wrapper

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

// LedongthucText extracts positioned text runs with ledongthuc/pdf. The
// reader shares one file offset, so calls are serialized on mu.
type LedongthucText struct {
	mu     sync.Mutex
	file   *os.File
	reader *pdf.Reader
	closed bool
}

// OpenLedongthuc opens a PDF file for text extraction
func OpenLedongthuc(path string) (*LedongthucText, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &WrapperError{
			Library: LibraryLedongthuc,
			Op:      "open_file",
			Err:     fmt.Errorf("failed to open PDF: %w", err),
		}
	}
	return &LedongthucText{file: file, reader: reader}, nil
}

// PageCount returns the number of pages
func (l *LedongthucText) PageCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reader.NumPage()
}

// TextRuns returns the page's text runs in content stream order. The
// content parser panics on some malformed streams; that surfaces as an
// error for this page only.
func (l *LedongthucText) TextRuns(page int) (runs []TextRun, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, &WrapperError{Library: LibraryLedongthuc, Op: "text_runs", Err: ErrDocumentClosed}
	}
	if page < 0 || page >= l.reader.NumPage() {
		return nil, &WrapperError{Library: LibraryLedongthuc, Op: "text_runs", Page: page + 1, Err: ErrInvalidPage}
	}

	defer func() {
		if r := recover(); r != nil {
			runs = nil
			err = &WrapperError{
				Library: LibraryLedongthuc,
				Op:      "text_runs",
				Page:    page + 1,
				Err:     fmt.Errorf("content stream: %v", r),
			}
		}
	}()

	p := l.reader.Page(page + 1)
	if p.V.IsNull() {
		return nil, &WrapperError{Library: LibraryLedongthuc, Op: "text_runs", Page: page + 1, Err: ErrInvalidPage}
	}

	content := p.Content()
	runs = make([]TextRun, 0, len(content.Text))
	for _, text := range content.Text {
		if strings.TrimSpace(text.S) == "" && text.S != " " {
			continue
		}
		runs = append(runs, TextRun{
			Text:     text.S,
			X:        text.X,
			Y:        text.Y,
			Width:    text.W,
			FontSize: text.FontSize,
			Font:     text.Font,
		})
	}
	return runs, nil
}

// Close closes the underlying file
func (l *LedongthucText) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
