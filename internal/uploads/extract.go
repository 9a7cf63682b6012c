package uploads

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aktraiser/X-me/internal/domain"
	"github.com/aktraiser/X-me/internal/search"
	"github.com/dslipak/pdf"
)

// SupportedExtensions lists the file types accepted for upload
var SupportedExtensions = []string{".pdf", ".html", ".htm", ".txt", ".md"}

// Supported reports whether files with this extension can be extracted
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extracted is the text of a file split by page
type Extracted struct {
	Title string
	Pages []string
}

// ExtractFile reads the file at path and returns its text per page. Only PDF
// files have more than one page.
func ExtractFile(path, title string) (*Extracted, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, fmt.Errorf("%s: %w", ext, domain.ErrUnsupportedFile)
	}

	if ext == ".pdf" {
		pages, err := extractPDF(path)
		if err != nil {
			return nil, err
		}
		return &Extracted{Title: title, Pages: pages}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".html", ".htm":
		htmlTitle, text, err := search.ExtractHTML(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		if htmlTitle != "" {
			title = htmlTitle
		}
		return &Extracted{Title: title, Pages: []string{text}}, nil
	default:
		return &Extracted{Title: title, Pages: []string{string(data)}}, nil
	}
}

func extractPDF(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}
	r, err := pdf.NewReader(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
