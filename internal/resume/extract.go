// Package resume turns uploaded resume files into indexed passages.
package resume

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

var (
	ErrUnsupportedFormat = errors.New("resume: unsupported file format")
	ErrEmpty             = errors.New("resume: file appears to be empty or could not be processed")
)

// Extensions lists the accepted file extensions, lower-case and without the dot.
var Extensions = []string{"pdf", "docx", "txt"}

// Ext returns the lower-case extension of filename without the dot.
func Ext(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func Supported(filename string) bool {
	ext := Ext(filename)
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

var pdfLicense struct {
	once sync.Once
	err  error
}

// SetPDFLicense registers the metered unidoc key PDF extraction needs. Only
// the first call has an effect.
func SetPDFLicense(apiKey string) error {
	pdfLicense.once.Do(func() {
		pdfLicense.err = license.SetMeteredKey(apiKey)
	})
	return pdfLicense.err
}

// Extract returns the plain text of a resume file.
func Extract(filename string, data []byte) (string, error) {
	switch Ext(filename) {
	case "txt":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("resume: %s is not valid UTF-8 text", filename)
		}
		return string(data), nil
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func extractPDF(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}

	var (
		pages    []string
		firstErr error
	)
	keep := func(i int, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("page %d: %w", i, err)
		}
	}
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			keep(i, err)
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			keep(i, err)
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			keep(i, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	// a single unreadable page is tolerated, a document with none is not
	if len(pages) == 0 && firstErr != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", firstErr)
	}
	return strings.Join(pages, "\n"), nil
}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxBreak        = regexp.MustCompile(`<w:(br|tab|cr)\s*/>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
)

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX: %w", err)
	}
	defer r.Close()

	return docxText(r.Editable().GetContent()), nil
}

// docxText flattens document.xml into text with one line per paragraph.
func docxText(content string) string {
	content = docxParagraphEnd.ReplaceAllString(content, "\n")
	content = docxBreak.ReplaceAllString(content, " ")
	content = xmlTag.ReplaceAllString(content, "")

	replacer := strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
	content = replacer.Replace(content)

	var lines []string
	for _, l := range strings.Split(content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
