// Package ingest extracts raw text from source documents. It accepts PDF,
// DOCX, Markdown, and plain text files and produces UTF-8 text with blank
// lines between the extracted blocks, which is what the cleaning stage
// expects as input.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/corpusforge/docrefine/internal/observability"
)

var (
	// ErrUnsupportedFormat is returned for file extensions outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrInvalidUTF8 is returned when a text file is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("file is not valid UTF-8")

	// ErrEmptyDocument is returned when extraction yields no usable text.
	ErrEmptyDocument = errors.New("no text content extracted")
)

// ExtractionError wraps a failure to extract one document.
type ExtractionError struct {
	Path   string
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".md":   true,
	".txt":  true,
}

// Supported reports whether the file's extension is one the extractor
// handles. Hidden files are never supported.
func Supported(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// FindDocuments walks dir recursively and returns the supported document
// paths in lexical order.
func FindDocuments(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return found, nil
}

// Extractor converts source documents to raw text.
type Extractor struct {
	logger *observability.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *observability.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads one document and returns its text content. The result uses
// "\n\n" between extracted blocks and is guaranteed to be valid, non-empty
// UTF-8.
func (e *Extractor) Extract(path string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	var (
		text string
		err  error
	)
	switch format {
	case "pdf":
		text, err = extractPDF(path)
	case "docx":
		text, err = extractDOCX(path)
	case "md", "txt":
		text, err = readTextFile(path)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return "", &ExtractionError{Path: path, Format: format, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ExtractionError{Path: path, Format: format, Err: ErrEmptyDocument}
	}
	e.logger.Debug().
		Str("path", path).
		Str("format", format).
		Int("bytes", len(text)).
		Msg("extracted document")
	return text, nil
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}
