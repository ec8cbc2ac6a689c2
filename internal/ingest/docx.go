package ingest

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxDocumentPath = "word/document.xml"

var errNoDocumentXML = errors.New("word/document.xml not found in archive")

// extractDOCX reads the main document part of an OOXML wordprocessing file
// and flattens it to paragraphs. DOCX is a zip archive whose body lives in
// word/document.xml as <w:p> paragraphs containing <w:t> text runs.
func extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != docxDocumentPath {
			continue
		}
		body, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxDocumentPath, err)
		}
		defer body.Close()
		return flattenDocumentXML(body)
	}
	return "", errNoDocumentXML
}

// flattenDocumentXML walks the XML token stream, joining text runs within a
// paragraph and separating paragraphs with blank lines.
func flattenDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
	)
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
	}

	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxDocumentPath, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte(' ')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	flush()
	return strings.Join(paragraphs, "\n\n"), nil
}
