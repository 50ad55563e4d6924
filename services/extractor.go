package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"course-assistant-platform/models"
)

var (
	// ErrUnsupportedFormat reports a file type the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtractionFailed reports a readable format that yielded no text.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Extractor pulls plain text out of uploaded course files.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText reads the file at path and returns its plain-text content.
// The file type decides the parser; an unrecognized type is an error rather
// than a silent empty result.
func (e *Extractor) ExtractText(filePath, fileType string) (string, error) {
	switch fileType {
	case models.FileTypeTxt:
		return e.extractTXT(filePath)
	case models.FileTypePDF:
		return e.extractPDF(filePath)
	case models.FileTypeDocx:
		return e.extractDOCX(filePath)
	case models.FileTypePpt, models.FileTypePptx:
		return e.extractPPTX(filePath)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileType)
	}
}

func (e *Extractor) extractTXT(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}
	return string(content), nil
}

func (e *Extractor) extractPDF(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			// A single bad page should not sink the whole document.
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	extracted := builder.String()
	if strings.TrimSpace(extracted) == "" {
		return "", fmt.Errorf("%w: no readable text in PDF", ErrExtractionFailed)
	}
	return extracted, nil
}

// docx and pptx are OOXML zip archives. The text lives in XML parts whose
// structure is stable enough to walk with the streaming decoder.

func (e *Extractor) extractDOCX(filePath string) (string, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		text, err := ooxmlRunText(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("%w: no readable text in document", ErrExtractionFailed)
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: word/document.xml missing", ErrExtractionFailed)
}

func (e *Extractor) extractPPTX(filePath string) (string, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer archive.Close()

	var slides []*zip.File
	for _, file := range archive.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file)
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("%w: presentation has no slides", ErrExtractionFailed)
	}
	// Lexicographic order would put slide10 before slide2; decks are read
	// in numeric slide order.
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})

	var builder strings.Builder
	for _, slide := range slides {
		rc, err := slide.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		text, err := ooxmlRunText(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		if text != "" {
			builder.WriteString(text)
			builder.WriteString("\n")
		}
	}

	extracted := builder.String()
	if strings.TrimSpace(extracted) == "" {
		return "", fmt.Errorf("%w: no readable text in presentation", ErrExtractionFailed)
	}
	return extracted, nil
}

// slideNumber parses the N from ppt/slides/slideN.xml. Names that do not
// carry a number sort first.
func slideNumber(name string) int {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0
	}
	return n
}

// ooxmlRunText collects <t> run text from an OOXML part (w:t in documents,
// a:t in slides), joining paragraphs with newlines.
func ooxmlRunText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var builder strings.Builder
	inText := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		switch tok := token.(type) {
		case xml.StartElement:
			if tok.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch tok.Name.Local {
			case "t":
				inText = false
			case "p":
				builder.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				builder.Write(tok)
			}
		}
	}
	return builder.String(), nil
}
