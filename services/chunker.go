package services

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrNoExtractableText reports that the document normalized to nothing.
var ErrNoExtractableText = errors.New("no text could be extracted from the document")

var whitespaceRun = regexp.MustCompile(`\s+`)

// Chunker splits normalized material text into overlapping segments sized
// for embedding and prompt assembly.
type Chunker struct {
	ChunkSize int
	Overlap   int
}

func NewChunker(chunkSize, overlap int) *Chunker {
	return &Chunker{ChunkSize: chunkSize, Overlap: overlap}
}

// boundaries in preference order; a cut lands just after the marker.
var boundaries = []string{". ", "! ", "? ", "\n", "\r\n"}

// Split normalizes whitespace and cuts the text into chunks of at most
// ChunkSize bytes. When a chunk would end mid-text, the cut moves back to
// the last sentence boundary inside the window; consecutive chunks share
// Overlap bytes unless that would stall the scan. Cut points and overlap
// starts always land on rune boundaries, so every chunk is valid UTF-8.
func (c *Chunker) Split(text string) ([]string, error) {
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if text == "" {
		return nil, ErrNoExtractableText
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.ChunkSize
		if end > len(text) {
			end = len(text)
		} else {
			window := text[start:end]
			cut := -1
			for _, boundary := range boundaries {
				if pos := strings.LastIndex(window, boundary); pos >= 0 {
					cut = start + pos + len(boundary)
					break
				}
			}
			if cut >= 0 {
				end = cut
			} else {
				// Hard cut: back off so a multibyte rune is never split
				// across chunks.
				for end > start && !utf8.RuneStart(text[end]) {
					end--
				}
			}
		}

		chunks = append(chunks, text[start:end])

		if end >= len(text) {
			break
		}
		next := end - c.Overlap
		for next > 0 && next < len(text) && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}
