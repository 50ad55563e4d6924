package services

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkerNormalizesWhitespace(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks, err := c.Split("  one\t\ttwo\n\nthree  ")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "one two three" {
		t.Errorf("got %q", chunks[0])
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(1000, 200)
	for _, input := range []string{"", "   ", "\n\t\r\n"} {
		if _, err := c.Split(input); !errors.Is(err, ErrNoExtractableText) {
			t.Errorf("Split(%q): expected ErrNoExtractableText, got %v", input, err)
		}
	}
}

func TestChunkerBreaksAtSentenceBoundary(t *testing.T) {
	// The window holds two full sentences and the start of a third. The cut
	// should land right after the last ". " inside the window.
	text := "First sentence here. Second sentence here. Third sentence continues onward"
	c := NewChunker(50, 0)
	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if chunks[0] != "First sentence here. Second sentence here. " {
		t.Errorf("first chunk = %q", chunks[0])
	}
}

func TestChunkerHardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 250)
	c := NewChunker(100, 0)
	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Errorf("chunk lengths = %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestChunkerHardCutKeepsRunesIntact(t *testing.T) {
	// 2-byte runes with no boundary markers; an odd chunk size would land
	// every hard cut mid-rune without the boundary backoff.
	text := strings.Repeat("é", 130)
	c := NewChunker(101, 7)
	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, chunk)
		}
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Errorf("last chunk %q is not a suffix of the input", last)
	}
}

func TestChunkerOverlap(t *testing.T) {
	text := strings.Repeat("a", 100) + strings.Repeat("b", 100)
	c := NewChunker(100, 20)
	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// The second chunk must begin with the tail of the first.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("second chunk %q does not start with overlap %q", chunks[1][:20], tail)
	}
}

func TestChunkerOverlapCannotStallScan(t *testing.T) {
	// Overlap nearly as large as the chunk forces the scan to fall back to
	// plain advancement instead of looping on the same window.
	text := strings.Repeat("z", 500)
	c := NewChunker(100, 100)
	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 5 {
		t.Errorf("expected 5 chunks, got %d", len(chunks))
	}
}

func TestChunkerCoversAllText(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon zeta. Eta theta iota. Kappa lambda mu."
	c := NewChunker(30, 5)
	chunks, err := c.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Errorf("last chunk %q is not a suffix of the input", last)
	}
}
