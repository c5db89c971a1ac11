package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docfind/core"
)

const (
	defaultSize    = 1000
	defaultOverlap = 200
)

// Passage is a single chunk of document text. Offset and Length are
// measured in runes so chunk IDs are stable across encodings.
type Passage struct {
	Text   string
	Offset int
	Length int
}

// Chunker splits document text into overlapping passages.
// Chunking is a pure function of the input text and configuration.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithSize sets the target chunk size in characters.
// Default is 1000.
func WithSize(size int) Option {
	return func(c *Chunker) error {
		if size <= 0 {
			return ErrInvalidSize
		}
		c.size = size
		return nil
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
// Default is 200. The overlap must be smaller than the chunk size.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return ErrInvalidOverlap
		}
		c.overlap = overlap
		return nil
	}
}

// NewChunker creates a new chunker.
func NewChunker(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    defaultSize,
		overlap: defaultOverlap,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.overlap >= c.size {
		return nil, ErrInvalidOverlap
	}

	return c, nil
}

// Chunk splits document text into an ordered sequence of passages.
// PDF documents must already be converted to plain text by the caller.
// A document shorter than one chunk produces exactly one passage; an
// empty document produces zero passages and no error.
func (c *Chunker) Chunk(text string, contentType core.ContentType) ([]Passage, error) {
	switch contentType {
	case core.ContentTypeCode:
		return c.chunkCode(text), nil
	case core.ContentTypePDF, core.ContentTypeText, core.ContentTypeOther:
		return c.chunkText(text), nil
	default:
		return nil, fmt.Errorf("%w: %w", core.ErrChunking, core.ErrInvalidContentType)
	}
}

// chunkText splits plain text into fixed-size passages with overlap.
func (c *Chunker) chunkText(text string) []Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []Passage{{Text: text, Offset: 0, Length: len(runes)}}
	}

	step := c.size - c.overlap
	var passages []Passage
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		passages = append(passages, Passage{
			Text:   string(runes[start:end]),
			Offset: start,
			Length: end - start,
		})
		if end == len(runes) {
			break
		}
	}
	return passages
}

// chunkCode splits source code into passages whose boundaries fall on line
// breaks, so statements are not split mid-line where feasible. A single
// line longer than the chunk size becomes its own oversized passage.
func (c *Chunker) chunkCode(text string) []Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	// Cumulative rune offsets per line
	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + utf8.RuneCountInString(line)
	}

	var passages []Passage
	i := 0
	for i < len(lines) {
		j := i
		size := 0
		for j < len(lines) {
			lineLen := offsets[j+1] - offsets[j]
			if size > 0 && size+lineLen > c.size {
				break
			}
			size += lineLen
			j++
		}

		passages = append(passages, Passage{
			Text:   strings.Join(lines[i:j], ""),
			Offset: offsets[i],
			Length: offsets[j] - offsets[i],
		})

		if j >= len(lines) {
			break
		}

		// Walk back whole lines to form the overlap with the next passage.
		k := j
		for k > i+1 && offsets[j]-offsets[k-1] < c.overlap {
			k--
		}
		i = k
	}
	return passages
}
