package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Splitter defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into overlapping chunks no longer than ChunkSize
// characters where the text allows it. It splits on the first separator
// present in the text and falls back to the next one for pieces that are
// still too long.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a Splitter with the default sizes and separators.
func NewSplitter() *Splitter {
	return &Splitter{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Split returns the chunks of text. Chunks are trimmed and never empty.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) chunkSize() int {
	if s.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return s.ChunkSize
}

func (s *Splitter) chunkOverlap() int {
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.chunkSize() {
		return 0
	}
	return s.ChunkOverlap
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, c := range seps {
		if c == "" || strings.Contains(text, c) {
			sep = c
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		for _, p := range strings.Split(text, sep) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var out, fits []string
	for _, p := range pieces {
		if size(p) < s.chunkSize() {
			fits = append(fits, p)
			continue
		}
		if len(fits) > 0 {
			out = append(out, s.merge(fits, sep)...)
			fits = nil
		}
		if len(rest) == 0 {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
			continue
		}
		out = append(out, s.split(p, rest)...)
	}
	if len(fits) > 0 {
		out = append(out, s.merge(fits, sep)...)
	}
	return out
}

// merge joins pieces with sep into chunks, carrying up to ChunkOverlap
// characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	limit, overlap := s.chunkSize(), s.chunkOverlap()
	sepLen := size(sep)

	var (
		chunks []string
		cur    []string
		total  int
	)
	joined := func(n int) int {
		if len(cur) > 0 {
			return total + sepLen + n
		}
		return total + n
	}
	emit := func() {
		if c := strings.TrimSpace(strings.Join(cur, sep)); c != "" {
			chunks = append(chunks, c)
		}
	}

	for _, p := range pieces {
		n := size(p)
		if joined(n) > limit && len(cur) > 0 {
			emit()
			for total > overlap || (joined(n) > limit && total > 0) {
				total -= size(cur[0])
				if len(cur) > 1 {
					total -= sepLen
				}
				cur = cur[1:]
			}
		}
		total = joined(n)
		cur = append(cur, p)
	}
	emit()
	return chunks
}

func size(s string) int {
	return utf8.RuneCountInString(s)
}
