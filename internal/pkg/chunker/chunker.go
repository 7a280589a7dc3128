// Package chunker splits page-level PDF text into bounded segments for
// embedding, and derives the deterministic content-hash UUID that serves as
// each segment's vector-index identifier.
package chunker

import (
	"crypto/sha256"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"paperchat/internal/pkg/pdfpage"
)

const (
	DefaultChunkSize    = 512
	DefaultExcerptBytes = 3000
	hardCutOverlap      = 64
)

// separators are tried in order: paragraph, line, sentence, word, hard cut.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk is one bounded slice of a page's text. Excerpt is the byte-capped
// copy stored as vector metadata; Text is what gets embedded.
type Chunk struct {
	Text    string
	Excerpt string
	Page    int
}

type Splitter struct {
	chunkSize    int
	excerptBytes int
}

func New(chunkSize, excerptBytes int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if excerptBytes <= 0 {
		excerptBytes = DefaultExcerptBytes
	}
	return &Splitter{chunkSize: chunkSize, excerptBytes: excerptBytes}
}

// SplitPages chunks every page independently. Embedded newlines are
// collapsed to spaces first so chunk boundaries are not newline-driven.
func (s *Splitter) SplitPages(pages []pdfpage.Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		text := strings.Join(strings.Fields(page.Text), " ")
		if text == "" {
			continue
		}
		for _, segment := range s.splitWith(text, separators) {
			chunks = append(chunks, Chunk{
				Text:    segment,
				Excerpt: TruncateBytes(segment, s.excerptBytes),
				Page:    page.Number,
			})
		}
	}
	return chunks
}

// splitWith splits greedily at the first separator that helps, recursing to
// finer separators for pieces that are still over the size cap.
func (s *Splitter) splitWith(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	if len(seps) == 0 || seps[0] == "" {
		return s.hardCut(text)
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) == 1 {
		return s.splitWith(text, seps[1:])
	}

	var (
		out    []string
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		segment := strings.TrimSpace(buf.String())
		if segment != "" {
			out = append(out, segment)
		}
		buf.Reset()
		bufLen = 0
	}
	for _, part := range parts {
		partLen := utf8.RuneCountInString(part)
		if partLen > s.chunkSize {
			flush()
			out = append(out, s.splitWith(part, seps[1:])...)
			continue
		}
		if bufLen+partLen > s.chunkSize {
			flush()
		}
		buf.WriteString(part)
		bufLen += partLen
	}
	flush()
	return out
}

// hardCut slices by rune count with a small overlap so no sentence is lost
// entirely across a cut.
func (s *Splitter) hardCut(text string) []string {
	overlap := hardCutOverlap
	if overlap >= s.chunkSize {
		overlap = s.chunkSize / 2
	}
	var out []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		segment := strings.TrimSpace(string(runes[i:end]))
		if segment != "" {
			out = append(out, segment)
		}
		if end == len(runes) {
			break
		}
		i += s.chunkSize - overlap
	}
	return out
}

// VectorID folds the sha256 of the chunk text into an RFC 4122 UUID; the
// vector index accepts only UUID or unsigned-integer point IDs, so the raw
// hex digest cannot be used directly. Identical text always maps to the
// identical identifier, which is what makes re-ingestion idempotent.
func VectorID(text string) string {
	sum := sha256.Sum256([]byte(text))
	b := sum[:16]
	// Name-based version and RFC 4122 variant bits.
	b[6] = (b[6] & 0x0f) | 0x50
	b[8] = (b[8] & 0x3f) | 0x80
	id, err := uuid.FromBytes(b)
	if err != nil {
		// Unreachable: FromBytes only rejects slices that are not 16 bytes.
		panic(err)
	}
	return id.String()
}

// TruncateBytes caps s to at most n bytes without ever splitting a rune; a
// trailing partial multi-byte sequence is dropped.
func TruncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
