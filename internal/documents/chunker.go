package documents

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ChunkOptions configures splitting. Sizes are in characters.
type ChunkOptions struct {
	Size    int
	Overlap int
}

// DefaultChunkOptions returns the default chunking options.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// separators are tried in order when looking for a break point.
var separators = []string{"\n\n", "\n", " "}

// Split cuts text into chunks of at most opts.Size characters, each starting opts.Overlap
// characters before the end of the previous one. Breaks prefer paragraph, then line, then
// word boundaries in the second half of a window. Short text returns a single chunk.
func Split(text string, opts ChunkOptions) []string {
	if opts.Size <= 0 {
		opts = DefaultChunkOptions()
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		opts.Overlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= opts.Size {
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + opts.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - opts.Overlap
		if next <= start {
			next = end
		}
		start = alignWord(runes, next, end)
	}
	return chunks
}

// breakPoint returns the end of a window [start, end), moved back to the latest separator in
// its second half when there is one.
func breakPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := len(window) / 2
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= half {
			return start + utf8.RuneCountInString(window[:i+len(sep)])
		}
	}
	return end
}

// alignWord moves pos forward to the start of the next word, without passing limit.
func alignWord(runes []rune, pos, limit int) int {
	if pos == 0 || runes[pos-1] == ' ' || runes[pos-1] == '\n' {
		return pos
	}
	for i := pos; i < limit; i++ {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i + 1
		}
	}
	return pos
}
