package chunker

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one window of source text. Offsets are byte offsets into the
// original string; [StartOffset, EndOffset) slices the input exactly.
type Chunk struct {
	Text        string
	StartOffset int
	EndOffset   int
	Tokens      int
}

// Options controls chunk sizing. Token budgets are approximate and are
// converted to characters with the same 4-chars-per-token estimate used
// by ApproxTokens.
type Options struct {
	MaxTokens     int
	OverlapTokens int
}

const charsPerToken = 4

// DefaultOptions matches the embedding pipeline defaults.
func DefaultOptions() Options {
	return Options{
		MaxTokens:     800,
		OverlapTokens: 200,
	}
}

// ApproxTokens is a cheap token estimator (~4 chars per token).
func ApproxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n <= 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// Split walks the text emitting overlapping windows bounded by the token
// budget. The cut point prefers the last paragraph break ("\n\n") inside
// the window when it falls past the window midpoint, then the last
// sentence break (". ") under the same rule, else a hard cut at the size
// limit. After each emitted chunk the cursor retreats by the overlap so
// adjacent chunks share context; overlap applies after hard cuts too.
// A tail shorter than the overlap is absorbed into the final chunk
// instead of becoming a fragment, so the last chunk may exceed the
// budget by up to the overlap.
//
// Empty input yields no chunks; input within the budget yields exactly one.
func Split(text string, opts Options) []Chunk {
	if text == "" {
		return nil
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}

	maxChars := opts.MaxTokens * charsPerToken
	overlapChars := opts.OverlapTokens * charsPerToken
	if overlapChars >= maxChars {
		// Overlap must leave room for forward progress.
		overlapChars = maxChars / 2
	}

	var chunks []Chunk
	start := 0

	for start < len(text) {
		remaining := len(text) - start

		// Tail fits in one window: emit and stop.
		if remaining <= maxChars {
			chunks = append(chunks, makeChunk(text, start, len(text)))
			break
		}

		end := cutPoint(text, start, start+maxChars)

		// Absorb a sub-overlap tail rather than emit a fragment.
		if len(text)-end <= overlapChars {
			chunks = append(chunks, makeChunk(text, start, len(text)))
			break
		}

		chunks = append(chunks, makeChunk(text, start, end))

		next := end - overlapChars
		if next <= start {
			// Degenerate overlap would stall the walk.
			next = end
		}
		start = alignRuneStart(text, next)
	}

	return chunks
}

// cutPoint picks where to end the window [start, limit). A paragraph or
// sentence break is only taken when it lands past the window midpoint,
// so pathological inputs (a break near the very start) still make
// reasonable progress.
func cutPoint(text string, start, limit int) int {
	window := text[start:limit]
	mid := len(window) / 2

	if idx := strings.LastIndex(window, "\n\n"); idx >= mid {
		return start + idx + len("\n\n")
	}
	if idx := strings.LastIndex(window, ". "); idx >= mid {
		return start + idx + len(". ")
	}

	// Hard cut; never split a multi-byte rune.
	return alignRuneStart(text, limit)
}

func makeChunk(text string, start, end int) Chunk {
	content := text[start:end]
	return Chunk{
		Text:        content,
		StartOffset: start,
		EndOffset:   end,
		Tokens:      ApproxTokens(content),
	}
}

// alignRuneStart moves pos backwards to the nearest rune boundary.
func alignRuneStart(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}
