// Package embedding defines the narrow capability the engine consumes to turn
// text into vectors, plus the providers shipped with the binary. The engine
// works correctly with a provider that always returns a placeholder vector;
// semantic search just degrades.
package embedding

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Embedder turns text into a fixed-dimension vector. Implementations must
// honor ctx cancellation; a canceled call is treated by callers exactly like
// an embedding failure (non-fatal, logged).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// maxEmbedChars caps how much of a record body is embedded. Titles carry the
// strongest signal; very long bodies are truncated rather than chunked.
const maxEmbedChars = 8000

// Text builds the string actually embedded for a record: title plus as much
// of the body as fits in the budget. A title that fills the budget on its own
// drops the body entirely. Cuts land on rune boundaries so the result stays
// valid UTF-8.
func Text(title, body string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(truncate(title, maxEmbedChars))
		b.WriteString("\n\n")
	}
	if room := maxEmbedChars - b.Len(); room > 0 {
		b.WriteString(truncate(body, room))
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Static is an Embedder that returns the same placeholder vector for every
// input. It is the default when no provider is configured.
type Static struct {
	dim int
}

// NewStatic creates a placeholder provider of the given dimension.
func NewStatic(dimension int) *Static {
	return &Static{dim: dimension}
}

// Embed returns a zero vector of the configured dimension.
func (s *Static) Embed(ctx context.Context, _ string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return make([]float32, s.dim), nil
}

// Dimension returns the configured dimension.
func (s *Static) Dimension() int {
	return s.dim
}
