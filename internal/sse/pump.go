package sse

import (
	"context"
	"io"
)

// StartParsedLinePump reads an upstream SSE body on its own goroutine and
// delivers normalized LineResults. The done channel closes after the last
// result is delivered (end of stream, [DONE], or context cancellation).
// The caller retains ownership of body and closes it.
func StartParsedLinePump(ctx context.Context, body io.Reader, thinkingEnabled bool, initialType string) (<-chan LineResult, <-chan struct{}) {
	lines := make(chan LineResult, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(lines)

		currentType := initialType
		sc := NewLineScanner(body)
		for sc.Next() {
			parsed := ParseLine(sc.Data(), thinkingEnabled, currentType)
			currentType = parsed.NewType
			select {
			case lines <- parsed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines, done
}
