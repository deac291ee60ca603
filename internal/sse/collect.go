package sse

import (
	"bufio"
	"io"
	"net/http"
	"strings"
)

const scannerBufferLimit = 1024 * 1024

// LineScanner iterates the data: payloads of an SSE body. Comment lines,
// event: lines and blank separators are skipped; a [DONE] sentinel ends the
// iteration.
type LineScanner struct {
	s        *bufio.Scanner
	data     []byte
	finished bool
}

func NewLineScanner(r io.Reader) *LineScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), scannerBufferLimit)
	return &LineScanner{s: s}
}

// Next advances to the next data: payload. It returns false at end of
// stream, on read error, or once the [DONE] sentinel is seen.
func (ls *LineScanner) Next() bool {
	if ls.finished {
		return false
	}
	for ls.s.Scan() {
		line := strings.TrimSpace(ls.s.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			ls.finished = true
			return false
		}
		ls.data = []byte(payload)
		return true
	}
	ls.finished = true
	return false
}

// Data returns the current payload. Valid until the next call to Next.
func (ls *LineScanner) Data() []byte {
	return ls.data
}

// Collected is the drained result of a completed upstream stream.
type Collected struct {
	Thinking string
	Text     string
}

// CollectStream drains an upstream completion response into its final
// thinking and text strings. Citation markers are dropped from visible text
// when search is enabled. The response body is always closed.
func CollectStream(resp *http.Response, thinkingEnabled, searchEnabled bool) Collected {
	defer resp.Body.Close()

	var thinking, text strings.Builder
	currentType := ""
	sc := NewLineScanner(resp.Body)
	for sc.Next() {
		parsed := ParseLine(sc.Data(), thinkingEnabled, currentType)
		currentType = parsed.NewType
		if !parsed.Parsed {
			continue
		}
		if parsed.ErrorMessage != "" || parsed.ContentFilter {
			break
		}
		for _, p := range parsed.Parts {
			if p.Type == "thinking" {
				if thinkingEnabled {
					thinking.WriteString(p.Text)
				}
				continue
			}
			if searchEnabled && IsCitation(p.Text) {
				continue
			}
			text.WriteString(p.Text)
		}
		if parsed.Stop {
			break
		}
	}
	return Collected{Thinking: thinking.String(), Text: text.String()}
}
