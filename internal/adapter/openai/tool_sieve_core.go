package openai

import (
	"encoding/json"
	"strings"

	"ds2api/internal/util"
)

func processToolSieveChunk(state *toolStreamSieveState, chunk string, toolNames []string) []toolStreamEvent {
	if state == nil {
		return nil
	}
	if chunk != "" {
		state.pending.WriteString(chunk)
	}
	events := make([]toolStreamEvent, 0, 2)

	for {
		if state.draining {
			if state.pending.Len() == 0 {
				break
			}
			tail := state.pending.String()
			state.pending.Reset()
			rest, closed := advanceSpanDrain(state, tail)
			if !closed {
				break
			}
			state.draining = false
			state.drainHold = ""
			if rest != "" {
				state.pending.WriteString(rest)
			}
			continue
		}
		if state.capturing {
			if state.pending.Len() > 0 {
				state.capture.WriteString(state.pending.String())
				state.pending.Reset()
			}
			if state.incrementalDeltasAllowed() {
				if deltas := buildIncrementalToolDeltas(state); len(deltas) > 0 {
					events = append(events, toolStreamEvent{ToolCallDeltas: deltas})
				}
			}
			released, calls, remainder, resolved := advanceToolCapture(state, toolNames)
			if !resolved {
				if state.capture.Len() > toolSieveCaptureLimit {
					events = append(events, abandonOversizeCapture(state)...)
					continue
				}
				break
			}
			state.endCapture()
			if released != "" {
				events = append(events, toolStreamEvent{Content: released})
			}
			if len(calls) > 0 {
				events = append(events, toolStreamEvent{ToolCalls: calls})
			}
			if remainder != "" {
				state.pending.WriteString(remainder)
			}
			continue
		}

		pending := state.pending.String()
		if pending == "" {
			break
		}
		start, fenced := findCaptureStart(pending)
		if start >= 0 {
			if prefix := pending[:start]; prefix != "" {
				events = append(events, toolStreamEvent{Content: prefix})
			}
			state.pending.Reset()
			state.startCapture(pending[start:], fenced)
			continue
		}
		safe, hold := splitBacktickHold(pending)
		if safe == "" {
			break
		}
		state.pending.Reset()
		state.pending.WriteString(hold)
		events = append(events, toolStreamEvent{Content: safe})
	}

	return events
}

// flushToolSieve finalizes a stream. A capture still unresolved here is
// indistinguishable from a truncated tool directive, so it is dropped rather
// than released. Safe to call more than once.
func flushToolSieve(state *toolStreamSieveState, toolNames []string) []toolStreamEvent {
	if state == nil {
		return nil
	}
	events := processToolSieveChunk(state, "", toolNames)
	if state.capturing {
		state.endCapture()
	}
	if state.draining {
		state.draining = false
		state.drainHold = ""
	}
	if state.pending.Len() > 0 {
		events = append(events, toolStreamEvent{Content: state.pending.String()})
		state.pending.Reset()
	}
	return events
}

// findCaptureStart returns the earliest index where a capture should begin:
// a brace for a bare JSON candidate, or a ``` marker for a fenced one.
func findCaptureStart(s string) (int, bool) {
	brace := strings.IndexByte(s, '{')
	fence := strings.Index(s, "```")
	switch {
	case brace < 0 && fence < 0:
		return -1, false
	case fence < 0 || (brace >= 0 && brace < fence):
		return brace, false
	default:
		return fence, true
	}
}

// splitBacktickHold keeps a short trailing backtick run in the buffer in case
// the next chunk completes a ``` marker.
func splitBacktickHold(s string) (safe, hold string) {
	k := 0
	for k < len(s) && s[len(s)-1-k] == '`' {
		k++
	}
	if k == 0 {
		return s, ""
	}
	return s[:len(s)-k], s[len(s)-k:]
}

// abandonOversizeCapture bails out of a capture that grew past the limit.
// Spans that still look like a tool directive are dropped, not leaked — and
// their unarrived tail is drained too, so the client never sees trailing
// fragments of the directive.
func abandonOversizeCapture(state *toolStreamSieveState) []toolStreamEvent {
	content := state.capture.String()
	passthroughFence := state.fenced && state.fenceDecided && !state.fenceCommitted
	suspect := state.badQuote || strings.Contains(strings.ToLower(content), "tool_calls")
	fenced := state.fenced
	state.endCapture()
	if suspect && !passthroughFence {
		// endCapture keeps the brace cursor (depth, inStr, strQuote,
		// escaped), so the drain resumes the scan exactly where the
		// abandoned capture stopped
		state.draining = true
		state.drainFenced = fenced
		state.drainHold = ""
		if fenced && len(content) >= 3 {
			// a fence close split across the drop boundary still matches
			state.drainHold = content[len(content)-3:]
		}
		return nil
	}
	return []toolStreamEvent{{Content: content}}
}

// advanceSpanDrain discards input belonging to an abandoned oversize span.
// Once the span's brace depth closes (or its fence does) it reports the text
// after the span so normal sieving resumes there.
func advanceSpanDrain(state *toolStreamSieveState, tail string) (string, bool) {
	if state.drainFenced {
		s := state.drainHold + tail
		if idx := strings.Index(s, "\n```"); idx >= 0 {
			return s[idx+4:], true
		}
		if len(s) > 3 {
			s = s[len(s)-3:]
		}
		state.drainHold = s
		return "", false
	}
	for i := 0; i < len(tail); i++ {
		ch := tail[i]
		if state.inStr {
			switch {
			case state.escaped:
				state.escaped = false
			case ch == '\\':
				state.escaped = true
			case ch == state.strQuote:
				state.inStr = false
			}
			continue
		}
		switch ch {
		case '"', '\'':
			state.inStr = true
			state.strQuote = ch
		case '{':
			state.depth++
		case '}':
			state.depth--
			if state.depth <= 0 {
				return tail[i+1:], true
			}
		}
	}
	return "", false
}

func advanceToolCapture(state *toolStreamSieveState, toolNames []string) (released string, calls []util.ParsedToolCall, remainder string, resolved bool) {
	if state.fenced {
		return advanceFencedCapture(state, toolNames)
	}
	return advanceBareCapture(state, toolNames)
}

// advanceBareCapture resumes the brace/string scan over a {-led capture.
// Cursor state survives across feeds so each byte is inspected once.
func advanceBareCapture(state *toolStreamSieveState, toolNames []string) (string, []util.ParsedToolCall, string, bool) {
	buf := state.capture.String()
	i := state.scanned
	for i < len(buf) {
		ch := buf[i]
		if state.inStr {
			switch {
			case state.escaped:
				state.escaped = false
			case ch == '\\':
				state.escaped = true
			case ch == state.strQuote:
				state.inStr = false
			}
			i++
			continue
		}
		if state.needLead && i > 0 {
			if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
				i++
				continue
			}
			state.needLead = false
			if ch != '"' && ch != '\'' && ch != '}' {
				// a key must open with a quote: this brace is prose
				state.scanned = i
				return buf[:i], nil, buf[i:], true
			}
		}
		switch ch {
		case '"':
			state.inStr = true
			state.strQuote = ch
		case '\'':
			state.inStr = true
			state.strQuote = ch
			state.badQuote = true
		case '{':
			state.depth++
		case '}':
			state.depth--
			if state.depth == 0 {
				state.scanned = i + 1
				return resolveBareSpan(buf[:i+1], buf[i+1:], state.badQuote, toolNames)
			}
		}
		i++
	}
	state.scanned = i
	return "", nil, "", false
}

func resolveBareSpan(span, remainder string, badQuote bool, toolNames []string) (string, []util.ParsedToolCall, string, bool) {
	if badQuote {
		// single-quoted pseudo-JSON: a malformed tool directive, not prose
		return "", nil, remainder, true
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return "", nil, remainder, true
	}
	if _, ok := obj["tool_calls"]; !ok {
		return span, nil, remainder, true
	}
	if calls := util.ParseToolCalls(span, toolNames); len(calls) > 0 {
		return "", calls, remainder, true
	}
	return "", nil, remainder, true
}

// advanceFencedCapture buffers a ``` fence through its closing marker. A
// ```json fence, or a bare fence opening on '{', is treated as a tool-call
// candidate; any other fence is released untouched once complete.
func advanceFencedCapture(state *toolStreamSieveState, toolNames []string) (string, []util.ParsedToolCall, string, bool) {
	buf := state.capture.String()
	if !state.fenceTagDone {
		nl := strings.IndexByte(buf[3:], '\n')
		if nl < 0 {
			if len(buf) > 3+toolSieveFenceTagLimit {
				// too long for a fence tag line: not a code fence after all
				return "```", nil, buf[3:], true
			}
			return "", nil, "", false
		}
		tag := strings.ToLower(strings.TrimSpace(buf[3 : 3+nl]))
		state.fenceTagDone = true
		state.fenceBodyStart = 3 + nl + 1
		state.scanned = state.fenceBodyStart - 1
		if tag != "" {
			state.fenceDecided = true
			state.fenceCommitted = tag == "json"
		}
	}
	if !state.fenceDecided {
		j := skipSpaces(buf, state.fenceBodyStart)
		if j >= len(buf) {
			return "", nil, "", false
		}
		state.fenceDecided = true
		state.fenceCommitted = buf[j] == '{'
	}
	idx := strings.Index(buf[state.scanned:], "\n```")
	if idx < 0 {
		if len(buf)-3 > state.scanned {
			state.scanned = len(buf) - 3
		}
		return "", nil, "", false
	}
	closeAt := state.scanned + idx
	end := closeAt + 4
	span := buf[:end]
	remainder := buf[end:]
	if !state.fenceCommitted {
		return span, nil, remainder, true
	}
	if closeAt < state.fenceBodyStart {
		// the close marker reused the tag line's own newline: empty body
		closeAt = state.fenceBodyStart
	}
	interior := strings.TrimSpace(buf[state.fenceBodyStart:closeAt])
	return resolveFencedSpan(span, interior, remainder, toolNames)
}

func resolveFencedSpan(span, interior, remainder string, toolNames []string) (string, []util.ParsedToolCall, string, bool) {
	if interior == "" || interior[0] != '{' {
		return span, nil, remainder, true
	}
	candidate, _, ok := extractJSONObjectFrom(interior, 0)
	if !ok {
		// fence closed over an unbalanced object: drop the span
		return "", nil, remainder, true
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return "", nil, remainder, true
	}
	if _, ok := obj["tool_calls"]; !ok {
		return span, nil, remainder, true
	}
	if calls := util.ParseToolCalls(candidate, toolNames); len(calls) > 0 {
		return "", calls, remainder, true
	}
	return "", nil, remainder, true
}
