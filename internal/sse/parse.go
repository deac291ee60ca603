// Package sse normalizes the DeepSeek web SSE wire format into typed content
// parts. Upstream frames are path-addressed deltas {"p": path, "o": op,
// "v": value}; the value shape varies by path and by server generation, so
// every branch here is total: unrecognized shapes parse to an empty result
// instead of failing the stream.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Part is one normalized content fragment.
type Part struct {
	Type string // "thinking" or "text"
	Text string
}

// LineResult is the outcome of normalizing one data: line.
type LineResult struct {
	// Parsed reports whether the line held a well-formed frame. A false
	// value means the line should be ignored, not that the stream failed.
	Parsed bool
	// Stop is the upstream FINISHED signal.
	Stop bool
	// NewType is the running fragment kind after this line; callers thread
	// it back in as currentType for the next line.
	NewType string
	Parts   []Part

	ContentFilter bool
	ErrorMessage  string
}

func (r *LineResult) addPart(partType, text string) {
	r.Parts = append(r.Parts, Part{Type: partType, Text: text})
}

// ParseLine normalizes one upstream data: payload. currentType carries the
// running fragment kind between lines; when empty it defaults from
// wasThinking (reasoner streams open in thinking mode).
func ParseLine(raw []byte, wasThinking bool, currentType string) LineResult {
	if currentType == "" {
		currentType = "text"
		if wasThinking {
			currentType = "thinking"
		}
	}
	res := LineResult{NewType: currentType}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return res
	}
	var top any
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return res
	}
	res.Parsed = true

	switch v := top.(type) {
	case map[string]any:
		applyDelta(&res, v)
	case []any:
		// some generations batch deltas into one line
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				applyDelta(&res, m)
			}
		}
	}
	return res
}

func applyDelta(res *LineResult, m map[string]any) {
	if msg := upstreamErrorMessage(m); msg != "" {
		res.ErrorMessage = msg
		return
	}

	path, _ := m["p"].(string)
	op, _ := m["o"].(string)
	value, hasValue := m["v"]
	if !hasValue {
		return
	}

	switch path {
	case "status":
		applyStatusValue(res, value)
	case "response/fragments":
		if op == "APPEND" {
			appendFragmentParts(res, value)
		}
	case "response/content":
		appendContentValue(res, value, "text")
	case "response/thinking_content":
		appendContentValue(res, value, "thinking")
	case "response":
		switch inner := value.(type) {
		case []any:
			applyResponseList(res, inner)
		case map[string]any:
			// full-object frame wrapping {response:{fragments:[...]}}
			if wrapped, ok := inner["response"].(map[string]any); ok {
				appendFragmentParts(res, wrapped["fragments"])
			}
		}
	}
}

func applyStatusValue(res *LineResult, value any) {
	s, ok := value.(string)
	if !ok {
		return
	}
	switch s {
	case "FINISHED":
		res.Stop = true
	case "CONTENT_FILTER":
		res.ContentFilter = true
		res.Stop = true
	}
}

// appendFragmentParts handles the fragments APPEND form: a list of
// {type, content} objects. Every fragment moves the running type, including
// empty-content type-switch markers.
func appendFragmentParts(res *LineResult, value any) {
	items, ok := value.([]any)
	if !ok {
		return
	}
	for _, raw := range items {
		frag, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var partType string
		switch typ, _ := frag["type"].(string); typ {
		case "THINK":
			partType = "thinking"
		case "RESPONSE":
			partType = "text"
		default:
			continue
		}
		res.NewType = partType
		if content, ok := frag["content"].(string); ok && content != "" {
			res.addPart(partType, content)
		}
	}
}

func appendContentValue(res *LineResult, value any, partType string) {
	switch v := value.(type) {
	case string:
		if v != "" {
			res.addPart(partType, v)
		}
	case []any:
		flattenContentList(res, v, partType)
	}
}

// applyResponseList handles the batched list form: each item is a nested
// delta that may carry its own path. Items with no value field are markers
// and are skipped.
func applyResponseList(res *LineResult, items []any) {
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			if s, isStr := raw.(string); isStr && s != "" {
				res.addPart(res.NewType, s)
			}
			continue
		}
		value, hasValue := item["v"]
		if !hasValue {
			continue
		}
		path, _ := item["p"].(string)
		switch path {
		case "status":
			applyStatusValue(res, value)
			continue
		case "response/content":
			appendContentValue(res, value, "text")
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				res.addPart(res.NewType, v)
			}
		case []any:
			flattenContentList(res, v, res.NewType)
		}
	}
}

// flattenContentList walks arbitrarily nested content lists: strings are
// taken verbatim, nested lists recurse, and objects contribute their content
// only when typed RESPONSE.
func flattenContentList(res *LineResult, items []any, partType string) {
	for _, raw := range items {
		switch v := raw.(type) {
		case string:
			if v != "" {
				res.addPart(partType, v)
			}
		case []any:
			flattenContentList(res, v, partType)
		case map[string]any:
			typ, _ := v["type"].(string)
			if typ != "RESPONSE" {
				continue
			}
			if content, ok := v["content"].(string); ok && content != "" {
				res.addPart(partType, content)
			}
		}
	}
}

func upstreamErrorMessage(m map[string]any) string {
	if e, ok := m["error"]; ok {
		switch v := e.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case map[string]any:
			for _, key := range []string{"message", "msg"} {
				if msg, ok := v[key].(string); ok && strings.TrimSpace(msg) != "" {
					return msg
				}
			}
			return "upstream error"
		}
	}
	// bare {code, msg} frames carry no path
	if _, hasPath := m["p"]; !hasPath {
		if _, hasCode := m["code"]; hasCode {
			if msg, ok := m["msg"].(string); ok && strings.TrimSpace(msg) != "" {
				return msg
			}
		}
	}
	return ""
}

// IsCitation reports whether a text fragment is a search citation marker of
// the form [citation:N]. Search-enabled streams drop these from visible text.
func IsCitation(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "[citation:") && strings.HasSuffix(t, "]")
}
