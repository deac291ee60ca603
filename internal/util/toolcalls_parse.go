package util

import (
	"encoding/json"
	"strings"
)

type ParsedToolCall struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ParseToolCalls recovers structured tool calls from completed model output.
//
// Candidates are tried in order: the whole trimmed text, the interior of each
// fenced ```json block, and every top-level balanced {...} object found in the
// text. The first candidate that yields calls wins, so a fenced payload takes
// precedence over a bare object appearing later in the same message.
//
// availableToolNames is advisory context only. Models regularly emit tool
// names outside the declared set (typos, hallucinated helpers) and dropping
// those calls here would leak raw JSON to end users, so name-based filtering
// is left to surface-level policy layers.
func ParseToolCalls(text string, availableToolNames []string) []ParsedToolCall {
	_ = availableToolNames
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	for _, candidate := range buildToolCallCandidates(trimmed) {
		if parsed := parseToolCallsPayload(candidate); len(parsed) > 0 {
			return parsed
		}
	}
	return nil
}

// ExtractToolNames returns one name per declared tool entry, in order.
// Entries without a usable function name yield "unknown" so the result always
// aligns 1:1 with the declaration list.
func ExtractToolNames(tools []any) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		name := ""
		if m, ok := t.(map[string]any); ok {
			if fn, ok := m["function"].(map[string]any); ok {
				name, _ = fn["name"].(string)
			}
			if strings.TrimSpace(name) == "" {
				// Responses-style declarations carry the name at the top level.
				if n, ok := m["name"].(string); ok {
					name = n
				}
			}
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = "unknown"
		}
		names = append(names, name)
	}
	return names
}

func parseToolCallsPayload(payload string) []ParsedToolCall {
	if !strings.Contains(payload, "tool_calls") {
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil
	}
	items, ok := decoded["tool_calls"].([]any)
	if !ok {
		return nil
	}
	out := make([]ParsedToolCall, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if tc, ok := parseToolCallItem(m); ok {
			out = append(out, tc)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseToolCallItem(m map[string]any) (ParsedToolCall, bool) {
	name, _ := m["name"].(string)
	inputRaw, hasInput := m["input"]
	if fn, ok := m["function"].(map[string]any); ok {
		if name == "" {
			name, _ = fn["name"].(string)
		}
		if !hasInput {
			if v, ok := fn["arguments"]; ok {
				inputRaw = v
				hasInput = true
			}
		}
	}
	if !hasInput {
		for _, key := range []string{"arguments", "args", "parameters", "params"} {
			if v, ok := m[key]; ok {
				inputRaw = v
				hasInput = true
				break
			}
		}
	}
	if strings.TrimSpace(name) == "" {
		return ParsedToolCall{}, false
	}
	return ParsedToolCall{
		Name:  strings.TrimSpace(name),
		Input: parseToolCallInput(inputRaw),
	}, true
}

// parseToolCallInput normalizes the argument payload to an object. String
// arguments that decode to a JSON object are used directly; anything else
// (scalars, arrays, unparseable strings) is preserved under "_raw" instead of
// being discarded, so downstream consumers keep the original value.
func parseToolCallInput(v any) map[string]any {
	switch x := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return x
	case string:
		raw := strings.TrimSpace(x)
		if raw == "" {
			return map[string]any{}
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			if obj, ok := parsed.(map[string]any); ok {
				return obj
			}
		}
		return map[string]any{"_raw": raw}
	default:
		return map[string]any{"_raw": x}
	}
}
