package sse

import (
	"testing"
)

func TestParseLineStatusFinished(t *testing.T) {
	res := ParseLine([]byte(`{"p":"status","v":"FINISHED"}`), false, "text")
	if !res.Parsed {
		t.Fatalf("expected parsed frame")
	}
	if !res.Stop {
		t.Fatalf("expected Stop for FINISHED status")
	}
	if len(res.Parts) != 0 {
		t.Fatalf("expected no parts, got %#v", res.Parts)
	}
}

func TestParseLineStatusFinishedInBatchedArray(t *testing.T) {
	res := ParseLine([]byte(`[{"p":"status","v":"FINISHED"}]`), false, "text")
	if !res.Parsed || !res.Stop {
		t.Fatalf("expected batched FINISHED to stop, got %#v", res)
	}
	if len(res.Parts) != 0 {
		t.Fatalf("expected no parts, got %#v", res.Parts)
	}
}

func TestParseLineFragmentsAppendSwitchesRunningType(t *testing.T) {
	line := `{"p":"response/fragments","o":"APPEND","v":[{"type":"THINK","content":"想一想。"},{"type":"RESPONSE","content":"答案是"}]}`
	res := ParseLine([]byte(line), true, "thinking")
	if !res.Parsed {
		t.Fatalf("expected parsed frame")
	}
	if len(res.Parts) != 2 {
		t.Fatalf("expected two parts, got %#v", res.Parts)
	}
	if res.Parts[0].Type != "thinking" || res.Parts[0].Text != "想一想。" {
		t.Fatalf("unexpected first part %#v", res.Parts[0])
	}
	if res.Parts[1].Type != "text" || res.Parts[1].Text != "答案是" {
		t.Fatalf("unexpected second part %#v", res.Parts[1])
	}
	if res.NewType != "text" {
		t.Fatalf("expected running type to follow last fragment, got %q", res.NewType)
	}
}

func TestParseLineFragmentsEmptyContentStillSwitchesType(t *testing.T) {
	line := `{"p":"response/fragments","o":"APPEND","v":[{"type":"RESPONSE","content":""}]}`
	res := ParseLine([]byte(line), true, "thinking")
	if len(res.Parts) != 0 {
		t.Fatalf("expected no parts for empty fragment, got %#v", res.Parts)
	}
	if res.NewType != "text" {
		t.Fatalf("expected type switch to text, got %q", res.NewType)
	}
}

func TestParseLineFragmentsWithoutAppendOpIgnored(t *testing.T) {
	line := `{"p":"response/fragments","v":[{"type":"RESPONSE","content":"x"}]}`
	res := ParseLine([]byte(line), false, "text")
	if len(res.Parts) != 0 {
		t.Fatalf("expected no parts without APPEND op, got %#v", res.Parts)
	}
}

func TestParseLineTopLevelContentPaths(t *testing.T) {
	res := ParseLine([]byte(`{"p":"response/content","v":"正文"}`), false, "text")
	if len(res.Parts) != 1 || res.Parts[0].Type != "text" || res.Parts[0].Text != "正文" {
		t.Fatalf("unexpected parts %#v", res.Parts)
	}

	res = ParseLine([]byte(`{"p":"response/thinking_content","v":"思考"}`), true, "thinking")
	if len(res.Parts) != 1 || res.Parts[0].Type != "thinking" || res.Parts[0].Text != "思考" {
		t.Fatalf("unexpected parts %#v", res.Parts)
	}
}

func TestParseLineResponseListMixedItems(t *testing.T) {
	line := `{"p":"response","v":[` +
		`{"p":"response/content","v":"A"},` +
		`{"v":"B"},` +
		`{"p":"status","v":"FINISHED"},` +
		`{"p":"response/meta"}` +
		`]}`
	res := ParseLine([]byte(line), false, "text")
	if !res.Parsed {
		t.Fatalf("expected parsed frame")
	}
	if !res.Stop {
		t.Fatalf("expected nested FINISHED to stop")
	}
	if len(res.Parts) != 2 {
		t.Fatalf("expected two parts, got %#v", res.Parts)
	}
	if res.Parts[0].Text != "A" || res.Parts[1].Text != "B" {
		t.Fatalf("unexpected part texts %#v", res.Parts)
	}
	if res.Parts[1].Type != "text" {
		t.Fatalf("bare string item should take the running type, got %#v", res.Parts[1])
	}
}

func TestParseLineResponseListBareStringUsesRunningThinkingType(t *testing.T) {
	res := ParseLine([]byte(`{"p":"response","v":[{"v":"推理中"}]}`), true, "")
	if len(res.Parts) != 1 {
		t.Fatalf("expected one part, got %#v", res.Parts)
	}
	if res.Parts[0].Type != "thinking" {
		t.Fatalf("expected default thinking type for reasoner stream, got %#v", res.Parts[0])
	}
}

func TestParseLineResponseListNestedFlatten(t *testing.T) {
	line := `{"p":"response","v":[{"p":"response/content","v":["片段1",["片段2"],{"type":"RESPONSE","content":"片段3"},{"type":"THINK","content":"隐藏"},{"content":"无类型"}]}]}`
	res := ParseLine([]byte(line), false, "text")
	if len(res.Parts) != 3 {
		t.Fatalf("expected three parts, got %#v", res.Parts)
	}
	for i, want := range []string{"片段1", "片段2", "片段3"} {
		if res.Parts[i].Text != want {
			t.Fatalf("part %d = %#v, want text %q", i, res.Parts[i], want)
		}
	}
}

func TestParseLineResponseObjectWrappingFragments(t *testing.T) {
	line := `{"p":"response","v":{"response":{"fragments":[{"type":"THINK","content":"先想"},{"type":"RESPONSE","content":"再答"}]}}}`
	res := ParseLine([]byte(line), true, "thinking")
	if len(res.Parts) != 2 {
		t.Fatalf("expected two parts, got %#v", res.Parts)
	}
	if res.Parts[0].Type != "thinking" || res.Parts[1].Type != "text" {
		t.Fatalf("unexpected part types %#v", res.Parts)
	}
	if res.NewType != "text" {
		t.Fatalf("expected running type text, got %q", res.NewType)
	}
}

func TestParseLineUnknownShapesAreNoOps(t *testing.T) {
	for _, line := range []string{
		`{"p":"unknown/path","v":"x"}`,
		`{"p":"response/content"}`,
		`{"v":42}`,
		`"just a string"`,
		`17`,
	} {
		res := ParseLine([]byte(line), false, "text")
		if !res.Parsed {
			t.Fatalf("valid JSON should report parsed: %s", line)
		}
		if res.Stop || len(res.Parts) != 0 || res.ErrorMessage != "" {
			t.Fatalf("expected no-op for %s, got %#v", line, res)
		}
	}
}

func TestParseLineInvalidJSONNotParsed(t *testing.T) {
	res := ParseLine([]byte(`{"p":"status","v":`), false, "text")
	if res.Parsed {
		t.Fatalf("truncated JSON must not report parsed")
	}
	if res.Stop || len(res.Parts) != 0 {
		t.Fatalf("truncated JSON must be a no-op, got %#v", res)
	}
}

func TestParseLineContentFilterStatus(t *testing.T) {
	res := ParseLine([]byte(`{"p":"status","v":"CONTENT_FILTER"}`), false, "text")
	if !res.ContentFilter || !res.Stop {
		t.Fatalf("expected content filter stop, got %#v", res)
	}
}

func TestParseLineUpstreamErrorFrames(t *testing.T) {
	res := ParseLine([]byte(`{"error":{"message":"rate limited"}}`), false, "text")
	if res.ErrorMessage != "rate limited" {
		t.Fatalf("expected error message, got %#v", res)
	}

	res = ParseLine([]byte(`{"code":40303,"msg":"account busy"}`), false, "text")
	if res.ErrorMessage != "account busy" {
		t.Fatalf("expected code/msg error, got %#v", res)
	}
}

func TestIsCitation(t *testing.T) {
	if !IsCitation("[citation:3]") {
		t.Fatalf("expected citation marker match")
	}
	if !IsCitation("  [citation:12]  ") {
		t.Fatalf("expected trimmed citation marker match")
	}
	if IsCitation("见 [citation:3] 处") {
		t.Fatalf("embedded citation is regular text")
	}
	if IsCitation("[citation:3") {
		t.Fatalf("unterminated marker is regular text")
	}
}
