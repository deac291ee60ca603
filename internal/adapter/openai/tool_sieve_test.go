package openai

import (
	"strings"
	"testing"
)

func runToolSieve(chunks []string, toolNames []string) (string, int, []string) {
	state := &toolStreamSieveState{}
	var text strings.Builder
	callEvents := 0
	names := make([]string, 0, 2)
	collect := func(events []toolStreamEvent) {
		for _, evt := range events {
			text.WriteString(evt.Content)
			if len(evt.ToolCalls) > 0 {
				callEvents++
				for _, call := range evt.ToolCalls {
					names = append(names, call.Name)
				}
			}
		}
	}
	for _, chunk := range chunks {
		collect(processToolSieveChunk(state, chunk, toolNames))
	}
	collect(flushToolSieve(state, toolNames))
	return text.String(), callEvents, names
}

func TestToolSievePlainTextPassesThroughUnchanged(t *testing.T) {
	chunks := []string{"你好，", "这是普通文本。", "No braces here."}
	text, callEvents, _ := runToolSieve(chunks, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != strings.Join(chunks, "") {
		t.Fatalf("plain text altered by sieve: %q", text)
	}
}

func TestToolSieveSplitAnywhereNeverLeaksPayload(t *testing.T) {
	payload := `{"tool_calls":[{"name":"read_file","input":{"path":"README.MD"}}]}`
	for cut := 0; cut <= len(payload); cut++ {
		text, callEvents, names := runToolSieve([]string{payload[:cut], payload[cut:]}, []string{"read_file"})
		if strings.Contains(text, "{") || strings.Contains(strings.ToLower(text), "tool_calls") {
			t.Fatalf("cut=%d leaked payload text: %q", cut, text)
		}
		if callEvents != 1 {
			t.Fatalf("cut=%d expected exactly one tool_calls event, got %d", cut, callEvents)
		}
		if len(names) != 1 || names[0] != "read_file" {
			t.Fatalf("cut=%d unexpected calls: %#v", cut, names)
		}
	}
}

func TestToolSieveInvalidQuotedSpanDroppedExactly(t *testing.T) {
	text, callEvents, _ := runToolSieve([]string{
		"前置正文D。",
		`{'tool_calls':[{'name':'search','input':{'q':'go'}}]}`,
		"后置正文E。",
	}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != "前置正文D。后置正文E。" {
		t.Fatalf("unexpected output text: %q", text)
	}
}

func TestToolSieveTruncatedCaptureDroppedOnFlush(t *testing.T) {
	state := &toolStreamSieveState{}
	names := []string{"read_file"}
	var text strings.Builder
	for _, evt := range processToolSieveChunk(state, "前置正文F。", names) {
		text.WriteString(evt.Content)
	}
	for _, evt := range processToolSieveChunk(state, `{"tool_calls":[{"name":"read_file"`, names) {
		text.WriteString(evt.Content)
		if len(evt.ToolCalls) > 0 {
			t.Fatalf("unexpected tool_calls event for truncated span")
		}
	}
	for _, evt := range flushToolSieve(state, names) {
		text.WriteString(evt.Content)
		if len(evt.ToolCalls) > 0 {
			t.Fatalf("unexpected tool_calls event at flush")
		}
	}
	if text.String() != "前置正文F。" {
		t.Fatalf("unexpected output text: %q", text.String())
	}
	if extra := flushToolSieve(state, names); len(extra) != 0 {
		t.Fatalf("second flush must be a no-op, got %#v", extra)
	}
}

func TestToolSieveBenignJSONObjectReleasedVerbatim(t *testing.T) {
	input := `配置是 {"name":"Alice","age":30} 这样。`
	text, callEvents, _ := runToolSieve([]string{input}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != input {
		t.Fatalf("benign json altered by sieve: %q", text)
	}
}

func TestToolSieveProseBraceReleased(t *testing.T) {
	input := "集合 {a, b, c} 中的元素。"
	text, callEvents, _ := runToolSieve([]string{input}, nil)
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != input {
		t.Fatalf("prose brace altered by sieve: %q", text)
	}
}

func TestToolSieveUnknownToolNameStillIntercepted(t *testing.T) {
	text, callEvents, names := runToolSieve(
		[]string{`{"tool_calls":[{"name":"not_in_schema","input":{"q":"go"}}]}`},
		[]string{"search"},
	)
	if callEvents != 1 || len(names) != 1 || names[0] != "not_in_schema" {
		t.Fatalf("expected interception regardless of declared names, events=%d names=%#v", callEvents, names)
	}
	if text != "" {
		t.Fatalf("expected no visible text for intercepted payload, got %q", text)
	}
}

func TestToolSieveFencedJSONToolCallIntercepted(t *testing.T) {
	text, callEvents, names := runToolSieve([]string{
		"调用如下：\n",
		"```json\n{\"tool_calls\":[{\"name\":\"search\",\"input\":{\"q\":\"go\"}}]}\n```",
		"\n完成。",
	}, []string{"search"})
	if callEvents != 1 || len(names) != 1 || names[0] != "search" {
		t.Fatalf("expected one intercepted call, events=%d names=%#v", callEvents, names)
	}
	if strings.Contains(text, "```") || strings.Contains(strings.ToLower(text), "tool_calls") {
		t.Fatalf("fenced payload leaked into text: %q", text)
	}
	if !strings.Contains(text, "调用如下：") || !strings.Contains(text, "完成。") {
		t.Fatalf("surrounding prose lost: %q", text)
	}
}

func TestToolSieveBareFenceJSONToolCallIntercepted(t *testing.T) {
	text, callEvents, names := runToolSieve([]string{
		"```\n{\"tool_calls\":[{\"name\":\"search\",\"input\":{\"q\":\"go\"}}]}\n```",
	}, []string{"search"})
	if callEvents != 1 || len(names) != 1 || names[0] != "search" {
		t.Fatalf("expected one intercepted call, events=%d names=%#v", callEvents, names)
	}
	if text != "" {
		t.Fatalf("expected no visible text, got %q", text)
	}
}

func TestToolSieveNonJSONFenceReleasedVerbatim(t *testing.T) {
	block := "```python\nprint({'tool_calls': 'demo'})\n```"
	text, callEvents, _ := runToolSieve([]string{"示例代码：\n", block, "\n结束。"}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != "示例代码：\n"+block+"\n结束。" {
		t.Fatalf("code fence altered by sieve: %q", text)
	}
}

func TestToolSieveFencedBenignJSONReleased(t *testing.T) {
	block := "```json\n{\"name\":\"Alice\"}\n```"
	text, callEvents, _ := runToolSieve([]string{block}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != block {
		t.Fatalf("benign fenced json altered by sieve: %q", text)
	}
}

func TestToolSieveFenceMarkerSplitAcrossChunks(t *testing.T) {
	text, callEvents, names := runToolSieve([]string{
		"文字``",
		"`json\n{\"tool_calls\":[{\"name\":\"search\",\"input\":{}}]}\n```",
	}, []string{"search"})
	if callEvents != 1 || len(names) != 1 || names[0] != "search" {
		t.Fatalf("expected one intercepted call, events=%d names=%#v", callEvents, names)
	}
	if text != "文字" {
		t.Fatalf("unexpected output text: %q", text)
	}
}

func TestToolSieveSameChunkPrefixAndSuffixPreserved(t *testing.T) {
	text, callEvents, _ := runToolSieve([]string{
		`我先调用：{"tool_calls":[{"name":"search","input":{"q":"go"}}]}然后继续。`,
	}, []string{"search"})
	if callEvents != 1 {
		t.Fatalf("expected one tool_calls event, got %d", callEvents)
	}
	if text != "我先调用：然后继续。" {
		t.Fatalf("unexpected output text: %q", text)
	}
}

func TestToolSieveEmptyJSONFenceReleasedVerbatim(t *testing.T) {
	block := "```json\n```"
	text, callEvents, _ := runToolSieve([]string{block}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != block {
		t.Fatalf("empty json fence altered by sieve: %q", text)
	}
}

func TestToolSieveEmptyJSONFenceSplitAcrossChunks(t *testing.T) {
	text, callEvents, _ := runToolSieve([]string{"```json\n", "```"}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != "```json\n```" {
		t.Fatalf("empty json fence altered by sieve: %q", text)
	}
}

func TestToolSieveOversizeSuspectSpanSwallowedToClose(t *testing.T) {
	pad := strings.Repeat("x", toolSieveCaptureLimit+1024)
	span := `{"tool_calls":[{"name":"search","input":{"q":"` + pad + `"}}]}`
	text, callEvents, _ := runToolSieve([]string{
		"头部。",
		span[:5000],
		span[5000:9000],
		span[9000:] + "尾部。",
	}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("oversize span must not resolve into tool_calls, got %d events", callEvents)
	}
	if text != "头部。尾部。" {
		t.Fatalf("oversize tool span leaked into output: %q", text)
	}
}

func TestToolSieveOversizeFencedSpanSwallowedToClose(t *testing.T) {
	pad := strings.Repeat("z", toolSieveCaptureLimit+1024)
	block := "```json\n{\"tool_calls\":[{\"name\":\"search\",\"input\":{\"q\":\"" + pad + "\"}}]}\n```"
	text, callEvents, _ := runToolSieve([]string{
		block[:5000],
		block[5000:9000],
		block[9000:],
		"收尾。",
	}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("oversize span must not resolve into tool_calls, got %d events", callEvents)
	}
	if text != "收尾。" {
		t.Fatalf("oversize fenced tool span leaked into output: %q", text)
	}
}

func TestToolSieveOversizeBenignSpanReleased(t *testing.T) {
	pad := strings.Repeat("y", toolSieveCaptureLimit+1024)
	span := `{"data":"` + pad + `"}`
	text, callEvents, _ := runToolSieve([]string{span[:5000], span[5000:9000], span[9000:]}, []string{"search"})
	if callEvents != 0 {
		t.Fatalf("did not expect tool_calls events, got %d", callEvents)
	}
	if text != span {
		t.Fatalf("benign oversize json altered by sieve: len=%d head=%q", len(text), text[:min(len(text), 64)])
	}
}
