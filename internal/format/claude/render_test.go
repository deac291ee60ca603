package claude

import (
	"strings"
	"testing"
)

func TestBuildMessageResponseToolUse(t *testing.T) {
	obj := BuildMessageResponse(
		"msg_1",
		"claude-sonnet-4-5",
		[]any{map[string]any{"role": "user", "content": "use tool"}},
		"",
		`{"tool_calls":[{"name":"search","input":{"q":"golang"}}]}`,
		[]string{"search"},
	)

	if obj["stop_reason"] != "tool_use" {
		t.Fatalf("expected stop_reason tool_use, got %#v", obj["stop_reason"])
	}
	content, _ := obj["content"].([]map[string]any)
	if len(content) != 1 {
		t.Fatalf("expected single tool_use block, got %#v", obj["content"])
	}
	block := content[0]
	if block["type"] != "tool_use" {
		t.Fatalf("expected tool_use block, got %#v", block["type"])
	}
	if block["name"] != "search" {
		t.Fatalf("unexpected tool name: %#v", block["name"])
	}
	id, _ := block["id"].(string)
	if !strings.HasPrefix(id, "toolu_") {
		t.Fatalf("expected toolu_ id prefix, got %q", id)
	}
	input, _ := block["input"].(map[string]any)
	if input["q"] != "golang" {
		t.Fatalf("unexpected input: %#v", block["input"])
	}
}

func TestBuildMessageResponseThinkingAndText(t *testing.T) {
	obj := BuildMessageResponse(
		"msg_2",
		"claude-sonnet-4-5",
		[]any{map[string]any{"role": "user", "content": "hi"}},
		"先想一下",
		"你好",
		nil,
	)

	if obj["stop_reason"] != "end_turn" {
		t.Fatalf("expected stop_reason end_turn, got %#v", obj["stop_reason"])
	}
	content, _ := obj["content"].([]map[string]any)
	if len(content) != 2 {
		t.Fatalf("expected thinking + text blocks, got %#v", obj["content"])
	}
	if content[0]["type"] != "thinking" || content[0]["thinking"] != "先想一下" {
		t.Fatalf("unexpected thinking block: %#v", content[0])
	}
	if content[1]["type"] != "text" || content[1]["text"] != "你好" {
		t.Fatalf("unexpected text block: %#v", content[1])
	}
	usage, _ := obj["usage"].(map[string]any)
	if usage["output_tokens"].(int) <= 0 {
		t.Fatalf("expected positive output tokens, got %#v", usage)
	}
}

func TestBuildMessageResponseEmptyTextFallback(t *testing.T) {
	obj := BuildMessageResponse(
		"msg_3",
		"claude-sonnet-4-5",
		nil,
		"",
		"",
		nil,
	)

	content, _ := obj["content"].([]map[string]any)
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("expected single fallback text block, got %#v", obj["content"])
	}
	text, _ := content[0]["text"].(string)
	if text == "" {
		t.Fatalf("expected fallback text, got empty string")
	}
}
