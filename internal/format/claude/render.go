package claude

import (
	"fmt"
	"time"

	"ds2api/internal/util"
)

// BuildMessageResponse renders a complete Anthropic-style message from the
// collected upstream output. Tool-call payloads detected in the final text
// become tool_use blocks with stop_reason "tool_use"; otherwise the text is
// returned as a single text block with stop_reason "end_turn".
func BuildMessageResponse(messageID, model string, messages []any, finalThinking, finalText string, toolNames []string) map[string]any {
	content := make([]map[string]any, 0, 4)
	if finalThinking != "" {
		content = append(content, map[string]any{"type": "thinking", "thinking": finalThinking})
	}
	stopReason := "end_turn"
	detected := util.ParseToolCalls(finalText, toolNames)
	if len(detected) > 0 {
		stopReason = "tool_use"
		for i, tc := range detected {
			content = append(content, map[string]any{
				"type":  "tool_use",
				"id":    fmt.Sprintf("toolu_%d_%d", time.Now().Unix(), i),
				"name":  tc.Name,
				"input": tc.Input,
			})
		}
	} else {
		if finalText == "" {
			finalText = "抱歉，没有生成有效的响应内容。"
		}
		content = append(content, map[string]any{"type": "text", "text": finalText})
	}
	return map[string]any{
		"id":            messageID,
		"type":          "message",
		"role":          "assistant",
		"model":         model,
		"content":       content,
		"stop_reason":   stopReason,
		"stop_sequence": nil,
		"usage": map[string]any{
			"input_tokens":  util.EstimateTokens(fmt.Sprintf("%v", messages)),
			"output_tokens": util.EstimateTokens(finalThinking) + util.EstimateTokens(finalText),
		},
	}
}
