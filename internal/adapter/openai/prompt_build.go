package openai

import (
	"strings"

	"ds2api/internal/util"
)

func buildOpenAIFinalPrompt(messagesRaw []any, toolsRaw any, traceID string) (string, []string) {
	messages := normalizeOpenAIMessagesForPrompt(messagesRaw, traceID)
	toolNames := []string{}
	if tools, ok := toolsRaw.([]any); ok && len(tools) > 0 {
		messages, toolNames = injectToolPrompt(messages, tools)
	}
	return util.MessagesPrepare(messages), toolNames
}

// buildOpenAIFinalPromptWithPolicy is the tool_choice-aware variant:
// tool_choice=none skips tool injection entirely, and forced/allowed modes
// only advertise the tools the policy permits.
func buildOpenAIFinalPromptWithPolicy(messagesRaw []any, toolsRaw any, traceID string, policy util.ToolChoicePolicy) (string, []string) {
	if policy.IsNone() {
		messages := normalizeOpenAIMessagesForPrompt(messagesRaw, traceID)
		return util.MessagesPrepare(messages), nil
	}
	return buildOpenAIFinalPrompt(messagesRaw, filterToolsByPolicy(toolsRaw, policy), traceID)
}

func filterToolsByPolicy(toolsRaw any, policy util.ToolChoicePolicy) any {
	tools, ok := toolsRaw.([]any)
	if !ok || len(tools) == 0 || len(policy.Allowed) == 0 {
		return toolsRaw
	}
	filtered := make([]any, 0, len(tools))
	for _, t := range tools {
		tool, ok := t.(map[string]any)
		if !ok {
			continue
		}
		fn, _ := tool["function"].(map[string]any)
		if len(fn) == 0 {
			fn = tool
		}
		name := strings.TrimSpace(asString(fn["name"]))
		if name == "" || !policy.Allows(name) {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) == 0 {
		return toolsRaw
	}
	return filtered
}

// BuildPromptForAdapter exposes the OpenAI-compatible prompt building flow so
// other protocol adapters (for example Gemini) can reuse the same tool/history
// normalization logic and remain behavior-compatible with chat/completions.
func BuildPromptForAdapter(messagesRaw []any, toolsRaw any, traceID string) (string, []string) {
	return buildOpenAIFinalPrompt(messagesRaw, toolsRaw, traceID)
}
