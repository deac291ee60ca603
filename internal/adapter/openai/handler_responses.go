package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ds2api/internal/auth"
	"ds2api/internal/config"
	"ds2api/internal/deepseek"
	openaifmt "ds2api/internal/format/openai"
	"ds2api/internal/sse"
	streamengine "ds2api/internal/stream"
	"ds2api/internal/util"
)

func (h *Handler) Responses(w http.ResponseWriter, r *http.Request) {
	a, err := h.Auth.Determine(r)
	if err != nil {
		status := http.StatusUnauthorized
		detail := err.Error()
		if err == auth.ErrNoAccount {
			status = http.StatusTooManyRequests
		}
		writeOpenAIError(w, status, detail)
		return
	}
	defer h.Auth.Release(a)
	r = r.WithContext(auth.WithAuth(r.Context(), a))

	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid json")
		return
	}
	traceID := requestTraceID(r)
	stdReq, err := normalizeOpenAIResponsesRequest(h.Store, req, traceID)
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner := a.CallerID

	previousID := strings.TrimSpace(asString(req["previous_response_id"]))
	if previousID != "" {
		prev, ok := h.lookupOwnedResponse(owner, previousID)
		if !ok {
			writeOpenAIError(w, http.StatusNotFound, "Previous response not found.")
			return
		}
		if msg, ok := previousResponseContextMessage(prev); ok {
			stdReq.Messages = append([]any{msg}, stdReq.Messages...)
			prompt, toolNames := buildOpenAIFinalPromptWithPolicy(stdReq.Messages, req["tools"], traceID, stdReq.ToolChoice)
			stdReq.FinalPrompt = prompt
			if !stdReq.ToolChoice.IsNone() {
				stdReq.ToolNames = toolNames
			}
		}
	}

	sessionID, err := h.DS.CreateSession(r.Context(), a, 3)
	if err != nil {
		if a.UseConfigToken {
			writeOpenAIError(w, http.StatusUnauthorized, "Account token is invalid. Please re-login the account in admin.")
		} else {
			writeOpenAIError(w, http.StatusUnauthorized, "Invalid token. If this should be a DS2API key, add it to config.keys first.")
		}
		return
	}
	pow, err := h.DS.GetPow(r.Context(), a, 3)
	if err != nil {
		writeOpenAIError(w, http.StatusUnauthorized, "Failed to get PoW (invalid token or unknown error).")
		return
	}
	payload := stdReq.CompletionPayload(sessionID)
	applyOpenAIChatPassThrough(req, payload)
	resp, err := h.DS.CallCompletion(r.Context(), a, payload, pow, 3)
	if err != nil {
		writeOpenAIError(w, http.StatusInternalServerError, "Failed to get completion.")
		return
	}

	responseID := "resp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if stdReq.Stream {
		h.handleResponsesStream(w, r, resp, owner, responseID, stdReq.ResponseModel, stdReq.FinalPrompt, stdReq.Thinking, stdReq.Search, stdReq.ToolNames, stdReq.ToolChoice, previousID)
		return
	}
	h.handleResponsesNonStream(w, resp, owner, responseID, stdReq.ResponseModel, stdReq.FinalPrompt, stdReq.Thinking, stdReq.ToolNames, stdReq.ToolChoice, previousID)
}

func (h *Handler) GetResponseByID(w http.ResponseWriter, r *http.Request) {
	responseID := strings.TrimSpace(chi.URLParam(r, "response_id"))
	if responseID == "" {
		writeOpenAIError(w, http.StatusBadRequest, "response_id is required.")
		return
	}
	a, err := h.Auth.DetermineCaller(r)
	if err != nil {
		writeOpenAIError(w, http.StatusUnauthorized, err.Error())
		return
	}
	obj, ok := h.lookupOwnedResponse(a.CallerID, responseID)
	if !ok {
		writeOpenAIError(w, http.StatusNotFound, "Response not found.")
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (h *Handler) handleResponsesStream(w http.ResponseWriter, r *http.Request, resp *http.Response, owner, responseID, model, finalPrompt string, thinkingEnabled, searchEnabled bool, toolNames []string, policy util.ToolChoicePolicy, previousID string) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		writeOpenAIError(w, resp.StatusCode, string(body))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	rc := http.NewResponseController(w)
	_, canFlush := w.(http.Flusher)
	if !canFlush {
		config.Logger.Warn("[stream] response writer does not support flush; streaming may be buffered")
	}

	bufferToolContent := len(toolNames) > 0 && !policy.IsNone() && h.toolcallFeatureMatchEnabled()
	emitEarlyToolDeltas := h.toolcallEarlyEmitHighConfidence()
	initialType := "text"
	if thinkingEnabled {
		initialType = "thinking"
	}

	streamRuntime := newResponsesStreamRuntime(
		w,
		rc,
		canFlush,
		responseID,
		model,
		finalPrompt,
		thinkingEnabled,
		searchEnabled,
		toolNames,
		policy,
		bufferToolContent,
		emitEarlyToolDeltas,
		func(obj map[string]any) {
			if previousID != "" {
				obj["previous_response_id"] = previousID
			}
			h.persistOwnedResponse(owner, responseID, obj)
		},
	)
	streamRuntime.sendCreated()

	streamengine.ConsumeSSE(streamengine.ConsumeConfig{
		Context:             r.Context(),
		Body:                resp.Body,
		ThinkingEnabled:     thinkingEnabled,
		InitialType:         initialType,
		KeepAliveInterval:   time.Duration(deepseek.KeepAliveTimeout) * time.Second,
		IdleTimeout:         time.Duration(deepseek.StreamIdleTimeout) * time.Second,
		MaxKeepAliveNoInput: deepseek.MaxKeepaliveCount,
	}, streamengine.ConsumeHooks{
		OnKeepAlive: func() {
			streamRuntime.sendKeepAlive()
		},
		OnParsed: streamRuntime.onParsed,
		OnFinalize: func(_ streamengine.StopReason, _ error) {
			streamRuntime.finalize()
		},
	})
}

func (h *Handler) handleResponsesNonStream(w http.ResponseWriter, resp *http.Response, owner, responseID, model, finalPrompt string, thinkingEnabled bool, toolNames []string, policy util.ToolChoicePolicy, previousID string) {
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		writeOpenAIError(w, resp.StatusCode, string(body))
		return
	}
	result := sse.CollectStream(resp, thinkingEnabled, true)

	var detected []util.ParsedToolCall
	if len(toolNames) > 0 && !policy.IsNone() && h.toolcallFeatureMatchEnabled() {
		detected = filterToolCallsByPolicy(util.ParseToolCalls(result.Text, toolNames), toolNames, policy)
		if len(detected) == 0 && strings.TrimSpace(result.Thinking) != "" {
			detected = filterToolCallsByPolicy(util.ParseToolCalls(result.Thinking, toolNames), toolNames, policy)
		}
	}
	if policy.IsRequired() && len(detected) == 0 {
		writeOpenAIErrorWithCode(w, http.StatusUnprocessableEntity, "tool_choice requires a function call, but the model did not produce one.", "tool_choice_violation")
		return
	}

	obj := openaifmt.BuildResponseObjectWithCalls(responseID, model, finalPrompt, result.Thinking, result.Text, detected)
	if previousID != "" {
		obj["previous_response_id"] = previousID
	}
	h.persistOwnedResponse(owner, responseID, obj)
	writeJSON(w, http.StatusOK, obj)
}

// filterToolCallsByPolicy mirrors the stream runtime's gate for the buffered
// path: drop calls whose name was never declared or is excluded by
// tool_choice.
func filterToolCallsByPolicy(calls []util.ParsedToolCall, toolNames []string, policy util.ToolChoicePolicy) []util.ParsedToolCall {
	if len(calls) == 0 {
		return nil
	}
	known := namesToSet(toolNames)
	out := make([]util.ParsedToolCall, 0, len(calls))
	for _, tc := range calls {
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			continue
		}
		if len(known) > 0 {
			if _, ok := known[name]; !ok {
				continue
			}
		}
		if !policy.Allows(name) {
			continue
		}
		out = append(out, tc)
	}
	return out
}

// persistOwnedResponse wraps the response object with its owner so retrieval
// can be scoped to the caller that created it.
func (h *Handler) persistOwnedResponse(owner, responseID string, obj map[string]any) {
	if responseID == "" || obj == nil {
		return
	}
	h.getResponseStore().put(responseID, map[string]any{
		"owner":    owner,
		"response": obj,
	})
}

func (h *Handler) lookupOwnedResponse(owner, responseID string) (map[string]any, bool) {
	wrapped, ok := h.getResponseStore().get(responseID)
	if !ok {
		return nil, false
	}
	if storedOwner := asString(wrapped["owner"]); storedOwner != "" && storedOwner != owner {
		return nil, false
	}
	obj, _ := wrapped["response"].(map[string]any)
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// previousResponseContextMessage rebuilds the assistant turn of a stored
// response as a chat-shaped message, so previous_response_id chaining reuses
// the normal history serialization.
func previousResponseContextMessage(prev map[string]any) (map[string]any, bool) {
	content := strings.TrimSpace(asString(prev["output_text"]))
	toolCalls := make([]any, 0, 2)
	var textParts []string
	output, _ := prev["output"].([]any)
	for _, raw := range output {
		item, _ := raw.(map[string]any)
		if item == nil {
			continue
		}
		switch asString(item["type"]) {
		case "message":
			for _, pm := range messageContentParts(item["content"]) {
				if asString(pm["type"]) != "output_text" {
					continue
				}
				if txt := asString(pm["text"]); txt != "" {
					textParts = append(textParts, txt)
				}
			}
		case "function_call":
			name := strings.TrimSpace(asString(item["name"]))
			if name == "" {
				continue
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   asString(item["call_id"]),
				"type": "function",
				"function": map[string]any{
					"name":      name,
					"arguments": asString(item["arguments"]),
				},
			})
		}
	}
	if content == "" {
		content = strings.TrimSpace(strings.Join(textParts, "\n"))
	}
	if content == "" && len(toolCalls) == 0 {
		return nil, false
	}
	msg := map[string]any{"role": "assistant"}
	if content != "" {
		msg["content"] = content
	}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}
	return msg, true
}

// messageContentParts tolerates both shapes a stored message item can carry:
// []any from a JSON round-trip and []map[string]any from the stream runtime.
func messageContentParts(raw any) []map[string]any {
	switch parts := raw.(type) {
	case []map[string]any:
		return parts
	case []any:
		out := make([]map[string]any, 0, len(parts))
		for _, rp := range parts {
			if pm, ok := rp.(map[string]any); ok {
				out = append(out, pm)
			}
		}
		return out
	default:
		return nil
	}
}
