package openai

import (
	"encoding/json"
	"net/http"
	"strings"

	openaifmt "ds2api/internal/format/openai"
	"ds2api/internal/sse"
	streamengine "ds2api/internal/stream"
	"ds2api/internal/util"
)

// responsesStreamRuntime renders the Responses SSE surface: one output_item
// per assistant message or function call, with output_index allocated in
// arrival order and stable ids reused across added/delta/done events.
type responsesStreamRuntime struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	canFlush bool

	responseID  string
	model       string
	finalPrompt string
	toolNames   []string
	policy      util.ToolChoicePolicy

	thinkingEnabled bool
	searchEnabled   bool

	bufferToolContent   bool
	emitEarlyToolDeltas bool

	toolSieve     toolStreamSieveState
	thinkingSieve toolStreamSieveState
	thinking      strings.Builder
	rawText       strings.Builder
	visibleText   strings.Builder

	nextOutputID     int
	messageItemID    string
	messageOutputID  int
	messageAdded     bool
	messagePartAdded bool
	reasoningItemID  string

	functionItemIDs   map[int]string
	streamToolCallIDs map[int]string
	functionOutputIDs map[int]int
	functionNames     map[int]string
	functionArgs      map[int]string
	functionAdded     map[int]bool
	functionDone      map[int]bool
	functionAllowed   map[int]bool

	toolCallsEmitted     bool
	toolCallsDoneEmitted bool
	completedCalls       []util.ParsedToolCall

	persistResponse func(obj map[string]any)
}

func newResponsesStreamRuntime(
	w http.ResponseWriter,
	rc *http.ResponseController,
	canFlush bool,
	responseID string,
	model string,
	finalPrompt string,
	thinkingEnabled bool,
	searchEnabled bool,
	toolNames []string,
	policy util.ToolChoicePolicy,
	bufferToolContent bool,
	emitEarlyToolDeltas bool,
	persistResponse func(obj map[string]any),
) *responsesStreamRuntime {
	return &responsesStreamRuntime{
		w:                   w,
		rc:                  rc,
		canFlush:            canFlush,
		responseID:          responseID,
		model:               model,
		finalPrompt:         finalPrompt,
		toolNames:           toolNames,
		policy:              policy,
		thinkingEnabled:     thinkingEnabled,
		searchEnabled:       searchEnabled,
		bufferToolContent:   bufferToolContent,
		emitEarlyToolDeltas: emitEarlyToolDeltas,
		messageOutputID:     -1,
		functionItemIDs:     map[int]string{},
		streamToolCallIDs:   map[int]string{},
		functionOutputIDs:   map[int]int{},
		functionNames:       map[int]string{},
		functionArgs:        map[int]string{},
		functionAdded:       map[int]bool{},
		functionDone:        map[int]bool{},
		functionAllowed:     map[int]bool{},
		persistResponse:     persistResponse,
	}
}

func (s *responsesStreamRuntime) sendKeepAlive() {
	if !s.canFlush {
		return
	}
	_, _ = s.w.Write([]byte(": keep-alive\n\n"))
	_ = s.rc.Flush()
}

func (s *responsesStreamRuntime) sendEvent(event string, payload map[string]any) {
	b, _ := json.Marshal(payload)
	_, _ = s.w.Write([]byte("event: " + event + "\n"))
	_, _ = s.w.Write([]byte("data: "))
	_, _ = s.w.Write(b)
	_, _ = s.w.Write([]byte("\n\n"))
	if s.canFlush {
		_ = s.rc.Flush()
	}
}

func (s *responsesStreamRuntime) sendDone() {
	_, _ = s.w.Write([]byte("data: [DONE]\n\n"))
	if s.canFlush {
		_ = s.rc.Flush()
	}
}

func (s *responsesStreamRuntime) sendCreated() {
	s.sendEvent("response.created", openaifmt.BuildResponsesCreatedPayload(s.responseID, s.model))
}

// toolCallAllowed applies the declared-tool gate first, then the tool_choice
// policy. Unknown names never surface as function calls on this surface.
func (s *responsesStreamRuntime) toolCallAllowed(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if s.policy.IsNone() {
		return false
	}
	if len(s.toolNames) > 0 {
		known := false
		for _, candidate := range s.toolNames {
			if candidate == name {
				known = true
				break
			}
		}
		if !known {
			return false
		}
	}
	return s.policy.Allows(name)
}

// filterToolCallDeltas shifts sieve-local indexes past calls already completed
// in this stream and drops deltas whose function name failed the policy gate.
// The allow decision is recorded on the first name-carrying delta and reused
// for the index's argument fragments.
func (s *responsesStreamRuntime) filterToolCallDeltas(deltas []toolCallDelta) []toolCallDelta {
	if len(deltas) == 0 {
		return nil
	}
	base := len(s.completedCalls)
	out := make([]toolCallDelta, 0, len(deltas))
	for _, d := range deltas {
		idx := base + d.Index
		if strings.TrimSpace(d.Name) != "" {
			s.functionAllowed[idx] = s.toolCallAllowed(d.Name)
		}
		if !s.functionAllowed[idx] {
			continue
		}
		out = append(out, toolCallDelta{Index: idx, Name: d.Name, Arguments: d.Arguments})
	}
	return out
}

func (s *responsesStreamRuntime) filterParsedToolCalls(calls []util.ParsedToolCall) []util.ParsedToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]util.ParsedToolCall, 0, len(calls))
	for _, tc := range calls {
		if !s.toolCallAllowed(tc.Name) {
			continue
		}
		out = append(out, tc)
	}
	return out
}

func (s *responsesStreamRuntime) processToolStreamEvents(events []toolStreamEvent, emitContent bool) {
	for _, evt := range events {
		if emitContent && evt.Content != "" {
			s.emitTextDelta(evt.Content)
		}
		if len(evt.ToolCallDeltas) > 0 && s.emitEarlyToolDeltas {
			if deltas := s.filterToolCallDeltas(evt.ToolCallDeltas); len(deltas) > 0 {
				s.emitFunctionCallDeltaEvents(deltas)
			}
		}
		if len(evt.ToolCalls) > 0 {
			if calls := s.filterParsedToolCalls(evt.ToolCalls); len(calls) > 0 {
				s.completedCalls = append(s.completedCalls, calls...)
				s.emitFunctionCallDoneEvents(s.completedCalls)
			}
		}
	}
}

func (s *responsesStreamRuntime) onParsed(parsed sse.LineResult) streamengine.ParsedDecision {
	if !parsed.Parsed {
		return streamengine.ParsedDecision{}
	}
	if parsed.ContentFilter || parsed.ErrorMessage != "" {
		return streamengine.ParsedDecision{Stop: true, StopReason: streamengine.StopReason("content_filter")}
	}
	if parsed.Stop {
		return streamengine.ParsedDecision{Stop: true, StopReason: streamengine.StopReasonHandlerRequested}
	}

	contentSeen := false
	for _, p := range parsed.Parts {
		if p.Text == "" {
			continue
		}
		if p.Type != "thinking" && s.searchEnabled && sse.IsCitation(p.Text) {
			continue
		}
		contentSeen = true
		if p.Type == "thinking" {
			if !s.thinkingEnabled {
				continue
			}
			s.thinking.WriteString(p.Text)
			s.sendEvent(
				"response.reasoning.delta",
				openaifmt.BuildResponsesReasoningDeltaPayload(s.responseID, p.Text),
			)
			s.sendEvent(
				"response.reasoning_text.delta",
				openaifmt.BuildResponsesReasoningTextDeltaPayload(s.responseID, s.ensureReasoningItemID(), 0, 0, p.Text),
			)
			if s.bufferToolContent {
				s.processToolStreamEvents(processToolSieveChunk(&s.thinkingSieve, p.Text, s.toolNames), false)
			}
			continue
		}
		s.rawText.WriteString(p.Text)
		if !s.bufferToolContent {
			s.emitTextDelta(p.Text)
			continue
		}
		s.processToolStreamEvents(processToolSieveChunk(&s.toolSieve, p.Text, s.toolNames), true)
	}
	return streamengine.ParsedDecision{ContentSeen: contentSeen}
}

func (s *responsesStreamRuntime) sendFailed(code, message string) {
	obj := map[string]any{
		"id":     s.responseID,
		"type":   "response",
		"object": "response",
		"model":  s.model,
		"status": "failed",
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if s.persistResponse != nil {
		s.persistResponse(obj)
	}
	s.sendEvent("response.failed", openaifmt.BuildResponsesFailedPayload(s.responseID, obj))
	s.sendDone()
}

func (s *responsesStreamRuntime) finalize() {
	finalThinking := s.thinking.String()
	finalText := s.rawText.String()
	if strings.TrimSpace(finalThinking) != "" {
		s.sendEvent(
			"response.reasoning_text.done",
			openaifmt.BuildResponsesReasoningTextDonePayload(s.responseID, s.ensureReasoningItemID(), 0, 0, finalThinking),
		)
	}
	if s.bufferToolContent {
		s.processToolStreamEvents(flushToolSieve(&s.toolSieve, s.toolNames), true)
		s.processToolStreamEvents(flushToolSieve(&s.thinkingSieve, s.toolNames), false)
	}
	// Payloads the sieve released as plain prose (or that arrived with
	// buffering off) can still parse out of the accumulated text.
	if s.bufferToolContent && len(s.completedCalls) == 0 {
		detected := s.filterParsedToolCalls(util.ParseToolCalls(finalText, s.toolNames))
		if len(detected) == 0 && strings.TrimSpace(finalThinking) != "" {
			detected = s.filterParsedToolCalls(util.ParseToolCalls(finalThinking, s.toolNames))
		}
		if len(detected) > 0 {
			s.completedCalls = detected
			s.emitFunctionCallDoneEvents(detected)
		}
	}
	if s.policy.IsRequired() && len(s.completedCalls) == 0 {
		s.sendFailed("tool_choice_violation", "tool_choice requires a function call, but the model did not produce one.")
		return
	}
	s.closeIncompleteFunctionItems()
	s.closeMessageItem()
	obj := s.buildCompletedResponseObject(finalThinking, finalText, s.completedCalls)
	if s.persistResponse != nil {
		s.persistResponse(obj)
	}
	s.sendEvent("response.completed", openaifmt.BuildResponsesCompletedPayload(obj))
	s.sendDone()
}
