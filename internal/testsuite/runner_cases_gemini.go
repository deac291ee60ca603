package testsuite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

func geminiRequestBody(text string) map[string]any {
	return map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": text}}},
		},
	}
}

func geminiFirstCandidate(m map[string]any) map[string]any {
	candidates, _ := m["candidates"].([]any)
	if len(candidates) == 0 {
		return nil
	}
	first, _ := candidates[0].(map[string]any)
	return first
}

func (r *Runner) caseGeminiGenerateContent(ctx context.Context, cc *caseContext) error {
	resp, err := cc.request(ctx, requestSpec{
		Method: http.MethodPost,
		Path:   "/v1beta/models/deepseek-chat:generateContent",
		Headers: map[string]string{
			"Authorization": "Bearer " + r.apiKey,
			"content-type":  "application/json",
		},
		Body:      geminiRequestBody("hello"),
		Retryable: true,
	})
	if err != nil {
		return err
	}
	cc.assert("status_200", resp.StatusCode == http.StatusOK, fmt.Sprintf("status=%d", resp.StatusCode))
	var m map[string]any
	_ = json.Unmarshal(resp.Body, &m)
	candidate := geminiFirstCandidate(m)
	cc.assert("has_candidate", candidate != nil, fmt.Sprintf("body=%s", string(resp.Body)))
	if candidate != nil {
		cc.assert("finish_stop", asString(candidate["finishReason"]) == "STOP", fmt.Sprintf("candidate=%v", candidate))
	}
	usage, _ := m["usageMetadata"].(map[string]any)
	cc.assert("usage_total_gt_zero", toInt(usage["totalTokenCount"]) > 0, fmt.Sprintf("usage=%v", usage))
	return nil
}

func (r *Runner) caseGeminiStreamGenerateContent(ctx context.Context, cc *caseContext) error {
	resp, err := cc.request(ctx, requestSpec{
		Method: http.MethodPost,
		Path:   "/v1/models/deepseek-chat:streamGenerateContent",
		Headers: map[string]string{
			"Authorization": "Bearer " + r.apiKey,
			"content-type":  "application/json",
		},
		Body:      geminiRequestBody("stream hello"),
		Stream:    true,
		Retryable: true,
	})
	if err != nil {
		return err
	}
	cc.assert("status_200", resp.StatusCode == http.StatusOK, fmt.Sprintf("status=%d", resp.StatusCode))
	frames, _ := parseSSEFrames(resp.Body)
	cc.assert("has_frames", len(frames) > 0, fmt.Sprintf("frames=%d", len(frames)))
	finished := false
	for _, frame := range frames {
		if candidate := geminiFirstCandidate(frame); candidate != nil && asString(candidate["finishReason"]) == "STOP" {
			finished = true
		}
	}
	cc.assert("finish_stop_frame", finished, fmt.Sprintf("frames=%d", len(frames)))
	return nil
}
