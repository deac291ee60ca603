package openai

// Payload builders for the Responses SSE surface. Every payload carries the
// "type" field mirroring its event name plus response_id, matching the shape
// clients of the official Responses API expect.

func BuildResponsesCreatedPayload(responseID, model string) map[string]any {
	return map[string]any{
		"type":        "response.created",
		"response_id": responseID,
		"response": map[string]any{
			"id":     responseID,
			"object": "response",
			"model":  model,
			"status": "in_progress",
		},
	}
}

func BuildResponsesOutputItemAddedPayload(responseID, itemID string, outputIndex int, item map[string]any) map[string]any {
	return map[string]any{
		"type":         "response.output_item.added",
		"response_id":  responseID,
		"item_id":      itemID,
		"output_index": outputIndex,
		"item":         item,
	}
}

func BuildResponsesOutputItemDonePayload(responseID, itemID string, outputIndex int, item map[string]any) map[string]any {
	return map[string]any{
		"type":         "response.output_item.done",
		"response_id":  responseID,
		"item_id":      itemID,
		"output_index": outputIndex,
		"item":         item,
	}
}

func BuildResponsesContentPartAddedPayload(responseID, itemID string, outputIndex, contentIndex int, part map[string]any) map[string]any {
	return map[string]any{
		"type":          "response.content_part.added",
		"response_id":   responseID,
		"item_id":       itemID,
		"output_index":  outputIndex,
		"content_index": contentIndex,
		"part":          part,
	}
}

func BuildResponsesContentPartDonePayload(responseID, itemID string, outputIndex, contentIndex int, part map[string]any) map[string]any {
	return map[string]any{
		"type":          "response.content_part.done",
		"response_id":   responseID,
		"item_id":       itemID,
		"output_index":  outputIndex,
		"content_index": contentIndex,
		"part":          part,
	}
}

func BuildResponsesTextDeltaPayload(responseID, itemID string, outputIndex, contentIndex int, delta string) map[string]any {
	return map[string]any{
		"type":          "response.output_text.delta",
		"response_id":   responseID,
		"item_id":       itemID,
		"output_index":  outputIndex,
		"content_index": contentIndex,
		"delta":         delta,
	}
}

func BuildResponsesTextDonePayload(responseID, itemID string, outputIndex, contentIndex int, text string) map[string]any {
	return map[string]any{
		"type":          "response.output_text.done",
		"response_id":   responseID,
		"item_id":       itemID,
		"output_index":  outputIndex,
		"content_index": contentIndex,
		"text":          text,
	}
}

func BuildResponsesReasoningDeltaPayload(responseID, delta string) map[string]any {
	return map[string]any{
		"type":        "response.reasoning.delta",
		"response_id": responseID,
		"delta":       delta,
	}
}

func BuildResponsesReasoningTextDeltaPayload(responseID, itemID string, outputIndex, contentIndex int, delta string) map[string]any {
	return map[string]any{
		"type":          "response.reasoning_text.delta",
		"response_id":   responseID,
		"item_id":       itemID,
		"output_index":  outputIndex,
		"content_index": contentIndex,
		"delta":         delta,
	}
}

func BuildResponsesReasoningTextDonePayload(responseID, itemID string, outputIndex, contentIndex int, text string) map[string]any {
	return map[string]any{
		"type":          "response.reasoning_text.done",
		"response_id":   responseID,
		"item_id":       itemID,
		"output_index":  outputIndex,
		"content_index": contentIndex,
		"text":          text,
	}
}

func BuildResponsesFunctionCallArgumentsDeltaPayload(responseID, itemID string, outputIndex int, callID, delta string) map[string]any {
	return map[string]any{
		"type":         "response.function_call_arguments.delta",
		"response_id":  responseID,
		"item_id":      itemID,
		"output_index": outputIndex,
		"call_id":      callID,
		"delta":        delta,
	}
}

func BuildResponsesFunctionCallArgumentsDonePayload(responseID, itemID string, outputIndex int, callID, name, arguments string) map[string]any {
	return map[string]any{
		"type":         "response.function_call_arguments.done",
		"response_id":  responseID,
		"item_id":      itemID,
		"output_index": outputIndex,
		"call_id":      callID,
		"name":         name,
		"arguments":    normalizeJSONString(arguments),
	}
}

func BuildResponsesCompletedPayload(response map[string]any) map[string]any {
	responseID, _ := response["id"].(string)
	return map[string]any{
		"type":        "response.completed",
		"response_id": responseID,
		"response":    response,
	}
}

func BuildResponsesFailedPayload(responseID string, response map[string]any) map[string]any {
	return map[string]any{
		"type":        "response.failed",
		"response_id": responseID,
		"response":    response,
	}
}
