package ai

import "encoding/json"

// The backend's response envelope is not stable across versions and models:
// depending on the endpoint generation, the answer text has appeared as a
// top-level convenience field, inside an output array, or nested under
// candidates. Extraction is an ordered strategy list kept in one place so a
// new envelope shape only needs one more entry here, never a call-site
// change. A call never fails merely because one shape is absent.

type textExtractor func(map[string]any) (string, bool)

var textExtractors = []textExtractor{
	extractTopLevelText,
	extractOutputText,
	extractCandidateText,
}

// ExtractText normalizes a raw response envelope to its answer text.
// Returns the empty string when no known shape matches.
func ExtractText(raw []byte) string {
	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	for _, extract := range textExtractors {
		if text, ok := extract(envelope); ok {
			return text
		}
	}
	return ""
}

// extractTopLevelText handles {"text": "..."}.
func extractTopLevelText(envelope map[string]any) (string, bool) {
	text, ok := envelope["text"].(string)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

// extractOutputText handles {"output": [{"type": "output_text", "text": "..."}]}.
func extractOutputText(envelope map[string]any) (string, bool) {
	output, ok := envelope["output"].([]any)
	if !ok {
		return "", false
	}
	for _, item := range output {
		segment, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if kind, _ := segment["type"].(string); kind != "" && kind != "output_text" {
			continue
		}
		if text, ok := segment["text"].(string); ok && text != "" {
			return text, true
		}
	}
	return "", false
}

// extractCandidateText handles
// {"candidates": [{"content": {"parts": [{"text": "..."}]}}]}.
func extractCandidateText(envelope map[string]any) (string, bool) {
	candidates, ok := envelope["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		return "", false
	}
	first, ok := candidates[0].(map[string]any)
	if !ok {
		return "", false
	}

	// Some envelope versions put the text directly on the candidate.
	if text, ok := first["output"].(string); ok && text != "" {
		return text, true
	}

	content, ok := first["content"].(map[string]any)
	if !ok {
		return "", false
	}
	parts, ok := content["parts"].([]any)
	if !ok {
		return "", false
	}
	for _, part := range parts {
		p, ok := part.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := p["text"].(string); ok && text != "" {
			return text, true
		}
	}
	return "", false
}
