package oracle

import "strings"

// ExtractJSONBlock pulls the JSON payload out of a free-text oracle answer:
// the first fenced code block when present, otherwise the whole trimmed
// payload.
func ExtractJSONBlock(answer string) string {
	answer = strings.TrimSpace(answer)

	start := strings.Index(answer, "```")
	if start < 0 {
		return answer
	}

	rest := answer[start+3:]
	// the fence may carry a language tag ("```json")
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || isFenceTag(tag) {
			rest = rest[nl+1:]
		}
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isFenceTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "json", "json5", "javascript", "js":
		return true
	}
	return false
}
