package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// BalancedObject returns the substring of text spanning the complete JSON
// object that starts at `from` (the index of an opening brace). The walk
// tracks string and escape state so braces inside quoted values do not
// corrupt the depth count. ok is false when the object never closes.
func BalancedObject(text string, from int) (string, bool) {
	if from < 0 || from >= len(text) || text[from] != '{' {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := from; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// braces inside strings are payload, not structure
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[from : i+1], true
			}
		}
	}
	return "", false
}

// FirstRecordArray locates the first array in document order whose first
// element is a non-nil object with at least one key. The walk runs over the
// raw payload token by token: a post-parse walk through map[string]any would
// visit keys in Go's randomized map order, and payloads routinely carry more
// than one candidate array ("filters" next to "stores"). Returns nil when no
// such array exists or the payload is not valid JSON.
func FirstRecordArray(data []byte) []map[string]any {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch delim {
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil
			}
			if recs := FirstRecordArray(raw); recs != nil {
				return recs
			}
		}
	case '[':
		var raws []json.RawMessage
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil
			}
			raws = append(raws, raw)
		}
		if recs := rawRecords(raws); recs != nil {
			return recs
		}
		for _, raw := range raws {
			if recs := FirstRecordArray(raw); recs != nil {
				return recs
			}
		}
	}
	return nil
}

// rawRecords converts raw array elements to record maps if the first element
// is an object with at least one key.
func rawRecords(raws []json.RawMessage) []map[string]any {
	if len(raws) == 0 {
		return nil
	}
	var first map[string]any
	if err := json.Unmarshal(raws[0], &first); err != nil || len(first) == 0 {
		return nil
	}
	recs := make([]map[string]any, 0, len(raws))
	for _, raw := range raws {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err == nil && m != nil {
			recs = append(recs, m)
		}
	}
	return recs
}

// asRecords converts an []any to record maps if its first element is an
// object with at least one key.
func asRecords(arr []any) []map[string]any {
	if len(arr) == 0 {
		return nil
	}
	first, ok := arr[0].(map[string]any)
	if !ok || len(first) == 0 {
		return nil
	}
	recs := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			recs = append(recs, m)
		}
	}
	return recs
}

// safeString renders a scalar as a trimmed string; composite or absent
// values become "".
func safeString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// safeFloat coerces a scalar to a float pointer; anything non-numeric is
// nil rather than a parse fault.
func safeFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	case int:
		f := float64(t)
		return &f
	}
	return nil
}
