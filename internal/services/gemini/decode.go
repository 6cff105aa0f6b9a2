package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// DecodeStructured validates the text of a schema-constrained response and
// returns it as compact JSON. Markdown code fences are tolerated, as is
// prose surrounding a single JSON object.
func DecodeStructured(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &SchemaParseError{Raw: text, Err: errors.New("empty payload")}
	}

	candidates := []string{trimmed}
	if unfenced := stripCodeFence(trimmed); unfenced != trimmed {
		candidates = append(candidates, unfenced)
	}
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	var firstErr error
	for _, c := range candidates {
		var buf bytes.Buffer
		err := json.Compact(&buf, []byte(c))
		if err == nil && (buf.Len() > 0 && (buf.Bytes()[0] == '{' || buf.Bytes()[0] == '[')) {
			return json.RawMessage(buf.Bytes()), nil
		}
		if err == nil {
			err = errors.New("payload is not a JSON object or array")
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, &SchemaParseError{Raw: text, Err: firstErr}
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
