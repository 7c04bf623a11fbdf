package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedError tags a response that did not satisfy the structured
// contract. The raw text is kept for logging; callers degrade to "no
// result" instead of failing the batch.
type MalformedError struct {
	Raw string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// StripFence removes a markdown code fence the model may wrap JSON in.
func StripFence(content string) string {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}

// Decode parses a model response into v. It tolerates fences and leading
// prose around the JSON payload but nothing else: a payload that does not
// unmarshal yields a MalformedError carrying the raw text.
func Decode(content string, v any) error {
	s := StripFence(content)
	if s == "null" {
		return &MalformedError{Raw: content, Err: fmt.Errorf("response is null")}
	}

	payload := slicePayload(s)
	if payload == "" {
		return &MalformedError{Raw: content, Err: fmt.Errorf("no JSON payload found")}
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return &MalformedError{Raw: content, Err: err}
	}
	return nil
}

func slicePayload(s string) string {
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	start, closer := objStart, "}"
	if objStart < 0 || (arrStart >= 0 && arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start < 0 {
		return ""
	}

	end := strings.LastIndex(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
