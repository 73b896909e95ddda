package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StripCodeFence removes a markdown code fence wrapped around an LLM response.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 1 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// DecodeJSON decodes the JSON object in an LLM response into v,
// tolerating code fences and prose around the object.
func DecodeJSON(text string, v any) error {
	text = StripCodeFence(text)
	if text == "" {
		return errors.New("empty LLM response")
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return errors.New("no JSON object in LLM response")
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("parsing LLM response as JSON: %w", err)
	}
	return nil
}
