package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// rawToolCall is the wire shape the model is instructed to emit.
type rawToolCall struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*|```")

// ParseToolCall extracts the first structured tool call from raw model text,
// tolerating surrounding prose and markdown fences. Returns the call plus the
// model's own explanation argument, or nil when no valid call is present.
// Parse failures are tolerated, never raised.
func ParseToolCall(rawText string, logFunc func(string)) (*ToolCall, string) {
	text := codeFenceRe.ReplaceAllString(rawText, "")

	// Liberal scan: try to decode a JSON object starting at every opening
	// brace that could plausibly hold a "tool" key.
	for idx := 0; idx < len(text); idx++ {
		if text[idx] != '{' {
			continue
		}
		rest := text[idx:]
		if !strings.Contains(rest, `"tool"`) {
			break
		}

		var raw rawToolCall
		dec := json.NewDecoder(strings.NewReader(rest))
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if raw.Tool == "" || raw.Parameters == nil {
			continue
		}

		thinking, _ := raw.Parameters["explanation"].(string)
		return &ToolCall{Name: raw.Tool, Args: raw.Parameters}, thinking
	}

	if logFunc != nil && strings.Contains(text, `"tool"`) {
		logFunc(fmt.Sprintf("[PARSER] text mentions a tool but no valid call could be parsed: %s", truncateForLog(text, 300)))
	}
	return nil, ""
}
