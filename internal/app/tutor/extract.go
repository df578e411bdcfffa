package tutor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonFence   = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")
	pythonFence = regexp.MustCompile("(?s)```python\\s*\\n(.*?)```")
)

// decodeJSON fills v from a model reply, tolerating a ```json fence and prose
// around the object.
func decodeJSON(text string, v any) error {
	candidate := strings.TrimSpace(text)
	if m := jsonFence.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in reply", ErrProviderResponse)
	}

	if err := json.Unmarshal([]byte(candidate[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderResponse, err)
	}
	return nil
}

// extractPython returns the first ```python block of text, or the whole text
// trimmed when there is none.
func extractPython(text string) string {
	if m := pythonFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
