package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// TextProvider is implemented by model client response types that can hand
// over their text content directly.
type TextProvider interface {
	ResponseText() string
}

// Extractor recovers clean source text and code from heterogeneous model
// responses.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new response extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Text normalizes a raw model response into plain text. The response may be
// a plain string, a decoded JSON object with role/content blocks, raw JSON
// bytes, or a client type exposing its text. Variants are tried in a fixed
// priority order; the final fallback stringifies the value, which is where
// escaping artifacts can sneak in, so it is logged.
func (e *Extractor) Text(v interface{}) (string, error) {
	switch m := v.(type) {
	case nil:
		return "", fmt.Errorf("nil model response")
	case string:
		return m, nil
	case json.RawMessage:
		return e.textFromJSON([]byte(m))
	case []byte:
		return e.textFromJSON(m)
	case map[string]interface{}:
		if s, ok := textFromMap(m); ok {
			return s, nil
		}
	case TextProvider:
		return m.ResponseText(), nil
	}

	e.logger.Warn("unknown model response shape, falling back to stringification",
		zap.String("type", fmt.Sprintf("%T", v)))
	return fmt.Sprintf("%v", v), nil
}

func (e *Extractor) textFromJSON(raw []byte) (string, error) {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Not JSON at all; treat the bytes as plain text
		return string(raw), nil
	}
	switch d := decoded.(type) {
	case string:
		return d, nil
	case map[string]interface{}:
		if s, ok := textFromMap(d); ok {
			return s, nil
		}
	}
	return string(raw), nil
}

// textFromMap handles the {"role": "assistant", "content": [{"text": ...}]}
// family of shapes.
func textFromMap(m map[string]interface{}) (string, bool) {
	if content, ok := m["content"]; ok {
		switch c := content.(type) {
		case []interface{}:
			var parts []string
			for _, block := range c {
				switch b := block.(type) {
				case map[string]interface{}:
					if t, ok := b["text"].(string); ok {
						parts = append(parts, t)
					}
				case string:
					parts = append(parts, b)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "\n"), true
			}
		case string:
			return c, true
		}
	}
	if t, ok := m["text"].(string); ok {
		return t, true
	}
	if r, ok := m["result"]; ok {
		switch inner := r.(type) {
		case string:
			return inner, true
		case map[string]interface{}:
			return textFromMap(inner)
		}
	}
	return "", false
}

// HasEscapeArtifacts reports whether text contains literal backslash escape
// sequences, which indicates a broken extraction upstream. Findings are a
// bug signal and are deliberately never repaired here.
func HasEscapeArtifacts(text string) bool {
	return strings.Contains(text, `\n`) || strings.Contains(text, `\t`) ||
		strings.Contains(text, `\"`) || strings.Contains(text, `\'`)
}
