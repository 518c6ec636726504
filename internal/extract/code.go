package extract

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// minViableCodeLen guards against a stray inline snippet winning over the
// real implementation further down the response.
const minViableCodeLen = 50

// rawPreviewLen caps the diagnostic snippet attached to a terminal
// extraction failure.
const rawPreviewLen = 500

// ExtractionResult is the outcome of one extraction attempt
type ExtractionResult struct {
	Success    bool    `json:"success"`
	Code       string  `json:"code,omitempty"`
	Method     string  `json:"method,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
	RawPreview string  `json:"raw_response,omitempty"`
}

var (
	taggedBlockRe  = regexp.MustCompile("(?si)```python\\s*\\n(.*?)\\n```")
	genericBlockRe = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```")
)

// CodeWithFallbacks recovers source code from normalized response text using
// a layered chain of strategies. The first method yielding a viable block
// wins; failure of the whole chain is terminal and carries a raw preview
// for diagnostics.
func (e *Extractor) CodeWithFallbacks(response string) ExtractionResult {
	methods := []struct {
		name string
		fn   func(string) (string, error)
	}{
		{"python_blocks", extractTaggedBlocks},
		{"generic_blocks", extractGenericBlocks},
		{"import_based", extractImportBased},
		{"pattern_matching", extractPatternMatching},
	}

	for _, m := range methods {
		code, err := m.fn(response)
		if err != nil {
			continue
		}
		code = strings.TrimSpace(code)
		if len(code) <= minViableCodeLen {
			continue
		}
		if HasEscapeArtifacts(code) {
			// Surface the defect loudly, but never paper over it.
			e.logger.Error("extracted code contains escape sequence artifacts",
				zap.String("method", m.name),
				zap.String("preview", preview(code, 200)))
		}
		return ExtractionResult{
			Success:    true,
			Code:       code,
			Method:     m.name,
			Confidence: ConfidenceScore(code),
		}
	}

	return ExtractionResult{
		Success:    false,
		Error:      "all code extraction methods failed",
		RawPreview: preview(response, rawPreviewLen),
	}
}

func extractTaggedBlocks(response string) (string, error) {
	matches := taggedBlockRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return "", errors.New("no tagged code blocks found")
	}
	// The last block is usually the final, verified version
	return matches[len(matches)-1][1], nil
}

func extractGenericBlocks(response string) (string, error) {
	matches := genericBlockRe.FindAllStringSubmatch(response, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if looksLikeAgentCode(matches[i][1]) {
			return matches[i][1], nil
		}
	}
	return "", errors.New("no generic code blocks with agent content found")
}

func extractImportBased(response string) (string, error) {
	// Take the last occurrence; earlier ones tend to be partial drafts
	idx := strings.LastIndex(response, "from forgekit")
	if idx < 0 {
		return "", errors.New("no import-anchored code found")
	}
	return sliceToBlankLine(response, idx), nil
}

func extractPatternMatching(response string) (string, error) {
	anchors := []string{"from forgekit import", "import forgekit", "Agent("}
	for _, anchor := range anchors {
		if idx := strings.LastIndex(response, anchor); idx >= 0 {
			return sliceToBlankLine(response, idx), nil
		}
	}
	return "", errors.New("no pattern-anchored code found")
}

// sliceToBlankLine captures from start to the next blank-line-delimited
// boundary, or to the end of the text.
func sliceToBlankLine(text string, start int) string {
	rest := text[start:]
	if end := strings.Index(rest, "\n\n"); end >= 0 {
		return rest[:end]
	}
	return rest
}

func looksLikeAgentCode(code string) bool {
	indicators := []string{
		"from forgekit",
		"import forgekit",
		"Agent(",
		"def ",
		"class ",
		"if __name__",
	}
	for _, indicator := range indicators {
		if strings.Contains(code, indicator) {
			return true
		}
	}
	return false
}

// ConfidenceScore estimates how likely an extracted block is real agent
// source. Signals are additive and capped at 1.0.
func ConfidenceScore(code string) float64 {
	confidence := 0.0
	if strings.Contains(code, "from forgekit") || strings.Contains(code, "import forgekit") {
		confidence += 0.3
	}
	if strings.Contains(code, "Agent(") {
		confidence += 0.3
	}
	if strings.Contains(code, "def ") || strings.Contains(code, "class ") {
		confidence += 0.2
	}
	if strings.Contains(code, "#") {
		confidence += 0.1
	}
	if strings.Contains(code, "import") {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
