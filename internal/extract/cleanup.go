package extract

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// CleanupFormatting normalizes line endings, collapses runs of three or
// more newlines, and guarantees a single trailing newline. It is
// idempotent. Escape-sequence artifacts are logged at error severity and
// deliberately not corrected, so the upstream defect stays visible.
func (e *Extractor) CleanupFormatting(code string) string {
	if code == "" {
		return code
	}

	if HasEscapeArtifacts(code) {
		e.logger.Error("code still contains escape sequences after extraction",
			zap.String("preview", preview(code, 200)))
	}

	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\r", "\n")
	code = blankRunRe.ReplaceAllString(code, "\n\n")
	return strings.TrimRight(code, "\n") + "\n"
}
