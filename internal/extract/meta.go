package extract

import (
	"regexp"
)

// ResponseMetadata is the best-effort labeled-section mining result. A
// missing section is an empty field, never an error.
type ResponseMetadata struct {
	ConfigurationAnalysis string
	TestingVerification   string
	ReasoningProcess      string
	TestingCompleted      bool
	ResponseLength        int
	CodeLength            int
}

var (
	analysisRe = regexp.MustCompile(`(?si)(?:CONFIGURATION ANALYSIS|ANALYSIS):\s*(.*?)(?:\n\n|\n[A-Z]|$)`)
	testingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?si)(?:TESTING|TEST|VERIFICATION).*?:\s*(.*?)(?:\n\n|\n[A-Z]|$)`),
		regexp.MustCompile(`(?si)tests? passed[:.]?\s*(.*?)(?:\n\n|\n[A-Z]|$)`),
	}
	reasoningRe = regexp.MustCompile(`(?si)(?:REASONING|APPROACH|IMPLEMENTATION):\s*(.*?)(?:\n\n|\n[A-Z]|$)`)
)

// Metadata mines labeled analysis, testing and reasoning sections out of a
// free-form response.
func (e *Extractor) Metadata(response, code string) ResponseMetadata {
	meta := ResponseMetadata{
		ResponseLength: len(response),
		CodeLength:     len(code),
	}

	if m := analysisRe.FindStringSubmatch(response); m != nil {
		meta.ConfigurationAnalysis = trimSection(m[1])
	}
	for _, re := range testingRes {
		if m := re.FindStringSubmatch(response); m != nil {
			meta.TestingVerification = trimSection(m[1])
			meta.TestingCompleted = true
			break
		}
	}
	if m := reasoningRe.FindStringSubmatch(response); m != nil {
		meta.ReasoningProcess = trimSection(m[1])
	}
	return meta
}

func trimSection(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	for len(s) > 0 && (s[0] == '\n' || s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	return s
}
