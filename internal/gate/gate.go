// Package gate screens generation inputs and outputs for security
// problems. It annotates, it never rewrites: findings travel with the
// result so callers and clients decide what to do with unsafe code.
package gate

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// InputReport is the outcome of screening serialized request input
type InputReport struct {
	IsSafe   bool     `json:"is_safe"`
	Warnings []string `json:"warnings"`
}

// CodeReport is the outcome of screening generated code
type CodeReport struct {
	IsSafe          bool     `json:"is_safe"`
	SecurityIssues  []string `json:"security_issues"`
	Recommendations []string `json:"recommendations"`
}

// StructureReport is the outcome of structural sanity checks
type StructureReport struct {
	IsValid  bool     `json:"is_valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)__import__\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)subprocess\.`),
	regexp.MustCompile(`(?i)os\.system`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
}

type codeCheck struct {
	re      *regexp.Regexp
	message string
}

var codeChecks = []codeCheck{
	{regexp.MustCompile(`(?i)api_key\s*=\s*["'][^"']+["']`), "Hardcoded API key detected"},
	{regexp.MustCompile(`(?i)password\s*=\s*["'][^"']+["']`), "Hardcoded password detected"},
	{regexp.MustCompile(`(?i)exec\s*\(`), "Dynamic code execution detected"},
	{regexp.MustCompile(`(?i)eval\s*\(`), "Dynamic evaluation detected"},
	{regexp.MustCompile(`(?i)input\s*\(`), "Interactive input detected (causes automation issues)"},
}

// Gate screens inputs and generated code
type Gate struct {
	logger *zap.Logger
}

// NewGate creates a security gate
func NewGate(logger *zap.Logger) *Gate {
	return &Gate{logger: logger}
}

// ScanInput screens a serialized configuration for injection patterns.
// Any hit marks the input unsafe; the input itself is never modified.
func (g *Gate) ScanInput(configStr string) InputReport {
	report := InputReport{IsSafe: true, Warnings: []string{}}
	for _, re := range injectionPatterns {
		if re.MatchString(configStr) {
			report.Warnings = append(report.Warnings,
				"Potential injection pattern detected: "+re.String())
			report.IsSafe = false
		}
	}
	if !report.IsSafe {
		g.logger.Warn("configuration input failed security screening",
			zap.Strings("warnings", report.Warnings))
	}
	return report
}

// ScanCode screens generated code for security anti-patterns. Findings
// annotate the result only; the code is returned to the caller untouched.
func (g *Gate) ScanCode(code string) CodeReport {
	report := CodeReport{
		IsSafe:          true,
		SecurityIssues:  []string{},
		Recommendations: []string{},
	}
	for _, check := range codeChecks {
		if check.re.MatchString(code) {
			report.SecurityIssues = append(report.SecurityIssues, check.message)
			report.IsSafe = false
		}
	}
	if !report.IsSafe {
		g.logger.Warn("generated code failed security screening",
			zap.Strings("issues", report.SecurityIssues))
	}
	return report
}

// ValidateStructure checks that generated code has the basic shape of a
// runnable agent: framework imports, an agent construction, and an
// entrypoint.
func (g *Gate) ValidateStructure(code string) StructureReport {
	report := StructureReport{IsValid: true, Issues: []string{}, Warnings: []string{}}

	if strings.TrimSpace(code) == "" {
		report.IsValid = false
		report.Issues = append(report.Issues, "code is empty")
		return report
	}
	if !strings.Contains(code, "from forgekit") && !strings.Contains(code, "import forgekit") {
		report.IsValid = false
		report.Issues = append(report.Issues, "missing framework import")
	}
	if !strings.Contains(code, "Agent(") {
		report.IsValid = false
		report.Issues = append(report.Issues, "missing agent construction")
	}
	if !strings.Contains(code, "def ") && !strings.Contains(code, "__main__") {
		report.Warnings = append(report.Warnings, "no function definitions or entrypoint found")
	}
	return report
}
