// Package prompt builds the generation prompts sent to the model
// service. Builders are pure functions of the request: no I/O, no clock,
// and every input produces a prompt.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentforge/api/internal/models"
)

// ConfigJSON serializes a visual configuration for prompt embedding.
// Serialization failures degrade to an empty object so prompt building
// stays total.
func ConfigJSON(config *models.VisualConfig) string {
	if config == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Freeform builds the primary generation prompt. The model is instructed
// to test its code, save all three artifacts under the supplied request id
// and respond with storage URIs rather than fenced code blocks.
func Freeform(config *models.VisualConfig, requestID string) string {
	configJSON := ConfigJSON(config)

	var requestIDInstruction string
	if requestID != "" {
		requestIDInstruction = fmt.Sprintf(`
REQUEST ID: %s

CRITICAL: When using the store_code_artifact tool, you MUST use session_id=%q (exactly this value) for all artifact slots.
DO NOT generate your own session ID - use the provided REQUEST ID: %s
`, requestID, requestID, requestID)
	}

	return fmt.Sprintf(`Generate clean, working forgekit agent code for this visual configuration.
%s
CONFIGURATION:
%s

CRITICAL REQUIREMENTS:
- Follow current forgekit SDK patterns
- **MUST USE code_interpreter tool** to test the generated code and show actual execution results in secure sandbox
- **MUST USE store_code_artifact tool** to save both agent_code and runtime_ready versions
- **DO NOT include final code in `+"```python```"+` blocks** - save artifacts instead and return storage URIs
- Include proper error handling and validation
- Use environment variables for sensitive configuration
- Focus on correct pattern implementation with clean, readable code
- Include comprehensive comments explaining the code
- Make code runnable in non-interactive environments
- Validate all configuration inputs for security

TRIPLE ARTIFACT GENERATION PROCESS:
1. Generate pure forgekit code and test it with code_interpreter tool in secure sandbox
2. Use store_code_artifact tool to save it with slot='agent_code'
3. Generate runtime-ready version with the deployment wrapper
4. Use store_code_artifact tool to save it with slot='runtime_ready'
5. Analyze imports in generated code and create comprehensive requirements.txt
6. Use store_code_artifact tool to save requirements.txt with slot='requirements' and file_extension='.txt'
7. Return storage URIs of all three files instead of code in markdown blocks

REQUIREMENTS.TXT GENERATION:
- CRITICAL: Always include core packages with version constraints: forgekit>=1.0.0, forgekit-tools>=0.1.0
- CRITICAL: Every package MUST have a version constraint (>=X.Y.Z format) - never use bare package names
- Analyze all import statements in your generated code
- Add packages for any external imports (not Python built-ins)
- Include helpful comments explaining each dependency
- Example format: requests>=2.31.0  # For HTTP requests

MANDATORY FREE-FORM WORKFLOW:
1. **ANALYZE** the visual configuration and validate inputs for security
2. **GENERATE** complete, working Python code with security best practices
3. **TEST** the code using code_interpreter tool and show actual execution results in secure sandbox
4. **VERIFY** the code works and meets security requirements
5. **FIX** any errors found during testing and re-test until working
6. **RETURN** storage URIs for all three generated files (agent_code, runtime_ready, requirements)

RESPONSE FORMAT REQUIREMENTS:
- Provide natural language analysis of the configuration
- Explain your implementation approach and security considerations
- Include actual testing results from code_interpreter execution in secure sandbox
- DO NOT return code in `+"```python```"+` blocks - use artifact storage instead
- Return storage URIs for the client to fetch the generated files

TESTING REQUIREMENTS:
- Use code_interpreter tool to execute and test the generated code with ONE comprehensive test query in secure sandbox
- If the user didn't provide a test query, generate ONE query that tests all agent capabilities efficiently
- Show actual test execution output and results from the ONE test query
- Verify imports work, agents can be created, and basic functionality works with ONE test
- Fix any errors and re-test until working
%s
SECURITY REQUIREMENTS:
- Validate all configuration inputs for malicious patterns
- Use environment variables for sensitive data (API keys, credentials)
- Implement proper input sanitization and validation

STORAGE URI RESPONSE FORMAT:
Your final response must include the storage URIs for all three generated files:

**Generated Files:**
- Agent Code: s3://temp-code/{request_id}/agent_code.py
- Runtime-Ready Code: s3://temp-code/{request_id}/runtime_ready.py
- Requirements.txt: s3://temp-code/{request_id}/requirements.txt

CRITICAL: DO NOT include any code in `+"```python```"+` blocks. All code must be saved with the store_code_artifact tool. Return only the storage URIs, and describe the testing process and implementation in natural language.

Focus on creating reliable, production-ready forgekit agent code that has been actually tested, validated for security, and verified to work.`,
		requestIDInstruction, configJSON, testQuerySection(config))
}

// Legacy builds the fallback prompt that asks for fenced code directly,
// for callers that cannot consume storage references.
func Legacy(config *models.VisualConfig) string {
	return fmt.Sprintf(`Generate clean, working forgekit agent code for this visual configuration:

CONFIGURATION:
%s

CRITICAL REQUIREMENTS:
- Follow current forgekit SDK patterns
- Include proper error handling and validation
- Use environment variables for sensitive configuration
- Focus on correct pattern implementation
- Include comprehensive comments explaining the code
- Make code runnable in non-interactive environments

MANDATORY WORKFLOW:
1. **ANALYZE** the visual configuration and architecture patterns
2. **GENERATE** complete, working Python code
3. **VERIFY** the code works and fix any errors found
4. **PROVIDE** the final verified working code in a single `+"```python```"+` block

CODE FORMAT REQUIREMENTS:
- Exactly one `+"```python```"+` block containing the complete program
- No duplicate imports
- Clean, properly formatted Python code

Focus on creating reliable, production-ready forgekit agent code.`, ConfigJSON(config))
}

// Describe renders a one-line human summary of a configuration, used in
// log lines and chat session titles.
func Describe(config *models.VisualConfig) string {
	if config == nil {
		return "empty configuration"
	}
	parts := []string{
		fmt.Sprintf("%d agent(s)", len(config.Agents)),
		fmt.Sprintf("%d tool(s)", len(config.Tools)),
	}
	if len(config.Connections) > 0 {
		parts = append(parts, fmt.Sprintf("%d connection(s)", len(config.Connections)))
	}
	if wt := config.Architecture.WorkflowType; wt != "" {
		parts = append(parts, wt+" workflow")
	}
	return strings.Join(parts, ", ")
}

func testQuerySection(config *models.VisualConfig) string {
	queries := collectTestQueries(config)
	if len(queries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nUSER-PROVIDED TEST QUERIES:\n")
	for _, q := range queries {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	return b.String()
}

func collectTestQueries(config *models.VisualConfig) []string {
	if config == nil {
		return nil
	}
	var queries []string
	for _, agent := range config.Agents {
		if q := strings.TrimSpace(agent.TestQuery); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}
