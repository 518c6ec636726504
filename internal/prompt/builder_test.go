package prompt

import (
	"strings"
	"testing"

	"github.com/agentforge/api/internal/models"
)

func sampleConfig() *models.VisualConfig {
	return &models.VisualConfig{
		Agents: []models.AgentSpec{
			{ID: "a1", Name: "researcher", SystemPrompt: "You research topics", TestQuery: "summarize the latest on solar panels"},
			{ID: "a2", Name: "writer", SystemPrompt: "You write articles"},
		},
		Tools: []models.ToolSpec{
			{ID: "t1", Name: "web_search"},
		},
		Connections: []models.ConnectionSpec{
			{Source: "a1", Target: "a2"},
		},
		Architecture: models.ArchitectureSpec{
			AgentCount:   2,
			ToolCount:    1,
			WorkflowType: "sequential",
		},
	}
}

func TestFreeformPinsRequestID(t *testing.T) {
	p := Freeform(sampleConfig(), "req_abc123def456")

	if !strings.Contains(p, "REQUEST ID: req_abc123def456") {
		t.Error("prompt does not pin the request id")
	}
	if !strings.Contains(p, `session_id="req_abc123def456"`) {
		t.Error("prompt does not pin the artifact session id")
	}
	if !strings.Contains(p, "DO NOT generate your own session ID") {
		t.Error("prompt does not forbid self-generated session ids")
	}
}

func TestFreeformWithoutRequestID(t *testing.T) {
	p := Freeform(sampleConfig(), "")

	if strings.Contains(p, "REQUEST ID:") {
		t.Error("prompt mentions a request id that was never supplied")
	}
	if !strings.Contains(p, "store_code_artifact") {
		t.Error("prompt missing artifact storage instruction")
	}
}

func TestFreeformStorageContract(t *testing.T) {
	p := Freeform(sampleConfig(), "req_x")

	required := []string{
		"slot='agent_code'",
		"slot='runtime_ready'",
		"slot='requirements'",
		"STORAGE URI RESPONSE FORMAT",
		"s3://temp-code/{request_id}/agent_code.py",
		"forgekit>=1.0.0",
		"code_interpreter",
	}
	for _, want := range required {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFreeformEmbedsConfiguration(t *testing.T) {
	p := Freeform(sampleConfig(), "req_x")

	if !strings.Contains(p, `"researcher"`) {
		t.Error("prompt does not embed agent names")
	}
	if !strings.Contains(p, `"web_search"`) {
		t.Error("prompt does not embed tool names")
	}
}

func TestFreeformTestQueries(t *testing.T) {
	p := Freeform(sampleConfig(), "req_x")
	if !strings.Contains(p, "summarize the latest on solar panels") {
		t.Error("user-provided test query missing from prompt")
	}

	// No queries means no section at all
	cfg := sampleConfig()
	for i := range cfg.Agents {
		cfg.Agents[i].TestQuery = ""
	}
	p = Freeform(cfg, "req_x")
	if strings.Contains(p, "USER-PROVIDED TEST QUERIES") {
		t.Error("empty test query section should be omitted")
	}
}

func TestFreeformNilConfig(t *testing.T) {
	// Builders stay total even for nil input
	p := Freeform(nil, "req_x")
	if !strings.Contains(p, "CONFIGURATION:\n{}") {
		t.Error("nil config should serialize to an empty object")
	}
}

func TestLegacyRequestsFencedBlock(t *testing.T) {
	p := Legacy(sampleConfig())

	if !strings.Contains(p, "```python```") {
		t.Error("legacy prompt does not request a fenced block")
	}
	if strings.Contains(p, "store_code_artifact") {
		t.Error("legacy prompt must not request artifact storage")
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(sampleConfig())
	want := "2 agent(s), 1 tool(s), 1 connection(s), sequential workflow"
	if got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}

	if got := Describe(nil); got != "empty configuration" {
		t.Errorf("Describe(nil) = %q", got)
	}
}

func TestConfigJSON(t *testing.T) {
	if got := ConfigJSON(nil); got != "{}" {
		t.Errorf("ConfigJSON(nil) = %q", got)
	}
	if got := ConfigJSON(sampleConfig()); !strings.Contains(got, `"agents"`) {
		t.Errorf("serialized config missing agents: %s", got)
	}
}
