package models

import (
	"time"
)

// AgentSpec describes one agent node from the visual canvas
type AgentSpec struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Model        string             `json:"model"`
	SystemPrompt string             `json:"systemPrompt"`
	Temperature  *float64           `json:"temperature,omitempty"`
	MaxTokens    *int               `json:"maxTokens,omitempty"`
	TestQuery    string             `json:"testQuery,omitempty"`
	Position     map[string]float64 `json:"position,omitempty"`
}

// ToolSpec describes one tool node from the visual canvas
type ToolSpec struct {
	ID                string                   `json:"id"`
	Name              string                   `json:"name"`
	Type              string                   `json:"type"` // "builtin" or "custom"
	Category          string                   `json:"category"`
	Description       string                   `json:"description,omitempty"`
	Parameters        []map[string]interface{} `json:"parameters,omitempty"`
	ReturnType        string                   `json:"returnType,omitempty"`
	ReturnDescription string                   `json:"returnDescription,omitempty"`
	Position          map[string]float64       `json:"position,omitempty"`
}

// ConnectionSpec is an edge between two canvas nodes
type ConnectionSpec struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ArchitectureSpec summarizes the canvas topology
type ArchitectureSpec struct {
	AgentCount      int      `json:"agentCount"`
	ToolCount       int      `json:"toolCount"`
	ConnectionCount int      `json:"connectionCount"`
	WorkflowType    string   `json:"workflowType"`
	Complexity      string   `json:"complexity"`
	Patterns        []string `json:"patterns,omitempty"`
	Insights        []string `json:"insights,omitempty"`
}

// AdvancedConfig carries optional model feature flags for a generation request
type AdvancedConfig struct {
	EnableReasoning       bool     `json:"enable_reasoning,omitempty"`
	EnablePromptCaching   bool     `json:"enable_prompt_caching,omitempty"`
	RuntimeModelSwitching bool     `json:"runtime_model_switching,omitempty"`
	Temperature           *float64 `json:"temperature,omitempty"`
	TopP                  *float64 `json:"top_p,omitempty"`
}

// VisualConfig is the full generation request payload from the builder UI
type VisualConfig struct {
	Agents       []AgentSpec            `json:"agents"`
	Tools        []ToolSpec             `json:"tools"`
	Connections  []ConnectionSpec       `json:"connections"`
	Architecture ArchitectureSpec       `json:"architecture"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Optional model override; precedence is request > user setting > system default
	ExpertAgentModel string          `json:"expertAgentModel,omitempty"`
	Advanced         *AdvancedConfig `json:"advanced_config,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
}

// GenerationResult is the uniform response envelope produced by exactly one
// of the remote and local generation paths. Callers may enrich Metadata
// before surfacing it; the other fields are never mutated after return.
type GenerationResult struct {
	ConfigurationAnalysis string                 `json:"configuration_analysis"`
	GeneratedCode         string                 `json:"generated_code"`
	TestingVerification   string                 `json:"testing_verification"`
	FinalWorkingCode      string                 `json:"final_working_code"`
	ReasoningProcess      string                 `json:"reasoning_process,omitempty"`
	Metadata              map[string]interface{} `json:"metadata"`
}

// MessageRole is the author of a chat message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageStatus tracks delivery state of a chat message
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// ChatMessage is one turn in a conversation with a deployed agent
type ChatMessage struct {
	ID        string        `json:"id"`
	Role      MessageRole   `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
}

// ChatSession is an in-memory conversation with a deployed agent. Sessions
// are keyed by a deterministic hash of user+agent so repeat conversations
// resume instead of forking.
type ChatSession struct {
	SessionID    string        `json:"session_id"`
	AgentRef     string        `json:"agent_ref"`
	Messages     []ChatMessage `json:"messages"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}

// AgentState is the lifecycle state reported by the remote agent runtime
type AgentState string

const (
	AgentStateCreating AgentState = "CREATING"
	AgentStateActive   AgentState = "ACTIVE"
	AgentStateReady    AgentState = "READY"
	AgentStateFailed   AgentState = "FAILED"
	AgentStateUnknown  AgentState = "UNKNOWN"
)
