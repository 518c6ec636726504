package remote

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/agentforge/api/internal/artifacts"
	"github.com/agentforge/api/internal/extract"
	"github.com/agentforge/api/internal/models"
	"go.uber.org/zap"
)

// fakeRuntime scripts runtime behavior for invoker tests
type fakeRuntime struct {
	state       models.AgentState
	statusErr   error
	contentType string
	body        string
	bodyErr     error
	invokeErr   error

	lastSessionID string
	lastPayload   []byte
}

func (f *fakeRuntime) Invoke(ctx context.Context, agentRef, sessionID string, payload []byte) (*Invocation, error) {
	f.lastSessionID = sessionID
	f.lastPayload = payload
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	var body io.Reader = strings.NewReader(f.body)
	if f.bodyErr != nil {
		body = &failingReader{r: body, err: f.bodyErr}
	}
	return &Invocation{
		ContentType: f.contentType,
		Body:        io.NopCloser(body),
	}, nil
}

// failingReader yields its content, then fails instead of hitting EOF
type failingReader struct {
	r   io.Reader
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF {
		return n, f.err
	}
	return n, err
}

func (f *fakeRuntime) Status(ctx context.Context, agentRef string) (models.AgentState, error) {
	return f.state, f.statusErr
}

func newTestInvoker(rt Runtime, store *artifacts.Store) *Invoker {
	return NewInvoker(rt, extract.NewExtractor(zap.NewNop()), store, true, "agent-expert", zap.NewNop())
}

func emptyStore() *artifacts.Store {
	return artifacts.NewStore(artifacts.NewMemoryBackend(), time.Hour, zap.NewNop())
}

func testConfig() *models.VisualConfig {
	return &models.VisualConfig{
		Agents: []models.AgentSpec{{ID: "a1", Name: "helper", SystemPrompt: "You help"}},
	}
}

func TestGenerateDisabled(t *testing.T) {
	inv := NewInvoker(&fakeRuntime{state: models.AgentStateReady}, extract.NewExtractor(zap.NewNop()), emptyStore(), false, "agent-expert", zap.NewNop())

	_, err := inv.Generate(context.Background(), testConfig(), "us.model", nil, "req_x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable when disabled, got %v", err)
	}
}

func TestGenerateNoAgentRef(t *testing.T) {
	inv := NewInvoker(&fakeRuntime{state: models.AgentStateReady}, extract.NewExtractor(zap.NewNop()), emptyStore(), true, "", zap.NewNop())

	_, err := inv.Generate(context.Background(), testConfig(), "us.model", nil, "req_x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable without agent ref, got %v", err)
	}
}

func TestGenerateRuntimeStateGate(t *testing.T) {
	cases := []struct {
		name        string
		state       models.AgentState
		wantBlocked bool
	}{
		{"failed runtime blocks", models.AgentStateFailed, true},
		{"creating runtime blocks", models.AgentStateCreating, true},
		{"ready runtime proceeds", models.AgentStateReady, false},
		{"unknown runtime proceeds", models.AgentStateUnknown, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := &fakeRuntime{
				state:       tc.state,
				contentType: "application/json",
				body:        `{"result":{"generated_code":"from forgekit import Agent\nagent = Agent()","metadata":{}}}`,
			}
			inv := newTestInvoker(rt, emptyStore())

			_, err := inv.Generate(context.Background(), testConfig(), "us.model", nil, "req_x")
			blocked := errors.Is(err, ErrUnavailable)
			if blocked != tc.wantBlocked {
				t.Errorf("blocked = %v, want %v (err: %v)", blocked, tc.wantBlocked, err)
			}
		})
	}
}

func TestGenerateStructuredPassThrough(t *testing.T) {
	// Setup
	rt := &fakeRuntime{
		state:       models.AgentStateReady,
		contentType: "application/json",
		body: `{"result":{
			"configuration_analysis":"one agent, no tools",
			"generated_code":"from forgekit import Agent\nagent = Agent(name=\"helper\")",
			"testing_verification":"test passed",
			"final_working_code":"from forgekit import Agent\nagent = Agent(name=\"helper\")",
			"metadata":{"tokens":120}
		}}`,
	}
	inv := newTestInvoker(rt, emptyStore())

	// Execution
	result, err := inv.Generate(context.Background(), testConfig(), "us.model", nil, "req_pass")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Assertions: structured fields pass through, stamped with method and id
	if result.ConfigurationAnalysis != "one agent, no tools" {
		t.Errorf("analysis not passed through: %q", result.ConfigurationAnalysis)
	}
	if !strings.Contains(result.GeneratedCode, "Agent(name=") {
		t.Errorf("code not passed through: %q", result.GeneratedCode)
	}
	if result.Metadata["generation_method"] != "remote_expert" {
		t.Errorf("generation method: %v", result.Metadata["generation_method"])
	}
	if result.Metadata["request_id"] != "req_pass" {
		t.Errorf("request id: %v", result.Metadata["request_id"])
	}
	if result.Metadata["tokens"] != float64(120) {
		t.Errorf("upstream metadata lost: %v", result.Metadata["tokens"])
	}
}

func TestGenerateRawResponseReExtraction(t *testing.T) {
	// Raw text result goes back through code extraction
	rt := &fakeRuntime{
		state:       models.AgentStateReady,
		contentType: "application/json",
		body:        `{"result":"Analysis done.\n\n` + "```python\\nfrom forgekit import Agent\\nagent = Agent(name=\\\"extracted\\\", system_prompt=\\\"long enough to extract\\\")\\n```" + `"}`,
	}
	inv := newTestInvoker(rt, emptyStore())

	result, err := inv.Generate(context.Background(), testConfig(), "us.model", nil, "req_raw")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(result.GeneratedCode, "extracted") {
		t.Errorf("code not re-extracted: %q", result.GeneratedCode)
	}
	if result.Metadata["generation_method"] != "remote_expert" {
		t.Errorf("generation method: %v", result.Metadata["generation_method"])
	}
}

func TestGenerateStorageRefFetch(t *testing.T) {
	// Setup: the artifact exists in the store and the response references it
	store := emptyStore()
	ctx := context.Background()
	if _, err := store.Put(ctx, "req_stored", artifacts.SlotAgentCode, "from forgekit import Agent\nagent = Agent(name=\"stored\")"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rt := &fakeRuntime{
		state:       models.AgentStateReady,
		contentType: "application/json",
		body:        `{"result":"Saved artifacts.\n\n**Generated Files:**\n- Agent Code: s3://temp-code/req_stored/agent_code.py\n"}`,
	}
	inv := newTestInvoker(rt, store)

	// Execution
	result, err := inv.Generate(ctx, testConfig(), "us.model", nil, "req_stored")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Assertions: the stored content wins over regex recovery
	if !strings.Contains(result.GeneratedCode, "stored") {
		t.Errorf("stored artifact not fetched: %q", result.GeneratedCode)
	}
	refs, ok := result.Metadata["storage_refs"].(map[string]string)
	if !ok || refs["agent_code"] == "" {
		t.Errorf("storage refs missing from metadata: %v", result.Metadata["storage_refs"])
	}
}

func TestGenerateSessionIDShape(t *testing.T) {
	rt := &fakeRuntime{
		state:       models.AgentStateReady,
		contentType: "application/json",
		body:        `{"result":{"generated_code":"x","metadata":{}}}`,
	}
	inv := newTestInvoker(rt, emptyStore())

	if _, err := inv.Generate(context.Background(), testConfig(), "us.model", nil, "req_session"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.HasPrefix(rt.lastSessionID, "codegen_req_session_") {
		t.Errorf("unexpected session id: %q", rt.lastSessionID)
	}
	if len(rt.lastSessionID) > 50 {
		t.Errorf("session id exceeds runtime cap: %d chars", len(rt.lastSessionID))
	}
}

func TestGenerateInvokeFailure(t *testing.T) {
	rt := &fakeRuntime{state: models.AgentStateReady, invokeErr: errors.New("boom")}
	inv := newTestInvoker(rt, emptyStore())

	_, err := inv.Generate(context.Background(), testConfig(), "us.model", nil, "req_x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("invoke failure must map to ErrUnavailable, got %v", err)
	}
}

func TestGenerateStreamFrames(t *testing.T) {
	// Setup: an SSE body with quoted chunks, a blank separator and a plain line
	body := "data: \"first chunk \"\n" +
		"\n" +
		"data: \"second chunk\"\n" +
		"plain line\n"
	rt := &fakeRuntime{
		state:       models.AgentStateReady,
		contentType: "text/event-stream",
		body:        body,
	}
	inv := newTestInvoker(rt, emptyStore())

	// Execution
	frames, err := inv.GenerateStream(context.Background(), testConfig(), "us.model", nil, "req_stream")
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}

	var collected []Frame
	for frame := range frames {
		collected = append(collected, frame)
	}

	// Assertions: text, blank, text, text, final
	if len(collected) != 5 {
		t.Fatalf("expected 5 frames, got %d: %+v", len(collected), collected)
	}
	if collected[0].Type != FrameText || collected[0].Text != "first chunk " {
		t.Errorf("frame 0: %+v", collected[0])
	}
	if collected[1].Type != FrameBlank {
		t.Errorf("frame 1: %+v", collected[1])
	}
	if collected[2].Type != FrameText || collected[2].Text != "second chunk" {
		t.Errorf("frame 2: %+v", collected[2])
	}
	if collected[3].Type != FrameText || collected[3].Text != "plain line" {
		t.Errorf("frame 3: %+v", collected[3])
	}

	final := collected[4]
	if final.Type != FrameFinal || final.Final == nil {
		t.Fatalf("last frame is not final: %+v", final)
	}
	if !final.Final.Success {
		t.Error("final payload not successful")
	}
	if final.Final.Code != "first chunk second chunkplain line\n" {
		t.Errorf("accumulated text: %q", final.Final.Code)
	}
	if final.Final.Metadata["generation_method"] != "remote_expert_streaming" {
		t.Errorf("generation method: %v", final.Final.Metadata["generation_method"])
	}
}

func TestGenerateStreamReadFailureEndsWithoutFinalFrame(t *testing.T) {
	// Setup: the upstream connection dies after the first chunk
	rt := &fakeRuntime{
		state:       models.AgentStateReady,
		contentType: "text/event-stream",
		body:        "data: \"partial chunk\"\n",
		bodyErr:     errors.New("connection reset by peer"),
	}
	inv := newTestInvoker(rt, emptyStore())

	// Execution
	frames, err := inv.GenerateStream(context.Background(), testConfig(), "us.model", nil, "req_cut")
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}

	var collected []Frame
	for frame := range frames {
		collected = append(collected, frame)
	}

	// Assertions: the delivered text comes through, but the truncated
	// stream must not close with a successful final frame
	if len(collected) != 1 {
		t.Fatalf("expected 1 frame, got %d: %+v", len(collected), collected)
	}
	if collected[0].Type != FrameText || collected[0].Text != "partial chunk" {
		t.Errorf("frame 0: %+v", collected[0])
	}
	for _, frame := range collected {
		if frame.Type == FrameFinal {
			t.Errorf("truncated stream emitted a final frame: %+v", frame)
		}
	}
}

func TestGenerateStreamRequiresSSE(t *testing.T) {
	rt := &fakeRuntime{
		state:       models.AgentStateReady,
		contentType: "application/json",
		body:        `{"result":"buffered"}`,
	}
	inv := newTestInvoker(rt, emptyStore())

	_, err := inv.GenerateStream(context.Background(), testConfig(), "us.model", nil, "req_x")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("non-SSE response must map to ErrUnavailable, got %v", err)
	}
}
