package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExtractor() *Extractor {
	return NewExtractor(zap.NewNop())
}

func TestTextVariants(t *testing.T) {
	e := newTestExtractor()

	t.Run("plain string passes through", func(t *testing.T) {
		got, err := e.Text("hello agent")
		require.NoError(t, err)
		assert.Equal(t, "hello agent", got)
	})

	t.Run("content block list joins text", func(t *testing.T) {
		got, err := e.Text(map[string]interface{}{
			"role": "assistant",
			"content": []interface{}{
				map[string]interface{}{"text": "X"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "X", got)
	})

	t.Run("multiple content blocks join with newline", func(t *testing.T) {
		got, err := e.Text(map[string]interface{}{
			"content": []interface{}{
				map[string]interface{}{"text": "first"},
				map[string]interface{}{"text": "second"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond", got)
	})

	t.Run("content string", func(t *testing.T) {
		got, err := e.Text(map[string]interface{}{"content": "inline"})
		require.NoError(t, err)
		assert.Equal(t, "inline", got)
	})

	t.Run("nested result", func(t *testing.T) {
		got, err := e.Text(map[string]interface{}{
			"result": map[string]interface{}{"text": "nested"},
		})
		require.NoError(t, err)
		assert.Equal(t, "nested", got)
	})

	t.Run("json bytes decode", func(t *testing.T) {
		got, err := e.Text([]byte(`{"content":[{"text":"from json"}]}`))
		require.NoError(t, err)
		assert.Equal(t, "from json", got)
	})

	t.Run("nil is an error", func(t *testing.T) {
		_, err := e.Text(nil)
		assert.Error(t, err)
	})
}

type fakeProvider struct{ text string }

func (f fakeProvider) ResponseText() string { return f.text }

func TestTextProvider(t *testing.T) {
	e := newTestExtractor()
	got, err := e.Text(fakeProvider{text: "provided"})
	require.NoError(t, err)
	assert.Equal(t, "provided", got)
}

func TestHasEscapeArtifacts(t *testing.T) {
	assert.True(t, HasEscapeArtifacts(`import os\nprint("hi")`))
	assert.False(t, HasEscapeArtifacts("import os\nprint(\"hi\")"))
}

const fencedResponse = "Here is the analysis.\n\n```python\nfrom forgekit import Agent\n\nagent = Agent(name=\"helper\", system_prompt=\"You are helpful\")\nprint(agent(\"hello\"))\n```\n\nAll tests passed."

func TestCodeWithFallbacksTaggedBlock(t *testing.T) {
	e := newTestExtractor()
	result := e.CodeWithFallbacks(fencedResponse)

	require.True(t, result.Success)
	assert.Equal(t, "python_blocks", result.Method)
	assert.Contains(t, result.Code, "from forgekit import Agent")
	assert.NotContains(t, result.Code, "```")
	assert.GreaterOrEqual(t, result.Confidence, 0.6)
}

func TestCodeWithFallbacksLastBlockWins(t *testing.T) {
	e := newTestExtractor()
	response := "Draft:\n```python\nfrom forgekit import Agent\nagent = Agent(name=\"draft\", system_prompt=\"draft version here\")\n```\nFinal:\n```python\nfrom forgekit import Agent\nagent = Agent(name=\"final\", system_prompt=\"final version here\")\n```"
	result := e.CodeWithFallbacks(response)

	require.True(t, result.Success)
	assert.Contains(t, result.Code, "final")
	assert.NotContains(t, result.Code, "draft")
}

func TestCodeWithFallbacksImportAnchor(t *testing.T) {
	e := newTestExtractor()
	response := "No fences here, just raw code:\n\nfrom forgekit import Agent\nagent = Agent(name=\"raw\", system_prompt=\"unfenced agent code\")\nprint(agent(\"go\"))\n\nThat is all."
	result := e.CodeWithFallbacks(response)

	require.True(t, result.Success)
	assert.Equal(t, "import_based", result.Method)
	assert.True(t, strings.HasPrefix(result.Code, "from forgekit"))
}

func TestCodeWithFallbacksFailureCarriesPreview(t *testing.T) {
	e := newTestExtractor()
	long := strings.Repeat("nothing resembling code here. ", 40)
	result := e.CodeWithFallbacks(long)

	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Len(t, result.RawPreview, 500)
}

func TestCodeWithFallbacksShortSnippetRejected(t *testing.T) {
	e := newTestExtractor()
	result := e.CodeWithFallbacks("```python\nx = 1\n```")
	assert.False(t, result.Success)
}

func TestConfidenceScore(t *testing.T) {
	full := "from forgekit import Agent\n# build the agent\ndef main():\n    agent = Agent()\n"
	assert.InDelta(t, 1.0, ConfidenceScore(full), 0.001)

	bare := "x = 1"
	assert.InDelta(t, 0.0, ConfidenceScore(bare), 0.001)
}

func TestCleanupFormattingIdempotent(t *testing.T) {
	e := newTestExtractor()
	messy := "import os\r\n\n\n\n\nprint('hi')\n\n\n"

	once := e.CleanupFormatting(messy)
	twice := e.CleanupFormatting(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, "import os\n\nprint('hi')\n", once)
	assert.True(t, strings.HasSuffix(once, "\n"))
	assert.False(t, strings.HasSuffix(once, "\n\n"))
}

func TestCleanupFormattingEmptyInput(t *testing.T) {
	e := newTestExtractor()
	assert.Equal(t, "", e.CleanupFormatting(""))
}

func TestStorageRefs(t *testing.T) {
	e := newTestExtractor()
	response := "**Generated Files:**\n" +
		"- Agent Code: s3://temp-code/req_abc123/agent_code.py\n" +
		"- Runtime-Ready Code: s3://temp-code/req_abc123/runtime_ready.py\n" +
		"- Requirements: s3://temp-code/req_abc123/requirements.txt\n"

	refs := e.StorageRefs(response)
	require.Len(t, refs, 3)
	assert.Equal(t, "s3://temp-code/req_abc123/agent_code.py", refs["agent_code"])
	assert.Equal(t, "s3://temp-code/req_abc123/requirements.txt", refs["requirements"])
}

func TestStorageRefsNoneFound(t *testing.T) {
	e := newTestExtractor()
	assert.Empty(t, e.StorageRefs("no uris in this response"))
}

func TestMetadataSections(t *testing.T) {
	e := newTestExtractor()
	response := "CONFIGURATION ANALYSIS: two agents with a calculator tool\n\n" +
		"TESTING: tests passed with one query\n\n" +
		"REASONING: kept it simple\n\n" +
		"done"
	meta := e.Metadata(response, "code")

	assert.Equal(t, "two agents with a calculator tool", meta.ConfigurationAnalysis)
	assert.True(t, meta.TestingCompleted)
	assert.NotEmpty(t, meta.TestingVerification)
	assert.Equal(t, "kept it simple", meta.ReasoningProcess)
	assert.Equal(t, len(response), meta.ResponseLength)
	assert.Equal(t, 4, meta.CodeLength)
}

func TestMetadataMissingSections(t *testing.T) {
	e := newTestExtractor()
	meta := e.Metadata("nothing labeled here", "")
	assert.Empty(t, meta.ConfigurationAnalysis)
	assert.False(t, meta.TestingCompleted)
}
