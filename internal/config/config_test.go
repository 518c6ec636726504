package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Setup: a clean environment
	for _, key := range []string{
		"PORT", "GO_ENV", "DATABASE_URL", "REDIS_URL", "MODEL_SERVICE_URL",
		"ANTHROPIC_API_KEY", "REGION", "DEFAULT_MODEL_ID", "MODEL_TEMPERATURE",
		"USE_REMOTE_RUNTIME", "REMOTE_AGENT_REF", "REMOTE_RUNTIME_URL",
		"REMOTE_READ_TIMEOUT", "REMOTE_CONNECT_TIMEOUT", "ARTIFACT_TTL",
		"SESSION_IDLE_TTL", "NATS_URL", "JWT_SECRET",
	} {
		t.Setenv(key, "")
	}

	// Execution
	cfg := Load()

	// Assertions
	if cfg.Port != "8080" {
		t.Errorf("port: %q", cfg.Port)
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("region: %q", cfg.Region)
	}
	if cfg.DefaultModelID != "anthropic.claude-3-7-sonnet-20250219-v1:0" {
		t.Errorf("default model: %q", cfg.DefaultModelID)
	}
	if cfg.Temperature != 0.3 {
		t.Errorf("temperature: %v", cfg.Temperature)
	}
	if cfg.RemoteReadTimeout != 15*time.Minute {
		t.Errorf("remote read timeout: %v", cfg.RemoteReadTimeout)
	}
	if cfg.RemoteConnectTimeout != time.Minute {
		t.Errorf("remote connect timeout: %v", cfg.RemoteConnectTimeout)
	}
	if cfg.ArtifactTTL != 24*time.Hour {
		t.Errorf("artifact ttl: %v", cfg.ArtifactTTL)
	}
	if cfg.SessionIdleTTL != 12*time.Hour {
		t.Errorf("session idle ttl: %v", cfg.SessionIdleTTL)
	}
	if !cfg.RemoteRuntimeEnabled {
		t.Error("remote runtime should default to enabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REGION", "eu-west-1")
	t.Setenv("MODEL_TEMPERATURE", "0.7")
	t.Setenv("USE_REMOTE_RUNTIME", "false")
	t.Setenv("REMOTE_READ_TIMEOUT", "5m")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("port: %q", cfg.Port)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("region: %q", cfg.Region)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("temperature: %v", cfg.Temperature)
	}
	if cfg.RemoteRuntimeEnabled {
		t.Error("remote runtime should be disabled")
	}
	if cfg.RemoteReadTimeout != 5*time.Minute {
		t.Errorf("remote read timeout: %v", cfg.RemoteReadTimeout)
	}
}

func TestAppliedDefaults(t *testing.T) {
	// Setup: nothing configured
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("MODEL_SERVICE_URL", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Load()
	defaults := cfg.AppliedDefaults()

	want := map[string]bool{"JWT_SECRET": true, "REDIS_URL": true, "MODEL_SERVICE_URL": true}
	if len(defaults) != len(want) {
		t.Fatalf("expected %d defaults, got %v", len(want), defaults)
	}
	for _, name := range defaults {
		if !want[name] {
			t.Errorf("unexpected default: %q", name)
		}
	}

	// An API key covers the model backend even without a service URL
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	cfg = Load()
	for _, name := range cfg.AppliedDefaults() {
		if name == "MODEL_SERVICE_URL" {
			t.Error("MODEL_SERVICE_URL should not be reported with an API key set")
		}
	}
}
