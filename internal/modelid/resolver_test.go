package modelid

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeSettings struct {
	pref string
	err  error
}

func (f *fakeSettings) UserModelPreference(ctx context.Context, userID string) (string, error) {
	return f.pref, f.err
}

func TestRegionalPrefix(t *testing.T) {
	cases := []struct {
		region string
		want   string
	}{
		{"us-east-1", "us."},
		{"us-west-2", "us."},
		{"eu-west-1", "eu."},
		{"eu-central-1", "eu."},
		{"ap-southeast-2", "apac."},
		{"ca-central-1", "us."},
		{"sa-east-1", "us."},
		{"af-south-1", "us."},
		{"", "us."},
	}

	for _, tc := range cases {
		if got := RegionalPrefix(tc.region); got != tc.want {
			t.Errorf("RegionalPrefix(%q) = %q, want %q", tc.region, got, tc.want)
		}
	}
}

func TestFormatModelForCRIS(t *testing.T) {
	// Bare ids get the regional prefix
	got := FormatModelForCRIS("anthropic.claude-3-7-sonnet-20250219-v1:0", "eu-west-1")
	if got != "eu.anthropic.claude-3-7-sonnet-20250219-v1:0" {
		t.Errorf("unexpected formatted id: %q", got)
	}

	// Already-prefixed ids pass through unchanged
	prefixed := "us.anthropic.claude-3-7-sonnet-20250219-v1:0"
	if got := FormatModelForCRIS(prefixed, "eu-west-1"); got != prefixed {
		t.Errorf("prefixed id was rewritten: %q", got)
	}

	// Idempotence
	once := FormatModelForCRIS("anthropic.claude-3-7-sonnet-20250219-v1:0", "ap-southeast-2")
	twice := FormatModelForCRIS(once, "ap-southeast-2")
	if once != twice {
		t.Errorf("formatting is not idempotent: %q != %q", once, twice)
	}

	// Empty id stays empty
	if got := FormatModelForCRIS("", "us-east-1"); got != "" {
		t.Errorf("empty id produced %q", got)
	}
}

func TestEffectiveModelIDPrecedence(t *testing.T) {
	// Setup
	settings := &fakeSettings{pref: "anthropic.claude-sonnet-4-20250514-v1:0"}
	r := NewResolver(settings, "us-east-1", "anthropic.claude-3-7-sonnet-20250219-v1:0", zap.NewNop())
	ctx := context.Background()

	// Request override wins over everything
	got := r.EffectiveModelID(ctx, "anthropic.claude-opus-4-20250514-v1:0", "user@example.com")
	if got != "us.anthropic.claude-opus-4-20250514-v1:0" {
		t.Errorf("override not honored: %q", got)
	}

	// User preference beats the system default
	got = r.EffectiveModelID(ctx, "", "user@example.com")
	if got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("user preference not honored: %q", got)
	}

	// No override, no preference: system default
	settings.pref = ""
	got = r.EffectiveModelID(ctx, "", "user@example.com")
	if got != "us.anthropic.claude-3-7-sonnet-20250219-v1:0" {
		t.Errorf("system default not applied: %q", got)
	}
}

func TestEffectiveModelIDSettingsFailure(t *testing.T) {
	// Settings store failures degrade to the system default
	settings := &fakeSettings{err: errors.New("redis down")}
	r := NewResolver(settings, "eu-west-1", "anthropic.claude-3-7-sonnet-20250219-v1:0", zap.NewNop())

	got := r.EffectiveModelID(context.Background(), "", "user@example.com")
	if got != "eu.anthropic.claude-3-7-sonnet-20250219-v1:0" {
		t.Errorf("expected system default on settings failure, got %q", got)
	}
}

func TestEffectiveModelIDNilSettings(t *testing.T) {
	r := NewResolver(nil, "us-east-1", "anthropic.claude-3-7-sonnet-20250219-v1:0", zap.NewNop())

	got := r.EffectiveModelID(context.Background(), "", "user@example.com")
	if got != "us.anthropic.claude-3-7-sonnet-20250219-v1:0" {
		t.Errorf("expected system default with nil settings, got %q", got)
	}
}

func TestSystemDefaultCache(t *testing.T) {
	// Setup
	r := NewResolver(nil, "ap-southeast-2", "anthropic.claude-3-7-sonnet-20250219-v1:0", zap.NewNop())

	first := r.SystemDefault()
	if first != "apac.anthropic.claude-3-7-sonnet-20250219-v1:0" {
		t.Fatalf("unexpected system default: %q", first)
	}

	// Cached value survives a config field change until the cache is cleared
	r.defaultModel = "anthropic.claude-sonnet-4-20250514-v1:0"
	if got := r.SystemDefault(); got != first {
		t.Errorf("cache not used: %q", got)
	}

	r.ClearCache()
	if got := r.SystemDefault(); got != "apac.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("cache not invalidated: %q", got)
	}
}

func TestValidateModelID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"us.anthropic.claude-3-7-sonnet-20250219-v1:0", true},
		{"abc", false},
		{"", false},
		{"has space.model-id", false},
		{"has\nnewline", false},
	}

	for _, tc := range cases {
		if got := ValidateModelID(tc.id); got != tc.want {
			t.Errorf("ValidateModelID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
