package modelid

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// SettingsStore supplies per-user preferences. A missing preference is
// ("", nil), not an error.
type SettingsStore interface {
	UserModelPreference(ctx context.Context, userID string) (string, error)
}

// Resolver is the single source of truth for model id selection. Precedence
// is request override, then user settings, then system default; every
// result carries a CRIS regional prefix.
type Resolver struct {
	settings     SettingsStore
	region       string
	defaultModel string
	logger       *zap.Logger

	mu           sync.Mutex
	defaultCache string
}

// NewResolver creates a model id resolver. settings may be nil when no
// settings backend is configured; user preferences are then skipped.
func NewResolver(settings SettingsStore, region, defaultModel string, logger *zap.Logger) *Resolver {
	return &Resolver{
		settings:     settings,
		region:       region,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// RegionalPrefix maps a cloud region name to its CRIS prefix family.
// Canada and South America route through the US family.
func RegionalPrefix(region string) string {
	switch {
	case strings.HasPrefix(region, "us-"):
		return "us."
	case strings.HasPrefix(region, "eu-"):
		return "eu."
	case strings.HasPrefix(region, "ap-"):
		return "apac."
	case strings.HasPrefix(region, "ca-"), strings.HasPrefix(region, "sa-"):
		return "us."
	default:
		return "us."
	}
}

// FormatModelForCRIS prepends the regional prefix unless the id already
// carries one. Idempotent, so already-formatted ids pass through unchanged.
func FormatModelForCRIS(modelID, region string) string {
	if modelID == "" {
		return modelID
	}
	if strings.HasPrefix(modelID, "us.") ||
		strings.HasPrefix(modelID, "eu.") ||
		strings.HasPrefix(modelID, "apac.") {
		return modelID
	}
	return RegionalPrefix(region) + modelID
}

// SystemDefault returns the configured default model id with CRIS
// formatting applied, cached after first use.
func (r *Resolver) SystemDefault() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defaultCache != "" {
		return r.defaultCache
	}
	r.defaultCache = FormatModelForCRIS(r.defaultModel, r.region)
	return r.defaultCache
}

// UserPreference returns the user's preferred model id with CRIS
// formatting, or "" when no preference is set. Settings failures degrade to
// no preference.
func (r *Resolver) UserPreference(ctx context.Context, userID string) string {
	if r.settings == nil || userID == "" {
		return ""
	}
	pref, err := r.settings.UserModelPreference(ctx, userID)
	if err != nil {
		r.logger.Warn("could not retrieve user model preference",
			zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if pref == "" {
		return ""
	}
	return FormatModelForCRIS(pref, r.region)
}

// EffectiveModelID resolves the model id for one request. An explicit
// override wins, then the user preference, then the system default.
func (r *Resolver) EffectiveModelID(ctx context.Context, override, userID string) string {
	var id, source string
	switch {
	case strings.TrimSpace(override) != "":
		id, source = override, "request_override"
	default:
		if pref := r.UserPreference(ctx, userID); pref != "" {
			id, source = pref, "user_settings"
		} else {
			id, source = r.SystemDefault(), "system_default"
		}
	}

	id = FormatModelForCRIS(id, r.region)
	r.logger.Info("resolved effective model id",
		zap.String("model_id", id),
		zap.String("source", source))
	return id
}

// ValidateModelID performs basic shape checks on a model id
func ValidateModelID(modelID string) bool {
	if len(modelID) < 5 {
		return false
	}
	return !strings.ContainsAny(modelID, " \n\t\r")
}

// ClearCache resets cached values after a configuration change
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultCache = ""
}
