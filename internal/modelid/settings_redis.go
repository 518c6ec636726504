package modelid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSettingsStore reads user settings documents stored as JSON under
// settings:{user_id}.
type RedisSettingsStore struct {
	client *redis.Client
}

// NewRedisSettingsStore creates a redis-backed settings reader
func NewRedisSettingsStore(client *redis.Client) *RedisSettingsStore {
	return &RedisSettingsStore{client: client}
}

type settingsDoc struct {
	Settings struct {
		ExpertAgentModel string `json:"expertAgentModel"`
	} `json:"settings"`
}

// UserModelPreference returns the expertAgentModel setting for a user, or
// "" when the user has no settings document or no preference.
func (s *RedisSettingsStore) UserModelPreference(ctx context.Context, userID string) (string, error) {
	raw, err := s.client.Get(ctx, "settings:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load user settings: %w", err)
	}

	var doc settingsDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("decode user settings: %w", err)
	}
	return doc.Settings.ExpertAgentModel, nil
}
