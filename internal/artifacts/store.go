package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Slot names one of the three recognized artifact outputs of a generation
// request.
type Slot string

const (
	// SlotAgentCode is the primary generated agent source
	SlotAgentCode Slot = "agent_code"
	// SlotRuntimeReady is the alternate version wrapped for deployment
	SlotRuntimeReady Slot = "runtime_ready"
	// SlotRequirements is the dependency manifest
	SlotRequirements Slot = "requirements"
)

// Slots lists all recognized slots in their canonical order
var Slots = []Slot{SlotAgentCode, SlotRuntimeReady, SlotRequirements}

// Extension returns the file extension used for a slot's storage key
func (s Slot) Extension() string {
	if s == SlotRequirements {
		return ".txt"
	}
	return ".py"
}

// Valid reports whether s is one of the recognized slots
func (s Slot) Valid() bool {
	switch s {
	case SlotAgentCode, SlotRuntimeReady, SlotRequirements:
		return true
	}
	return false
}

var (
	// ErrNotFound means the artifact does not exist. Callers branch on this
	// to fall back to regex extraction; it is never a backend failure.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidSlot means the slot is not one of the recognized values
	ErrInvalidSlot = errors.New("invalid artifact slot")
	// ErrEmptyInput means the id or content was empty
	ErrEmptyInput = errors.New("empty artifact id or content")
)

// Meta describes a stored artifact without its content
type Meta struct {
	Key      string    `json:"key"`
	Slot     Slot      `json:"slot"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"last_modified"`
	URI      string    `json:"uri"`
}

// Artifact is a stored artifact with content
type Artifact struct {
	Meta
	Content string `json:"content"`
}

// Backend is the narrow blob contract the store is built on. Get must
// return ErrNotFound for a missing key, distinct from transport errors.
type Backend interface {
	Put(ctx context.Context, key, content string, ttl time.Duration) error
	Get(ctx context.Context, key string) (content string, modified time.Time, err error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Store persists generated code artifacts under
// temp-code/{correlation_id}/{slot}{ext}.
type Store struct {
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
}

// NewStore creates an artifact store client
func NewStore(backend Backend, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{backend: backend, ttl: ttl, logger: logger}
}

// SanitizeID strips everything but alphanumerics, hyphen and underscore
// from a correlation id before it is used in a storage key. This is a path
// traversal boundary, not cosmetics.
func SanitizeID(id string) string {
	var b strings.Builder
	for _, c := range id {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Key builds the storage key for one artifact slot
func Key(id string, slot Slot) string {
	return fmt.Sprintf("temp-code/%s/%s%s", SanitizeID(id), slot, slot.Extension())
}

// URI builds the external reference for one artifact slot
func URI(id string, slot Slot) string {
	return "s3://" + Key(id, slot)
}

// Put stores one artifact. The id is sanitized before key construction;
// empty ids, empty content and unrecognized slots are rejected.
func (s *Store) Put(ctx context.Context, id string, slot Slot, content string) (string, error) {
	if !slot.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(content) == "" {
		return "", ErrEmptyInput
	}
	if SanitizeID(id) == "" {
		return "", fmt.Errorf("%w: id has no storable characters", ErrEmptyInput)
	}

	key := Key(id, slot)
	if err := s.backend.Put(ctx, key, content, s.ttl); err != nil {
		return "", fmt.Errorf("store artifact %s: %w", key, err)
	}

	s.logger.Info("stored code artifact",
		zap.String("key", key),
		zap.Int("content_length", len(content)))
	return URI(id, slot), nil
}

// Get retrieves one artifact. A missing artifact returns ErrNotFound so
// callers can distinguish absence from a backend failure.
func (s *Store) Get(ctx context.Context, id string, slot Slot) (*Artifact, error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	key := Key(id, slot)
	content, modified, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch artifact %s: %w", key, err)
	}
	return &Artifact{
		Meta: Meta{
			Key:      key,
			Slot:     slot,
			Size:     int64(len(content)),
			Modified: modified,
			URI:      URI(id, slot),
		},
		Content: content,
	}, nil
}

// List returns metadata for all slots present for a correlation id
func (s *Store) List(ctx context.Context, id string) ([]Meta, error) {
	var metas []Meta
	for _, slot := range Slots {
		art, err := s.Get(ctx, id, slot)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		metas = append(metas, art.Meta)
	}
	return metas, nil
}

// DeleteResult reports the outcome of a bulk delete
type DeleteResult struct {
	Deleted int      `json:"deleted_count"`
	Total   int      `json:"total_files"`
	Errors  []string `json:"errors,omitempty"`
}

// Delete removes all artifacts stored for a correlation id, reporting
// partial failure per object.
func (s *Store) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	metas, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{Total: len(metas)}
	for _, meta := range metas {
		if err := s.backend.Delete(ctx, meta.Key); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", meta.Key, err))
			continue
		}
		result.Deleted++
	}

	if len(result.Errors) > 0 {
		s.logger.Warn("some artifacts could not be deleted",
			zap.String("id", id),
			zap.Strings("errors", result.Errors))
	}
	return result, nil
}

// SlotForFilename classifies a storage-URI filename into its artifact slot
func SlotForFilename(name string) (Slot, bool) {
	for _, slot := range Slots {
		if strings.HasSuffix(name, string(slot)+slot.Extension()) {
			return slot, true
		}
	}
	return "", false
}
