// Package remote delegates generation and chat to a deployed expert agent
// runtime. Everything here is best-effort: when the runtime is missing,
// unhealthy or failing, callers fall back to the local path and the user
// never sees a remote error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/agentforge/api/internal/models"
	"go.uber.org/zap"
)

// ErrUnavailable means the remote runtime cannot serve this request.
// Callers treat it as "use the local path", never as a user-facing error.
var ErrUnavailable = errors.New("remote runtime unavailable")

// Invocation is one open runtime response. Body must be closed by the
// caller; ContentType decides between SSE and buffered handling.
type Invocation struct {
	ContentType string
	Body        io.ReadCloser
}

// Runtime is the deployed agent runtime transport
type Runtime interface {
	Invoke(ctx context.Context, agentRef, sessionID string, payload []byte) (*Invocation, error)
	Status(ctx context.Context, agentRef string) (models.AgentState, error)
}

// HTTPRuntime talks to the agent runtime over HTTP. Code generation runs
// for minutes, so the read timeout is minutes-scale while connects fail
// fast; connect failures get a small retry budget, anything past the
// connect never retries.
type HTTPRuntime struct {
	baseURL        string
	client         *http.Client
	connectRetries int
	logger         *zap.Logger
}

// NewHTTPRuntime creates a runtime client with split connect/read timeouts
func NewHTTPRuntime(baseURL string, connectTimeout, readTimeout time.Duration, logger *zap.Logger) *HTTPRuntime {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: readTimeout,
	}
	return &HTTPRuntime{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{Transport: transport, Timeout: readTimeout},
		connectRetries: 2,
		logger:         logger,
	}
}

// Invoke sends a payload to a deployed agent. The response body is
// returned open for the caller to stream or buffer.
func (r *HTTPRuntime) Invoke(ctx context.Context, agentRef, sessionID string, payload []byte) (*Invocation, error) {
	url := fmt.Sprintf("%s/runtimes/%s/invoke", r.baseURL, agentRef)

	var lastErr error
	for attempt := 0; attempt <= r.connectRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build runtime request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Session-Id", sessionID)

		resp, err := r.client.Do(req)
		if err != nil {
			if isConnectError(err) && attempt < r.connectRetries {
				lastErr = err
				r.logger.Warn("runtime connect failed, retrying",
					zap.Int("attempt", attempt+1), zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("invoke runtime: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("runtime returned %d: %s", resp.StatusCode, snippet)
		}
		return &Invocation{
			ContentType: resp.Header.Get("Content-Type"),
			Body:        resp.Body,
		}, nil
	}
	return nil, fmt.Errorf("invoke runtime: %w", lastErr)
}

// Status fetches the lifecycle state of a deployed agent
func (r *HTTPRuntime) Status(ctx context.Context, agentRef string) (models.AgentState, error) {
	url := fmt.Sprintf("%s/runtimes/%s", r.baseURL, agentRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.AgentStateUnknown, fmt.Errorf("build status request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return models.AgentStateUnknown, fmt.Errorf("runtime status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.AgentStateUnknown, fmt.Errorf("%w: agent %s does not exist", ErrUnavailable, agentRef)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AgentStateUnknown, fmt.Errorf("runtime status returned %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.AgentStateUnknown, fmt.Errorf("decode runtime status: %w", err)
	}
	switch state := models.AgentState(body.Status); state {
	case models.AgentStateCreating, models.AgentStateActive, models.AgentStateReady, models.AgentStateFailed:
		return state, nil
	default:
		return models.AgentStateUnknown, nil
	}
}

func isConnectError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
