package generation

import (
	"context"
	"errors"

	"github.com/agentforge/api/internal/metrics"
	"github.com/agentforge/api/internal/models"
	"github.com/agentforge/api/internal/remote"
	"go.uber.org/zap"
)

// Strategy is the two-tier generation plan: delegate to the remote expert
// agent when it is usable, otherwise run the local path. Remote failures
// are silent from the caller's perspective; only exhausting both tiers
// surfaces an error.
type Strategy struct {
	service *Service
}

func (s *Service) strategy() *Strategy {
	return &Strategy{service: s}
}

// Run executes the strategy and reports which tier produced the result
func (st *Strategy) Run(ctx context.Context, req Request, modelID, requestID string) (*models.GenerationResult, string, error) {
	s := st.service

	if s.invoker != nil {
		result, err := s.invoker.Generate(ctx, req.Config, modelID, req.Config.Advanced, requestID)
		if err == nil {
			return result, "remote_expert", nil
		}
		if !errors.Is(err, remote.ErrUnavailable) {
			s.logger.Warn("remote generation failed, falling back to local",
				zap.String("request_id", requestID), zap.Error(err))
		}
		metrics.RemoteFallbacksTotal.Inc()
	}

	result, err := s.generateLocal(ctx, req, modelID, requestID)
	if err != nil {
		return nil, "free_form", err
	}
	return result, "free_form", nil
}
