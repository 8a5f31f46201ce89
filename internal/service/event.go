package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
)

// recordEvent records an event to the store.
func recordEvent(ctx context.Context, store repository.Store, at time.Time, runID string, eventType domain.EventType, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      at.UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	return store.CreateEvent(ctx, event)
}

// traceEvent records an event and only logs failures; the trace never
// blocks a run.
func (s *Service) traceEvent(ctx context.Context, runID string, eventType domain.EventType, payload any) {
	if err := recordEvent(ctx, s.store, s.now(), runID, eventType, payload); err != nil {
		s.logger.Warn("failed to record event",
			zap.String("run_id", runID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}
