package service

import (
	"context"
	"fmt"

	"github.com/pessini/superpod-blog/internal/domain"
)

func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (s *Service) GetRunEvents(ctx context.Context, runID string, limit int) ([]domain.Event, error) {
	events, err := s.store.GetEvents(ctx, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
