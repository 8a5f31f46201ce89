package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
)

// CreateSession opens a session owned by exactly one entity.
func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	kind, entityID, err := sessionOwner(req)
	if err != nil {
		return nil, err
	}
	if _, ok := s.catalog.Lookup(kind, entityID); !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, entityID)
	}
	return s.newSession(ctx, uuid.NewString(), req.UserID, kind, entityID, req.SessionName)
}

// sessionOwner resolves the owning entity from the request ids and the
// optional session_type.
func sessionOwner(req domain.CreateSessionRequest) (domain.EntityType, string, error) {
	owners := map[domain.EntityType]string{}
	if req.AgentID != "" {
		owners[domain.EntityAgent] = req.AgentID
	}
	if req.TeamID != "" {
		owners[domain.EntityTeam] = req.TeamID
	}
	if req.WorkflowID != "" {
		owners[domain.EntityWorkflow] = req.WorkflowID
	}
	if len(owners) != 1 {
		return "", "", fmt.Errorf("%w: exactly one of agent_id, team_id or workflow_id is required", ErrInvalidRequest)
	}
	for kind, id := range owners {
		if req.SessionType != "" && req.SessionType != kind.SessionType() {
			return "", "", fmt.Errorf("%w: session_type %q does not match %s_id", ErrInvalidRequest, req.SessionType, kind)
		}
		return kind, id, nil
	}
	panic("unreachable")
}

func (s *Service) newSession(ctx context.Context, sessionID, userID string, kind domain.EntityType, entityID, name string) (*domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		SessionID:   sessionID,
		SessionType: kind.SessionType(),
		UserID:      userID,
		EntityID:    entityID,
		SessionName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ensureSession returns the run's session, creating it when the id is empty
// or unknown.
func (s *Service) ensureSession(ctx context.Context, sessionID, userID string, kind domain.EntityType, entityID string) (*domain.Session, error) {
	if sessionID == "" {
		return s.newSession(ctx, uuid.NewString(), userID, kind, entityID, "")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.newSession(ctx, sessionID, userID, kind, entityID, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.SessionType != kind.SessionType() || session.EntityID != entityID {
		return nil, fmt.Errorf("%w: session %s belongs to %s %q", ErrInvalidRequest, sessionID, session.SessionType, session.EntityID)
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context, userID string, sessionType domain.SessionType) ([]domain.Session, error) {
	if sessionType != "" {
		if _, err := sessionType.EntityType(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	sessions, err := s.store.ListSessions(ctx, repository.SessionFilter{UserID: userID, Type: sessionType})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

// GetSession returns a session with its messages and runs.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.SessionDetail, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	messages, err := s.store.GetMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	runs, err := s.store.ListRuns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return &domain.SessionDetail{Session: *session, Messages: messages, Runs: runs}, nil
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetMessages returns up to limit messages of a session, oldest first.
func (s *Service) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	messages, err := s.store.GetMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
