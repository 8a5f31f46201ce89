package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pessini/superpod-blog/internal/domain"
)

// AddKnowledgeRequest adds a document by URL or inline text.
type AddKnowledgeRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description,omitempty" form:"description"`
	URL         string `json:"url,omitempty" form:"url"`
	Text        string `json:"text,omitempty" form:"text"`
}

// ListKnowledge returns the contents registered in the knowledge table.
func (s *Service) ListKnowledge(ctx context.Context) ([]domain.KnowledgeContent, error) {
	if s.kb == nil {
		return []domain.KnowledgeContent{}, nil
	}
	contents, err := s.store.ListKnowledgeContents(ctx, s.kb.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	if contents == nil {
		contents = []domain.KnowledgeContent{}
	}
	return contents, nil
}

// AddKnowledge chunks, embeds and stores one document.
func (s *Service) AddKnowledge(ctx context.Context, req AddKnowledgeRequest) (*domain.KnowledgeContent, error) {
	if s.kb == nil {
		return nil, ErrKnowledgeAbsent
	}
	req.URL = strings.TrimSpace(req.URL)
	if (req.URL == "") == (strings.TrimSpace(req.Text) == "") {
		return nil, fmt.Errorf("%w: exactly one of url or text is required", ErrInvalidRequest)
	}
	if req.Name == "" {
		req.Name = req.URL
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if req.URL != "" {
		if s.fetcher == nil {
			return nil, fmt.Errorf("%w: url ingestion is not configured", ErrInvalidRequest)
		}
		return s.kb.AddURL(ctx, s.fetcher, req.Name, req.Description, req.URL)
	}
	return s.kb.AddText(ctx, req.Name, req.Description, "", req.Text)
}

// SearchKnowledge runs a hybrid search and formats the hits.
func (s *Service) SearchKnowledge(ctx context.Context, query string, limit int) (string, error) {
	if s.kb == nil {
		return "", ErrKnowledgeAbsent
	}
	return s.kb.SearchText(ctx, query, limit)
}

func (s *Service) ListMemories(ctx context.Context, userID string) ([]domain.UserMemory, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	memories, err := s.store.ListMemories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	if memories == nil {
		memories = []domain.UserMemory{}
	}
	return memories, nil
}

func (s *Service) DeleteMemory(ctx context.Context, memoryID string) error {
	if err := s.store.DeleteMemory(ctx, memoryID); err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return nil
}
