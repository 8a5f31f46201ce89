package service

import (
	"fmt"

	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
)

// ListEntities returns the summaries of every entity of one type.
func (s *Service) ListEntities(kind domain.EntityType) []domain.EntitySummary {
	var out []domain.EntitySummary
	switch kind {
	case domain.EntityAgent:
		for _, a := range s.catalog.Agents() {
			cfg := a.Config()
			out = append(out, domain.EntitySummary{ID: a.ID(), Name: a.Name(), Description: cfg.Description, Model: cfg.Model, Tools: a.Tools()})
		}
	case domain.EntityTeam:
		for _, t := range s.catalog.Teams() {
			cfg := t.Config()
			sum := domain.EntitySummary{ID: t.ID(), Name: t.Name(), Description: cfg.Description, Model: t.Leader().Config().Model}
			for _, m := range t.Members() {
				sum.Members = append(sum.Members, m.ID())
			}
			out = append(out, sum)
		}
	case domain.EntityWorkflow:
		for _, wf := range s.catalog.Workflows() {
			out = append(out, domain.EntitySummary{
				ID: wf.ID, Name: wf.Name, Description: wf.Description,
				Steps: wf.StepNames(), InputSchema: []string{wf.InputField},
			})
		}
	}
	if out == nil {
		out = []domain.EntitySummary{}
	}
	return out
}

// GetEntity returns one entity summary.
func (s *Service) GetEntity(kind domain.EntityType, id string) (*domain.EntitySummary, error) {
	for _, e := range s.ListEntities(kind) {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, id)
}

// Config describes this AgentOS instance.
func (s *Service) Config() domain.ConfigResponse {
	resp := domain.ConfigResponse{
		OSID:      s.config.OSID,
		Databases: []string{repository.DatabaseID},
		Agents:    s.ListEntities(domain.EntityAgent),
		Teams:     s.ListEntities(domain.EntityTeam),
		Workflows: s.ListEntities(domain.EntityWorkflow),
	}
	if s.osCfg != nil {
		resp.AvailableModels = s.osCfg.AvailableModels
		resp.QuickPrompts = s.osCfg.Chat.QuickPrompts
	}
	return resp
}
