// Package service implements the AgentOS operations behind the HTTP and MCP
// surfaces: entity discovery, sessions, runs, knowledge and memories.
package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/catalog"
	"github.com/pessini/superpod-blog/internal/config"
	"github.com/pessini/superpod-blog/internal/knowledge"
	"github.com/pessini/superpod-blog/internal/repository"
)

var (
	ErrEntityNotFound  = errors.New("entity not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrKnowledgeAbsent = errors.New("no knowledge base configured")
)

// Options carries the optional collaborators of a Service.
type Options struct {
	Knowledge *knowledge.Base
	Fetcher   knowledge.Fetcher
	OSConfig  *config.OSConfig
	Logger    *zap.Logger
	Now       func() time.Time
}

type Service struct {
	store   repository.Store
	catalog *catalog.Catalog
	config  *config.Config
	kb      *knowledge.Base
	fetcher knowledge.Fetcher
	osCfg   *config.OSConfig
	logger  *zap.Logger
	now     func() time.Time
}

func New(store repository.Store, cat *catalog.Catalog, cfg *config.Config, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Service{
		store:   store,
		catalog: cat,
		config:  cfg,
		kb:      opts.Knowledge,
		fetcher: opts.Fetcher,
		osCfg:   opts.OSConfig,
		logger:  opts.Logger.With(zap.String("component", "service")),
		now:     opts.Now,
	}
}

// Catalog exposes the entity catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }
