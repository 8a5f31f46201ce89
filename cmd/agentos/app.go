package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/adapter/ollama"
	"github.com/pessini/superpod-blog/internal/adapter/search"
	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/catalog"
	"github.com/pessini/superpod-blog/internal/config"
	"github.com/pessini/superpod-blog/internal/knowledge"
	"github.com/pessini/superpod-blog/internal/logging"
	"github.com/pessini/superpod-blog/internal/policy"
	"github.com/pessini/superpod-blog/internal/repository"
	"github.com/pessini/superpod-blog/internal/service"
	"github.com/pessini/superpod-blog/internal/tools"
)

// searchTimeout bounds one web search or page fetch.
const searchTimeout = 20 * time.Second

// app holds the wired backend.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   repository.Store
	kb      *knowledge.Base
	service *service.Service
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newApp loads the configuration and wires store, model client, tools,
// knowledge, catalog and service.
func newApp(ctx context.Context, cmd *cobra.Command, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if mock, _ := cmd.Flags().GetBool("mock"); mock {
		cfg.Mode = llm.ModeMock
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	store, err := repository.Open(ctx, cfg.DatabaseURL, repository.Tables{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Info("store ready", zap.Bool("postgres", repository.IsPostgresDSN(cfg.DatabaseURL)))

	engine, err := policy.NewEngineFromFile(ctx, cfg.PolicyPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	web := search.NewClient(searchTimeout)
	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, tools.Deps{Web: web, Store: store}); err != nil {
		store.Close()
		return nil, err
	}

	ollamaClient := ollama.NewClient(cfg.OllamaURL, cfg.LLMTimeout())
	kb, err := newKnowledgeBase(ctx, cfg, store, ollamaClient, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	model := llm.NewLLMClient(logger, cfg.Mode, cfg.OllamaURL, cfg.LLMAPIKey, cfg.LLMTimeout())
	deps := agent.Deps{
		LLM:           service.NewRecordingClient(model, store, logger),
		Tools:         registry,
		Policy:        engine,
		Store:         store,
		Logger:        logger,
		ToolTimeout:   cfg.ToolTimeout(),
		MaxToolRounds: cfg.MaxToolRounds,
	}
	cat, err := catalog.Build(deps, kb)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	osCfg, err := config.LoadOSConfig(cfg.OSConfigPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc := service.New(store, cat, cfg, service.Options{
		Knowledge: kb,
		Fetcher:   web,
		OSConfig:  osCfg,
		Logger:    logger,
	})
	return &app{cfg: cfg, logger: logger, store: store, kb: kb, service: svc}, nil
}

// newKnowledgeBase stores chunks in pgvector next to a Postgres store and in
// process memory otherwise. Mock mode embeds without a model server.
func newKnowledgeBase(ctx context.Context, cfg *config.Config, store repository.Store, client *ollama.Client, logger *zap.Logger) (*knowledge.Base, error) {
	var embedder knowledge.Embedder = &knowledge.OllamaEmbedder{Client: client, Model: cfg.EmbedderModelID}
	if cfg.MockMode() {
		embedder = knowledge.HashEmbedder{Dims: knowledge.EmbeddingDimensions}
	}

	var vectors knowledge.VectorStore = knowledge.NewMemoryStore()
	if pg, ok := store.(*repository.PostgresStore); ok {
		pv, err := knowledge.NewPgVectorStore(ctx, pg.Pool(), catalog.AgnoAssistKB, knowledge.EmbeddingDimensions)
		if err != nil {
			return nil, err
		}
		vectors = pv
	}
	return knowledge.NewBase(catalog.AgnoAssistKB, vectors, embedder, store, logger), nil
}
