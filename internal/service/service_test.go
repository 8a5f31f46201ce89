package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/catalog"
	"github.com/pessini/superpod-blog/internal/config"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/knowledge"
	"github.com/pessini/superpod-blog/internal/repository"
	"github.com/pessini/superpod-blog/internal/tools"
	"github.com/pessini/superpod-blog/internal/workflow"
)

type fixture struct {
	svc   *Service
	store repository.Store
	mock  *llm.MockClient
}

type failingClient struct{ *llm.MockClient }

var errModelDown = errors.New("model server unreachable")

func (failingClient) CreateChatCompletion(context.Context, *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	return nil, errModelDown
}

func (failingClient) CreateChatCompletionStream(context.Context, *llm.ChatCompletionRequest, llm.StreamCallback) (*llm.Usage, error) {
	return nil, errModelDown
}

// lengthEmbedder maps text to a tiny vector so the memory store can rank it.
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func newFixture(t *testing.T, client llm.LLMClient, kb bool) *fixture {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:", repository.Tables{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mock, _ := client.(*llm.MockClient)
	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(reg, tools.Deps{Store: store}))
	deps := agent.Deps{LLM: NewRecordingClient(client, store, nil), Tools: reg, Store: store}

	var base *knowledge.Base
	var searcher tools.KnowledgeSearcher
	if kb {
		base = knowledge.NewBase(catalog.AgnoAssistKB, knowledge.NewMemoryStore(), lengthEmbedder{}, store, nil)
		searcher = base
	}
	cat, err := catalog.Build(deps, searcher)
	require.NoError(t, err)

	cfg := &config.Config{OSID: "agentos-test"}
	return &fixture{
		svc:   New(store, cat, cfg, Options{Knowledge: base, OSConfig: &config.OSConfig{AvailableModels: []string{"ollama:qwen3:latest"}}}),
		store: store,
		mock:  mock,
	}
}

func eventNames(events []domain.StreamEvent) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Event
	}
	return names
}

func TestRunAgentPersistsRunAndMessages(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(llm.ChatMessage{Content: "Hello there."}), false)
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, domain.EntityAgent, catalog.AgnoSimpleID, domain.RunRequest{Message: "hi", UserID: "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", resp.Content)
	assert.Equal(t, domain.RunStatusCompleted, resp.Status)
	assert.Equal(t, catalog.AgnoSimpleID, resp.AgentID)
	assert.NotEmpty(t, resp.SessionID)

	run, err := f.svc.GetRun(ctx, resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, "Hello there.", run.Content)

	detail, err := f.svc.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, domain.RoleUser, detail.Messages[0].Role)
	assert.Equal(t, "Hello there.", detail.Messages[1].Content)
	assert.Equal(t, "u1", detail.Session.UserID)

	events, err := f.svc.GetRunEvents(ctx, resp.RunID, 0)
	require.NoError(t, err)
	var types []domain.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, domain.EventTypeRunStarted)
	assert.Contains(t, types, domain.EventTypeUserInput)
	assert.Contains(t, types, domain.EventTypeLLMCallStarted)
	assert.Contains(t, types, domain.EventTypeLLMCallDone)
	assert.Equal(t, domain.EventTypeRunDone, types[len(types)-1])
}

func TestRunAgentStreamsContent(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(llm.ChatMessage{Content: "A streamed reply that spans several chunks."}), false)

	var events []domain.StreamEvent
	resp, err := f.svc.Run(context.Background(), domain.EntityAgent, catalog.AgnoSimpleID, domain.RunRequest{Message: "hi"}, func(e domain.StreamEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)

	names := eventNames(events)
	require.GreaterOrEqual(t, len(names), 3)
	assert.Equal(t, domain.StreamRunStarted, names[0])
	assert.Equal(t, domain.StreamRunCompleted, names[len(names)-1])

	var sb strings.Builder
	for _, e := range events {
		assert.Equal(t, resp.RunID, e.RunID)
		assert.Equal(t, catalog.AgnoSimpleID, e.AgentID)
		if e.Event == domain.StreamRunContent {
			sb.WriteString(e.Content)
		}
	}
	assert.Equal(t, resp.Content, sb.String())
	assert.Empty(t, events[len(events)-1].Content)
}

func TestRunReplaysSessionHistory(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(llm.ChatMessage{Content: "first answer"}, llm.ChatMessage{Content: "second answer"}), false)
	ctx := context.Background()

	first, err := f.svc.Run(ctx, domain.EntityAgent, catalog.WebSearchID, domain.RunRequest{Message: "first question", UserID: "u1"}, nil)
	require.NoError(t, err)
	_, err = f.svc.Run(ctx, domain.EntityAgent, catalog.WebSearchID, domain.RunRequest{Message: "second question", SessionID: first.SessionID}, nil)
	require.NoError(t, err)

	reqs := f.mock.Requests()
	require.Len(t, reqs, 2)
	var contents []string
	for _, m := range reqs[1].Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "first question")
	assert.Contains(t, contents, "first answer")
	assert.Equal(t, "second question", contents[len(contents)-1])
}

func TestRunValidation(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(), false)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, domain.EntityAgent, "nope", domain.RunRequest{Message: "hi"}, nil)
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = f.svc.Run(ctx, domain.EntityAgent, catalog.AgnoSimpleID, domain.RunRequest{Message: "   "}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	resp, err := f.svc.Run(ctx, domain.EntityAgent, catalog.AgnoSimpleID, domain.RunRequest{Message: "hi"}, nil)
	require.NoError(t, err)
	_, err = f.svc.Run(ctx, domain.EntityTeam, catalog.ResearchTeamID, domain.RunRequest{Message: "hi", SessionID: resp.SessionID}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRunModelFailureMarksRunFailed(t *testing.T) {
	f := newFixture(t, failingClient{llm.NewMockClient()}, false)

	var events []domain.StreamEvent
	_, err := f.svc.Run(context.Background(), domain.EntityAgent, catalog.AgnoSimpleID, domain.RunRequest{Message: "hi", SessionID: "s-fail"}, func(e domain.StreamEvent) {
		events = append(events, e)
	})
	require.ErrorIs(t, err, errModelDown)

	last := events[len(events)-1]
	assert.Equal(t, domain.StreamRunError, last.Event)
	assert.Contains(t, last.Error, errModelDown.Error())

	detail, err := f.svc.GetSession(context.Background(), "s-fail")
	require.NoError(t, err)
	require.Len(t, detail.Runs, 1)
	assert.Equal(t, domain.RunStatusError, detail.Runs[0].Status)
	assert.Empty(t, detail.Messages)
}

func TestRunTeam(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(llm.ChatMessage{Content: "Team summary."}), false)

	resp, err := f.svc.Run(context.Background(), domain.EntityTeam, catalog.ResearchTeamID, domain.RunRequest{Message: "research solar"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Team summary.", resp.Content)
	assert.Equal(t, catalog.ResearchTeamID, resp.TeamID)
}

func TestRunWorkflowStreamsEngineEvents(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(), false)
	ctx := context.Background()

	var events []domain.StreamEvent
	resp, err := f.svc.Run(ctx, domain.EntityWorkflow, catalog.InvestmentWorkflowID,
		domain.RunRequest{Message: `{"investment_request": "Look at AAPL"}`}, func(e domain.StreamEvent) { events = append(events, e) })
	require.NoError(t, err)

	names := eventNames(events)
	assert.Equal(t, domain.StreamWorkflowStarted, names[0])
	assert.Equal(t, domain.StreamWorkflowCompleted, names[len(names)-1])
	assert.Equal(t, resp.Content, events[len(events)-1].Content)
	for _, e := range events[:len(events)-1] {
		assert.Empty(t, e.Content, e.Event)
	}

	conditions := 0
	for _, e := range events {
		if e.Event == domain.StreamConditionExecution {
			conditions++
			require.NotNil(t, e.ConditionResult)
			assert.False(t, *e.ConditionResult)
		}
	}
	assert.Equal(t, 2, conditions)

	require.Len(t, resp.Steps, 5)
	assert.Equal(t, "Basic Portfolio Strategy", resp.Steps[4].StepName)

	detail, err := f.svc.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, `{"investment_request": "Look at AAPL"}`, detail.Messages[0].Content)
	assert.Equal(t, resp.Content, detail.Messages[1].Content)
	assert.Equal(t, domain.SessionTypeWorkflow, detail.Session.SessionType)
}

func TestRunWorkflowRejectsMissingField(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(), false)

	var events []domain.StreamEvent
	_, err := f.svc.Run(context.Background(), domain.EntityWorkflow, catalog.ResearchWorkflowID,
		domain.RunRequest{Message: `{"topic": "x"}`}, func(e domain.StreamEvent) { events = append(events, e) })
	require.ErrorIs(t, err, workflow.ErrInvalidInput)
	require.Len(t, events, 1)
	assert.Equal(t, domain.StreamWorkflowError, events[0].Event)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(), false)
	ctx := context.Background()

	_, err := f.svc.CreateSession(ctx, domain.CreateSessionRequest{UserID: "u1", AgentID: "a", TeamID: "b"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.CreateSession(ctx, domain.CreateSessionRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.CreateSession(ctx, domain.CreateSessionRequest{UserID: "u1", AgentID: catalog.AgnoSimpleID, SessionType: domain.SessionTypeTeam})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.CreateSession(ctx, domain.CreateSessionRequest{UserID: "u1", AgentID: "ghost"})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	s, err := f.svc.CreateSession(ctx, domain.CreateSessionRequest{UserID: "u1", TeamID: catalog.MultilingualTeamID})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionTypeTeam, s.SessionType)

	list, err := f.svc.ListSessions(ctx, "u1", domain.SessionTypeTeam)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, s.SessionID, list[0].SessionID)

	_, err = f.svc.ListSessions(ctx, "u1", "bogus")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	require.NoError(t, f.svc.DeleteSession(ctx, s.SessionID))
	_, err = f.svc.GetSession(ctx, s.SessionID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConfigAndEntities(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(), false)

	cfg := f.svc.Config()
	assert.Equal(t, "agentos-test", cfg.OSID)
	assert.Equal(t, []string{repository.DatabaseID}, cfg.Databases)
	assert.Len(t, cfg.Agents, 3)
	assert.Len(t, cfg.Teams, 2)
	assert.Len(t, cfg.Workflows, 2)
	assert.Equal(t, []string{"ollama:qwen3:latest"}, cfg.AvailableModels)

	wf, err := f.svc.GetEntity(domain.EntityWorkflow, catalog.ResearchWorkflowID)
	require.NoError(t, err)
	assert.Equal(t, []string{"research_request"}, wf.InputSchema)
	assert.Contains(t, wf.Steps, "Comprehensive Research Loop")

	team, err := f.svc.GetEntity(domain.EntityTeam, catalog.MultilingualTeamID)
	require.NoError(t, err)
	assert.Len(t, team.Members, 5)

	_, err = f.svc.GetEntity(domain.EntityAgent, catalog.MultilingualTeamID)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestKnowledge(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(), true)
	ctx := context.Background()

	_, err := f.svc.AddKnowledge(ctx, AddKnowledgeRequest{Name: "x", URL: "https://example.com", Text: "both"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.AddKnowledge(ctx, AddKnowledgeRequest{Name: "x", URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	content, err := f.svc.AddKnowledge(ctx, AddKnowledgeRequest{Name: "Agno Docs", Text: "Agents are built with tools and knowledge."})
	require.NoError(t, err)
	assert.Equal(t, 1, content.Chunks)

	list, err := f.svc.ListKnowledge(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Agno Docs", list[0].Name)

	text, err := f.svc.SearchKnowledge(ctx, "agents tools", 3)
	require.NoError(t, err)
	assert.Contains(t, text, "Agno Docs")

	bare := newFixture(t, llm.NewMockClient(), false)
	_, err = bare.svc.AddKnowledge(ctx, AddKnowledgeRequest{Name: "x", Text: "y"})
	assert.ErrorIs(t, err, ErrKnowledgeAbsent)
}

func TestMemories(t *testing.T) {
	f := newFixture(t, llm.NewMockClient(), false)
	ctx := context.Background()

	_, err := f.svc.ListMemories(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	require.NoError(t, f.store.UpsertMemory(ctx, &domain.UserMemory{MemoryID: "m1", UserID: "u1", Memory: "likes Go", UpdatedAt: time.Now()}))
	list, err := f.svc.ListMemories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.svc.DeleteMemory(ctx, "m1"))
	list, err = f.svc.ListMemories(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
