package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pessini/superpod-blog/internal/adapter/search"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
)

type fakeWeb struct {
	queries []string
}

func (f *fakeWeb) Search(_ context.Context, query string, max int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	return []search.Result{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}}, nil
}

func (f *fakeWeb) Wikipedia(_ context.Context, query string) (*search.Summary, error) {
	return &search.Summary{Title: query, Extract: "A summary.", URL: "https://en.wikipedia.org/wiki/" + query}, nil
}

type fakeKB struct{ lastQuery string }

func (k *fakeKB) SearchText(_ context.Context, query string, _ int) (string, error) {
	k.lastQuery = query
	return "[1] Agno Docs\nagents", nil
}

func newRegistry(t *testing.T) (*Registry, *fakeWeb, repository.Store) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:", repository.Tables{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	web := &fakeWeb{}
	r := NewRegistry()
	now := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, RegisterBuiltins(r, Deps{Web: web, Store: store, Now: now}))
	return r, web, store
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	exec := func(ctx context.Context, args json.RawMessage) (string, error) { return string(args), nil }

	assert.Error(t, r.Register(Tool{Exec: exec}))
	assert.Error(t, r.Register(Tool{Name: "x"}))
	require.NoError(t, r.Register(Tool{Name: "echo", Exec: exec}))
	assert.Error(t, r.Register(Tool{Name: "echo", Exec: exec}))

	out, err := r.Execute(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)

	_, err = r.Execute(context.Background(), "missing", nil)
	assert.Error(t, err)
	_, err = r.Definitions([]string{"echo", "missing"})
	assert.Error(t, err)

	defs, err := r.Definitions([]string{"echo"})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "echo", defs[0].Function.Name)
}

func TestBuiltinsRegistered(t *testing.T) {
	r, _, _ := newRegistry(t)
	assert.Equal(t, []string{
		Analyze, DelegateTask, DuckDuckGoNews, DuckDuckGoSearch, GetChatHistory,
		SearchKnowledgeBase, Think, UpdateUserMemory, Wikipedia,
	}, r.Names())
}

func TestWebTools(t *testing.T) {
	r, web, _ := newRegistry(t)
	ctx := context.Background()

	out, err := r.Execute(ctx, DuckDuckGoSearch, json.RawMessage(`{"query":"golang"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "https://go.dev")

	_, err = r.Execute(ctx, DuckDuckGoNews, json.RawMessage(`{"query":"golang"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "golang news"}, web.queries)

	out, err = r.Execute(ctx, Wikipedia, json.RawMessage(`{"query":"Go"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Go\n\nA summary."))

	_, err = r.Execute(ctx, DuckDuckGoSearch, json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestReasoningTools(t *testing.T) {
	r, _, _ := newRegistry(t)
	pad := &Scratchpad{}
	ctx := WithRunContext(context.Background(), &RunContext{Reasoning: pad})

	_, err := r.Execute(ctx, Think, json.RawMessage(`{"title":"Plan","thought":"search first","confidence":0.8}`))
	require.NoError(t, err)
	out, err := r.Execute(ctx, Analyze, json.RawMessage(`{"title":"Check","result":"found","analysis":"enough"}`))
	require.NoError(t, err)

	assert.Equal(t, 2, pad.Len())
	assert.Contains(t, out, "1. [think] Plan\nsearch first\nConfidence: 0.80")
	assert.Contains(t, out, "2. [analyze] Check")
	assert.Contains(t, out, "Next: continue")
}

func TestKnowledgeTool(t *testing.T) {
	r, _, _ := newRegistry(t)
	kb := &fakeKB{}

	_, err := r.Execute(context.Background(), SearchKnowledgeBase, json.RawMessage(`{"query":"agents"}`))
	assert.Error(t, err)

	ctx := WithRunContext(context.Background(), &RunContext{Knowledge: kb})
	out, err := r.Execute(ctx, SearchKnowledgeBase, json.RawMessage(`{"query":"agents"}`))
	require.NoError(t, err)
	assert.Equal(t, "agents", kb.lastQuery)
	assert.Contains(t, out, "Agno Docs")
}

func TestChatHistoryAndMemory(t *testing.T) {
	r, _, store := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &domain.Session{SessionID: "s1", SessionType: domain.SessionTypeAgent, UserID: "ana", EntityID: "web-search-agent", CreatedAt: time.Now(), UpdatedAt: time.Now()}))
	for i, content := range []string{"hi", "hello", "how are you"} {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, store.CreateMessage(ctx, &domain.Message{
			MessageID: string(rune('a' + i)), SessionID: "s1", Role: role, Content: content,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	_, err := r.Execute(ctx, GetChatHistory, nil)
	assert.Error(t, err)

	rctx := WithRunContext(ctx, &RunContext{SessionID: "s1", UserID: "ana"})
	out, err := r.Execute(rctx, GetChatHistory, json.RawMessage(`{"num_chats":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"assistant","content":"hello"},{"role":"user","content":"how are you"}]`, out)

	out, err = r.Execute(rctx, UpdateUserMemory, json.RawMessage(`{"memory":" Ana prefers Go ","topics":["languages"]}`))
	require.NoError(t, err)
	assert.Equal(t, "Memory updated: Ana prefers Go", out)

	memories, err := store.ListMemories(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, []string{"languages"}, memories[0].Topics)

	_, err = r.Execute(rctx, UpdateUserMemory, json.RawMessage(`{"memory":"  "}`))
	assert.Error(t, err)
}

func TestDelegateTool(t *testing.T) {
	r, _, _ := newRegistry(t)
	_, err := r.Execute(context.Background(), DelegateTask, json.RawMessage(`{"member_id":"a","task":"t"}`))
	assert.Error(t, err)

	boom := errors.New("member failed")
	ctx := WithRunContext(context.Background(), &RunContext{
		Delegate: func(_ context.Context, memberID, task string) (string, error) {
			if memberID == "broken" {
				return "", boom
			}
			return memberID + " did " + task, nil
		},
	})
	out, err := r.Execute(ctx, DelegateTask, json.RawMessage(`{"member_id":"spanish","task":"translate"}`))
	require.NoError(t, err)
	assert.Equal(t, "spanish did translate", out)

	_, err = r.Execute(ctx, DelegateTask, json.RawMessage(`{"member_id":"broken","task":"x"}`))
	assert.ErrorIs(t, err, boom)
}
