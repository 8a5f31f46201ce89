package agentos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pessini/superpod-blog/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func configServer(t *testing.T, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		json.NewEncoder(w).Encode(domain.ConfigResponse{
			OSID:      "agentos-docker",
			Agents:    []domain.EntitySummary{{ID: "agno-simple", Name: "Agno Simple"}},
			Teams:     []domain.EntitySummary{{ID: "multilingual-team", Name: "Multilingual Team", Description: "Languages"}},
			Workflows: []domain.EntitySummary{{Name: "research-workflow"}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListEntitiesCachesWithinTTL(t *testing.T) {
	var fetches atomic.Int32
	srv := configServer(t, &fetches)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewClient(srv.URL, time.Second, nil, WithClock(clock.now))
	ctx := context.Background()

	entities, err := c.ListEntities(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fetches.Load())
	require.Len(t, entities, 3)

	_, err = c.ListEntities(ctx, false)
	require.NoError(t, err)
	clock.advance(4 * time.Minute)
	_, err = c.ListEntities(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fetches.Load(), "calls within the TTL must hit the cache")

	clock.advance(time.Minute)
	_, err = c.ListEntities(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetches.Load(), "expired cache refetches exactly once")

	_, err = c.ListEntities(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, fetches.Load())
}

func TestListEntitiesBuildsProfileKeys(t *testing.T) {
	var fetches atomic.Int32
	c := NewClient(configServer(t, &fetches).URL, time.Second, nil)

	entities, err := c.ListEntities(context.Background(), false)
	require.NoError(t, err)

	want := map[string]domain.Entity{
		"agent:agno-simple":          {ID: "agno-simple", Name: "Agno Simple", Type: domain.EntityAgent, Description: "Agent: Agno Simple"},
		"team:multilingual-team":     {ID: "multilingual-team", Name: "Multilingual Team", Type: domain.EntityTeam, Description: "Languages"},
		"workflow:research-workflow": {ID: "research-workflow", Name: "research-workflow", Type: domain.EntityWorkflow, Description: "Workflow: research-workflow"},
	}
	if diff := cmp.Diff(want, entities); diff != "" {
		t.Fatalf("entities mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheIsPerClient(t *testing.T) {
	var fetches atomic.Int32
	srv := configServer(t, &fetches)
	a := NewClient(srv.URL, time.Second, nil)
	b := NewClient(srv.URL, time.Second, nil)

	_, _ = a.ListEntities(context.Background(), false)
	_, _ = b.ListEntities(context.Background(), false)
	assert.EqualValues(t, 2, fetches.Load())

	a.ClearCache()
	_, _ = a.ListEntities(context.Background(), false)
	_, _ = b.ListEntities(context.Background(), false)
	assert.EqualValues(t, 3, fetches.Load())
}

func TestSetCacheTTLZeroDisablesCache(t *testing.T) {
	var fetches atomic.Int32
	c := NewClient(configServer(t, &fetches).URL, time.Second, nil)
	c.SetCacheTTL(0)
	_, _ = c.ListEntities(context.Background(), false)
	_, _ = c.ListEntities(context.Background(), false)
	assert.EqualValues(t, 2, fetches.Load())
}

func TestListEntitiesWrapsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).ListEntities(context.Background(), false)
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fetch entities", ce.Op)
	assert.Contains(t, err.Error(), "Failed to fetch entities: status 500")
	var se *StatusError
	assert.ErrorAs(t, err, &se)
}

func TestCreateSessionDispatchesPerKind(t *testing.T) {
	cases := []struct {
		kind domain.EntityType
		want map[string]any
	}{
		{domain.EntityAgent, map[string]any{"user_id": "admin", "agent_id": "e1"}},
		{domain.EntityTeam, map[string]any{"user_id": "admin", "team_id": "e1", "session_type": "team"}},
		{domain.EntityWorkflow, map[string]any{"user_id": "admin", "workflow_id": "e1", "session_type": "workflow"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/sessions" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"session_id":"sess-1"}`)
			}))
			defer srv.Close()

			id, err := NewClient(srv.URL, time.Second, nil).CreateSession(context.Background(), "admin", "e1", tc.kind)
			require.NoError(t, err)
			assert.Equal(t, "sess-1", id)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateSessionErrors(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", time.Second, nil).CreateSession(context.Background(), "u", "e", domain.EntityType("robot"))
	require.ErrorIs(t, err, domain.ErrUnknownEntityType)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"agent not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()
	_, err = NewClient(srv.URL, time.Second, nil).CreateSession(context.Background(), "u", "missing", domain.EntityAgent)
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "Failed to create session")
}

func sseServer(t *testing.T, wantPath string, frames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("stream"))
		assert.Equal(t, "sess-1", r.PostForm.Get("session_id"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendMessageSkipsEmptyContent(t *testing.T) {
	srv := sseServer(t, "/workflows/research-workflow/runs",
		"event: WorkflowStarted\ndata: {\"event\":\"WorkflowStarted\"}\n\n",
		"event: StepCompleted\ndata: {\"event\":\"StepCompleted\",\"step_output\":\"draft\"}\n\n",
		"event: RunContent\ndata: {\"event\":\"RunContent\",\"content\":\"\"}\n\n",
		": keepalive\n\n",
		"event: RunContent\ndata: {\"event\":\"RunContent\",\"content\":\"Hello\"}\n\n",
		"event: WorkflowCompleted\ndata: {\"event\":\"WorkflowCompleted\",\"content\":\" world\"}\n\n",
	)
	c := NewClient(srv.URL, time.Second, nil)

	seq, err := c.SendMessage(context.Background(), "sess-1", "hi", "research-workflow", domain.EntityWorkflow, map[string]string{"user_id": "admin"})
	require.NoError(t, err)

	var parts []string
	for part, err := range seq {
		require.NoError(t, err)
		parts = append(parts, part)
	}
	assert.Equal(t, []string{"Hello", " world"}, parts)

	// not restartable
	var again []error
	for _, err := range seq {
		again = append(again, err)
	}
	require.Len(t, again, 1)
	assert.Error(t, again[0])
}

func TestSendMessageRoutesPerKind(t *testing.T) {
	for kind, path := range map[domain.EntityType]string{
		domain.EntityAgent:    "/agents/x/runs",
		domain.EntityTeam:     "/teams/x/runs",
		domain.EntityWorkflow: "/workflows/x/runs",
	} {
		srv := sseServer(t, path, "event: RunContent\ndata: {\"content\":\"ok\"}\n\n")
		seq, err := NewClient(srv.URL, time.Second, nil).SendMessage(context.Background(), "sess-1", "hi", "x", kind, nil)
		require.NoError(t, err, kind)
		var parts []string
		for p, err := range seq {
			require.NoError(t, err)
			parts = append(parts, p)
		}
		assert.Equal(t, []string{"ok"}, parts, kind)
	}
}

func TestSendMessageEstablishmentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	seq, err := NewClient(srv.URL, time.Second, nil).SendMessage(context.Background(), "s", "hi", "x", domain.EntityAgent, nil)
	assert.Nil(t, seq)
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "send message", ce.Op)
}

func TestSendMessageRunErrorPropagates(t *testing.T) {
	srv := sseServer(t, "/agents/x/runs",
		"event: RunContent\ndata: {\"content\":\"partial\"}\n\n",
		"event: RunError\ndata: {\"event\":\"RunError\",\"error\":\"model unavailable\"}\n\n",
	)
	seq, err := NewClient(srv.URL, time.Second, nil).SendMessage(context.Background(), "sess-1", "hi", "x", domain.EntityAgent, nil)
	require.NoError(t, err)

	var parts []string
	var streamErr error
	for p, err := range seq {
		if err != nil {
			streamErr = err
			break
		}
		parts = append(parts, p)
	}
	assert.Equal(t, []string{"partial"}, parts)
	require.Error(t, streamErr)
	var ce *ClientError
	assert.False(t, errors.As(streamErr, &ce), "mid-stream errors are not wrapped")
}

func TestHistoryAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/sessions/sess-1":
			json.NewEncoder(w).Encode(domain.SessionDetail{Messages: []domain.Message{{Role: "user", Content: "hi"}}})
		case r.Method == http.MethodDelete && r.URL.Path == "/sessions/sess-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, time.Second, nil)
	ctx := context.Background()

	history := c.GetSessionHistory(ctx, "sess-1")
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)

	assert.Empty(t, c.GetSessionHistory(ctx, "missing"))
	assert.NotNil(t, c.GetSessionHistory(ctx, "missing"))

	require.NoError(t, c.DeleteSession(ctx, "sess-1"))
	err := c.DeleteSession(ctx, "missing")
	assert.ErrorContains(t, err, "Failed to delete session")
}

func TestHealthCheck(t *testing.T) {
	var fetches atomic.Int32
	assert.True(t, NewClient(configServer(t, &fetches).URL, time.Second, nil).HealthCheck(context.Background()))
	assert.False(t, NewClient("http://127.0.0.1:1", 200*time.Millisecond, nil).HealthCheck(context.Background()))
}
