package service

import (
	"context"
	"testing"
	"time"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/catalog"
	"github.com/pessini/superpod-blog/internal/domain"
)

func TestStaleRunSweepFailsAbandonedRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, llm.NewMockClient(), false)
	f.svc.config.AgentTimeoutMs = 1000

	session, err := f.svc.CreateSession(ctx, domain.CreateSessionRequest{UserID: "u1", AgentID: catalog.AgnoSimpleID})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	now := time.Now().UTC()
	for id, started := range map[string]time.Time{"r-old": now.Add(-2 * time.Hour), "r-live": now} {
		run := &domain.Run{RunID: id, SessionID: session.SessionID, EntityID: catalog.AgnoSimpleID, EntityType: domain.EntityAgent,
			Status: domain.RunStatusRunning, Input: "hi", StartedAt: started}
		if err := f.store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	f.svc.sweepStaleRuns(ctx)

	old, err := f.store.GetRun(ctx, "r-old")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if old.Status != domain.RunStatusError || old.EndedAt == nil {
		t.Fatalf("expected ERROR with ended_at, got %+v", old)
	}
	events, err := f.store.GetEvents(ctx, "r-old", 0)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventTypeRunFailed {
		t.Fatalf("expected one run_failed event, got %+v", events)
	}

	live, err := f.store.GetRun(ctx, "r-live")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if live.Status != domain.RunStatusRunning {
		t.Fatalf("expected live run untouched, got %s", live.Status)
	}
}
