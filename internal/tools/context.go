package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// KnowledgeSearcher answers search_knowledge_base calls.
type KnowledgeSearcher interface {
	SearchText(ctx context.Context, query string, limit int) (string, error)
}

// DelegateFunc hands a task to a team member and returns its reply.
type DelegateFunc func(ctx context.Context, memberID, task string) (string, error)

// RunContext carries the per-run state tools need.
type RunContext struct {
	AgentID   string
	SessionID string
	UserID    string
	Knowledge KnowledgeSearcher
	Delegate  DelegateFunc
	Reasoning *Scratchpad
}

type runContextKey struct{}

// WithRunContext attaches rc to ctx.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// FromContext returns the run context, or an empty one.
func FromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok && rc != nil {
		return rc
	}
	return &RunContext{}
}

// Scratchpad accumulates think/analyze steps of a single run.
type Scratchpad struct {
	mu    sync.Mutex
	steps []string
}

// Add appends a step and returns every step recorded so far.
func (s *Scratchpad) Add(kind, title, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, fmt.Sprintf("%d. [%s] %s\n%s", len(s.steps)+1, kind, title, body))
	return strings.Join(s.steps, "\n\n")
}

// Len reports the number of recorded steps.
func (s *Scratchpad) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
