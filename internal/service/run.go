package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/metrics"
	"github.com/pessini/superpod-blog/internal/team"
	"github.com/pessini/superpod-blog/internal/workflow"
)

// Emitter receives the stream events of a run in order.
type Emitter func(domain.StreamEvent)

// runState carries the identity of one run and serialises its emitter, which
// tool callbacks may reach from several goroutines.
type runState struct {
	run     *domain.Run
	mu      sync.Mutex
	emit    Emitter
	now     func() time.Time
	started time.Time
}

func (rs *runState) send(ev domain.StreamEvent) {
	if rs.emit == nil {
		return
	}
	ev.RunID = rs.run.RunID
	ev.SessionID = rs.run.SessionID
	switch rs.run.EntityType {
	case domain.EntityAgent:
		ev.AgentID = rs.run.EntityID
	case domain.EntityTeam:
		ev.TeamID = rs.run.EntityID
	case domain.EntityWorkflow:
		ev.WorkflowID = rs.run.EntityID
	}
	ev.CreatedAt = rs.now().Unix()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.emit(ev)
}

func (rs *runState) delta(content string) error {
	if content != "" {
		rs.send(domain.StreamEvent{Event: domain.StreamRunContent, Content: content})
	}
	return nil
}

// Run executes an agent, team or workflow for one user message. emit, when
// non-nil, receives the stream events; the returned response is the same
// either way.
func (s *Service) Run(ctx context.Context, kind domain.EntityType, entityID string, req domain.RunRequest, emit Emitter) (*domain.RunResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if _, ok := s.catalog.Lookup(kind, entityID); !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, entityID)
	}

	session, err := s.ensureSession(ctx, req.SessionID, req.UserID, kind, entityID)
	if err != nil {
		return nil, err
	}
	userID := req.UserID
	if userID == "" {
		userID = session.UserID
	}

	run := &domain.Run{
		RunID:      "run_" + uuid.New().String()[:8],
		SessionID:  session.SessionID,
		EntityID:   entityID,
		EntityType: kind,
		UserID:     userID,
		Status:     domain.RunStatusRunning,
		Input:      req.Message,
		StartedAt:  s.now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	s.traceEvent(ctx, run.RunID, domain.EventTypeRunStarted, domain.RunStartedPayload{
		SessionID: run.SessionID, EntityID: entityID, EntityType: kind, UserID: userID,
	})
	s.traceEvent(ctx, run.RunID, domain.EventTypeUserInput, domain.UserInputPayload{Content: req.Message})

	logger := s.logger.With(zap.String("run_id", run.RunID), zap.String("entity", string(kind)+":"+entityID))
	logger.Info("run started", zap.String("session_id", run.SessionID))

	runCtx := withRunID(ctx, run.RunID)
	if timeout := s.config.AgentTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	rs := &runState{run: run, emit: emit, now: s.now, started: time.Now()}
	resp := &domain.RunResponse{RunID: run.RunID, SessionID: run.SessionID}

	switch kind {
	case domain.EntityAgent:
		resp.AgentID = entityID
		err = s.runAgent(runCtx, rs, resp, req.Message, userID)
	case domain.EntityTeam:
		resp.TeamID = entityID
		err = s.runTeam(runCtx, rs, resp, req.Message, userID)
	case domain.EntityWorkflow:
		resp.WorkflowID = entityID
		err = s.runWorkflow(runCtx, rs, resp, req.Message, userID)
	}

	// the run record outlives a cancelled request
	doneCtx := context.WithoutCancel(ctx)
	elapsed := time.Since(rs.started)
	if err != nil {
		status := domain.RunStatusError
		if errors.Is(err, context.Canceled) {
			status = domain.RunStatusCancelled
		}
		s.finishRun(doneCtx, run, status, "", err.Error(), elapsed)
		if kind != domain.EntityWorkflow {
			rs.send(domain.StreamEvent{Event: domain.StreamRunError, Error: err.Error()})
		}
		logger.Warn("run failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, err
	}

	resp.Status = domain.RunStatusCompleted
	s.finishRun(doneCtx, run, domain.RunStatusCompleted, resp.Content, "", elapsed)
	if kind != domain.EntityWorkflow {
		rs.send(domain.StreamEvent{Event: domain.StreamRunCompleted})
	}
	logger.Info("run completed", zap.Duration("elapsed", elapsed))
	return resp, nil
}

func (s *Service) finishRun(ctx context.Context, run *domain.Run, status domain.RunStatus, content, errMsg string, elapsed time.Duration) {
	if err := s.store.CompleteRun(ctx, run.RunID, status, content, errMsg); err != nil {
		s.logger.Error("failed to complete run", zap.String("run_id", run.RunID), zap.Error(err))
	}
	eventType := domain.EventTypeRunDone
	if status != domain.RunStatusCompleted {
		eventType = domain.EventTypeRunFailed
	}
	s.traceEvent(ctx, run.RunID, eventType, domain.RunDonePayload{Content: content, Error: errMsg, ElapsedMs: elapsed.Milliseconds()})
	metrics.ObserveRun(string(run.EntityType), run.EntityID, string(status), elapsed)
}

func (s *Service) runAgent(ctx context.Context, rs *runState, resp *domain.RunResponse, message, userID string) error {
	a, _ := s.catalog.Agent(rs.run.EntityID)
	rs.send(domain.StreamEvent{Event: domain.StreamRunStarted})
	out, err := a.Run(ctx, agent.RunInput{
		Message:   message,
		SessionID: rs.run.SessionID,
		UserID:    userID,
		RunID:     rs.run.RunID,
		OnTool:    s.onTool(ctx, rs),
		Persist:   true,
	}, rs.delta)
	if err != nil {
		return err
	}
	resp.Content = out.Content
	return nil
}

func (s *Service) runTeam(ctx context.Context, rs *runState, resp *domain.RunResponse, message, userID string) error {
	t, _ := s.catalog.Team(rs.run.EntityID)
	rs.send(domain.StreamEvent{Event: domain.StreamRunStarted})
	out, err := t.Run(ctx, team.RunInput{
		Message:   message,
		SessionID: rs.run.SessionID,
		UserID:    userID,
		RunID:     rs.run.RunID,
		Persist:   true,
		OnTool:    s.onTool(ctx, rs),
		OnMember: func(m team.MemberResponse) {
			s.traceEvent(ctx, rs.run.RunID, domain.EventTypeMemberDelegate, domain.MemberDelegatedPayload{
				MemberID: m.MemberID, Task: m.Task, Content: m.Content, Error: m.Err,
			})
			if t.Config().ShowMemberResponses {
				rs.send(domain.StreamEvent{Event: domain.StreamMemberResponse, MemberID: m.MemberID, MemberResponse: m.Content, Error: m.Err})
			}
		},
	}, rs.delta)
	if err != nil {
		return err
	}
	resp.Content = out.Content
	return nil
}

func (s *Service) onTool(ctx context.Context, rs *runState) func(agent.ToolEvent) {
	return func(ev agent.ToolEvent) {
		if !ev.Done {
			rs.send(domain.StreamEvent{Event: domain.StreamToolCallStarted, ToolName: ev.Name})
			return
		}
		payload := domain.ToolCallPayload{CallID: ev.CallID, Tool: ev.Name, Args: ev.Args, Result: ev.Result, Error: ev.Err}
		if strings.HasPrefix(ev.Err, "tool call denied") || strings.Contains(ev.Err, "is not enabled for") {
			s.traceEvent(ctx, rs.run.RunID, domain.EventTypePolicyDecision, payload)
		}
		s.traceEvent(ctx, rs.run.RunID, domain.EventTypeToolCallDone, payload)
		rs.send(domain.StreamEvent{Event: domain.StreamToolCallCompleted, ToolName: ev.Name, Error: ev.Err})
	}
}

func (s *Service) runWorkflow(ctx context.Context, rs *runState, resp *domain.RunResponse, message, userID string) error {
	wf, _ := s.catalog.Workflow(rs.run.EntityID)
	input, err := wf.ParseInput(message)
	if err != nil {
		rs.send(domain.StreamEvent{Event: domain.StreamWorkflowError, Error: err.Error()})
		return err
	}

	res, err := wf.Run(ctx, input, s.workflowEvents(ctx, rs))
	if err != nil {
		return err
	}
	resp.Content = res.Content
	for _, o := range res.Outputs {
		resp.Steps = append(resp.Steps, domain.StepInfo{StepName: o.StepName, Content: o.Content, Success: o.Success})
	}
	return s.persistExchange(ctx, rs.run, message, res.Content)
}

// workflowEvents maps engine events onto stream events, the run trace and the
// step and gate metrics.
func (s *Service) workflowEvents(ctx context.Context, rs *runState) func(workflow.Event) {
	wfID := rs.run.EntityID
	var stepStarted time.Time
	return func(e workflow.Event) {
		switch e.Kind {
		case workflow.EventWorkflowStarted:
			rs.send(domain.StreamEvent{Event: domain.StreamWorkflowStarted})
		case workflow.EventStepStarted:
			stepStarted = time.Now()
			s.traceEvent(ctx, rs.run.RunID, domain.EventTypeStepStarted, domain.WorkflowEventPayload{Name: e.Name})
			rs.send(domain.StreamEvent{Event: domain.StreamStepStarted, StepName: e.Name})
		case workflow.EventStepCompleted:
			metrics.StepDuration.WithLabelValues(wfID, e.Name).Observe(time.Since(stepStarted).Seconds())
			content := ""
			if e.Output != nil {
				content = e.Output.Content
			}
			s.traceEvent(ctx, rs.run.RunID, domain.EventTypeStepCompleted, domain.WorkflowEventPayload{Name: e.Name, Content: content})
			rs.send(domain.StreamEvent{Event: domain.StreamStepCompleted, StepName: e.Name, StepOutput: content})
		case workflow.EventLoopIterationStarted:
			rs.send(domain.StreamEvent{Event: domain.StreamLoopIterationStarted, StepName: e.Name, Iteration: e.Iteration, MaxIterations: e.MaxIterations})
		case workflow.EventLoopIterationCompleted:
			metrics.GateDecisions.WithLabelValues(wfID, e.Name, strconv.FormatBool(passed(e))).Inc()
			s.traceEvent(ctx, rs.run.RunID, domain.EventTypeLoopIteration, domain.WorkflowEventPayload{
				Name: e.Name, Iteration: e.Iteration, MaxIterations: e.MaxIterations, Passed: e.Passed,
			})
			rs.send(domain.StreamEvent{Event: domain.StreamLoopIterationCompleted, StepName: e.Name, Iteration: e.Iteration, MaxIterations: e.MaxIterations, ConditionResult: e.Passed})
		case workflow.EventCondition:
			metrics.GateDecisions.WithLabelValues(wfID, e.Name, strconv.FormatBool(passed(e))).Inc()
			s.traceEvent(ctx, rs.run.RunID, domain.EventTypeConditionDecision, domain.WorkflowEventPayload{Name: e.Name, Passed: e.Passed})
			rs.send(domain.StreamEvent{Event: domain.StreamConditionExecution, StepName: e.Name, ConditionResult: e.Passed})
		case workflow.EventWorkflowCompleted:
			content := ""
			if e.Output != nil {
				content = e.Output.Content
			}
			rs.send(domain.StreamEvent{Event: domain.StreamWorkflowCompleted, Content: content})
		case workflow.EventWorkflowError:
			msg := ""
			if e.Err != nil {
				msg = e.Err.Error()
			}
			rs.send(domain.StreamEvent{Event: domain.StreamWorkflowError, Error: msg})
		}
	}
}

func passed(e workflow.Event) bool { return e.Passed != nil && *e.Passed }

// persistExchange stores a workflow's request and final report as one turn of
// the session.
func (s *Service) persistExchange(ctx context.Context, run *domain.Run, question, answer string) error {
	repliedAt := s.now().UTC()
	if !repliedAt.After(run.StartedAt) {
		repliedAt = run.StartedAt.Add(time.Millisecond)
	}
	msgs := []*domain.Message{
		{MessageID: uuid.NewString(), SessionID: run.SessionID, RunID: run.RunID, Role: domain.RoleUser, Content: question, CreatedAt: run.StartedAt},
		{MessageID: uuid.NewString(), SessionID: run.SessionID, RunID: run.RunID, Role: domain.RoleAssistant, Content: answer, CreatedAt: repliedAt},
	}
	for _, m := range msgs {
		if err := s.store.CreateMessage(ctx, m); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}
	return nil
}
