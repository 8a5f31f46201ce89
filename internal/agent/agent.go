// Package agent runs a single model persona with tools, session history,
// user memories and an optional knowledge base.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/metrics"
	"github.com/pessini/superpod-blog/internal/models"
	"github.com/pessini/superpod-blog/internal/policy"
	"github.com/pessini/superpod-blog/internal/repository"
	"github.com/pessini/superpod-blog/internal/tools"
)

// MaxToolRounds bounds the model/tool exchange of one run.
const MaxToolRounds = 10

// UserIDPlaceholder is replaced with the caller's user id in instructions.
const UserIDPlaceholder = "{current_user_id}"

var (
	ErrMaxToolRounds = errors.New("agent: tool call limit reached")
	ErrInvalidConfig = errors.New("agent: invalid config")
)

var tracer = otel.Tracer("superpod/agent")

// Config describes an agent.
type Config struct {
	ID           string
	Name         string
	Role         string
	Model        string
	Description  string
	Instructions []string
	Tools        []string
	Markdown     bool
	AddDatetime  bool
	// HistoryRuns is how many previous runs of the session are replayed.
	HistoryRuns     int
	ReadChatHistory bool
	AgenticMemory   bool
	Knowledge       tools.KnowledgeSearcher
	SearchKnowledge bool
	// ParallelTools runs the tool calls of one model turn concurrently.
	ParallelTools bool
}

// Policy decides whether a tool call may run.
type Policy interface {
	Evaluate(ctx context.Context, in policy.Input) (policy.Decision, error)
}

// Deps are the services an agent calls into.
type Deps struct {
	LLM    llm.LLMClient
	Tools  *tools.Registry
	Policy Policy
	// Store is optional; without it the agent keeps no history or memories.
	Store  repository.Store
	Logger *zap.Logger
	Now    func() time.Time

	// ToolTimeout bounds one tool execution when positive.
	ToolTimeout time.Duration
	// MaxToolRounds overrides the default model/tool exchange bound.
	MaxToolRounds int
}

// Agent is a configured, runnable persona.
type Agent struct {
	cfg    Config
	deps   Deps
	tools  []string
	defs   []llm.Tool
	logger *zap.Logger
}

// New validates cfg and resolves its tools.
func New(cfg Config, deps Deps) (*Agent, error) {
	if cfg.ID == "" || cfg.Name == "" {
		return nil, fmt.Errorf("%w: id and name are required", ErrInvalidConfig)
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("%w: %s has no model client", ErrInvalidConfig, cfg.ID)
	}
	if cfg.Model == "" {
		cfg.Model = models.OllamaModelID
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MaxToolRounds <= 0 {
		deps.MaxToolRounds = MaxToolRounds
	}

	a := &Agent{cfg: cfg, deps: deps, logger: deps.Logger.With(zap.String("agent_id", cfg.ID))}
	a.tools = a.toolNames()
	if len(a.tools) > 0 {
		if deps.Tools == nil {
			return nil, fmt.Errorf("%w: %s declares tools but no registry was given", ErrInvalidConfig, cfg.ID)
		}
		defs, err := deps.Tools.Definitions(a.tools)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, cfg.ID, err)
		}
		a.defs = defs
	}
	return a, nil
}

func (a *Agent) toolNames() []string {
	names := slices.Clone(a.cfg.Tools)
	add := func(n string) {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	if a.cfg.SearchKnowledge && a.cfg.Knowledge != nil {
		add(tools.SearchKnowledgeBase)
	}
	if a.cfg.ReadChatHistory {
		add(tools.GetChatHistory)
	}
	if a.cfg.AgenticMemory {
		add(tools.UpdateUserMemory)
	}
	return names
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.cfg.ID }

// Name returns the display name.
func (a *Agent) Name() string { return a.cfg.Name }

// Config returns a copy of the configuration.
func (a *Agent) Config() Config { return a.cfg }

// Tools lists the tool names offered to the model.
func (a *Agent) Tools() []string { return slices.Clone(a.tools) }

// ToolEvent reports a tool call around its execution.
type ToolEvent struct {
	CallID string
	Name   string
	Args   string
	Result string
	Err    string
	Done   bool
}

// RunInput is one user turn.
type RunInput struct {
	Message   string
	SessionID string
	UserID    string
	RunID     string
	// OnTool observes tool calls. It may be called from several goroutines
	// when ParallelTools is set.
	OnTool func(ToolEvent)
	// Delegate is exposed to the model through delegate_task_to_member.
	Delegate tools.DelegateFunc
	// Interrupt is given the events of every tool round in call order; when
	// it reports true the run ends with the returned content.
	Interrupt func(round []ToolEvent) (string, bool)
	// Persist stores the user and assistant messages in the session.
	Persist bool
}

// RunOutput is the result of a run.
type RunOutput struct {
	Content   string
	ToolCalls []ToolEvent
	Usage     llm.Usage
	Rounds    int
}

// Run answers in.Message. With onDelta set the reply is streamed through it.
func (a *Agent) Run(ctx context.Context, in RunInput, onDelta func(string) error) (*RunOutput, error) {
	ctx, span := tracer.Start(ctx, "agent.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.id", a.cfg.ID),
		attribute.String("session.id", in.SessionID),
		attribute.String("user.id", in.UserID),
	)

	out, err := a.run(ctx, in, onDelta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("agent.tool_rounds", out.Rounds))
	return out, nil
}

func (a *Agent) run(ctx context.Context, in RunInput, onDelta func(string) error) (*RunOutput, error) {
	startedAt := a.deps.Now().UTC()
	messages, err := a.buildMessages(ctx, in)
	if err != nil {
		return nil, err
	}

	rc := &tools.RunContext{
		AgentID:   a.cfg.ID,
		SessionID: in.SessionID,
		UserID:    in.UserID,
		Knowledge: a.cfg.Knowledge,
		Delegate:  in.Delegate,
		Reasoning: &tools.Scratchpad{},
	}
	toolCtx := tools.WithRunContext(ctx, rc)

	out := &RunOutput{}
	// text of every turn, tool-call turns included, in the order it streamed
	var text strings.Builder
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if round > a.deps.MaxToolRounds {
			return nil, fmt.Errorf("%w (%d rounds)", ErrMaxToolRounds, a.deps.MaxToolRounds)
		}

		req := &llm.ChatCompletionRequest{Model: a.cfg.Model, Messages: messages, Tools: a.defs}
		msg, usage, err := llm.Complete(ctx, a.deps.LLM, req, onDelta)
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}
		if usage != nil {
			out.Usage.PromptTokens += usage.PromptTokens
			out.Usage.CompletionTokens += usage.CompletionTokens
			out.Usage.TotalTokens += usage.TotalTokens
			metrics.ObserveTokens(a.cfg.Model, usage.PromptTokens, usage.CompletionTokens)
		}

		text.WriteString(msg.Content)
		if len(msg.ToolCalls) == 0 {
			out.Content = text.String()
			out.Rounds = round
			break
		}

		messages = append(messages, msg)
		results := a.executeTools(toolCtx, in, msg.ToolCalls)
		for i, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, results[i])
			messages = append(messages, llm.ChatMessage{
				Role:       domain.RoleTool,
				Content:    toolMessage(results[i]),
				ToolCallID: tc.ID,
				Name:       tc.Function.Name,
			})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if in.Interrupt != nil {
			if content, ok := in.Interrupt(results); ok {
				if onDelta != nil && content != "" {
					if err := onDelta(content); err != nil {
						return nil, err
					}
				}
				text.WriteString(content)
				out.Content = text.String()
				out.Rounds = round + 1
				break
			}
		}
	}

	if in.Persist {
		if err := a.persist(ctx, in, startedAt, out.Content); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func toolMessage(ev ToolEvent) string {
	if ev.Err != "" {
		return "Error: " + ev.Err
	}
	return ev.Result
}

// executeTools runs the calls of one model turn and returns their events in
// call order. Tool failures are reported to the model, never returned.
func (a *Agent) executeTools(ctx context.Context, in RunInput, calls []llm.ToolCall) []ToolEvent {
	results := make([]ToolEvent, len(calls))
	if !a.cfg.ParallelTools || len(calls) == 1 {
		for i, tc := range calls {
			results[i] = a.executeTool(ctx, in, tc)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range calls {
		g.Go(func() error {
			results[i] = a.executeTool(gctx, in, tc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Agent) executeTool(ctx context.Context, in RunInput, tc llm.ToolCall) ToolEvent {
	ev := ToolEvent{CallID: tc.ID, Name: tc.Function.Name, Args: tc.Function.Arguments}
	if in.OnTool != nil {
		in.OnTool(ev)
	}
	finish := func(outcome string) ToolEvent {
		ev.Done = true
		metrics.ToolCalls.WithLabelValues(ev.Name, outcome).Inc()
		if in.OnTool != nil {
			in.OnTool(ev)
		}
		return ev
	}

	args := json.RawMessage(tc.Function.Arguments)
	if strings.TrimSpace(tc.Function.Arguments) == "" {
		args = json.RawMessage(`{}`)
	}

	if a.deps.Policy != nil {
		decision, err := a.deps.Policy.Evaluate(ctx, policy.Input{
			AgentID:      a.cfg.ID,
			SessionID:    in.SessionID,
			UserID:       in.UserID,
			ToolName:     ev.Name,
			AllowedTools: a.tools,
			Args:         args,
		})
		if err != nil {
			ev.Err = err.Error()
			return finish("error")
		}
		if !decision.Allowed {
			a.logger.Warn("tool call denied", zap.String("tool", ev.Name), zap.Strings("reasons", decision.Reasons))
			ev.Err = "tool call denied: " + strings.Join(decision.Reasons, "; ")
			return finish("denied")
		}
	} else if !slices.Contains(a.tools, ev.Name) {
		ev.Err = fmt.Sprintf("tool %s is not enabled for %s", ev.Name, a.cfg.ID)
		return finish("denied")
	}

	if a.deps.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.deps.ToolTimeout)
		defer cancel()
	}
	result, err := a.deps.Tools.Execute(ctx, ev.Name, args)
	if err != nil {
		a.logger.Debug("tool call failed", zap.String("tool", ev.Name), zap.Error(err))
		ev.Err = err.Error()
		return finish("error")
	}
	ev.Result = result
	return finish("ok")
}

func (a *Agent) persist(ctx context.Context, in RunInput, startedAt time.Time, reply string) error {
	if a.deps.Store == nil || in.SessionID == "" {
		return nil
	}
	repliedAt := a.deps.Now().UTC()
	if !repliedAt.After(startedAt) {
		// keep the reply ordered after the question
		repliedAt = startedAt.Add(time.Millisecond)
	}
	msgs := []*domain.Message{
		{MessageID: uuid.NewString(), SessionID: in.SessionID, RunID: in.RunID, Role: domain.RoleUser, Content: in.Message, CreatedAt: startedAt},
		{MessageID: uuid.NewString(), SessionID: in.SessionID, RunID: in.RunID, Role: domain.RoleAssistant, Content: reply, CreatedAt: repliedAt},
	}
	for _, m := range msgs {
		if err := a.deps.Store.CreateMessage(ctx, m); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}
	return nil
}
