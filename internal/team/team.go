// Package team coordinates member agents through a leader model that
// delegates tasks with the delegate_task_to_member tool.
package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/tools"
)

var (
	ErrNoMembers     = errors.New("team: at least one member is required")
	ErrUnknownMember = errors.New("team: unknown member")
)

var tracer = otel.Tracer("superpod/team")

// Config describes a team.
type Config struct {
	ID                  string
	Name                string
	Model               string
	Description         string
	Instructions        []string
	Members             []*agent.Agent
	Tools               []string
	RespondDirectly     bool
	ShowMemberResponses bool
	HistoryRuns         int
	Markdown            bool
	AddDatetime         bool
}

// MemberResponse is one member's answer within a team run.
type MemberResponse struct {
	MemberID string
	Task     string
	Content  string
	Err      string
}

// RunInput is one user turn for the team.
type RunInput struct {
	Message   string
	SessionID string
	UserID    string
	RunID     string
	Persist   bool
	OnTool    func(agent.ToolEvent)
	// OnMember observes member replies as they complete.
	OnMember func(MemberResponse)
}

// RunOutput is the team's reply.
type RunOutput struct {
	Content         string
	MemberResponses []MemberResponse
}

// Team runs a leader agent over its members.
type Team struct {
	cfg     Config
	leader  *agent.Agent
	members map[string]*agent.Agent
	order   []string
	logger  *zap.Logger
}

// New builds the leader agent from cfg.
func New(cfg Config, deps agent.Deps) (*Team, error) {
	if len(cfg.Members) == 0 {
		return nil, ErrNoMembers
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	t := &Team{cfg: cfg, members: make(map[string]*agent.Agent), logger: deps.Logger.With(zap.String("team_id", cfg.ID))}
	for _, m := range cfg.Members {
		if _, dup := t.members[m.ID()]; dup {
			return nil, fmt.Errorf("team %s: duplicate member %s", cfg.ID, m.ID())
		}
		t.members[m.ID()] = m
		t.order = append(t.order, m.ID())
	}

	toolNames := append([]string{tools.DelegateTask}, cfg.Tools...)
	leader, err := agent.New(agent.Config{
		ID:            cfg.ID,
		Name:          cfg.Name,
		Model:         cfg.Model,
		Description:   cfg.Description,
		Instructions:  append(append([]string(nil), cfg.Instructions...), t.memberInstructions()...),
		Tools:         toolNames,
		Markdown:      cfg.Markdown,
		AddDatetime:   cfg.AddDatetime,
		HistoryRuns:   cfg.HistoryRuns,
		ParallelTools: true,
	}, deps)
	if err != nil {
		return nil, err
	}
	t.leader = leader
	return t, nil
}

func (t *Team) memberInstructions() []string {
	var sb strings.Builder
	sb.WriteString("You lead a team. Delegate tasks with delegate_task_to_member. Members:")
	for _, id := range t.order {
		m := t.members[id].Config()
		fmt.Fprintf(&sb, "\n  * %s (%s)", id, m.Name)
		if m.Role != "" {
			sb.WriteString(": " + m.Role)
		}
	}
	out := []string{sb.String()}
	if t.cfg.RespondDirectly {
		out = append(out, "The member's answer is returned to the user as is; delegate to exactly one member.")
	}
	return out
}

// ID returns the team id.
func (t *Team) ID() string { return t.cfg.ID }

// Name returns the display name.
func (t *Team) Name() string { return t.cfg.Name }

// Config returns the team configuration.
func (t *Team) Config() Config { return t.cfg }

// Members returns the members in declaration order.
func (t *Team) Members() []*agent.Agent {
	out := make([]*agent.Agent, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.members[id])
	}
	return out
}

// Leader exposes the coordinating agent.
func (t *Team) Leader() *agent.Agent { return t.leader }

// Run answers in.Message. With onDelta set the reply is streamed.
func (t *Team) Run(ctx context.Context, in RunInput, onDelta func(string) error) (*RunOutput, error) {
	ctx, span := tracer.Start(ctx, "team.run")
	defer span.End()
	span.SetAttributes(attribute.String("team.id", t.cfg.ID), attribute.String("session.id", in.SessionID))

	delegate := func(ctx context.Context, memberID, task string) (string, error) {
		m, ok := t.members[memberID]
		if !ok {
			return "", fmt.Errorf("%w %q; valid members: %s", ErrUnknownMember, memberID, strings.Join(t.order, ", "))
		}
		t.logger.Debug("delegating task", zap.String("member_id", memberID))
		out, err := m.Run(ctx, agent.RunInput{Message: task, UserID: in.UserID, OnTool: in.OnTool}, nil)
		if in.OnMember != nil {
			resp := MemberResponse{MemberID: memberID, Task: task}
			if err != nil {
				resp.Err = err.Error()
			} else {
				resp.Content = out.Content
			}
			in.OnMember(resp)
		}
		if err != nil {
			return "", err
		}
		return out.Content, nil
	}

	var interrupt func([]agent.ToolEvent) (string, bool)
	if t.cfg.RespondDirectly {
		interrupt = func(round []agent.ToolEvent) (string, bool) {
			for _, r := range memberResponses(round) {
				if r.Err == "" {
					return r.Content, true
				}
			}
			return "", false
		}
	}

	out, err := t.leader.Run(ctx, agent.RunInput{
		Message:   in.Message,
		SessionID: in.SessionID,
		UserID:    in.UserID,
		RunID:     in.RunID,
		Persist:   in.Persist,
		OnTool:    in.OnTool,
		Delegate:  delegate,
		Interrupt: interrupt,
	}, onDelta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &RunOutput{Content: out.Content}
	responses := memberResponses(out.ToolCalls)
	if t.cfg.ShowMemberResponses || t.cfg.RespondDirectly {
		result.MemberResponses = responses
	}
	span.SetAttributes(attribute.Int("team.delegations", len(responses)))
	return result, nil
}

// memberResponses extracts delegations from tool events, keeping call order.
func memberResponses(events []agent.ToolEvent) []MemberResponse {
	var out []MemberResponse
	for _, ev := range events {
		if ev.Name != tools.DelegateTask || !ev.Done {
			continue
		}
		var args struct {
			MemberID string `json:"member_id"`
			Task     string `json:"task"`
		}
		_ = json.Unmarshal([]byte(ev.Args), &args)
		out = append(out, MemberResponse{MemberID: args.MemberID, Task: args.Task, Content: ev.Result, Err: ev.Err})
	}
	return out
}
