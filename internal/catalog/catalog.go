// Package catalog builds the agents, teams and workflows served by AgentOS.
package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/team"
	"github.com/pessini/superpod-blog/internal/tools"
	"github.com/pessini/superpod-blog/internal/workflow"
)

// Catalog is the fixed set of runnable entities. It is read-only after Build.
type Catalog struct {
	logger *zap.Logger

	agents    []*agent.Agent
	teams     []*team.Team
	workflows []*workflow.Workflow

	agentByID    map[string]*agent.Agent
	teamByID     map[string]*team.Team
	workflowByID map[string]*workflow.Workflow
}

// Build constructs every entity. kb backs agno-assist's knowledge search and
// may be nil, in which case the agent runs without it.
func Build(deps agent.Deps, kb tools.KnowledgeSearcher) (*Catalog, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		logger:       logger.With(zap.String("component", "catalog")),
		agentByID:    make(map[string]*agent.Agent),
		teamByID:     make(map[string]*team.Team),
		workflowByID: make(map[string]*workflow.Workflow),
	}

	for _, cfg := range []agent.Config{agnoSimpleConfig(), webSearchConfig(), agnoAssistConfig(kb)} {
		a, err := agent.New(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
		}
		c.addAgent(a)
	}

	for _, build := range []func(agent.Deps) (*team.Team, error){c.buildMultilingualTeam, c.buildResearchTeam} {
		t, err := build(deps)
		if err != nil {
			return nil, fmt.Errorf("team: %w", err)
		}
		c.addTeam(t)
	}

	for _, build := range []func(agent.Deps) (*workflow.Workflow, error){c.buildInvestmentWorkflow, c.buildResearchWorkflow} {
		wf, err := build(deps)
		if err != nil {
			return nil, fmt.Errorf("workflow: %w", err)
		}
		c.addWorkflow(wf)
	}

	c.logger.Info("catalog built",
		zap.Int("agents", len(c.agents)),
		zap.Int("teams", len(c.teams)),
		zap.Int("workflows", len(c.workflows)))
	return c, nil
}

func (c *Catalog) addAgent(a *agent.Agent) {
	c.agents = append(c.agents, a)
	c.agentByID[a.ID()] = a
}

func (c *Catalog) addTeam(t *team.Team) {
	c.teams = append(c.teams, t)
	c.teamByID[t.ID()] = t
}

func (c *Catalog) addWorkflow(wf *workflow.Workflow) {
	c.workflows = append(c.workflows, wf)
	c.workflowByID[wf.ID] = wf
}

func (c *Catalog) Agent(id string) (*agent.Agent, bool) {
	a, ok := c.agentByID[id]
	return a, ok
}

func (c *Catalog) Team(id string) (*team.Team, bool) {
	t, ok := c.teamByID[id]
	return t, ok
}

func (c *Catalog) Workflow(id string) (*workflow.Workflow, bool) {
	wf, ok := c.workflowByID[id]
	return wf, ok
}

// Agents returns agents in registration order.
func (c *Catalog) Agents() []*agent.Agent { return append([]*agent.Agent(nil), c.agents...) }

// Teams returns teams in registration order.
func (c *Catalog) Teams() []*team.Team { return append([]*team.Team(nil), c.teams...) }

// Workflows returns workflows in registration order.
func (c *Catalog) Workflows() []*workflow.Workflow {
	return append([]*workflow.Workflow(nil), c.workflows...)
}

// Entities summarises agents, then teams, then workflows.
func (c *Catalog) Entities() []domain.Entity {
	out := make([]domain.Entity, 0, len(c.agents)+len(c.teams)+len(c.workflows))
	for _, a := range c.agents {
		out = append(out, domain.Entity{ID: a.ID(), Name: a.Name(), Type: domain.EntityAgent, Description: a.Config().Description})
	}
	for _, t := range c.teams {
		out = append(out, domain.Entity{ID: t.ID(), Name: t.Name(), Type: domain.EntityTeam, Description: t.Config().Description})
	}
	for _, wf := range c.workflows {
		out = append(out, domain.Entity{ID: wf.ID, Name: wf.Name, Type: domain.EntityWorkflow, Description: wf.Description})
	}
	return out
}

// Lookup resolves an entity summary by type and id.
func (c *Catalog) Lookup(kind domain.EntityType, id string) (domain.Entity, bool) {
	for _, e := range c.Entities() {
		if e.Type == kind && e.ID == id {
			return e, true
		}
	}
	return domain.Entity{}, false
}

func (c *Catalog) gateObserver(workflowID string) func(name string, passed bool) {
	return func(name string, passed bool) {
		c.logger.Debug("quality gate evaluated",
			zap.String("workflow_id", workflowID),
			zap.String("gate", name),
			zap.Bool("passed", passed))
	}
}

// agentStep adapts an agent to a workflow step: prompt builds the message from
// the step input and render wraps the reply.
func agentStep(a *agent.Agent, prompt func(workflow.StepInput) string, render func(workflow.StepInput, string) string) workflow.Executor {
	return func(ctx context.Context, in workflow.StepInput) (workflow.StepOutput, error) {
		out, err := a.Run(ctx, agent.RunInput{Message: prompt(in)}, nil)
		if err != nil {
			return workflow.StepOutput{}, err
		}
		return workflow.StepOutput{Content: render(in, out.Content), Success: true}, nil
	}
}
