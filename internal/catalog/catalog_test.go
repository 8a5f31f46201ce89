package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/tools"
	"github.com/pessini/superpod-blog/internal/workflow"
	"github.com/pessini/superpod-blog/internal/workflow/gate"
)

type stubKnowledge struct{}

func (stubKnowledge) SearchText(context.Context, string, int) (string, error) { return "", nil }

func newDeps(t *testing.T, client llm.LLMClient) agent.Deps {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(reg, tools.Deps{}))
	return agent.Deps{LLM: client, Tools: reg}
}

func outputs(contents ...string) []workflow.StepOutput {
	outs := make([]workflow.StepOutput, len(contents))
	for i, c := range contents {
		outs[i] = workflow.StepOutput{Content: c, Success: true}
	}
	return outs
}

func TestBuildRegistersEntitiesInOrder(t *testing.T) {
	c, err := Build(newDeps(t, llm.NewMockClient()), stubKnowledge{})
	require.NoError(t, err)

	var ids []string
	for _, e := range c.Entities() {
		ids = append(ids, string(e.Type)+":"+e.ID)
	}
	assert.Equal(t, []string{
		"agent:agno-simple", "agent:web-search-agent", "agent:agno-assist",
		"team:multilingual-team", "team:reasoning-research-team",
		"workflow:investment-workflow", "workflow:research-workflow",
	}, ids)

	e, ok := c.Lookup(domain.EntityWorkflow, ResearchWorkflowID)
	require.True(t, ok)
	assert.Equal(t, "Advanced Research Analyst", e.Name)
	_, ok = c.Lookup(domain.EntityAgent, ResearchWorkflowID)
	assert.False(t, ok)

	_, ok = c.Team(MultilingualTeamID)
	assert.True(t, ok)
	_, ok = c.Agent("missing")
	assert.False(t, ok)
}

func TestAgnoAssistKnowledgeTool(t *testing.T) {
	with, err := Build(newDeps(t, llm.NewMockClient()), stubKnowledge{})
	require.NoError(t, err)
	a, _ := with.Agent(AgnoAssistID)
	assert.Contains(t, a.Tools(), tools.SearchKnowledgeBase)
	assert.Contains(t, a.Tools(), tools.GetChatHistory)

	without, err := Build(newDeps(t, llm.NewMockClient()), nil)
	require.NoError(t, err)
	a, _ = without.Agent(AgnoAssistID)
	assert.NotContains(t, a.Tools(), tools.SearchKnowledgeBase)
}

func TestMultilingualTeamMembers(t *testing.T) {
	c, err := Build(newDeps(t, llm.NewMockClient()), nil)
	require.NoError(t, err)
	tm, ok := c.Team(MultilingualTeamID)
	require.True(t, ok)
	assert.Len(t, tm.Members(), 5)
	assert.True(t, tm.Config().RespondDirectly)
	assert.True(t, tm.Config().ShowMemberResponses)
}

func TestInvestmentResearchGate(t *testing.T) {
	padded := "The share price rose after revenue beat estimates. " + strings.Repeat("x", 1000)
	assert.True(t, InvestmentResearchGate.Passed(outputs(padded)))
	score, _ := InvestmentResearchGate.Score(padded)
	assert.Equal(t, 3, score)

	assert.False(t, InvestmentResearchGate.Passed(outputs("price and revenue only")))
}

func TestGatesRejectEmptyOutputs(t *testing.T) {
	for _, g := range []gate.Checklist{InvestmentResearchGate, InvestmentAnalysisGate, ResearchGate, ContentAnalysisGate} {
		assert.False(t, g.Passed(nil), g.Name)
		assert.False(t, g.Passed(outputs("  ")), g.Name)
	}
}

func TestResearchGateCountsSourceLinks(t *testing.T) {
	links := strings.Repeat("see http://example.com/paper ", 5)
	text := "Research by an expert. " + links
	score, hits := ResearchGate.Score(text)
	assert.Equal(t, 4, score)
	assert.Contains(t, hits, "many sources")
	assert.True(t, ResearchGate.Passed(outputs(text)))
}

func TestComplexityKeywords(t *testing.T) {
	in := workflow.NewStepInput(workflow.ExecutionInput{Request: "I want a comprehensive comparison"}, nil, nil)
	assert.False(t, ShouldBuildInvestmentStrategy(in))
	assert.True(t, ShouldWriteComprehensiveReport(in))

	in = workflow.NewStepInput(workflow.ExecutionInput{Request: "Build a DIVERSIFIED portfolio"}, nil, nil)
	assert.True(t, ShouldBuildInvestmentStrategy(in))
}

func TestConditionFloors(t *testing.T) {
	short := workflow.NewStepInput(workflow.ExecutionInput{Request: "r"}, outputs("market analysis"), nil)
	assert.False(t, ShouldRunFinancialAnalysis(short))

	long := workflow.NewStepInput(workflow.ExecutionInput{Request: "r"}, outputs("market "+strings.Repeat("y", 1000)), nil)
	assert.True(t, ShouldRunFinancialAnalysis(long))
	assert.False(t, ShouldAnalyzeContent(long))

	research := workflow.NewStepInput(workflow.ExecutionInput{Request: "r"}, outputs("expert study "+strings.Repeat("z", 2000)), nil)
	assert.True(t, ShouldAnalyzeContent(research))
}

func TestFloorsCountCharacters(t *testing.T) {
	// 407 characters but 1207 bytes
	wide := "market " + strings.Repeat("市场", 200)
	in := workflow.NewStepInput(workflow.ExecutionInput{Request: "r"}, outputs(wide), nil)
	assert.False(t, ShouldRunFinancialAnalysis(in))

	_, hits := InvestmentResearchGate.Score(wide)
	assert.NotContains(t, hits, "substantial")
}

func TestInvestmentWorkflowExhaustsResearchLoop(t *testing.T) {
	c, err := Build(newDeps(t, llm.NewMockClient()), nil)
	require.NoError(t, err)
	wf, ok := c.Workflow(InvestmentWorkflowID)
	require.True(t, ok)

	var iterations []bool
	var conditions []bool
	res, err := wf.Run(context.Background(), workflow.ExecutionInput{Request: "Look at AAPL"}, func(e workflow.Event) {
		switch e.Kind {
		case workflow.EventLoopIterationCompleted:
			iterations = append(iterations, *e.Passed)
		case workflow.EventCondition:
			conditions = append(conditions, *e.Passed)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []bool{false, false, false}, iterations)
	assert.Equal(t, []bool{false, false}, conditions)
	require.Len(t, res.Outputs, 5)
	assert.Equal(t, "Basic Portfolio Strategy", res.Outputs[4].StepName)
	assert.True(t, strings.HasPrefix(res.Content, "# Investment Strategy & Portfolio Recommendations"))
	assert.Contains(t, res.Content, "## Disclaimer")
}

func TestResearchWorkflowReportSeesResearch(t *testing.T) {
	client := llm.NewMockClient()
	c, err := Build(newDeps(t, client), nil)
	require.NoError(t, err)
	wf, _ := c.Workflow(ResearchWorkflowID)

	in, err := wf.ParseInput(`{"research_request": "Compare solar trends"}`)
	require.NoError(t, err)
	res, err := wf.Run(context.Background(), in, nil)
	require.NoError(t, err)

	var names []string
	for _, o := range res.Outputs {
		names = append(names, o.StepName)
	}
	assert.Equal(t, []string{
		StepComprehensiveResearch, StepComprehensiveResearch, StepComprehensiveResearch,
		"Comprehensive Research Report", "Basic Research Report",
	}, names)

	reqs := client.Requests()
	last := reqs[len(reqs)-1].Messages
	assert.Contains(t, last[len(last)-1].Content, "# Comprehensive Research Findings")
}
