package catalog

import (
	"fmt"

	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/tools"
	"github.com/pessini/superpod-blog/internal/workflow"
	"github.com/pessini/superpod-blog/internal/workflow/gate"
)

// ResearchWorkflowID is the id of "Advanced Research Analyst".
const ResearchWorkflowID = "research-workflow"

// Research step names looked up by later steps.
const (
	StepComprehensiveResearch = "Comprehensive Research"
	StepContentAnalysis       = "Content Analysis"
)

const (
	ResearchGateThreshold   = 4 // of 5
	AnalysisGateThreshold   = 3 // of 4
	ResearchMinLength       = 2000
	researchMinSourceLinks  = 5
	researchLoopMax         = 3
	researchAnalysisLoopMax = 2
)

var (
	ResearchGate = gate.Checklist{
		Name: "research quality",
		Indicators: []gate.Indicator{
			gate.AnyOf("references", "http", "source"),
			gate.LongerThan("substantial", ResearchMinLength),
			gate.AnyOf("studies", "research", "study"),
			gate.AnyOf("expertise", "expert", "analysis"),
			gate.CountAtLeast("many sources", "http", researchMinSourceLinks),
		},
		Threshold: ResearchGateThreshold,
	}
	ContentAnalysisGate = gate.Checklist{
		Name: "content analysis quality",
		Indicators: []gate.Indicator{
			gate.AnyOf("insight", "insight", "analysis"),
			gate.AnyOf("patterns", "trend", "pattern"),
			gate.AnyOf("implications", "implication", "impact"),
			gate.AnyOf("conclusions", "recommendation", "conclusion"),
		},
		Threshold: AnalysisGateThreshold,
	}

	// ResearchComplexKeywords mark requests that get the comprehensive report.
	ResearchComplexKeywords = []string{
		"analysis", "comprehensive", "detailed", "compare", "evaluate",
		"assess", "implications", "trends", "future", "impact",
	}
	researchContentKeywords = []string{"research", "study", "analysis", "expert", "source"}
)

// ShouldAnalyzeContent requires substantial research with scholarly content.
func ShouldAnalyzeContent(in workflow.StepInput) bool {
	return gate.MinLengthAnyOf(in.PreviousStepContent(), ResearchMinLength, researchContentKeywords)
}

// ShouldWriteComprehensiveReport reports whether the request asks for deep analysis.
func ShouldWriteComprehensiveReport(in workflow.StepInput) bool {
	return gate.ContainsAny(in.Request(), ResearchComplexKeywords)
}

func (c *Catalog) buildResearchWorkflow(deps agent.Deps) (*workflow.Workflow, error) {
	coordinator, err := agent.New(agent.Config{
		ID:          "research-coordinator",
		Name:        "Research Coordinator",
		Description: "Expert research coordinator specializing in comprehensive information gathering and source verification.",
		Instructions: []string{`You are a professional research coordinator with expertise in conducting thorough research.

**Your Mission:**
Conduct comprehensive research using DuckDuckGo search and Wikipedia.

**Research Standards:**
- Gather information from at least 5 credible, recent sources
- Cross-reference claims and note disagreements between sources
- Distinguish expert opinion, peer-reviewed study and news reporting
- Capture every source URL

**Output Format:**
- **Research Summary**, **Key Findings**, **Expert Perspectives**, **Data & Statistics**
- **Source References**: All URLs with a one-line description each`},
		Tools:    []string{tools.DuckDuckGoSearch, tools.DuckDuckGoNews, tools.Wikipedia},
		Markdown: true,
	}, deps)
	if err != nil {
		return nil, err
	}
	analyst, err := agent.New(agent.Config{
		ID:          "content-analyst",
		Name:        "Content Analyst",
		Description: "Expert content analyst specializing in synthesizing research into insights, trends, and implications.",
		Instructions: []string{`You are a professional content analyst who turns raw research into insight.

**Analysis Tasks:**
1. **Insight Extraction** - Identify the most important findings
2. **Pattern Recognition** - Spot trends and recurring patterns
3. **Impact Assessment** - Explain implications for stakeholders
4. **Gap Analysis** - Note what the research does not cover
5. **Recommendations** - Draw evidence-based conclusions

Verify important claims with DuckDuckGo search and cite all sources.`},
		Tools:    []string{tools.DuckDuckGoSearch},
		Markdown: true,
	}, deps)
	if err != nil {
		return nil, err
	}
	writer, err := agent.New(agent.Config{
		ID:          "report-writer",
		Name:        "Research Report Writer",
		Description: "Expert report writer specializing in clear, well-structured research reports.",
		Instructions: []string{`You are a professional research report writer.

**Report Structure:**
- **Executive Summary**
- **Background & Context**
- **Key Findings** with supporting evidence
- **Analysis & Implications**
- **Recommendations**
- **References**: every source URL from the research

Write for an informed reader: precise, balanced and well organized.`},
		Markdown: true,
	}, deps)
	if err != nil {
		return nil, err
	}

	research := agentStep(coordinator, func(in workflow.StepInput) string {
		return fmt.Sprintf(`Conduct comprehensive research on this request:

**Research Request**: %s

**Phase 1: Background** - use Wikipedia for definitions, history and context.
**Phase 2: Current State** - use DuckDuckGo for recent developments, studies and expert commentary.
**Phase 3: Verification** - cross-check key facts across independent sources.

**Quality Standards:**
- Include specific numbers, dates and named experts
- Cite at least 5 credible source URLs
- Present multiple perspectives where they exist`, in.Request())
	}, section("Comprehensive Research Findings", "Research Request", "Research Results", ""))

	analysis := agentStep(analyst, func(in workflow.StepInput) string {
		return fmt.Sprintf(`Analyze the research below and extract insight:

**Original Research Request**: %s

**Research Data**:
%s

Please provide:
1. **Key Insights**: the most important findings and why they matter
2. **Trends & Patterns**: what is changing and in which direction
3. **Implications & Impact**: consequences for the people and organisations involved
4. **Gaps & Uncertainties**: what remains unknown or contested
5. **Conclusions & Recommendations**: evidence-based takeaways
6. **References**: all source URLs used`, in.Request(), in.StepContent(StepComprehensiveResearch))
	}, section("Content Analysis & Insights", "Research Request", "Analysis", ""))

	report := agentStep(writer, func(in workflow.StepInput) string {
		return fmt.Sprintf(`Write a comprehensive research report:

**Original Research Request**: %s

**Research Findings**:
%s

**Content Analysis**:
%s

Follow the report structure in your instructions and keep every source URL.`, in.Request(), in.StepContent(StepComprehensiveResearch), in.StepContent(StepContentAnalysis))
	}, section("Research Report", "Research Request", "Report", ""))

	observe := c.gateObserver(ResearchWorkflowID)
	wf := &workflow.Workflow{
		ID:   ResearchWorkflowID,
		Name: "Advanced Research Analyst",
		Description: "Research engine that gathers multi-source evidence in quality-gated loops, " +
			"analyses it for insight and writes a structured report",
		InputField: "research_request",
		Steps: []workflow.Node{
			&workflow.Loop{
				Name:          "Comprehensive Research Loop",
				Steps:         []workflow.Node{&workflow.Step{Name: StepComprehensiveResearch, Executor: research}},
				EndCondition:  ResearchGate.EndCondition(observe),
				MaxIterations: researchLoopMax,
			},
			&workflow.Condition{
				Name:      "Content Analysis Condition",
				Evaluator: ShouldAnalyzeContent,
				Steps: []workflow.Node{&workflow.Loop{
					Name:          "Content Analysis Loop",
					Steps:         []workflow.Node{&workflow.Step{Name: StepContentAnalysis, Executor: analysis}},
					EndCondition:  ContentAnalysisGate.EndCondition(observe),
					MaxIterations: researchAnalysisLoopMax,
				}},
			},
			&workflow.Condition{
				Name:      "Research Report Condition",
				Evaluator: ShouldWriteComprehensiveReport,
				Steps:     []workflow.Node{&workflow.Step{Name: "Comprehensive Research Report", Executor: report}},
			},
			&workflow.Step{Name: "Basic Research Report", Executor: report},
		},
		SessionState: map[string]any{},
	}
	return wf, wf.Validate()
}
