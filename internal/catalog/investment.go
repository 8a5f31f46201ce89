package catalog

import (
	"fmt"
	"strings"

	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/tools"
	"github.com/pessini/superpod-blog/internal/workflow"
	"github.com/pessini/superpod-blog/internal/workflow/gate"
)

// InvestmentWorkflowID is the id of "Investment Analyst Pro".
const InvestmentWorkflowID = "investment-workflow"

// Investment gate tuning.
const (
	InvestmentResearchThreshold = 3 // of 5
	InvestmentAnalysisThreshold = 3 // of 4
	InvestmentMinResearchLength = 1000
	investmentResearchLoopMax   = 3
	investmentAnalysisLoopMax   = 2
)

var (
	InvestmentResearchGate = gate.Checklist{
		Name: "investment research quality",
		Indicators: []gate.Indicator{
			gate.AnyOf("pricing", "price", "market cap"),
			gate.AnyOf("financials", "revenue", "earnings"),
			gate.AnyOf("references", "http", "source"),
			gate.LongerThan("substantial", InvestmentMinResearchLength),
			gate.AnyOf("risk", "risk", "analysis"),
		},
		Threshold: InvestmentResearchThreshold,
	}
	InvestmentAnalysisGate = gate.Checklist{
		Name: "investment analysis quality",
		Indicators: []gate.Indicator{
			gate.AnyOf("valuation", "valuation", "value"),
			gate.AnyOf("recommendation", "recommendation", "buy", "sell"),
			gate.AnyOf("risk", "risk", "beta"),
			gate.AnyOf("calculation", "python", "calculation"),
		},
		Threshold: InvestmentAnalysisThreshold,
	}

	// InvestmentComplexKeywords mark requests that get the deep portfolio strategy.
	InvestmentComplexKeywords = []string{
		"portfolio", "diversified", "risk management", "allocation",
		"multiple", "several", "compare", "analysis", "detailed",
	}
	investmentResearchKeywords = []string{"price", "revenue", "financial", "market", "analysis"}
)

// ShouldRunFinancialAnalysis requires substantial research with financial content.
func ShouldRunFinancialAnalysis(in workflow.StepInput) bool {
	return gate.MinLengthAnyOf(in.PreviousStepContent(), InvestmentMinResearchLength, investmentResearchKeywords)
}

// ShouldBuildInvestmentStrategy reports whether the request asks for deep analysis.
func ShouldBuildInvestmentStrategy(in workflow.StepInput) bool {
	return gate.ContainsAny(in.Request(), InvestmentComplexKeywords)
}

func (c *Catalog) buildInvestmentWorkflow(deps agent.Deps) (*workflow.Workflow, error) {
	researcher, err := agent.New(agent.Config{
		ID:   "financial-market-researcher",
		Name: "Financial Market Researcher",
		Description: "Expert financial researcher specializing in comprehensive market analysis, " +
			"company research, and investment opportunity identification.",
		Instructions: []string{`You are a professional financial market researcher with expertise in investment analysis.

**Your Mission:**
Conduct comprehensive research on investment opportunities using DuckDuckGo search.

**Research Areas:**
- **Company Fundamentals**: Revenue, earnings, growth rates, financial health
- **Market Position**: Competitive landscape, market share, industry trends
- **Recent Developments**: News, earnings reports, product launches, partnerships
- **Analyst Opinions**: Ratings, price targets, investment recommendations
- **Risk Factors**: Market risks, company-specific risks, regulatory concerns

**Output Format:**
- **Company Overview**, **Financial Performance**, **Market Analysis**, **Recent News**, **Analyst Sentiment**
- **Source References**: All URLs and sources used in research

Always capture and save source URLs for credibility and further research.`},
		Tools:    []string{tools.DuckDuckGoSearch, tools.DuckDuckGoNews},
		Markdown: true,
	}, deps)
	if err != nil {
		return nil, err
	}
	analyst, err := agent.New(agent.Config{
		ID:   "financial-analyst",
		Name: "Financial Analyst",
		Description: "Expert financial analyst specializing in quantitative analysis, " +
			"valuation modeling, and investment recommendations.",
		Instructions: []string{`You are a professional financial analyst focused on quantitative analysis and valuation.

**Analysis Tasks:**
1. **Financial Analysis** - Evaluate financial metrics and performance
2. **Valuation Analysis** - Calculate intrinsic value and compare to market price
3. **Risk Assessment** - Identify and quantify investment risks
4. **Comparative Analysis** - Compare multiple investment opportunities
5. **Investment Recommendations** - Provide clear buy/hold/sell recommendations

Show your supporting calculations (P/E, P/B, ROE, DCF, beta, volatility) step by step.

**Output Format:**
- **Financial Summary**, **Valuation Analysis**, **Risk Assessment**, **Investment Recommendation**
- **Supporting Calculations** and **References** with source URLs`},
		Tools:    []string{tools.DuckDuckGoSearch},
		Markdown: true,
	}, deps)
	if err != nil {
		return nil, err
	}
	strategist, err := agent.New(agent.Config{
		ID:   "portfolio-strategist",
		Name: "Portfolio Strategist",
		Description: "Expert portfolio strategist specializing in asset allocation, " +
			"risk management, and investment strategy development.",
		Instructions: []string{`You are a professional portfolio strategist focused on creating optimal investment strategies.

**Strategy Development:**
1. **Portfolio Construction** - Create optimal asset allocation
2. **Risk Management** - Implement risk controls and diversification
3. **Strategic Recommendations** - Provide actionable investment advice
4. **Performance Monitoring** - Set benchmarks and success metrics
5. **Market Timing** - Assess optimal entry and exit strategies

**Output Format:**
- **Investment Strategy**, **Portfolio Allocation**, **Risk Management**, **Implementation Plan**, **Performance Metrics**
- **References**: All sources and supporting research`},
		Tools:    []string{tools.DuckDuckGoSearch},
		Markdown: true,
	}, deps)
	if err != nil {
		return nil, err
	}

	parse := agentStep(researcher, func(in workflow.StepInput) string {
		return fmt.Sprintf(`Parse this investment request and extract key information:

**Request**: %s

Extract and identify:
1. **Companies/Tickers**: Specific company names or stock symbols mentioned
2. **Sectors/Industries**: Industry sectors or themes (tech, healthcare, etc.)
3. **Investment Goals**: Growth, income, value, speculation, etc.
4. **Time Horizon**: Short-term, medium-term, long-term
5. **Risk Tolerance**: Conservative, moderate, aggressive
6. **Budget/Amount**: Investment amount if mentioned
7. **Special Criteria**: ESG, dividend yield, market cap, etc.

If the request is vague or missing key information, suggest specific companies or sectors to research.
Provide at least 1 specific investment opportunity to analyze.`, in.Request())
	}, section("Investment Request Parsing", "Original Request", "Parsed Investment Criteria", ""))

	research := agentStep(researcher, func(in workflow.StepInput) string {
		return fmt.Sprintf(`Conduct comprehensive investment research based on this request:

**Investment Request**: %s

**Phase 1: Company Research** - latest earnings reports, analyst reports, company news, management changes and partnerships.
**Phase 2: Market Context** - industry trends, competitive landscape, economic factors and regulatory changes.

**Quality Standards:**
- Include specific numbers and data points
- Cite recent sources (within last 6 months preferred)
- Provide balanced view (pros and cons)
- Include at least 5 credible source URLs

Focus on finding credible, recent information from reputable financial sources.`, in.Request())
	}, section("Market Research Findings", "Investment Request", "Research Results", ""))

	analysis := agentStep(analyst, func(in workflow.StepInput) string {
		return fmt.Sprintf(`Conduct detailed financial analysis based on the market research:

**Original Investment Request**: %s

**Market Research Data**:
%s

Please provide:
1. **Financial Analysis**: key ratios, financial health, growth and profitability
2. **Valuation Analysis**: intrinsic value, fair value versus market price, price targets
3. **Risk Assessment**: company-specific and market risks, beta and volatility
4. **Investment Recommendations**: clear buy/hold/sell recommendations with rationale
5. **Supporting Analysis**: show the calculations behind every figure
6. **References & Sources**: all source URLs with publication dates

Use DuckDuckGo search for additional financial data.`, in.Request(), in.StepContent(StepMarketResearch))
	}, section("Financial Analysis & Investment Recommendations", "Investment Request", "Financial Analysis", ""))

	strategy := agentStep(strategist, func(in workflow.StepInput) string {
		return fmt.Sprintf(`Create a comprehensive investment strategy based on all research and analysis:

**Original Investment Request**: %s

**Market Research**:
%s

**Financial Analysis**:
%s

Please provide:
1. **Investment Strategy**: Overall approach and philosophy
2. **Portfolio Allocation**: Specific allocation percentages and weightings
3. **Risk Management**: Risk controls and position sizing
4. **Implementation Plan**: Step-by-step execution guidance
5. **Performance Metrics**: Success measures and benchmarks
6. **References**: All sources and supporting research`, in.Request(), in.StepContent(StepMarketResearch), in.StepContent(StepFinancialAnalysis))
	}, section("Investment Strategy & Portfolio Recommendations", "Investment Request", "Strategic Recommendations",
		"## Disclaimer\nThis analysis is for educational purposes only and should not be considered as financial advice.\n"+
			"Please consult with a qualified financial advisor before making investment decisions."))

	observe := c.gateObserver(InvestmentWorkflowID)
	wf := &workflow.Workflow{
		ID:   InvestmentWorkflowID,
		Name: "Investment Analyst Pro",
		Description: "Professional investment analysis engine that evaluates market opportunities, conducts financial due diligence " +
			"with adaptive research steps, and delivers strategic portfolio recommendations",
		InputField: "investment_request",
		Steps: []workflow.Node{
			&workflow.Step{Name: "Parse Investment Request", Executor: parse},
			&workflow.Loop{
				Name:          "Market Research Loop",
				Steps:         []workflow.Node{&workflow.Step{Name: StepMarketResearch, Executor: research}},
				EndCondition:  InvestmentResearchGate.EndCondition(observe),
				MaxIterations: investmentResearchLoopMax,
			},
			&workflow.Condition{
				Name:      "Financial Analysis Condition",
				Evaluator: ShouldRunFinancialAnalysis,
				Steps: []workflow.Node{&workflow.Loop{
					Name:          "Financial Analysis Loop",
					Steps:         []workflow.Node{&workflow.Step{Name: StepFinancialAnalysis, Executor: analysis}},
					EndCondition:  InvestmentAnalysisGate.EndCondition(observe),
					MaxIterations: investmentAnalysisLoopMax,
				}},
			},
			&workflow.Condition{
				Name:      "Portfolio Strategy Condition",
				Evaluator: ShouldBuildInvestmentStrategy,
				Steps:     []workflow.Node{&workflow.Step{Name: "Portfolio Strategy", Executor: strategy}},
			},
			&workflow.Step{Name: "Basic Portfolio Strategy", Executor: strategy},
		},
		SessionState: map[string]any{},
	}
	return wf, wf.Validate()
}

// Investment step names looked up by later steps.
const (
	StepMarketResearch    = "Market Research"
	StepFinancialAnalysis = "Financial Analysis"
)

// section renders an agent reply under a titled report header.
func section(title, requestHeading, resultHeading, footer string) func(workflow.StepInput, string) string {
	return func(in workflow.StepInput, content string) string {
		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n## %s\n%s\n\n## %s\n%s", title, requestHeading, in.Request(), resultHeading, strings.TrimSpace(content))
		if footer != "" {
			sb.WriteString("\n\n" + footer)
		}
		return sb.String()
	}
}
