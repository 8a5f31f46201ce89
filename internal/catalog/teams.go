package catalog

import (
	"fmt"

	"github.com/pessini/superpod-blog/internal/agent"
	"github.com/pessini/superpod-blog/internal/team"
	"github.com/pessini/superpod-blog/internal/tools"
)

// Team ids.
const (
	MultilingualTeamID = "multilingual-team"
	ResearchTeamID     = "reasoning-research-team"
)

type specialist struct {
	id, language, role string
	formality, regions string
	variations, trends string
	documents          string
}

var specialists = []specialist{
	{
		id: "japanese-language-specialist", language: "Japanese",
		role:       "Expert in Japanese language, culture, and business practices",
		formality:  "Provide accurate translations with appropriate formality levels (keigo, casual, business).",
		regions:    "Include cultural context for business communications and social interactions.",
		variations: "Explain regional variations between Tokyo, Osaka, and other Japanese dialects when relevant.",
		trends:     "Research current Japanese business practices and cultural trends when needed.",
		documents:  "Handle document translation with proper business formatting and honorific usage.",
	},
	{
		id: "spanish-language-specialist", language: "Spanish",
		role:       "Expert in Spanish language across Latin America and Spain",
		formality:  "Provide translations appropriate for specific regions (Mexico, Spain, Argentina, etc.).",
		regions:    "Include cultural context and regional business practices.",
		variations: "Explain differences between Latin American and Iberian Spanish when relevant.",
		trends:     "Research current Hispanic market trends and cultural developments when needed.",
		documents:  "Handle professional document translation with appropriate regional terminology.",
	},
	{
		id: "french-language-specialist", language: "French",
		role:       "Expert in French language and Francophone culture",
		formality:  "Provide translations with appropriate formality (vous/tu, formal/informal business register).",
		regions:    "Include cultural context for France, Quebec, and other Francophone regions.",
		variations: "Explain differences between European and North American French when relevant.",
		trends:     "Research current French business etiquette and cultural practices when needed.",
		documents:  "Handle business document translation with proper French professional standards.",
	},
	{
		id: "hindi-language-specialist", language: "Hindi",
		role:       "Expert in Hindi language and Indian business culture",
		formality:  "Provide translations with appropriate formality and respect levels.",
		regions:    "Include cultural context for Indian business practices and social customs.",
		variations: "Explain regional variations and the relationship with English in business contexts.",
		trends:     "Research current Indian market trends and cultural developments when needed.",
		documents:  "Handle document translation with proper Indian business communication standards.",
	},
	{
		id: "german-language-specialist", language: "German",
		role:       "Expert in German language and Germanic business culture",
		formality:  "Provide translations with appropriate formality (Sie/du, business protocols).",
		regions:    "Include cultural context for Germany, Austria, and Switzerland business practices.",
		variations: "Explain regional variations and business communication styles when relevant.",
		trends:     "Research current German-speaking market trends and cultural practices when needed.",
		documents:  "Handle professional document translation with proper Germanic business standards.",
	},
}

func (s specialist) config() agent.Config {
	return agent.Config{
		ID:   s.id,
		Name: s.language + " Language Specialist",
		Role: s.role,
		Instructions: []string{
			fmt.Sprintf("You are a professional %s language and cultural consultant.", s.language),
			s.formality,
			s.regions,
			s.variations,
			s.trends,
			fmt.Sprintf("Always respond in %s while providing cultural insights.", s.language),
			s.documents,
		},
		Markdown: true,
	}
}

const multilingualInstructions = `You are the lead multilingual consultation coordinator managing a team of specialized language experts.

1. **Language Analysis and Routing:**
- Identify the source language and cultural context of user requests
- Assess complexity level: simple translation, cultural adaptation, or business localization
- Route to appropriate language specialist based on expertise and regional knowledge

2. **Service Categories:** translation, cultural consultation, localization support, document processing and cross-cultural communication.

3. **Quality Assurance Protocol:**
- Verify translation accuracy with native language specialists
- Ensure cultural appropriateness and business context alignment
- Provide regional variation notes when multiple dialects exist
- Include pronunciation guides and formal/informal register options

4. **Supported Languages:**
Japanese, Spanish, French, Hindi, German, plus research capabilities for additional languages

Professional Standards:
- Maintain confidentiality for business documents and sensitive content
- Offer both literal and culturally adapted translations as appropriate`

func (c *Catalog) buildMultilingualTeam(deps agent.Deps) (*team.Team, error) {
	members := make([]*agent.Agent, 0, len(specialists))
	for _, s := range specialists {
		m, err := agent.New(s.config(), deps)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return team.New(team.Config{
		ID:   MultilingualTeamID,
		Name: "Professional Multilingual Consultation Team",
		Description: "Expert multilingual team with native specialists in Japanese, Spanish, French, Hindi, and German who provide " +
			"professional translation, cultural consultation, business localization, and cross-cultural communication guidance " +
			"with regional expertise and cultural nuance understanding.",
		Instructions:        []string{multilingualInstructions},
		Members:             members,
		RespondDirectly:     true,
		ShowMemberResponses: true,
		HistoryRuns:         historyRuns,
		Markdown:            true,
		AddDatetime:         true,
	}, deps)
}

func (c *Catalog) buildResearchTeam(deps agent.Deps) (*team.Team, error) {
	web, err := agent.New(agent.Config{
		ID:   "web-agent",
		Name: "Web Search Agent",
		Role: "Handle web search requests and general research",
		Instructions: []string{
			"Search for current and relevant information on financial topics",
			"Always include sources and publication dates",
			"Focus on reputable financial news sources",
			"Provide context and background information",
		},
		Tools:       []string{tools.DuckDuckGoSearch, tools.DuckDuckGoNews},
		AddDatetime: true,
	}, deps)
	if err != nil {
		return nil, err
	}
	research, err := agent.New(agent.Config{
		ID:   "research-agent",
		Name: "Research Specialist",
		Role: "Advanced research and analysis using AI-powered search",
		Instructions: []string{
			"You are a professional research specialist using comprehensive web search capabilities.",
			"Conduct thorough research on any topic using DuckDuckGo search to find authoritative sources.",
			"Focus on finding current and relevant information from reputable publications and websites.",
			"Use tables and structured formats to present your findings clearly.",
			"Always cite your sources and provide publication dates when available.",
			"Analyze trends, patterns, and insights from the research data.",
			"Provide well-reasoned analysis and actionable insights based on comprehensive web research.",
		},
		Tools:       []string{tools.DuckDuckGoSearch},
		AddDatetime: true,
	}, deps)
	if err != nil {
		return nil, err
	}
	return team.New(team.Config{
		ID:   ResearchTeamID,
		Name: "Advanced Research & Analysis Team",
		Description: "Strategic research and analysis team combining web intelligence, advanced reasoning tools, and collaborative " +
			"investigation to deliver evidence-based insights with structured analysis and clear recommendations",
		Instructions: []string{
			"You are a professional research and analysis team. Collaborate to provide comprehensive research and analysis on any topic.",
			"Combine web search, advanced research, and content analysis capabilities.",
			"Provide well-researched insights with clear evidence and reasoning.",
			"Use tables and structured formats to display information clearly.",
			"Always cite sources and verify information accuracy.",
			"Present findings in a logical, easy-to-follow format.",
			"Focus on actionable insights and practical recommendations.",
			"Only output the final consolidated analysis, not individual agent responses.",
			"Keep responses professional and informative.",
			"Use the think and analyze tools to reason step by step before answering.",
		},
		Members:     []*agent.Agent{web, research},
		Tools:       tools.ReasoningTools,
		HistoryRuns: historyRuns,
		Markdown:    true,
		AddDatetime: true,
	}, deps)
}
