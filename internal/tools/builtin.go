package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pessini/superpod-blog/internal/adapter/search"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
)

// Built-in tool names.
const (
	DuckDuckGoSearch    = "duckduckgo_search"
	DuckDuckGoNews      = "duckduckgo_news"
	Wikipedia           = "wikipedia"
	Think               = "think"
	Analyze             = "analyze"
	SearchKnowledgeBase = "search_knowledge_base"
	GetChatHistory      = "get_chat_history"
	UpdateUserMemory    = "update_user_memory"
	DelegateTask        = "delegate_task_to_member"
)

// ReasoningTools is the think/analyze pair.
var ReasoningTools = []string{Think, Analyze}

// WebSearcher is the subset of search.Client the web tools use.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
	Wikipedia(ctx context.Context, query string) (*search.Summary, error)
}

// Deps are the services built-in tools call into.
type Deps struct {
	Web   WebSearcher
	Store repository.Store
	Now   func() time.Time
}

var errNoSession = errors.New("no session in run context")

// RegisterBuiltins registers every built-in tool on r.
func RegisterBuiltins(r *Registry, deps Deps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	for _, t := range builtins(deps) {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func decode(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func str(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
func num(desc string) map[string]any { return map[string]any{"type": "integer", "description": desc} }

func builtins(d Deps) []Tool {
	return []Tool{
		{
			Name:        DuckDuckGoSearch,
			Description: "Search the web with DuckDuckGo and return the top results with their URLs.",
			Parameters:  object([]string{"query"}, map[string]any{"query": str("The search query."), "max_results": num("Number of results to return (default 5).")}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Query      string `json:"query"`
					MaxResults int    `json:"max_results"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				if d.Web == nil {
					return "", errors.New("web search is not configured")
				}
				results, err := d.Web.Search(ctx, args.Query, args.MaxResults)
				if err != nil {
					return "", err
				}
				return search.FormatResults(args.Query, results), nil
			},
		},
		{
			Name:        DuckDuckGoNews,
			Description: "Search recent news with DuckDuckGo.",
			Parameters:  object([]string{"query"}, map[string]any{"query": str("The news topic."), "max_results": num("Number of results to return (default 5).")}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Query      string `json:"query"`
					MaxResults int    `json:"max_results"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				if d.Web == nil {
					return "", errors.New("web search is not configured")
				}
				q := args.Query + " news"
				results, err := d.Web.Search(ctx, q, args.MaxResults)
				if err != nil {
					return "", err
				}
				return search.FormatResults(q, results), nil
			},
		},
		{
			Name:        Wikipedia,
			Description: "Look up the Wikipedia summary of a topic.",
			Parameters:  object([]string{"query"}, map[string]any{"query": str("Page title or topic.")}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Query string `json:"query"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				if d.Web == nil {
					return "", errors.New("web search is not configured")
				}
				s, err := d.Web.Wikipedia(ctx, args.Query)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("# %s\n\n%s\n\nSource: %s", s.Title, s.Extract, s.URL), nil
			},
		},
		{
			Name:        Think,
			Description: "Use as a scratchpad to reason about the problem step by step before answering.",
			Parameters: object([]string{"title", "thought"}, map[string]any{
				"title":      str("A concise title for this step."),
				"thought":    str("Your detailed thought for this step."),
				"action":     str("What you will do based on this thought."),
				"confidence": map[string]any{"type": "number", "description": "Confidence between 0.0 and 1.0."},
			}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Title      string  `json:"title"`
					Thought    string  `json:"thought"`
					Action     string  `json:"action"`
					Confidence float64 `json:"confidence"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				body := args.Thought
				if args.Action != "" {
					body += "\nAction: " + args.Action
				}
				return record(ctx, "think", args.Title, body, args.Confidence), nil
			},
		},
		{
			Name:        Analyze,
			Description: "Analyze the result of a previous step and decide what to do next.",
			Parameters: object([]string{"title", "result", "analysis"}, map[string]any{
				"title":       str("A concise title for this step."),
				"result":      str("The outcome being analyzed."),
				"analysis":    str("Your analysis of the result."),
				"next_action": str("One of continue, validate or final_answer."),
				"confidence":  map[string]any{"type": "number", "description": "Confidence between 0.0 and 1.0."},
			}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Title      string  `json:"title"`
					Result     string  `json:"result"`
					Analysis   string  `json:"analysis"`
					NextAction string  `json:"next_action"`
					Confidence float64 `json:"confidence"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				next := args.NextAction
				if next == "" {
					next = "continue"
				}
				body := fmt.Sprintf("Result: %s\nAnalysis: %s\nNext: %s", args.Result, args.Analysis, next)
				return record(ctx, "analyze", args.Title, body, args.Confidence), nil
			},
		},
		{
			Name:        SearchKnowledgeBase,
			Description: "Search the knowledge base for information relevant to the query.",
			Parameters:  object([]string{"query"}, map[string]any{"query": str("The search terms.")}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Query string `json:"query"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				kb := FromContext(ctx).Knowledge
				if kb == nil {
					return "", errors.New("no knowledge base attached")
				}
				return kb.SearchText(ctx, args.Query, 5)
			},
		},
		{
			Name:        GetChatHistory,
			Description: "Read earlier messages of this conversation.",
			Parameters:  object(nil, map[string]any{"num_chats": num("Maximum number of messages to return (default all).")}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					NumChats int `json:"num_chats"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				rc := FromContext(ctx)
				if rc.SessionID == "" || d.Store == nil {
					return "", errNoSession
				}
				msgs, err := d.Store.GetMessages(ctx, rc.SessionID, 0)
				if err != nil {
					return "", err
				}
				if args.NumChats > 0 && len(msgs) > args.NumChats {
					msgs = msgs[len(msgs)-args.NumChats:]
				}
				type entry struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				}
				out := make([]entry, len(msgs))
				for i, m := range msgs {
					out[i] = entry{Role: m.Role, Content: m.Content}
				}
				b, err := json.Marshal(out)
				return string(b), err
			},
		},
		{
			Name:        UpdateUserMemory,
			Description: "Remember a fact about the current user for future conversations.",
			Parameters: object([]string{"memory"}, map[string]any{
				"memory": str("The fact to remember, written in the third person."),
				"topics": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					Memory string   `json:"memory"`
					Topics []string `json:"topics"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				rc := FromContext(ctx)
				if d.Store == nil {
					return "", errors.New("memory storage is not configured")
				}
				if strings.TrimSpace(args.Memory) == "" {
					return "", errors.New("memory is required")
				}
				m := &domain.UserMemory{
					MemoryID:  uuid.NewString(),
					UserID:    rc.UserID,
					Memory:    strings.TrimSpace(args.Memory),
					Topics:    args.Topics,
					UpdatedAt: d.Now().UTC(),
				}
				if err := d.Store.UpsertMemory(ctx, m); err != nil {
					return "", err
				}
				return "Memory updated: " + m.Memory, nil
			},
		},
		{
			Name:        DelegateTask,
			Description: "Delegate a task to one team member and receive its answer.",
			Parameters: object([]string{"member_id", "task"}, map[string]any{
				"member_id": str("The id of the member to delegate to."),
				"task":      str("A clear description of the task for the member."),
			}),
			Exec: func(ctx context.Context, raw json.RawMessage) (string, error) {
				var args struct {
					MemberID string `json:"member_id"`
					Task     string `json:"task"`
				}
				if err := decode(raw, &args); err != nil {
					return "", err
				}
				rc := FromContext(ctx)
				if rc.Delegate == nil {
					return "", errors.New("delegation is only available to team leaders")
				}
				return rc.Delegate(ctx, args.MemberID, args.Task)
			},
		},
	}
}

func record(ctx context.Context, kind, title, body string, confidence float64) string {
	if confidence > 0 {
		body += fmt.Sprintf("\nConfidence: %.2f", confidence)
	}
	pad := FromContext(ctx).Reasoning
	if pad == nil {
		pad = &Scratchpad{}
	}
	return pad.Add(kind, title, body)
}
