// Package policy decides whether an agent may execute a tool call.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

// Input is the document a policy sees for one tool call.
type Input struct {
	AgentID      string          `json:"agent_id"`
	SessionID    string          `json:"session_id"`
	UserID       string          `json:"user_id"`
	ToolName     string          `json:"tool_name"`
	AllowedTools []string        `json:"allowed_tools"`
	Args         json.RawMessage `json:"-"`
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reasons []string
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles policyContent. The module must define a deny set of
// reason strings in package tool_policy.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.deny"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy at path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return NewEngine(ctx, string(b))
}

// Evaluate checks one tool call.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	doc := map[string]any{
		"agent_id":      in.AgentID,
		"session_id":    in.SessionID,
		"user_id":       in.UserID,
		"tool_name":     in.ToolName,
		"allowed_tools": in.AllowedTools,
		"args":          map[string]any{},
	}
	if len(in.Args) > 0 {
		var args any
		if err := json.Unmarshal(in.Args, &args); err == nil {
			doc["args"] = args
		}
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allowed: true}, nil
	}

	var reasons []string
	if set, ok := results[0].Expressions[0].Value.([]interface{}); ok {
		for _, v := range set {
			if s, ok := v.(string); ok {
				reasons = append(reasons, s)
			}
		}
	}
	sort.Strings(reasons)
	return Decision{Allowed: len(reasons) == 0, Reasons: reasons}, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package tool_policy

tool_enabled {
	input.allowed_tools[_] == input.tool_name
}

# Tools must be declared on the agent
deny[msg] {
	not tool_enabled
	msg := sprintf("tool %s is not enabled for %s", [input.tool_name, input.agent_id])
}

deny[msg] {
	startswith(input.tool_name, "duckduckgo_")
	input.args.max_results > 30
	msg := "max_results must not exceed 30"
}

deny[msg] {
	input.tool_name == "update_user_memory"
	input.user_id == ""
	msg := "memories require a user id"
}
`
