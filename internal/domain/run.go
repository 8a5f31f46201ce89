package domain

import (
	"encoding/json"
	"time"
)

// Run represents a single execution of an agent, team or workflow.
type Run struct {
	RunID      string     `json:"run_id"`
	SessionID  string     `json:"session_id"`
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	UserID     string     `json:"user_id,omitempty"`
	Status     RunStatus  `json:"status"`
	Input      string     `json:"input"`
	Content    string     `json:"content,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Event represents a trace event for replay.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RunStartedPayload is the payload of run_started.
type RunStartedPayload struct {
	SessionID  string     `json:"session_id"`
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	UserID     string     `json:"user_id,omitempty"`
}

// UserInputPayload is the payload of user_input.
type UserInputPayload struct {
	Content string `json:"content"`
}

// RunDonePayload is the payload of run_done and run_failed.
type RunDonePayload struct {
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// LLMCallStartedPayload is the payload of llm_call_started.
type LLMCallStartedPayload struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
	Stream    bool   `json:"stream"`
}

// LLMCallDonePayload is the payload of llm_call_done.
type LLMCallDonePayload struct {
	RequestID        string `json:"request_id"`
	Model            string `json:"model"`
	LatencyMs        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ToolCallPayload is the payload of tool_call_done and policy_decision.
type ToolCallPayload struct {
	CallID string `json:"call_id,omitempty"`
	Tool   string `json:"tool"`
	Args   string `json:"args,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MemberDelegatedPayload is the payload of member_delegated.
type MemberDelegatedPayload struct {
	MemberID string `json:"member_id"`
	Task     string `json:"task"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WorkflowEventPayload is the payload of the step, loop and condition events.
type WorkflowEventPayload struct {
	Name          string `json:"name"`
	Iteration     int    `json:"iteration,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	Passed        *bool  `json:"passed,omitempty"`
	Content       string `json:"content,omitempty"`
}
