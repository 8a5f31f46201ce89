package domain

// CreateSessionRequest is the body of POST /sessions. Exactly one of the entity
// ids is set, matching SessionType.
type CreateSessionRequest struct {
	UserID      string      `json:"user_id"`
	SessionType SessionType `json:"session_type,omitempty"`
	AgentID     string      `json:"agent_id,omitempty"`
	TeamID      string      `json:"team_id,omitempty"`
	WorkflowID  string      `json:"workflow_id,omitempty"`
	SessionName string      `json:"session_name,omitempty"`
}

// RunRequest is the body of POST /{agents,teams,workflows}/:id/runs.
type RunRequest struct {
	Message   string `json:"message" form:"message"`
	SessionID string `json:"session_id,omitempty" form:"session_id"`
	UserID    string `json:"user_id,omitempty" form:"user_id"`
	Stream    bool   `json:"stream,omitempty" form:"stream"`
}

// RunResponse is the non-streaming result of a run.
type RunResponse struct {
	RunID      string     `json:"run_id"`
	SessionID  string     `json:"session_id"`
	AgentID    string     `json:"agent_id,omitempty"`
	TeamID     string     `json:"team_id,omitempty"`
	WorkflowID string     `json:"workflow_id,omitempty"`
	Content    string     `json:"content"`
	Status     RunStatus  `json:"status"`
	Steps      []StepInfo `json:"step_results,omitempty"`
}

// StepInfo summarizes one workflow step output.
type StepInfo struct {
	StepName string `json:"step_name"`
	Content  string `json:"content"`
	Success  bool   `json:"success"`
}

// EntitySummary is the list view of an entity.
type EntitySummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Model       string   `json:"model,omitempty"`
	Members     []string `json:"members,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	InputSchema []string `json:"input_schema,omitempty"`
}

// ConfigResponse is the body of GET /config.
type ConfigResponse struct {
	OSID            string              `json:"os_id"`
	Databases       []string            `json:"databases"`
	AvailableModels []string            `json:"available_models,omitempty"`
	QuickPrompts    map[string][]string `json:"quick_prompts,omitempty"`
	Agents          []EntitySummary     `json:"agents"`
	Teams           []EntitySummary     `json:"teams"`
	Workflows       []EntitySummary     `json:"workflows"`
}

// ErrorResponse is the JSON error body returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionDetail is the body of GET /sessions/:id.
type SessionDetail struct {
	Session  Session   `json:"session"`
	Messages []Message `json:"messages"`
	Runs     []Run     `json:"runs,omitempty"`
}
