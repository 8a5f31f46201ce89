package domain

// Stream event names emitted on the SSE run endpoints.
const (
	StreamRunStarted        = "RunStarted"
	StreamRunContent        = "RunContent"
	StreamRunCompleted      = "RunCompleted"
	StreamRunError          = "RunError"
	StreamToolCallStarted   = "ToolCallStarted"
	StreamToolCallCompleted = "ToolCallCompleted"
	StreamMemberResponse    = "TeamMemberResponse"

	StreamWorkflowStarted        = "WorkflowStarted"
	StreamStepStarted            = "StepStarted"
	StreamStepCompleted          = "StepCompleted"
	StreamLoopIterationStarted   = "LoopIterationStarted"
	StreamLoopIterationCompleted = "LoopIterationCompleted"
	StreamConditionExecution     = "ConditionExecution"
	StreamWorkflowCompleted      = "WorkflowCompleted"
	StreamWorkflowError          = "WorkflowError"
)

// StreamEvent is one SSE frame of a run. Only Content is user-facing text;
// intermediate workflow outputs travel in StepOutput.
type StreamEvent struct {
	Event           string `json:"event"`
	RunID           string `json:"run_id,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	AgentID         string `json:"agent_id,omitempty"`
	TeamID          string `json:"team_id,omitempty"`
	WorkflowID      string `json:"workflow_id,omitempty"`
	Content         string `json:"content,omitempty"`
	StepName        string `json:"step_name,omitempty"`
	StepOutput      string `json:"step_output,omitempty"`
	Iteration       int    `json:"iteration,omitempty"`
	MaxIterations   int    `json:"max_iterations,omitempty"`
	ConditionResult *bool  `json:"condition_result,omitempty"`
	ToolName        string `json:"tool_name,omitempty"`
	MemberID        string `json:"member_id,omitempty"`
	MemberResponse  string `json:"member_response,omitempty"`
	Error           string `json:"error,omitempty"`
	CreatedAt       int64  `json:"created_at"`
}
