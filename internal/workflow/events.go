package workflow

// EventKind names a progress event of a run.
type EventKind string

const (
	EventWorkflowStarted        EventKind = "workflow_started"
	EventStepStarted            EventKind = "step_started"
	EventStepCompleted          EventKind = "step_completed"
	EventLoopIterationStarted   EventKind = "loop_iteration_started"
	EventLoopIterationCompleted EventKind = "loop_iteration_completed"
	EventCondition              EventKind = "condition"
	EventWorkflowCompleted      EventKind = "workflow_completed"
	EventWorkflowError          EventKind = "workflow_error"
)

// Event reports run progress. Output is set on step and workflow completion,
// Passed on loop iteration completion and condition evaluation, Err on
// workflow failure.
type Event struct {
	Kind          EventKind
	Name          string
	Iteration     int
	MaxIterations int
	Output        *StepOutput
	Passed        *bool
	Err           error
}
