// Package workflow runs staged pipelines of steps, quality-gated loops and
// conditional branches. Nodes execute strictly one at a time.
package workflow

import (
	"context"
	"maps"
	"slices"
)

// StepOutput is the immutable result of one step execution.
type StepOutput struct {
	StepName string `json:"step_name"`
	Content  string `json:"content"`
	Success  bool   `json:"success"`
}

// ExecutionInput is the user request a run was started with. It is never
// modified after the run starts.
type ExecutionInput struct {
	// Request is the single free-text field of the input schema.
	Request string
	// Fields holds the decoded input object when the request arrived as JSON.
	Fields map[string]any
}

// StepInput is the view of a run handed to step executors and evaluators.
type StepInput struct {
	input   ExecutionInput
	outputs []StepOutput
	state   map[string]any
}

// Request returns the original free-text request.
func (in StepInput) Request() string { return in.input.Request }

// Input returns the execution input.
func (in StepInput) Input() ExecutionInput { return in.input }

// Outputs returns a copy of every output produced so far, oldest first.
func (in StepInput) Outputs() []StepOutput { return slices.Clone(in.outputs) }

// PreviousStepContent is the content of the most recent output, or "".
func (in StepInput) PreviousStepContent() string {
	if len(in.outputs) == 0 {
		return ""
	}
	return in.outputs[len(in.outputs)-1].Content
}

// StepContent returns the latest content produced by the named step, or "".
func (in StepInput) StepContent(name string) string {
	for i := len(in.outputs) - 1; i >= 0; i-- {
		if in.outputs[i].StepName == name {
			return in.outputs[i].Content
		}
	}
	return ""
}

// SessionState is the run's shared state map, seeded from Workflow.SessionState.
func (in StepInput) SessionState() map[string]any { return in.state }

// Executor produces the output of a Step. Errors are not retried; they fail the run.
type Executor func(ctx context.Context, in StepInput) (StepOutput, error)

// EndCondition decides whether a Loop is done, given the outputs its body
// produced so far.
type EndCondition func(outputs []StepOutput) bool

// Evaluator decides whether a Condition runs its steps.
type Evaluator func(in StepInput) bool

// NewStepInput builds a StepInput outside a run, mainly for evaluating
// predicates and executors in isolation.
func NewStepInput(input ExecutionInput, outputs []StepOutput, state map[string]any) StepInput {
	return StepInput{input: input, outputs: slices.Clone(outputs), state: maps.Clone(state)}
}
