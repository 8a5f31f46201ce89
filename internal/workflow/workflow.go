package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrInvalidInput    = errors.New("invalid workflow input")
	ErrInvalidWorkflow = errors.New("invalid workflow definition")
)

var tracer = otel.Tracer("superpod/workflow")

// Workflow is an ordered pipeline of nodes.
type Workflow struct {
	ID          string
	Name        string
	Description string
	// InputField names the free-text field of the input schema, e.g. "research_request".
	InputField string
	Steps      []Node
	// SessionState seeds the state map shared by the steps of one run.
	SessionState map[string]any
}

// Validate checks the pipeline for missing executors, predicates and names.
func (w *Workflow) Validate() error {
	if w.ID == "" || w.Name == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidWorkflow)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidWorkflow, w.ID)
	}
	return validateNodes(w.ID, w.Steps)
}

func validateNodes(path string, nodes []Node) error {
	for i, n := range nodes {
		switch n := n.(type) {
		case *Step:
			if n.Name == "" || n.Executor == nil {
				return fmt.Errorf("%w: %s[%d] step needs a name and an executor", ErrInvalidWorkflow, path, i)
			}
		case *Loop:
			if n.EndCondition == nil || len(n.Steps) == 0 {
				return fmt.Errorf("%w: %s[%d] loop needs steps and an end condition", ErrInvalidWorkflow, path, i)
			}
			if err := validateNodes(path+"/"+n.Name, n.Steps); err != nil {
				return err
			}
		case *Condition:
			if n.Evaluator == nil || len(n.Steps) == 0 {
				return fmt.Errorf("%w: %s[%d] condition needs steps and an evaluator", ErrInvalidWorkflow, path, i)
			}
			if err := validateNodes(path+"/"+n.Name, n.Steps); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s[%d] unknown node %T", ErrInvalidWorkflow, path, i, n)
		}
	}
	return nil
}

// StepNames lists the names of the top-level nodes.
func (w *Workflow) StepNames() []string {
	names := make([]string, 0, len(w.Steps))
	for _, n := range w.Steps {
		names = append(names, n.NodeName())
	}
	return names
}

// ParseInput accepts either a JSON object carrying InputField or plain text.
func (w *Workflow) ParseInput(raw string) (ExecutionInput, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ExecutionInput{}, fmt.Errorf("%w: empty request", ErrInvalidInput)
	}
	if strings.HasPrefix(trimmed, "{") && w.InputField != "" {
		var fields map[string]any
		if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
			req, ok := fields[w.InputField].(string)
			if !ok || strings.TrimSpace(req) == "" {
				return ExecutionInput{}, fmt.Errorf("%w: %q is required", ErrInvalidInput, w.InputField)
			}
			return ExecutionInput{Request: req, Fields: fields}, nil
		}
	}
	return ExecutionInput{Request: raw, Fields: map[string]any{w.InputField: raw}}, nil
}

// Result is the outcome of a completed run.
type Result struct {
	Content      string
	Outputs      []StepOutput
	SessionState map[string]any
}

// Run executes the pipeline. emit, when non-nil, receives progress events in order.
func (w *Workflow) Run(ctx context.Context, input ExecutionInput, emit func(Event)) (*Result, error) {
	ctx, span := tracer.Start(ctx, "workflow.run")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.id", w.ID))

	if emit == nil {
		emit = func(Event) {}
	}
	r := &runner{input: input, state: maps.Clone(w.SessionState), emit: emit}
	if r.state == nil {
		r.state = map[string]any{}
	}

	emit(Event{Kind: EventWorkflowStarted, Name: w.Name})
	if _, err := r.runNodes(ctx, w.Steps); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(Event{Kind: EventWorkflowError, Name: w.Name, Err: err})
		return nil, err
	}

	res := &Result{Outputs: r.outputs, SessionState: r.state}
	if n := len(r.outputs); n > 0 {
		res.Content = r.outputs[n-1].Content
	}
	emit(Event{Kind: EventWorkflowCompleted, Name: w.Name, Output: &StepOutput{StepName: w.Name, Content: res.Content, Success: true}})
	return res, nil
}

type runner struct {
	input   ExecutionInput
	outputs []StepOutput
	state   map[string]any
	emit    func(Event)
}

func (r *runner) stepInput() StepInput {
	return StepInput{input: r.input, outputs: r.outputs[:len(r.outputs):len(r.outputs)], state: r.state}
}

// runNodes executes nodes in order and returns the outputs they produced.
func (r *runner) runNodes(ctx context.Context, nodes []Node) ([]StepOutput, error) {
	var produced []StepOutput
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			outs []StepOutput
			err  error
		)
		switch n := n.(type) {
		case *Step:
			outs, err = r.runStep(ctx, n)
		case *Loop:
			outs, err = r.runLoop(ctx, n)
		case *Condition:
			outs, err = r.runCondition(ctx, n)
		default:
			err = fmt.Errorf("%w: unknown node %T", ErrInvalidWorkflow, n)
		}
		if err != nil {
			return nil, err
		}
		produced = append(produced, outs...)
	}
	return produced, nil
}

func (r *runner) runStep(ctx context.Context, s *Step) ([]StepOutput, error) {
	ctx, span := tracer.Start(ctx, "workflow.step")
	defer span.End()
	span.SetAttributes(attribute.String("step.name", s.Name))

	r.emit(Event{Kind: EventStepStarted, Name: s.Name})
	out, err := s.Executor(ctx, r.stepInput())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("step %q: %w", s.Name, err)
	}
	if out.StepName == "" {
		out.StepName = s.Name
	}
	r.outputs = append(r.outputs, out)
	r.emit(Event{Kind: EventStepCompleted, Name: s.Name, Output: &out})
	return []StepOutput{out}, nil
}

func (r *runner) runLoop(ctx context.Context, l *Loop) ([]StepOutput, error) {
	limit := l.maxIterations()
	var produced []StepOutput
	for i := 1; i <= limit; i++ {
		r.emit(Event{Kind: EventLoopIterationStarted, Name: l.Name, Iteration: i, MaxIterations: limit})
		outs, err := r.runNodes(ctx, l.Steps)
		if err != nil {
			return nil, err
		}
		produced = append(produced, outs...)

		done := l.EndCondition != nil && l.EndCondition(produced)
		r.emit(Event{Kind: EventLoopIterationCompleted, Name: l.Name, Iteration: i, MaxIterations: limit, Passed: &done})
		if done {
			break
		}
	}
	return produced, nil
}

func (r *runner) runCondition(ctx context.Context, c *Condition) ([]StepOutput, error) {
	passed := c.Evaluator != nil && c.Evaluator(r.stepInput())
	r.emit(Event{Kind: EventCondition, Name: c.Name, Passed: &passed})
	if !passed {
		return nil, nil
	}
	return r.runNodes(ctx, c.Steps)
}
