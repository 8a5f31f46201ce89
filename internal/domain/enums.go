// Package domain defines the core domain models shared by the backend and the chat gateway.
package domain

import (
	"errors"
	"fmt"
)

// EntityType is the closed set of runnable entities exposed by AgentOS.
type EntityType string

const (
	EntityAgent    EntityType = "agent"
	EntityTeam     EntityType = "team"
	EntityWorkflow EntityType = "workflow"
)

// EntityTypes lists every entity type in discovery order.
var EntityTypes = []EntityType{EntityAgent, EntityWorkflow, EntityTeam}

// ErrUnknownEntityType is returned for values outside the closed entity set.
var ErrUnknownEntityType = errors.New("unknown entity type")

// ParseEntityType validates a raw entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(s); t {
	case EntityAgent, EntityTeam, EntityWorkflow:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
}

// SessionType maps the entity type to the session kind stored by the backend.
func (t EntityType) SessionType() SessionType {
	switch t {
	case EntityAgent:
		return SessionTypeAgent
	case EntityTeam:
		return SessionTypeTeam
	case EntityWorkflow:
		return SessionTypeWorkflow
	}
	panic(fmt.Sprintf("domain: unhandled entity type %q", string(t)))
}

// SessionType tags a session with the kind of entity that owns it.
type SessionType string

const (
	SessionTypeAgent    SessionType = "agent"
	SessionTypeTeam     SessionType = "team"
	SessionTypeWorkflow SessionType = "workflow"
)

// EntityType is the inverse of EntityType.SessionType.
func (t SessionType) EntityType() (EntityType, error) {
	return ParseEntityType(string(t))
}

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusError     RunStatus = "ERROR"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// EventType represents the type of a persisted run event.
type EventType string

const (
	EventTypeRunStarted EventType = "run_started"
	EventTypeUserInput  EventType = "user_input"
	EventTypeRunDone    EventType = "run_done"
	EventTypeRunFailed  EventType = "run_failed"

	// LLM call events
	EventTypeLLMCallStarted EventType = "llm_call_started"
	EventTypeLLMCallDone    EventType = "llm_call_done"

	// Tool events
	EventTypePolicyDecision EventType = "policy_decision"
	EventTypeToolCallDone   EventType = "tool_call_done"
	EventTypeMemberDelegate EventType = "member_delegated"

	// Workflow events
	EventTypeStepStarted       EventType = "step_started"
	EventTypeStepCompleted     EventType = "step_completed"
	EventTypeLoopIteration     EventType = "loop_iteration"
	EventTypeConditionDecision EventType = "condition_decision"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)
