package domain

import (
	"encoding/json"
	"time"
)

// Session is a durable (user, entity) conversation context.
type Session struct {
	SessionID    string          `json:"session_id"`
	SessionType  SessionType     `json:"session_type"`
	UserID       string          `json:"user_id"`
	EntityID     string          `json:"-"`
	SessionName  string          `json:"session_name,omitempty"`
	SessionState json.RawMessage `json:"session_state,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MarshalJSON exposes the owning entity under agent_id, team_id or workflow_id.
func (s Session) MarshalJSON() ([]byte, error) {
	type plain Session
	out := struct {
		plain
		AgentID    string `json:"agent_id,omitempty"`
		TeamID     string `json:"team_id,omitempty"`
		WorkflowID string `json:"workflow_id,omitempty"`
	}{plain: plain(s)}
	switch s.SessionType {
	case SessionTypeAgent:
		out.AgentID = s.EntityID
	case SessionTypeTeam:
		out.TeamID = s.EntityID
	case SessionTypeWorkflow:
		out.WorkflowID = s.EntityID
	}
	return json.Marshal(out)
}

// Message represents a single message in a session.
type Message struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	RunID     string    `json:"run_id,omitempty"`
	Role      string    `json:"role"` // user, assistant, system
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMemory is a fact an agent chose to remember about a user.
type UserMemory struct {
	MemoryID  string    `json:"memory_id"`
	UserID    string    `json:"user_id"`
	Memory    string    `json:"memory"`
	Topics    []string  `json:"topics,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KnowledgeContent is a document registered in a knowledge base.
type KnowledgeContent struct {
	ContentID   string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Table       string    `json:"table"`
	Chunks      int       `json:"chunks"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
