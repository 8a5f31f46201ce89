// Package repository persists sessions, runs, events, memories and knowledge
// contents in PostgreSQL or SQLite.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pessini/superpod-blog/internal/domain"
)

// DatabaseID identifies the session database in the AgentOS config.
const DatabaseID = "agent-os"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidTable = errors.New("invalid table name")
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
	UpdateSessionState(ctx context.Context, sessionID string, state json.RawMessage) error
	DeleteSession(ctx context.Context, sessionID string) error

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	// GetRecentRunMessages returns the messages of the last n completed runs, oldest first.
	GetRecentRunMessages(ctx context.Context, sessionID string, n int) ([]domain.Message, error)

	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error)
	CompleteRun(ctx context.Context, runID string, status domain.RunStatus, content, errMsg string) error
	// ListStaleRuns returns RUNNING runs started before cutoff, oldest first.
	ListStaleRuns(ctx context.Context, cutoff time.Time, limit int) ([]domain.Run, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, limit int) ([]domain.Event, error)

	// Memory operations
	UpsertMemory(ctx context.Context, memory *domain.UserMemory) error
	ListMemories(ctx context.Context, userID string) ([]domain.UserMemory, error)
	DeleteMemory(ctx context.Context, memoryID string) error

	// Knowledge content operations
	CreateKnowledgeContent(ctx context.Context, content *domain.KnowledgeContent) error
	ListKnowledgeContents(ctx context.Context, table string) ([]domain.KnowledgeContent, error)

	// Lifecycle
	Close() error
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	UserID string
	Type   domain.SessionType
	Limit  int
}

// Tables holds the logical table names. Agents that need isolated storage
// override them.
type Tables struct {
	Sessions  string
	Messages  string
	Runs      string
	Events    string
	Memories  string
	Knowledge string
}

// DefaultTables returns the standard table names.
func DefaultTables() Tables {
	return Tables{
		Sessions:  "agno_sessions",
		Messages:  "agno_messages",
		Runs:      "agno_runs",
		Events:    "agno_events",
		Memories:  "agno_memories",
		Knowledge: "agno_knowledge",
	}
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Validate rejects names that are not plain lower-case identifiers.
func (t Tables) Validate() error {
	for _, name := range []string{t.Sessions, t.Messages, t.Runs, t.Events, t.Memories, t.Knowledge} {
		if !identRe.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidTable, name)
		}
	}
	return nil
}

// withDefaults fills empty names from DefaultTables.
func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.Sessions, d.Sessions)
	fill(&t.Messages, d.Messages)
	fill(&t.Runs, d.Runs)
	fill(&t.Events, d.Events)
	fill(&t.Memories, d.Memories)
	fill(&t.Knowledge, d.Knowledge)
	return t
}

// IsPostgresDSN reports whether dsn points at PostgreSQL.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the database named by dsn and migrates the schema.
func Open(ctx context.Context, dsn string, tables Tables) (Store, error) {
	if IsPostgresDSN(dsn) {
		return NewPostgresStore(ctx, dsn, tables)
	}
	return NewSQLiteStore(dsn, tables)
}

func encodeTopics(topics []string) string {
	if len(topics) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(topics)
	return string(b)
}

func decodeTopics(raw string) []string {
	var topics []string
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil
	}
	return topics
}
