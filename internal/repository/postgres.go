package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pessini/superpod-blog/internal/domain"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
	// quoted table identifiers
	sessions, messages, runs, events, memories, knowledge string
}

// NewPostgresStore connects to dsn and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string, tables Tables) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := NewPostgresStoreFromPool(ctx, pool, tables)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreFromPool wraps an existing pool. The store takes ownership of it.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool, tables Tables) (*PostgresStore, error) {
	tables = tables.withDefaults()
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	quote := func(name string) string { return pgx.Identifier{name}.Sanitize() }
	s := &PostgresStore{
		db:        pool,
		sessions:  quote(tables.Sessions),
		messages:  quote(tables.Messages),
		runs:      quote(tables.Runs),
		events:    quote(tables.Events),
		memories:  quote(tables.Memories),
		knowledge: quote(tables.Knowledge),
	}
	if err := s.migrate(ctx, tables); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Pool exposes the underlying pool for components sharing the database.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.db
}

func (s *PostgresStore) migrate(ctx context.Context, t Tables) error {
	idx := func(table, suffix string) string { return pgx.Identifier{"idx_" + table + "_" + suffix}.Sanitize() }
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.sessions + ` (
			session_id TEXT PRIMARY KEY,
			session_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			session_name TEXT,
			session_state JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx(t.Sessions, "user") + ` ON ` + s.sessions + `(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + s.runs + ` (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES ` + s.sessions + `(session_id),
			entity_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			user_id TEXT,
			status TEXT NOT NULL,
			input TEXT,
			content TEXT,
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx(t.Runs, "session") + ` ON ` + s.runs + `(session_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS ` + s.messages + ` (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES ` + s.sessions + `(session_id),
			run_id TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx(t.Messages, "session") + ` ON ` + s.messages + `(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + s.events + ` (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts BIGINT NOT NULL,
			type TEXT NOT NULL,
			payload JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx(t.Events, "run") + ` ON ` + s.events + `(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + s.memories + ` (
			memory_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			memory TEXT NOT NULL,
			topics JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx(t.Memories, "user") + ` ON ` + s.memories + `(user_id)`,
		`CREATE TABLE IF NOT EXISTS ` + s.knowledge + ` (
			content_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			url TEXT,
			table_name TEXT NOT NULL,
			chunks INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func rawOrNil(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func textOrNil(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func tagNotFound(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession creates a new session.
func (s *PostgresStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.sessions+` (session_id, session_type, user_id, entity_id, session_name, session_state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.SessionID, string(session.SessionType), session.UserID, session.EntityID,
		textOrNil(session.SessionName), rawOrNil(session.SessionState), session.CreatedAt, session.UpdatedAt)
	return err
}

const pgSessionColumns = `session_id, session_type, user_id, entity_id, COALESCE(session_name, ''), COALESCE(session_state::text, ''), created_at, updated_at`

func scanPGSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	var sessionType, state string
	if err := row.Scan(&session.SessionID, &sessionType, &session.UserID, &session.EntityID,
		&session.SessionName, &state, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	session.SessionType = domain.SessionType(sessionType)
	if state != "" {
		session.SessionState = json.RawMessage(state)
	}
	return &session, nil
}

// GetSession retrieves a session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := scanPGSession(s.db.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM `+s.sessions+` WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return session, err
}

// ListSessions lists sessions, newest first.
func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	query := `SELECT ` + pgSessionColumns + ` FROM ` + s.sessions + ` WHERE 1 = 1`
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND session_type = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanPGSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// UpdateSessionState replaces the session state.
func (s *PostgresStore) UpdateSessionState(ctx context.Context, sessionID string, state json.RawMessage) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.sessions+` SET session_state = $1, updated_at = $2 WHERE session_id = $3`,
		rawOrNil(state), time.Now(), sessionID)
	if err != nil {
		return err
	}
	return tagNotFound(tag)
}

// DeleteSession removes a session with its messages, runs and events.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		stmts := []string{
			`DELETE FROM ` + s.events + ` WHERE run_id IN (SELECT run_id FROM ` + s.runs + ` WHERE session_id = $1)`,
			`DELETE FROM ` + s.messages + ` WHERE session_id = $1`,
			`DELETE FROM ` + s.runs + ` WHERE session_id = $1`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt, sessionID); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM `+s.sessions+` WHERE session_id = $1`, sessionID)
		if err != nil {
			return err
		}
		return tagNotFound(tag)
	})
}

// CreateMessage creates a new message.
func (s *PostgresStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.messages+` (message_id, session_id, run_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		message.MessageID, message.SessionID, textOrNil(message.RunID), message.Role, message.Content, message.CreatedAt)
	return err
}

const pgMessageColumns = `message_id, session_id, COALESCE(run_id, ''), role, content, created_at`

// GetMessages retrieves messages for a session, oldest first.
func (s *PostgresStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT ` + pgMessageColumns + ` FROM ` + s.messages + ` WHERE session_id = $1 ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryMessages(ctx, query, sessionID)
}

// GetRecentRunMessages returns the messages of the last n completed runs.
func (s *PostgresStore) GetRecentRunMessages(ctx context.Context, sessionID string, n int) ([]domain.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	query := `SELECT ` + pgMessageColumns + ` FROM ` + s.messages + `
		WHERE session_id = $1 AND run_id IN (
			SELECT run_id FROM ` + s.runs + ` WHERE session_id = $1 AND status = $2 ORDER BY started_at DESC LIMIT $3
		) ORDER BY created_at ASC`
	return s.queryMessages(ctx, query, sessionID, string(domain.RunStatusCompleted), n)
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.RunID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateRun creates a new run.
func (s *PostgresStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.runs+` (run_id, session_id, entity_id, entity_type, user_id, status, input, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.RunID, run.SessionID, run.EntityID, string(run.EntityType), textOrNil(run.UserID), string(run.Status), run.Input, run.StartedAt)
	return err
}

const pgRunColumns = `run_id, session_id, entity_id, entity_type, COALESCE(user_id, ''), status, COALESCE(input, ''), COALESCE(content, ''), COALESCE(error, ''), started_at, ended_at`

func scanPGRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var entityType, status string
	if err := row.Scan(&run.RunID, &run.SessionID, &run.EntityID, &entityType, &run.UserID, &status,
		&run.Input, &run.Content, &run.Error, &run.StartedAt, &run.EndedAt); err != nil {
		return nil, err
	}
	run.EntityType = domain.EntityType(entityType)
	run.Status = domain.RunStatus(status)
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanPGRun(s.db.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM `+s.runs+` WHERE run_id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns lists the runs of a session, oldest first.
func (s *PostgresStore) ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgRunColumns+` FROM `+s.runs+` WHERE session_id = $1 ORDER BY started_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListStaleRuns returns RUNNING runs started before cutoff.
func (s *PostgresStore) ListStaleRuns(ctx context.Context, cutoff time.Time, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+pgRunColumns+` FROM `+s.runs+` WHERE status = $1 AND started_at < $2 ORDER BY started_at ASC LIMIT $3`,
		string(domain.RunStatusRunning), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CompleteRun moves a run to a terminal status.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status domain.RunStatus, content, errMsg string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.runs+` SET status = $1, content = $2, error = $3, ended_at = $4 WHERE run_id = $5`,
		string(status), textOrNil(content), textOrNil(errMsg), time.Now(), runID)
	if err != nil {
		return err
	}
	return tagNotFound(tag)
}

// CreateEvent creates a new event.
func (s *PostgresStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.events+` (event_id, run_id, ts, type, payload) VALUES ($1, $2, $3, $4, $5)`,
		event.EventID, event.RunID, event.Ts, string(event.Type), rawOrNil(event.Payload))
	return err
}

// GetEvents retrieves events for a run in timestamp order.
func (s *PostgresStore) GetEvents(ctx context.Context, runID string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, COALESCE(payload::text, '') FROM ` + s.events + ` WHERE run_id = $1 ORDER BY ts ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var evt domain.Event
		var typ, payload string
		if err := rows.Scan(&evt.EventID, &evt.RunID, &evt.Ts, &typ, &payload); err != nil {
			return nil, err
		}
		evt.Type = domain.EventType(typ)
		if payload != "" {
			evt.Payload = json.RawMessage(payload)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// UpsertMemory inserts or replaces a user memory.
func (s *PostgresStore) UpsertMemory(ctx context.Context, memory *domain.UserMemory) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.memories+` (memory_id, user_id, memory, topics, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (memory_id) DO UPDATE SET memory = EXCLUDED.memory, topics = EXCLUDED.topics, updated_at = EXCLUDED.updated_at`,
		memory.MemoryID, memory.UserID, memory.Memory, encodeTopics(memory.Topics), memory.UpdatedAt)
	return err
}

// ListMemories lists a user's memories, oldest first.
func (s *PostgresStore) ListMemories(ctx context.Context, userID string) ([]domain.UserMemory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT memory_id, user_id, memory, COALESCE(topics::text, ''), updated_at FROM `+s.memories+` WHERE user_id = $1 ORDER BY updated_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []domain.UserMemory
	for rows.Next() {
		var m domain.UserMemory
		var topics string
		if err := rows.Scan(&m.MemoryID, &m.UserID, &m.Memory, &topics, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Topics = decodeTopics(topics)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// DeleteMemory removes a memory.
func (s *PostgresStore) DeleteMemory(ctx context.Context, memoryID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM `+s.memories+` WHERE memory_id = $1`, memoryID)
	if err != nil {
		return err
	}
	return tagNotFound(tag)
}

// CreateKnowledgeContent registers a knowledge document.
func (s *PostgresStore) CreateKnowledgeContent(ctx context.Context, content *domain.KnowledgeContent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.knowledge+` (content_id, name, description, url, table_name, chunks, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		content.ContentID, content.Name, textOrNil(content.Description), textOrNil(content.URL),
		content.Table, content.Chunks, content.Status, content.CreatedAt)
	return err
}

// ListKnowledgeContents lists documents, optionally for a single vector table.
func (s *PostgresStore) ListKnowledgeContents(ctx context.Context, table string) ([]domain.KnowledgeContent, error) {
	query := `SELECT content_id, name, COALESCE(description, ''), COALESCE(url, ''), table_name, chunks, status, created_at FROM ` + s.knowledge
	var args []any
	if table != "" {
		query += ` WHERE table_name = $1`
		args = append(args, table)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []domain.KnowledgeContent
	for rows.Next() {
		var c domain.KnowledgeContent
		if err := rows.Scan(&c.ContentID, &c.Name, &c.Description, &c.URL, &c.Table, &c.Chunks, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}
