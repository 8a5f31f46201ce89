package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pessini/superpod-blog/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	tables Tables
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string, tables Tables) (*SQLiteStore, error) {
	tables = tables.withDefaults()
	if err := tables.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, tables: tables}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	t := s.tables
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ` + t.Sessions + ` (
			session_id TEXT PRIMARY KEY,
			session_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			session_name TEXT,
			session_state TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.Sessions + `_user ON ` + t.Sessions + `(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + t.Runs + ` (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			user_id TEXT,
			status TEXT NOT NULL,
			input TEXT,
			content TEXT,
			error TEXT,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			FOREIGN KEY (session_id) REFERENCES ` + t.Sessions + `(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.Runs + `_session ON ` + t.Runs + `(session_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS ` + t.Messages + ` (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			run_id TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES ` + t.Sessions + `(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.Messages + `_session ON ` + t.Messages + `(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + t.Events + ` (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.Events + `_run ON ` + t.Events + `(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + t.Memories + ` (
			memory_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			memory TEXT NOT NULL,
			topics TEXT,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.Memories + `_user ON ` + t.Memories + `(user_id)`,
		`CREATE TABLE IF NOT EXISTS ` + t.Knowledge + ` (
			content_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			url TEXT,
			table_name TEXT NOT NULL,
			chunks INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.tables.Sessions+` (session_id, session_type, user_id, entity_id, session_name, session_state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.SessionType, session.UserID, session.EntityID,
		nullString(session.SessionName), nullStringBytes(session.SessionState), session.CreatedAt, session.UpdatedAt)
	return err
}

const sqliteSessionColumns = `session_id, session_type, user_id, entity_id, session_name, session_state, created_at, updated_at`

func scanSQLiteSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	var session domain.Session
	var name, state sql.NullString
	if err := row.Scan(&session.SessionID, &session.SessionType, &session.UserID, &session.EntityID,
		&name, &state, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	session.SessionName = name.String
	if state.Valid && state.String != "" {
		session.SessionState = json.RawMessage(state.String)
	}
	return &session, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM `+s.tables.Sessions+` WHERE session_id = ?`, sessionID)
	session, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return session, err
}

// ListSessions lists sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	query := `SELECT ` + sqliteSessionColumns + ` FROM ` + s.tables.Sessions + ` WHERE 1 = 1`
	var args []interface{}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		query += ` AND session_type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// UpdateSessionState replaces the session state.
func (s *SQLiteStore) UpdateSessionState(ctx context.Context, sessionID string, state json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+s.tables.Sessions+` SET session_state = ?, updated_at = ? WHERE session_id = ?`,
		nullStringBytes(state), time.Now(), sessionID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteSession removes a session with its messages, runs and events.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t := s.tables
	stmts := []string{
		`DELETE FROM ` + t.Events + ` WHERE run_id IN (SELECT run_id FROM ` + t.Runs + ` WHERE session_id = ?)`,
		`DELETE FROM ` + t.Messages + ` WHERE session_id = ?`,
		`DELETE FROM ` + t.Runs + ` WHERE session_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, sessionID); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM `+t.Sessions+` WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateMessage creates a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.tables.Messages+` (message_id, session_id, run_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, nullString(message.RunID), message.Role, message.Content, message.CreatedAt)
	return err
}

// GetMessages retrieves messages for a session, oldest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT message_id, session_id, run_id, role, content, created_at FROM ` + s.tables.Messages +
		` WHERE session_id = ? ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryMessages(ctx, query, sessionID)
}

// GetRecentRunMessages returns the messages of the last n completed runs.
func (s *SQLiteStore) GetRecentRunMessages(ctx context.Context, sessionID string, n int) ([]domain.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	t := s.tables
	query := `SELECT message_id, session_id, run_id, role, content, created_at FROM ` + t.Messages + `
		WHERE session_id = ? AND run_id IN (
			SELECT run_id FROM ` + t.Runs + ` WHERE session_id = ? AND status = ? ORDER BY started_at DESC LIMIT ?
		) ORDER BY created_at ASC`
	return s.queryMessages(ctx, query, sessionID, sessionID, domain.RunStatusCompleted, n)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var runID sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &runID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.RunID = runID.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.tables.Runs+` (run_id, session_id, entity_id, entity_type, user_id, status, input, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.SessionID, run.EntityID, run.EntityType, nullString(run.UserID), run.Status, run.Input, run.StartedAt)
	return err
}

const sqliteRunColumns = `run_id, session_id, entity_id, entity_type, user_id, status, input, content, error, started_at, ended_at`

func scanSQLiteRun(row interface{ Scan(...any) error }) (*domain.Run, error) {
	var run domain.Run
	var userID, input, content, errMsg sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&run.RunID, &run.SessionID, &run.EntityID, &run.EntityType, &userID, &run.Status,
		&input, &content, &errMsg, &run.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	run.UserID = userID.String
	run.Input = input.String
	run.Content = content.String
	run.Error = errMsg.String
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM `+s.tables.Runs+` WHERE run_id = ?`, runID)
	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns lists the runs of a session, oldest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, sessionID string) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM `+s.tables.Runs+` WHERE session_id = ? ORDER BY started_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListStaleRuns filters on started_at in Go; SQLite stores the timestamps as text.
func (s *SQLiteStore) ListStaleRuns(ctx context.Context, cutoff time.Time, limit int) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM `+s.tables.Runs+` WHERE status = ? ORDER BY started_at ASC`, domain.RunStatusRunning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		if !run.StartedAt.Before(cutoff) {
			continue
		}
		runs = append(runs, *run)
		if limit > 0 && len(runs) == limit {
			break
		}
	}
	return runs, rows.Err()
}

// CompleteRun moves a run to a terminal status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status domain.RunStatus, content, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+s.tables.Runs+` SET status = ?, content = ?, error = ?, ended_at = ? WHERE run_id = ?`,
		status, nullString(content), nullString(errMsg), time.Now(), runID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.tables.Events+` (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// GetEvents retrieves events for a run in timestamp order.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM ` + s.tables.Events + ` WHERE run_id = ? ORDER BY ts ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var evt domain.Event
		var payload sql.NullString
		if err := rows.Scan(&evt.EventID, &evt.RunID, &evt.Ts, &evt.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			evt.Payload = json.RawMessage(payload.String)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// UpsertMemory inserts or replaces a user memory.
func (s *SQLiteStore) UpsertMemory(ctx context.Context, memory *domain.UserMemory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.tables.Memories+` (memory_id, user_id, memory, topics, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(memory_id) DO UPDATE SET memory = excluded.memory, topics = excluded.topics, updated_at = excluded.updated_at`,
		memory.MemoryID, memory.UserID, memory.Memory, encodeTopics(memory.Topics), memory.UpdatedAt)
	return err
}

// ListMemories lists a user's memories, oldest first.
func (s *SQLiteStore) ListMemories(ctx context.Context, userID string) ([]domain.UserMemory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_id, user_id, memory, topics, updated_at FROM `+s.tables.Memories+` WHERE user_id = ? ORDER BY updated_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []domain.UserMemory
	for rows.Next() {
		var m domain.UserMemory
		var topics sql.NullString
		if err := rows.Scan(&m.MemoryID, &m.UserID, &m.Memory, &topics, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Topics = decodeTopics(topics.String)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// DeleteMemory removes a memory.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, memoryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.tables.Memories+` WHERE memory_id = ?`, memoryID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CreateKnowledgeContent registers a knowledge document.
func (s *SQLiteStore) CreateKnowledgeContent(ctx context.Context, content *domain.KnowledgeContent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.tables.Knowledge+` (content_id, name, description, url, table_name, chunks, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		content.ContentID, content.Name, nullString(content.Description), nullString(content.URL),
		content.Table, content.Chunks, content.Status, content.CreatedAt)
	return err
}

// ListKnowledgeContents lists documents, optionally for a single vector table.
func (s *SQLiteStore) ListKnowledgeContents(ctx context.Context, table string) ([]domain.KnowledgeContent, error) {
	query := `SELECT content_id, name, description, url, table_name, chunks, status, created_at FROM ` + s.tables.Knowledge
	var args []interface{}
	if table != "" {
		query += ` WHERE table_name = ?`
		args = append(args, table)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []domain.KnowledgeContent
	for rows.Next() {
		var c domain.KnowledgeContent
		var desc, url sql.NullString
		if err := rows.Scan(&c.ContentID, &c.Name, &desc, &url, &c.Table, &c.Chunks, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Description = desc.String
		c.URL = url.String
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
