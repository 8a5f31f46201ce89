// Package agentos is the chat gateway's client for the AgentOS HTTP API.
package agentos

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/domain"
)

// Defaults for the client.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultCacheTTL = 5 * time.Minute
)

// ClientError wraps every failure raised at the client boundary.
type ClientError struct {
	Op  string
	Err error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("Failed to %s: %v", e.Op, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// entityCache is owned by one client. Concurrent refreshes may both fetch;
// the last one to finish wins.
type entityCache struct {
	entries   map[string]domain.Entity
	fetchedAt time.Time
	ttl       time.Duration
}

// Client talks to one AgentOS instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache entityCache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithCacheTTL sets the entity cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache.ttl = ttl }
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
		cache:      entityCache{ttl: DefaultCacheTTL},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("AgentOS client initialized",
		zap.String("base_url", c.baseURL), zap.Duration("timeout", timeout))
	return c
}

// HealthCheck reports whether the config endpoint answers.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if _, err := c.fetchConfig(ctx); err != nil {
		c.logger.Error("AgentOS health check failed", zap.Error(err))
		return false
	}
	c.logger.Info("AgentOS health check passed")
	return true
}

func (c *Client) cached() (map[string]domain.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache.entries == nil || c.cache.fetchedAt.IsZero() {
		return nil, false
	}
	if c.now().Sub(c.cache.fetchedAt) >= c.cache.ttl {
		return nil, false
	}
	return maps.Clone(c.cache.entries), true
}

// ListEntities returns the entities keyed by profile key, from the cache when
// it is younger than the TTL and forceRefresh is false.
func (c *Client) ListEntities(ctx context.Context, forceRefresh bool) (map[string]domain.Entity, error) {
	if !forceRefresh {
		if entries, ok := c.cached(); ok {
			c.logger.Debug("returning cached entities")
			return entries, nil
		}
	}

	cfg, err := c.fetchConfig(ctx)
	if err != nil {
		c.logger.Error("error fetching AgentOS entities", zap.Error(err))
		return nil, &ClientError{Op: "fetch entities", Err: err}
	}

	entities := make(map[string]domain.Entity)
	for _, group := range []struct {
		items []domain.EntitySummary
		kind  domain.EntityType
	}{
		{cfg.Agents, domain.EntityAgent},
		{cfg.Workflows, domain.EntityWorkflow},
		{cfg.Teams, domain.EntityTeam},
	} {
		for _, s := range group.items {
			e := entityFromSummary(s, group.kind)
			entities[e.ProfileKey()] = e
		}
	}

	c.mu.Lock()
	c.cache.entries = entities
	c.cache.fetchedAt = c.now()
	c.mu.Unlock()

	c.logger.Info("fetched entities from AgentOS", zap.Int("count", len(entities)))
	return maps.Clone(entities), nil
}

func entityFromSummary(s domain.EntitySummary, kind domain.EntityType) domain.Entity {
	id := s.ID
	if id == "" {
		id = s.Name
	}
	desc := s.Description
	if desc == "" {
		desc = strings.ToUpper(string(kind[:1])) + string(kind[1:]) + ": " + s.Name
	}
	return domain.Entity{ID: id, Name: s.Name, Type: kind, Description: desc}
}

// ClearCache drops the cached entities.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache.entries = nil
	c.cache.fetchedAt = time.Time{}
	c.mu.Unlock()
	c.logger.Info("entities cache cleared")
}

// SetCacheTTL changes the cache lifetime of this client.
func (c *Client) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	c.cache.ttl = ttl
	c.mu.Unlock()
	c.logger.Info("cache TTL set", zap.Duration("ttl", ttl))
}

func (c *Client) fetchConfig(ctx context.Context) (*domain.ConfigResponse, error) {
	var cfg domain.ConfigResponse
	if err := c.doJSON(ctx, http.MethodGet, "/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateSessionBody builds the session-create body for an entity kind.
func CreateSessionBody(userID, entityID string, kind domain.EntityType) (domain.CreateSessionRequest, error) {
	req := domain.CreateSessionRequest{UserID: userID}
	switch kind {
	case domain.EntityAgent:
		req.AgentID = entityID
	case domain.EntityTeam:
		req.TeamID = entityID
		req.SessionType = domain.SessionTypeTeam
	case domain.EntityWorkflow:
		req.WorkflowID = entityID
		req.SessionType = domain.SessionTypeWorkflow
	default:
		return req, fmt.Errorf("%w: %q", domain.ErrUnknownEntityType, string(kind))
	}
	return req, nil
}

// CreateSession opens a session for (userID, entity) and returns its id.
func (c *Client) CreateSession(ctx context.Context, userID, entityID string, kind domain.EntityType) (string, error) {
	body, err := CreateSessionBody(userID, entityID, kind)
	if err != nil {
		return "", &ClientError{Op: "create session", Err: err}
	}
	var session struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", body, &session); err != nil {
		c.logger.Error("error creating AgentOS session", zap.Error(err))
		return "", &ClientError{Op: "create session", Err: err}
	}
	if session.SessionID == "" {
		return "", &ClientError{Op: "create session", Err: errors.New("empty session id")}
	}
	c.logger.Info("created session",
		zap.String("session_id", session.SessionID),
		zap.String("user_id", userID),
		zap.String("entity", string(kind)+":"+entityID))
	return session.SessionID, nil
}

func runPath(kind domain.EntityType, entityID string) (string, error) {
	switch kind {
	case domain.EntityAgent:
		return "/agents/" + url.PathEscape(entityID) + "/runs", nil
	case domain.EntityTeam:
		return "/teams/" + url.PathEscape(entityID) + "/runs", nil
	case domain.EntityWorkflow:
		return "/workflows/" + url.PathEscape(entityID) + "/runs", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownEntityType, string(kind))
}

// SendMessage opens the run stream and returns the non-empty content
// fragments as a sequence. Establishment failures are returned as
// *ClientError; failures while reading are yielded to the consumer. The
// sequence can only be consumed once and must be ranged over to release the
// response body.
func (c *Client) SendMessage(ctx context.Context, sessionID, message, entityID string, kind domain.EntityType, userData map[string]string) (iter.Seq2[string, error], error) {
	path, err := runPath(kind, entityID)
	if err != nil {
		return nil, &ClientError{Op: "send message", Err: err}
	}
	c.logger.Debug("sending message",
		zap.String("entity", string(kind)+":"+entityID), zap.String("session_id", sessionID))

	form := url.Values{}
	form.Set("message", message)
	form.Set("session_id", sessionID)
	form.Set("stream", "true")
	if uid := userData["user_id"]; uid != "" {
		form.Set("user_id", uid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ClientError{Op: "send message", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient().Do(req)
	if err != nil {
		c.logger.Error("error sending message to AgentOS", zap.Error(err))
		return nil, &ClientError{Op: "send message", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		err := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		c.logger.Error("error sending message to AgentOS", zap.Error(err))
		return nil, &ClientError{Op: "send message", Err: err}
	}

	var once sync.Once
	return func(yield func(string, error) bool) {
		used := true
		once.Do(func() { used = false })
		if used {
			yield("", errors.New("agentos: response stream already consumed"))
			return
		}
		defer resp.Body.Close()

		stop := errors.New("stop")
		err := parseSSE(resp.Body, func(evt SSEEvent) error {
			var payload domain.StreamEvent
			if json.Unmarshal([]byte(evt.Data), &payload) != nil {
				return nil
			}
			if payload.Error != "" && (evt.Event == domain.StreamRunError || evt.Event == domain.StreamWorkflowError) {
				return fmt.Errorf("run failed: %s", payload.Error)
			}
			if payload.Content == "" {
				return nil
			}
			if !yield(payload.Content, nil) {
				return stop
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield("", err)
		}
	}, nil
}

// streamClient drops the overall timeout so long runs are not cut off; the
// caller's context still bounds the request.
func (c *Client) streamClient() *http.Client {
	hc := *c.httpClient
	hc.Timeout = 0
	return &hc
}

// GetSessionHistory returns the session's messages, or an empty list on any
// failure.
func (c *Client) GetSessionHistory(ctx context.Context, sessionID string) []domain.Message {
	var detail domain.SessionDetail
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, &detail); err != nil {
		c.logger.Error("error retrieving session history", zap.String("session_id", sessionID), zap.Error(err))
		return []domain.Message{}
	}
	if detail.Messages == nil {
		return []domain.Message{}
	}
	return detail.Messages
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil); err != nil {
		c.logger.Error("error deleting session", zap.String("session_id", sessionID), zap.Error(err))
		return &ClientError{Op: "delete session", Err: err}
	}
	c.logger.Info("deleted session", zap.String("session_id", sessionID))
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SSEEvent represents a parsed SSE event.
type SSEEvent struct {
	Event string
	Data  string
}

// parseSSE parses an SSE stream and calls the handler for each event.
func parseSSE(reader io.Reader, handler func(SSEEvent) error) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
	}

	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}
	return scanner.Err()
}
