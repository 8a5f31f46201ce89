// Package chat holds the per-connection state of the chat frontend: which
// profile a user picked, the backend session bound to it, and the local
// history kept for plain model profiles.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/adapter/ollama"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/models"
)

// FailureMarker prefixes every error surfaced to the user as a chat message.
const FailureMarker = "❌"

// DefaultProfile is offered when neither models nor entities are available.
const DefaultProfile = "default"

// EntityClient is the AgentOS surface the gateway needs.
type EntityClient interface {
	ListEntities(ctx context.Context, forceRefresh bool) (map[string]domain.Entity, error)
	CreateSession(ctx context.Context, userID, entityID string, kind domain.EntityType) (string, error)
	SendMessage(ctx context.Context, sessionID, message, entityID string, kind domain.EntityType, userData map[string]string) (iter.Seq2[string, error], error)
}

// ModelClient streams replies from a local model server.
type ModelClient interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) iter.Seq2[string, error]
	InstalledModelIDs(ctx context.Context) ([]string, error)
}

// Profile is one selectable chat target.
type Profile struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description"`
	Entity      *domain.Entity `json:"entity,omitempty"`
}

// Gateway builds profiles and sessions.
type Gateway struct {
	entities         EntityClient
	models           ModelClient
	showAllInstalled bool
	logger           *zap.Logger
}

// NewGateway wires the gateway. entities may be nil when no backend is
// configured.
func NewGateway(entities EntityClient, models ModelClient, showAllInstalled bool, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		entities:         entities,
		models:           models,
		showAllInstalled: showAllInstalled,
		logger:           logger.With(zap.String("component", "chat")),
	}
}

// Profiles lists the local models followed by the backend entities. Failing
// to reach either source only shrinks the list.
func (g *Gateway) Profiles(ctx context.Context) []Profile {
	var installed []string
	if g.showAllInstalled && g.models != nil {
		ids, err := g.models.InstalledModelIDs(ctx)
		if err != nil {
			g.logger.Warn("failed to list installed models", zap.Error(err))
		}
		installed = ids
	}

	var profiles []Profile
	for _, m := range models.Available(installed, g.showAllInstalled) {
		profiles = append(profiles, Profile{
			Name:        m.ID,
			DisplayName: m.DisplayName,
			Description: fmt.Sprintf("Model: **%s**", m.ID),
		})
	}

	if g.entities != nil {
		entities, err := g.entities.ListEntities(ctx, false)
		if err != nil {
			g.logger.Warn("failed to load AgentOS entities", zap.Error(err))
		}
		for _, e := range sortedEntities(entities) {
			profiles = append(profiles, Profile{
				Name:        e.ProfileKey(),
				DisplayName: e.Name,
				Description: fmt.Sprintf("**%s**: %s", title(string(e.Type)), e.Description),
				Entity:      &e,
			})
		}
	}

	if len(profiles) == 0 {
		return []Profile{{Name: DefaultProfile, DisplayName: DefaultProfile, Description: "Default model"}}
	}
	return profiles
}

// Session is the chat state of one connection.
type Session struct {
	gateway *Gateway
	userID  string

	entity           *domain.Entity
	backendSessionID string
	model            string
	history          []ollama.Message
}

// NewSession starts a session for userID on the default model.
func (g *Gateway) NewSession(userID string) *Session {
	if userID == "" {
		userID = "anonymous"
	}
	return &Session{gateway: g, userID: userID, model: models.DefaultChatModel}
}

// Select switches the session to profile and clears its history. For entity
// profiles a backend session is created; when that fails the returned text
// is the message to show, and the session stays bound to the entity without
// a backend session.
func (s *Session) Select(ctx context.Context, profile string) (notice string) {
	s.history = nil
	s.entity = nil
	s.backendSessionID = ""

	kind, id, ok := domain.ParseProfileKey(profile)
	if !ok {
		s.model = profile
		if s.model == "" || s.model == DefaultProfile {
			s.model = models.DefaultChatModel
		}
		return ""
	}

	s.entity = &domain.Entity{ID: id, Type: kind}
	if s.gateway.entities == nil {
		return fmt.Sprintf("%s Failed to create session for **%s**.\nError: no AgentOS backend configured", FailureMarker, id)
	}
	sessionID, err := s.gateway.entities.CreateSession(ctx, s.userID, id, kind)
	if err != nil {
		s.gateway.logger.Warn("failed to create session", zap.String("profile", profile), zap.Error(err))
		return fmt.Sprintf("%s Failed to create session for **%s**.\nError: %s", FailureMarker, id, err)
	}
	s.backendSessionID = sessionID
	return ""
}

// Profile reports the selected profile key.
func (s *Session) Profile() string {
	if s.entity != nil {
		return s.entity.ProfileKey()
	}
	return s.model
}

// BackendSessionID is the AgentOS session bound to the selected entity, if any.
func (s *Session) BackendSessionID() string { return s.backendSessionID }

// History returns a copy of the local model history.
func (s *Session) History() []ollama.Message {
	return append([]ollama.Message(nil), s.history...)
}

// Send streams the reply to message through delta and returns the full text
// shown to the user. Failures are folded into the reply behind
// FailureMarker; the returned error is only set when ctx ended.
func (s *Session) Send(ctx context.Context, message string, delta func(string)) (string, error) {
	if delta == nil {
		delta = func(string) {}
	}
	var reply strings.Builder
	write := func(chunk string) {
		reply.WriteString(chunk)
		delta(chunk)
	}

	if s.entity != nil {
		if s.backendSessionID == "" {
			write(fmt.Sprintf("%s No active session for **%s**. Please restart the chat.", FailureMarker, s.entity.ID))
			return reply.String(), nil
		}
		err := s.sendToEntity(ctx, message, write)
		if err != nil {
			if ctx.Err() != nil {
				return reply.String(), ctx.Err()
			}
			write(fmt.Sprintf("\n\n%s Error communicating with AgentOS: %s", FailureMarker, err))
		}
		return reply.String(), nil
	}

	s.history = append(s.history, ollama.Message{Role: domain.RoleUser, Content: message})
	var answer strings.Builder
	for chunk, err := range s.gateway.models.Chat(ctx, s.model, s.history) {
		if err != nil {
			if ctx.Err() != nil {
				return reply.String(), ctx.Err()
			}
			s.gateway.logger.Warn("model chat failed", zap.String("model", s.model), zap.Error(err))
			write(fmt.Sprintf("\n\n%s Error: %s", FailureMarker, err))
			break
		}
		answer.WriteString(chunk)
		write(chunk)
	}
	s.history = append(s.history, ollama.Message{Role: domain.RoleAssistant, Content: answer.String()})
	return reply.String(), nil
}

func (s *Session) sendToEntity(ctx context.Context, message string, write func(string)) error {
	userData := map[string]string{"user_id": s.userID}
	seq, err := s.gateway.entities.SendMessage(ctx, s.backendSessionID, message, s.entity.ID, s.entity.Type, userData)
	if err != nil {
		return err
	}
	for chunk, err := range seq {
		if err != nil {
			return err
		}
		write(chunk)
	}
	return nil
}

var errNoProfile = errors.New("chat: unknown profile")

// Find returns the profile named name.
func Find(profiles []Profile, name string) (Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w %q", errNoProfile, name)
}

func sortedEntities(m map[string]domain.Entity) []domain.Entity {
	out := make([]domain.Entity, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	order := map[domain.EntityType]int{domain.EntityAgent: 0, domain.EntityTeam: 1, domain.EntityWorkflow: 2}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return order[out[i].Type] < order[out[j].Type]
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
