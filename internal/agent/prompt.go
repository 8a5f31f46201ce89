package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/domain"
)

// anonymousUser stands in for an empty user id in instructions.
const anonymousUser = "anonymous"

// SystemPrompt renders the system message for userID. memories may be nil.
func (a *Agent) SystemPrompt(userID string, memories []domain.UserMemory) string {
	if userID == "" {
		userID = anonymousUser
	}
	var sb strings.Builder
	if a.cfg.Description != "" {
		sb.WriteString(strings.TrimSpace(a.cfg.Description))
		sb.WriteString("\n\n")
	}
	if a.cfg.Role != "" {
		fmt.Fprintf(&sb, "<your_role>\n%s\n</your_role>\n\n", a.cfg.Role)
	}
	if len(a.cfg.Instructions) > 0 {
		sb.WriteString("<instructions>\n")
		for _, ins := range a.cfg.Instructions {
			if len(a.cfg.Instructions) == 1 {
				sb.WriteString(strings.TrimSpace(ins))
			} else {
				sb.WriteString("- " + strings.TrimSpace(ins))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("</instructions>\n\n")
	}

	var extra []string
	if a.cfg.Markdown {
		extra = append(extra, "Use markdown to format your answers.")
	}
	if a.cfg.AddDatetime {
		extra = append(extra, "The current time is "+a.deps.Now().Format("2006-01-02 15:04:05 MST")+".")
	}
	if len(extra) > 0 {
		sb.WriteString("<additional_information>\n")
		for _, e := range extra {
			sb.WriteString("- " + e + "\n")
		}
		sb.WriteString("</additional_information>\n\n")
	}

	if a.cfg.AgenticMemory {
		if len(memories) > 0 {
			sb.WriteString("<memories_from_previous_interactions>\n")
			for _, m := range memories {
				sb.WriteString("- " + m.Memory + "\n")
			}
			sb.WriteString("</memories_from_previous_interactions>\n\n")
		}
		sb.WriteString("You can add new memories about the user with the update_user_memory tool.\n\n")
	}

	return strings.ReplaceAll(strings.TrimSpace(sb.String()), UserIDPlaceholder, userID)
}

func (a *Agent) buildMessages(ctx context.Context, in RunInput) ([]llm.ChatMessage, error) {
	var memories []domain.UserMemory
	store := a.deps.Store
	if a.cfg.AgenticMemory && store != nil && in.UserID != "" {
		m, err := store.ListMemories(ctx, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load memories: %w", err)
		}
		memories = m
	}

	messages := []llm.ChatMessage{{Role: domain.RoleSystem, Content: a.SystemPrompt(in.UserID, memories)}}

	if a.cfg.HistoryRuns > 0 && store != nil && in.SessionID != "" {
		history, err := store.GetRecentRunMessages(ctx, in.SessionID, a.cfg.HistoryRuns)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		for _, m := range history {
			if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
				continue
			}
			messages = append(messages, llm.ChatMessage{Role: m.Role, Content: m.Content})
		}
	}

	return append(messages, llm.ChatMessage{Role: domain.RoleUser, Content: in.Message}), nil
}
