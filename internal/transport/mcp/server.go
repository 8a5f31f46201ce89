// Package mcp exposes the AgentOS entities as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/service"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

type Server struct {
	mcpServer *server.MCPServer
	service   *service.Service
}

func NewServer(svc *service.Service, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"superpod-agentos",
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		service: svc,
	}
	s.registerTools()
	return s
}

func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer,
		server.WithEndpointPath(EndpointPath),
		server.WithStateLess(true),
	)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_entities",
			mcp.WithDescription("List the agents, teams and workflows served by this AgentOS"),
			mcp.WithString("type", mcp.Description("Restrict to one entity type: agent, team or workflow")),
		),
		s.handleListEntities,
	)
	for _, kind := range []domain.EntityType{domain.EntityAgent, domain.EntityTeam, domain.EntityWorkflow} {
		s.mcpServer.AddTool(
			mcp.NewTool("run_"+string(kind),
				mcp.WithDescription(fmt.Sprintf("Run a %s with a message and return its reply", kind)),
				mcp.WithString("id", mcp.Required(), mcp.Description(fmt.Sprintf("The %s id", kind))),
				mcp.WithString("message", mcp.Required(), mcp.Description("The user message or workflow request")),
				mcp.WithString("session_id", mcp.Description("Continue an existing session")),
				mcp.WithString("user_id", mcp.Description("The user the run belongs to")),
			),
			s.runHandler(kind),
		)
	}
	s.mcpServer.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the knowledge base"),
			mcp.WithString("query", mcp.Required(), mcp.Description("The search query")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
		),
		s.handleSearchKnowledge,
	)
}

func (s *Server) handleListEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kinds := []domain.EntityType{domain.EntityAgent, domain.EntityTeam, domain.EntityWorkflow}
	if raw := request.GetString("type", ""); raw != "" {
		kind, err := domain.ParseEntityType(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		kinds = []domain.EntityType{kind}
	}

	out := map[string][]domain.EntitySummary{}
	for _, kind := range kinds {
		out[string(kind)+"s"] = s.service.ListEntities(kind)
	}
	jsonBytes, _ := json.Marshal(out)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) runHandler(kind domain.EntityType) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		message, err := request.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		resp, err := s.service.Run(ctx, kind, id, domain.RunRequest{
			Message:   message,
			SessionID: request.GetString("session_id", ""),
			UserID:    request.GetString("user_id", ""),
		}, nil)
		if err != nil {
			if errors.Is(err, service.ErrEntityNotFound) || errors.Is(err, service.ErrInvalidRequest) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("Run failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(resp)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.service.SearchKnowledge(ctx, query, request.GetInt("limit", 5))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}
