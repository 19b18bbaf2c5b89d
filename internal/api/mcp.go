package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"docspace/internal/registry"
	"docspace/internal/session"
	"docspace/internal/store"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Session *session.Session
	Store   *store.Store
}

// NewMCPServer exposes the document assistant to MCP clients: asking a
// question against the active space and listing a user's spaces.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"docspace",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docspace answers questions about documents uploaded into the active space."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question about the documents in the currently active space."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("list_spaces",
			mcp.WithDescription("List the spaces a user has created, with their document categories."),
			mcp.WithString("email", mcp.Description("Email of the user whose spaces to list"), mcp.Required()),
		),
		mcpListSpaces(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://transcript",
			"Session Transcript",
			mcp.WithResourceDescription("Chat transcript of the active space as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTranscript(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		answer, err := deps.Session.Chat(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpText(answer), nil
	}
}

func mcpListSpaces(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcpError("email is required"), nil
		}

		spaces, err := registry.UserSpaces(deps.Store, email)
		if err != nil {
			return mcpError(fmt.Sprintf("listing spaces failed: %v", err)), nil
		}

		type spaceResult struct {
			Description     string            `json:"description"`
			PrimaryCategory string            `json:"primary_category"`
			Files           map[string]string `json:"files"`
			CreatedAt       string            `json:"created_at"`
		}

		results := make([]spaceResult, 0, len(spaces))
		for desc, meta := range spaces {
			results = append(results, spaceResult{
				Description:     desc,
				PrimaryCategory: meta.PrimaryCategory,
				Files:           meta.FileCategories,
				CreatedAt:       meta.CreatedAt.Format(time.RFC3339),
			})
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal spaces: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceTranscript(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Session.Transcript())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transcript: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
