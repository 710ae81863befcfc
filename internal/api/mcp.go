package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lonesomenomore/lsnm/internal/composer"
	"github.com/lonesomenomore/lsnm/internal/profile"
	"github.com/lonesomenomore/lsnm/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Profiles *profile.Manager
	// UserID owns the profiles listed by the tools; empty means MockUser.
	UserID string
}

func (d MCPDeps) userID() string {
	if d.UserID == "" {
		return MockUser.ID
	}
	return d.UserID
}

// NewMCPServer creates an MCP server exposing loved-one profiles, prompt
// previews and conversation history.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lsnm",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("LoneSomeNoMore: loved-one profiles and the companion system prompts built from them."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_loved_ones",
			mcp.WithDescription("List the loved-one profiles with their ids."),
		),
		mcpListLovedOnes(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return one loved-one profile as JSON."),
			mcp.WithString("id", mcp.Description("Loved one id"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("synthesize_prompt",
			mcp.WithDescription("Render the companion system prompt for a loved one."),
			mcp.WithString("id", mcp.Description("Loved one id"), mcp.Required()),
		),
		mcpSynthesizePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("enrich_profile",
			mcp.WithDescription("Update one profile field. List fields take a JSON array; text fields take plain text."),
			mcp.WithString("id", mcp.Description("Loved one id"), mcp.Required()),
			mcp.WithString("field", mcp.Description("Field name, e.g. interests or healthInfo"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value: JSON, or plain text for text fields"), mcp.Required()),
			mcp.WithBoolean("append", mcp.Description("Append to the existing value instead of replacing it")),
		),
		mcpEnrichProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("list_conversations",
			mcp.WithDescription("List recent conversations for a loved one, newest first."),
			mcp.WithString("loved_one_id", mcp.Description("Loved one id"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpListConversations(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"lovedones://all",
			"Loved Ones",
			mcp.WithResourceDescription("Every loved-one profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLovedOnes(deps),
	)

	return s
}

func mcpListLovedOnes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profiles, err := deps.Profiles.List(deps.userID())
		if err != nil {
			return mcpError(fmt.Sprintf("listing loved ones: %v", err)), nil
		}
		out := make([]lovedOneSummary, 0, len(profiles))
		for _, p := range profiles {
			out = append(out, toLovedOneSummary(p))
		}
		return mcpJSON(out)
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		p, err := deps.Profiles.Get(id)
		if err != nil {
			return mcpError(profileMessage(id, err)), nil
		}
		return mcpJSON(toProfileView(p))
	}
}

func mcpSynthesizePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		p, err := deps.Profiles.Get(id)
		if err != nil {
			return mcpError(profileMessage(id, err)), nil
		}
		return mcpText(composer.Synthesize(p)), nil
	}
}

func mcpEnrichProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		field, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		_, err = deps.Profiles.Enrich(id, profile.Enrichment{
			Field:  field,
			Value:  toolValue(value),
			Append: req.GetBool("append", false),
		})
		if err != nil {
			return mcpError(profileMessage(id, err)), nil
		}
		return mcpText(fmt.Sprintf("Updated %s for %s", field, id)), nil
	}
}

// toolValue passes JSON through and wraps anything else as a JSON string,
// so plain text works for text fields.
func toolValue(v string) json.RawMessage {
	trimmed := strings.TrimSpace(v)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(v)
	return b
}

func mcpListConversations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("loved_one_id")
		if err != nil {
			return mcpError("loved_one_id is required"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		rows, err := deps.Store.ListConversations(id, limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("listing conversations: %v", err)), nil
		}
		out := make([]conversationSummary, 0, len(rows))
		for _, c := range rows {
			out = append(out, toConversationSummary(c))
		}
		return mcpJSON(out)
	}
}

func mcpResourceLovedOnes(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		profiles, err := deps.Profiles.List(deps.userID())
		if err != nil {
			return nil, fmt.Errorf("listing loved ones: %w", err)
		}
		views := make([]profileView, 0, len(profiles))
		for _, p := range profiles {
			views = append(views, toProfileView(p))
		}

		b, err := json.Marshal(views)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profiles: %w", err)
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

func profileMessage(id string, err error) string {
	if errors.Is(err, profile.ErrNotFound) {
		return fmt.Sprintf("no loved one with id %s", id)
	}
	return err.Error()
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
