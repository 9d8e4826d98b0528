package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/HendryAvila/sparkle/internal/templates"
	"github.com/mark3labs/mcp-go/mcp"
)

// UpdateIdentityTool handles the update_sparkler_identity MCP tool.
// It replaces sparkler-identity.md for the active sparkler.
type UpdateIdentityTool struct {
	store    config.Store
	renderer *templates.Renderer
	state    *SparklerState
}

// NewUpdateIdentityTool creates an UpdateIdentityTool.
func NewUpdateIdentityTool(store config.Store, renderer *templates.Renderer, state *SparklerState) *UpdateIdentityTool {
	return &UpdateIdentityTool{store: store, renderer: renderer, state: state}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateIdentityTool) Definition() mcp.Tool {
	return mcp.NewTool("update_sparkler_identity",
		mcp.WithDescription(
			"Replace sparkler-identity.md - the brief definition of who you are as a Sparkler. "+
				"Use the sparkler_identity prompt first for guidance.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content to add/update in sparkler-identity.md"),
		),
		mcp.WithString("sparkler",
			mcp.Description("Sparkler to update. Defaults to the last embodied sparkler."),
		),
	)
}

// Handle processes the update_sparkler_identity tool call.
func (t *UpdateIdentityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := strings.TrimSpace(req.GetString("content", ""))
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	pc, err := embodiment.ResolveContext(t.store, t.renderer, t.state.pick(req.GetString("sparkler", "")))
	if err != nil {
		if isSparklerLookupError(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}

	if err := writeFile(filepath.Join(pc.Dir, config.IdentityFile), content); err != nil {
		return nil, fmt.Errorf("writing %s: %w", config.IdentityFile, err)
	}

	return mcp.NewToolResultText(
		"✨ Updated sparkler-identity.md\n\nRemember: Keep this concise - a definition, not a narrative.",
	), nil
}
