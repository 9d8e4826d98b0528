package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/HendryAvila/sparkle/internal/templates"
	"github.com/mark3labs/mcp-go/mcp"
)

// SetupTool handles the setup_sparkle MCP tool.
// It creates the sparkle home with a single-sparkler config, a
// collaborator profile and the starter documents.
type SetupTool struct {
	store    config.Store
	renderer *templates.Renderer
}

// NewSetupTool creates a SetupTool.
func NewSetupTool(store config.Store, renderer *templates.Renderer) *SetupTool {
	return &SetupTool{store: store, renderer: renderer}
}

// Definition returns the MCP tool definition for registration.
func (t *SetupTool) Definition() mcp.Tool {
	return mcp.NewTool("setup_sparkle",
		mcp.WithDescription(
			"Create the Sparkle profile directory with config and starter files. "+
				"Run this once, before the first embodiment.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Your name - the collaborator the Sparkler works with"),
		),
	)
}

// Handle processes the setup_sparkle tool call.
func (t *SetupTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(req.GetString("name", ""))
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	root := t.store.Root()

	// Guard: an existing config may hold several sparklers.
	if t.store.Exists() {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Sparkle is already set up at %s. Use update_collaborator_profile or create_sparkler instead.",
			displayPath(root),
		)), nil
	}

	cfg := config.Default()
	cfg.Human.Name = name
	if err := t.store.Save(cfg); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	data := templates.StarterData{SparklerName: cfg.AI.Name, HumanName: name}
	profile, err := t.renderer.Render(templates.CollaboratorProfile, data)
	if err != nil {
		return nil, err
	}
	profilePath := filepath.Join(root, config.ProfileFile)
	if !fileExists(profilePath) {
		if err := os.WriteFile(profilePath, []byte(profile), 0o644); err != nil {
			return nil, fmt.Errorf("creating %s: %w", config.ProfileFile, err)
		}
	}

	if err := embodiment.WriteStarterFiles(t.renderer, root, data); err != nil {
		return nil, fmt.Errorf("creating starter files: %w", err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Created %s/ with profile for %s. Now use the embody_sparkle tool to complete embodiment.",
		displayPath(root), name,
	)), nil
}
