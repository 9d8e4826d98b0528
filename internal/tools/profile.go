package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// UpdateProfileTool handles the update_collaborator_profile MCP tool.
// The profile is replaced wholesale; the previous version is kept as a
// timestamped backup next to it.
type UpdateProfileTool struct {
	store config.Store
}

// NewUpdateProfileTool creates an UpdateProfileTool.
func NewUpdateProfileTool(store config.Store) *UpdateProfileTool {
	return &UpdateProfileTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateProfileTool) Definition() mcp.Tool {
	return mcp.NewTool("update_collaborator_profile",
		mcp.WithDescription(
			"Replace the collaborator profile with new content. "+
				"The previous profile is backed up first. Get the collaborator's consent before writing.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The complete new collaborator-profile.md content"),
		),
	)
}

// Handle processes the update_collaborator_profile tool call.
func (t *UpdateProfileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	root := t.store.Root()
	if !fileExists(root) {
		return mcp.NewToolResultError(
			"Please run the setup_sparkle tool first to initialize your Sparkle profile.",
		), nil
	}

	path := filepath.Join(root, config.ProfileFile)

	var b strings.Builder
	b.WriteString("✨ Collaborator profile updated successfully!\n\n")

	if fileExists(path) {
		stamp := timeNow().UTC().Format("20060102-150405")
		backup := filepath.Join(root, fmt.Sprintf("collaborator-profile.%s.md", stamp))
		if err := copyFile(path, backup); err != nil {
			return nil, fmt.Errorf("creating backup: %w", err)
		}
		fmt.Fprintf(&b, "Backup created: %s\n", displayPath(backup))
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing collaborator profile %s: %w", path, err)
	}

	fmt.Fprintf(&b, "File: %s\nSize: %d bytes", displayPath(path), len(content))
	return mcp.NewToolResultText(b.String()), nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
