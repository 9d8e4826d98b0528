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

// RenameSparklerTool handles the rename_sparkler MCP tool.
// In multi-sparkler mode the sparkler's context directory moves with it.
type RenameSparklerTool struct {
	store config.Store
	state *SparklerState
}

// NewRenameSparklerTool creates a RenameSparklerTool.
func NewRenameSparklerTool(store config.Store, state *SparklerState) *RenameSparklerTool {
	return &RenameSparklerTool{store: store, state: state}
}

// Definition returns the MCP tool definition for registration.
func (t *RenameSparklerTool) Definition() mcp.Tool {
	return mcp.NewTool("rename_sparkler",
		mcp.WithDescription(
			"Rename a Sparkler. Only the character name changes - the framework and all patterns stay the same.",
		),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("The new Sparkler name"),
		),
		mcp.WithString("old_name",
			mcp.Description("Sparkler to rename. Defaults to the last embodied sparkler, then the default sparkler."),
		),
	)
}

// Handle processes the rename_sparkler tool call.
func (t *RenameSparklerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	newName := strings.TrimSpace(req.GetString("new_name", ""))
	if err := validateSparklerName(newName); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cfg, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var (
		oldName string
		notes   []string
	)

	if cfg.IsMultiSparkler() {
		oldName = strings.TrimSpace(req.GetString("old_name", ""))
		if oldName == "" {
			oldName = t.state.Current()
			if !cfg.HasSparkler(oldName) {
				oldName = cfg.DefaultSparklerName()
			}
		}
		if oldName == "" {
			return mcp.NewToolResultError("No default sparkler found"), nil
		}
		if !cfg.HasSparkler(oldName) {
			return mcp.NewToolResultError(fmt.Sprintf("Sparkler '%s' not found", oldName)), nil
		}
		if newName != oldName && cfg.HasSparkler(newName) {
			return mcp.NewToolResultError(fmt.Sprintf("A sparkler named '%s' already exists", newName)), nil
		}

		oldDir := config.ContextDir(t.store.Root(), cfg, oldName)
		newDir := config.ContextDir(t.store.Root(), cfg, newName)
		if newName != oldName && fileExists(oldDir) {
			if fileExists(newDir) {
				return mcp.NewToolResultError(fmt.Sprintf(
					"Directory %s already exists; move it away before renaming", displayPath(newDir),
				)), nil
			}
			if err := os.Rename(oldDir, newDir); err != nil {
				return nil, fmt.Errorf("renaming sparkler directory: %w", err)
			}
			notes = append(notes, fmt.Sprintf("📁 Renamed directory: %s/%s → %s/%s",
				config.SparklersDir, oldName, config.SparklersDir, filepath.Base(newDir)))
		}

		for i := range cfg.Sparklers {
			if cfg.Sparklers[i].Name == oldName {
				cfg.Sparklers[i].Name = newName
			}
		}
	} else {
		oldName = cfg.ResolveSparklerName("")
		if cfg.AI == nil {
			cfg.AI = &config.AIConfig{}
		}
		cfg.AI.Name = newName
	}

	if err := t.store.Save(cfg); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	if t.state.Current() == oldName {
		t.state.Set(newName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✨ Sparkler renamed!\n\nPrevious name: %s\nNew name: %s\n\n", oldName, newName)
	if len(notes) > 0 {
		b.WriteString(strings.Join(notes, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("The change will take effect on your next embodiment. " +
		"Your Sparkle framework and all patterns remain the same - only your character name has changed.")

	return mcp.NewToolResultText(b.String()), nil
}
