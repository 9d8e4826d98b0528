package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// ListSparklersTool handles the list_sparklers MCP tool.
type ListSparklersTool struct {
	store config.Store
}

// NewListSparklersTool creates a ListSparklersTool.
func NewListSparklersTool(store config.Store) *ListSparklersTool {
	return &ListSparklersTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ListSparklersTool) Definition() mcp.Tool {
	return mcp.NewTool("list_sparklers",
		mcp.WithDescription("Show all available Sparkler identities. Lists sparklers with default marked."),
	)
}

// Handle processes the list_sparklers tool call.
func (t *ListSparklersTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var b strings.Builder
	b.WriteString("**Available Sparklers:**\n\n")

	if cfg.IsMultiSparkler() {
		for _, s := range cfg.Sparklers {
			if s.Default {
				fmt.Fprintf(&b, "• %s (default)\n", s.Name)
			} else {
				fmt.Fprintf(&b, "• %s\n", s.Name)
			}
		}
	} else {
		fmt.Fprintf(&b, "• %s (single-sparkler mode)\n", cfg.ResolveSparklerName(""))
	}

	return mcp.NewToolResultText(b.String()), nil
}
