package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// LoadEvolutionTool handles the load_evolution MCP tool.
// It concatenates the framework design documents kept in
// <home>/.sparkle/evolution/. Archived documents are skipped.
type LoadEvolutionTool struct {
	store config.Store
}

// NewLoadEvolutionTool creates a LoadEvolutionTool.
func NewLoadEvolutionTool(store config.Store) *LoadEvolutionTool {
	return &LoadEvolutionTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *LoadEvolutionTool) Definition() mcp.Tool {
	return mcp.NewTool("load_evolution",
		mcp.WithDescription(
			"Load the technical and design documents that explain how the Sparkle framework works and evolved. "+
				"Use when the collaboration turns to the framework itself.",
		),
	)
}

// Handle processes the load_evolution tool call.
func (t *LoadEvolutionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := filepath.Join(t.store.Root(), config.EvolutionDir)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return mcp.NewToolResultText(fmt.Sprintf("*No evolution directory found at %s*\n\n", displayPath(dir))), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ".md" || strings.Contains(e.Name(), "archive") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Identity Evolution Context\n\n")
	b.WriteString("*Technical and design documents that explain how the Sparkle framework works and evolved*\n\n")
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		b.Write(data)
		b.WriteString("\n\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}
