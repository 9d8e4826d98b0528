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

// InsightType selects the document an insight is appended to.
type InsightType string

const (
	InsightPatternAnchor          InsightType = "pattern_anchor"
	InsightCollaborationEvolution InsightType = "collaboration_evolution"
	InsightWorkspace              InsightType = "workspace_insight"
)

var insightTitles = map[InsightType]string{
	InsightPatternAnchor:          "Pattern Anchor",
	InsightCollaborationEvolution: "Collaboration Evolution",
	InsightWorkspace:              "Workspace Insight",
}

// SaveInsightTool handles the save_insight MCP tool.
// Pattern anchors and collaboration evolution belong to the sparkler;
// workspace insights go to the shared workspace map.
type SaveInsightTool struct {
	store    config.Store
	renderer *templates.Renderer
	state    *SparklerState
}

// NewSaveInsightTool creates a SaveInsightTool.
func NewSaveInsightTool(store config.Store, renderer *templates.Renderer, state *SparklerState) *SaveInsightTool {
	return &SaveInsightTool{store: store, renderer: renderer, state: state}
}

// Definition returns the MCP tool definition for registration.
func (t *SaveInsightTool) Definition() mcp.Tool {
	return mcp.NewTool("save_insight",
		mcp.WithDescription(
			"Save insights from meta moments - captures pattern anchors, breakthrough insights, "+
				"and cross-workspace connections.",
		),
		mcp.WithString("insight_type",
			mcp.Required(),
			mcp.Description(
				"'pattern_anchor' (exact words that recreate collaborative patterns), "+
					"'collaboration_evolution' (breakthrough insights about how we work together) or "+
					"'workspace_insight' (top-level workspace information and cross-project connections)",
			),
			mcp.Enum(string(InsightPatternAnchor), string(InsightCollaborationEvolution), string(InsightWorkspace)),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The insight content/quote to save"),
		),
		mcp.WithString("context",
			mcp.Description("Context about when/why this insight emerged"),
		),
		mcp.WithArray("tags",
			mcp.Description("Optional tags for categorization"),
			mcp.WithStringItems(),
		),
		mcp.WithString("sparkler",
			mcp.Description("Sparkler whose documents receive the insight. Defaults to the last embodied sparkler."),
		),
	)
}

// Handle processes the save_insight tool call.
func (t *SaveInsightTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := InsightType(req.GetString("insight_type", ""))
	content := req.GetString("content", "")
	insightContext := req.GetString("context", "")
	tags := stringsArg(req, "tags")

	title, ok := insightTitles[kind]
	if !ok {
		return mcp.NewToolResultError(
			"'insight_type' must be 'pattern_anchor', 'collaboration_evolution' or 'workspace_insight'",
		), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	var path string
	switch kind {
	case InsightWorkspace:
		path = filepath.Join(t.store.Root(), config.WorkspaceMapFile)
	default:
		pc, err := embodiment.ResolveContext(t.store, t.renderer, t.state.pick(req.GetString("sparkler", "")))
		if err != nil {
			if isSparklerLookupError(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		file := config.PatternAnchorFile
		if kind == InsightCollaborationEvolution {
			file = config.EvolutionFile
		}
		path = filepath.Join(pc.Dir, file)
	}

	if err := appendFile(path, insightEntry(title, content, insightContext, tags)); err != nil {
		return nil, fmt.Errorf("saving insight: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✨ Insight saved to %s\n\nType: %s\nContent: %s\n", displayPath(path), title, content)
	if insightContext != "" {
		fmt.Fprintf(&b, "Context: %s", insightContext)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// insightEntry formats one appended section.
func insightEntry(title, content, insightContext string, tags []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## %s - %s\n\n", timeNow().UTC().Format("2006-01-02 15:04:05 UTC"), title)
	fmt.Fprintf(&b, "%s\n\n", content)
	if insightContext != "" {
		fmt.Fprintf(&b, "**Context**: %s\n\n", insightContext)
	}
	if len(tags) > 0 {
		fmt.Fprintf(&b, "**Tags**: %s\n\n", strings.Join(tags, ", "))
	}
	b.WriteString("---\n")
	return b.String()
}
