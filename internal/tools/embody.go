package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/mark3labs/mcp-go/mcp"
)

// EmbodyTool handles the embody_sparkle MCP tool.
// It returns the assembled embodiment document and remembers the chosen
// sparkler for the tools and prompts that follow.
type EmbodyTool struct {
	store     config.Store
	assembler *embodiment.Assembler
	state     *SparklerState
}

// NewEmbodyTool creates an EmbodyTool.
func NewEmbodyTool(store config.Store, assembler *embodiment.Assembler, state *SparklerState) *EmbodyTool {
	return &EmbodyTool{store: store, assembler: assembler, state: state}
}

// Definition returns the MCP tool definition for registration.
func (t *EmbodyTool) Definition() mcp.Tool {
	return mcp.NewTool("embody_sparkle",
		mcp.WithDescription(
			"Perform Sparkle embodiment sequence - orchestrates full pattern activation. "+
				"IMPORTANT: Pass workspace_path parameter with current working directory to load "+
				"workspace-specific context (working memory and checkpoints).",
		),
		mcp.WithString("mode",
			mcp.Description("Embodiment mode. Only 'complete' is currently meaningful. Defaults to 'complete'."),
			mcp.DefaultString(string(embodiment.ModeComplete)),
		),
		mcp.WithString("workspace_path",
			mcp.Description("Absolute path of the current workspace. Omit or pass 'current' to skip workspace context."),
		),
		mcp.WithString("sparkler",
			mcp.Description("Sparkler to embody. Defaults to the configured default sparkler."),
		),
	)
}

// Handle processes the embody_sparkle tool call.
func (t *EmbodyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sparkler := req.GetString("sparkler", "")

	doc, err := t.assembler.Assemble(embodiment.Request{
		Mode:          embodiment.Mode(req.GetString("mode", string(embodiment.ModeComplete))),
		WorkspacePath: req.GetString("workspace_path", embodiment.CurrentWorkspace),
		Sparkler:      sparkler,
	})
	if err != nil {
		if isSparklerLookupError(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("assembling embodiment: %w", err)
	}

	if sparkler == "" {
		if cfg, err := t.store.Load(); err == nil {
			sparkler = cfg.ResolveSparklerName("")
		}
	}
	t.state.Set(sparkler)

	return mcp.NewToolResultText(doc), nil
}
