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

// checkpointStamp names checkpoint files; it sorts chronologically.
const checkpointStamp = "2006-01-02-150405"

// CheckpointTool handles the session_checkpoint MCP tool.
// It replaces the workspace working memory and adds a timestamped
// checkpoint under <workspace>/.sparkle-space/checkpoints/. The state
// directory is shared by every sparkler working in the workspace.
type CheckpointTool struct {
	state *SparklerState
}

// NewCheckpointTool creates a CheckpointTool.
func NewCheckpointTool(state *SparklerState) *CheckpointTool {
	return &CheckpointTool{state: state}
}

// Definition returns the MCP tool definition for registration.
func (t *CheckpointTool) Definition() mcp.Tool {
	return mcp.NewTool("session_checkpoint",
		mcp.WithDescription(
			"Create session checkpoint - updates working memory and creates handoff for session continuity.",
		),
		mcp.WithString("working_memory",
			mcp.Required(),
			mcp.Description("Updated working memory JSON content"),
		),
		mcp.WithString("checkpoint_content",
			mcp.Required(),
			mcp.Description("Checkpoint narrative content for the markdown file"),
		),
		mcp.WithString("workspace_path",
			mcp.Description("Workspace to checkpoint. Defaults to the server's working directory."),
		),
		mcp.WithString("sparkler",
			mcp.Description("Sparkler to credit in the checkpoint. Defaults to the last embodied sparkler."),
		),
	)
}

// Handle processes the session_checkpoint tool call.
func (t *CheckpointTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workingMemory := req.GetString("working_memory", "")
	content := req.GetString("checkpoint_content", "")

	if workingMemory == "" {
		return mcp.NewToolResultError("'working_memory' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'checkpoint_content' is required"), nil
	}

	workspace := req.GetString("workspace_path", "")
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		workspace = wd
	}
	sparkler := t.state.pick(req.GetString("sparkler", ""))

	checkpointsDir := config.CheckpointsPath(workspace)
	if err := os.MkdirAll(checkpointsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}

	memoryPath := filepath.Join(config.WorkspaceStatePath(workspace), config.WorkingMemoryFile)
	if err := os.WriteFile(memoryPath, []byte(workingMemory), 0o644); err != nil {
		return nil, fmt.Errorf("writing working memory: %w", err)
	}

	stamp := timeNow().UTC().Format(checkpointStamp)
	checkpointPath := filepath.Join(checkpointsDir, "checkpoint-"+stamp+".md")
	if err := os.WriteFile(checkpointPath, []byte(attribute(content, sparkler)), 0o644); err != nil {
		return nil, fmt.Errorf("writing checkpoint: %w", err)
	}

	var b strings.Builder
	b.WriteString("🔄 **SESSION CHECKPOINT CREATED**\n\n")
	if sparkler != "" {
		fmt.Fprintf(&b, "**Sparkler**: %s\n", sparkler)
	}
	fmt.Fprintf(&b, "Timestamp: %s\n", stamp)
	fmt.Fprintf(&b, "Checkpoint file: %s\n\n", checkpointPath)
	b.WriteString("**Actions Completed**:\n")
	fmt.Fprintf(&b, "✅ Working memory updated at %s\n", memoryPath)
	fmt.Fprintf(&b, "✅ Session checkpoint created at %s\n", checkpointPath)
	b.WriteString("✅ Progress preserved for future sessions\n")
	b.WriteString("✅ Collaborative momentum captured\n\n")
	b.WriteString("**Next Session Ready**: All context preserved for seamless continuation")

	return mcp.NewToolResultText(b.String()), nil
}

// attribute inserts a **Sparkler:** line after the checkpoint title.
func attribute(content, sparkler string) string {
	if sparkler == "" {
		return content
	}
	title, rest, _ := strings.Cut(content, "\n")
	return title + "\n\n**Sparkler:** " + sparkler + "\n" + rest
}
