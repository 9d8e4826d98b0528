package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/sparkle/internal/journal"
	"github.com/mark3labs/mcp-go/mcp"
)

// HistoryTool handles the embodiment_history MCP tool.
// It reads the journal the ACP proxy writes after every session
// embodiment settles.
type HistoryTool struct {
	journal *journal.Store
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(j *journal.Store) *HistoryTool {
	return &HistoryTool{journal: j}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("embodiment_history",
		mcp.WithDescription(
			"Show recent session embodiments performed by the Sparkle ACP proxy: "+
				"which sparkler was embodied, in which workspace, and how it ended.",
		),
		mcp.WithString("sparkler",
			mcp.Description("Only show embodiments of this sparkler"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries (default: 10)"),
		),
	)
}

// Handle processes the embodiment_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sparkler := req.GetString("sparkler", "")
	limit := intArg(req, "limit", 10)

	entries, err := t.journal.Recent(sparkler, limit)
	if err != nil {
		return nil, fmt.Errorf("reading embodiment journal: %w", err)
	}
	stats, err := t.journal.Stats()
	if err != nil {
		return nil, fmt.Errorf("reading embodiment stats: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Embodiment History\n\n")
	fmt.Fprintf(&b, "**Total:** %d (embodied %d, interrupted %d, failed %d)\n\n",
		stats.Total,
		stats.ByOutcome[journal.OutcomeEmbodied],
		stats.ByOutcome[journal.OutcomeInterrupted],
		stats.ByOutcome[journal.OutcomeFailed],
	)

	if len(entries) == 0 {
		b.WriteString("No embodiments recorded yet.")
		return mcp.NewToolResultText(b.String()), nil
	}

	b.WriteString("| When | Sparkler | Workspace | Outcome | Session |\n")
	b.WriteString("|------|----------|-----------|---------|---------|\n")
	for _, e := range entries {
		outcome := string(e.Outcome)
		switch {
		case e.Error != "":
			outcome += ": " + e.Error
		case e.StopReason != "" && e.Outcome != journal.OutcomeEmbodied:
			outcome += " (" + e.StopReason + ")"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | `%s` |\n",
			e.CreatedAt, orDash(e.Sparkler), orDash(e.Workspace), outcome, e.SessionID)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
