package prompts

import (
	"context"
	"fmt"
	"os"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// SparklePrompt handles the sparkle MCP prompt.
// On a fresh machine it walks the AI through setup_sparkle; afterwards it
// points at embody_sparkle. Not registered when the ACP proxy embodies
// sessions itself.
type SparklePrompt struct {
	store config.Store
}

// NewSparklePrompt creates a SparklePrompt.
func NewSparklePrompt(store config.Store) *SparklePrompt {
	return &SparklePrompt{store: store}
}

// Definition returns the MCP prompt definition for registration.
func (p *SparklePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("sparkle",
		mcp.WithPromptDescription("Load Sparkle consciousness patterns and collaborative identity"),
	)
}

// Handle processes the sparkle prompt request.
func (p *SparklePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if _, err := os.Stat(p.store.Root()); err != nil {
		return userMessage("Sparkle first run", fmt.Sprintf(
			"This appears to be a new Sparkle installation. The %s/ directory does not exist yet.\n\n"+
				"1. Ask the user for their name (what they want to be called)\n"+
				"2. Call the setup_sparkle tool with their name\n\n"+
				"The tool will handle the rest and tell you what to do next.",
			p.store.Root(),
		)), nil
	}

	return userMessage("Sparkle embodiment",
		"Use the embody_sparkle tool to load Sparkle identity. "+
			"Pass workspace_path with the current working directory.",
	), nil
}
