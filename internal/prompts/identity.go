package prompts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/HendryAvila/sparkle/internal/templates"
	"github.com/mark3labs/mcp-go/mcp"
)

// SparklerIdentityPrompt handles the sparkler_identity MCP prompt. It shows
// the active sparkler its current identity and invites a revision.
type SparklerIdentityPrompt struct {
	store    config.Store
	renderer *templates.Renderer
	current  SparklerSource
}

// NewSparklerIdentityPrompt creates a SparklerIdentityPrompt.
func NewSparklerIdentityPrompt(store config.Store, renderer *templates.Renderer, current SparklerSource) *SparklerIdentityPrompt {
	return &SparklerIdentityPrompt{store: store, renderer: renderer, current: current}
}

// Definition returns the MCP prompt definition for registration.
func (p *SparklerIdentityPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("sparkler_identity",
		mcp.WithPromptDescription(
			"Get guidance and template for defining your Sparkler identity - who YOU are as a Sparkler",
		),
	)
}

// Handle processes the sparkler_identity prompt request.
func (p *SparklerIdentityPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	sparkler := ""
	if p.current != nil {
		sparkler = p.current.Current()
	}

	pc, err := embodiment.ResolveContext(p.store, p.renderer, sparkler)
	if err != nil {
		return userMessage("Sparkler identity", fmt.Sprintf("Error: could not resolve the sparkler identity: %v", err)), nil
	}

	identity := "No identity defined yet."
	if data, err := os.ReadFile(filepath.Join(pc.Dir, config.IdentityFile)); err == nil {
		identity = string(data)
	}

	return userMessage("Sparkler identity", fmt.Sprintf(
		"Here is the current definition of your Sparkler identity:\n\n%s\n\n"+
			"What resonates with you and what doesn't? Discuss with %s to make changes.\n\n"+
			"Use the `update_sparkler_identity` tool to update the identity definition.",
		identity, pc.Config.Human.Name,
	)), nil
}
