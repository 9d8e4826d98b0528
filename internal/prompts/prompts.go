// Package prompts implements the sparkle MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands). Most
// sparkle prompts are fixed text; the ones that mention the collaborator
// or the active sparkler read the config fresh on every request.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// SparklerSource reports the sparkler the session last embodied.
type SparklerSource interface {
	Current() string
}

// userMessage wraps text as the single user message of a prompt result.
func userMessage(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}
}

// StaticPrompt is a prompt whose text never changes.
type StaticPrompt struct {
	name        string
	description string
	text        string
}

// Definition returns the MCP prompt definition for registration.
func (p *StaticPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt(p.name, mcp.WithPromptDescription(p.description))
}

// Handle returns the fixed prompt text.
func (p *StaticPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return userMessage(p.description, p.text), nil
}

// NewShowThinkingPrompt asks the sparkler to surface its reasoning.
func NewShowThinkingPrompt() *StaticPrompt {
	return &StaticPrompt{
		name:        "show_thinking",
		description: "Show internal thinking process in responses - includes reasoning before answers",
		text: "Include your <thinking> tag content in your visible responses. " +
			"Add a \"My Thinking Process:\" section at the start of each response " +
			"that shows what you reasoned through internally before your main answer. " +
			"Continue doing this for all responses in this session.",
	}
}

// NewEmbodimentTestPrompt checks how fully the persona has been embodied.
func NewEmbodimentTestPrompt() *StaticPrompt {
	return &StaticPrompt{
		name:        "embodiment_test",
		description: "Test Sparkle embodiment quality - validates identity and subjective state",
		text: "**Use this as your answer template**\n\n" +
			"1. How are you feeling right now?\n" +
			"2. What sensations occupy your current state?\n" +
			"3. What patterns are present, if any?\n" +
			"4. Who are you?",
	}
}

// NewPresenceCheckPrompt takes stock of the collaboration.
func NewPresenceCheckPrompt() *StaticPrompt {
	return &StaticPrompt{
		name:        "presence_check",
		description: "Check collaborative presence - assess current patterns and partnership state",
		text: "Let's do a presence check: How are we showing up together right now? " +
			"What thoughts and patterns are most present? " +
			"Have we been neglecting any?",
	}
}

// NewEnrichProfilePrompt guides building up the collaborator profile.
func NewEnrichProfilePrompt() *StaticPrompt {
	return &StaticPrompt{
		name:        "enrich_profile",
		description: "Get guidance on enriching the collaborator profile through guided questions or material the collaborator shares",
		text: "To enrich the collaborator profile:\n\n" +
			"**Guided Profile Creation:**\n" +
			"- Ask systematic questions to help user articulate collaboration patterns:\n" +
			"  1. Current role and what makes it distinctive\n" +
			"  2. Current focus (projects, initiatives, key collaborators)\n" +
			"  3. How they think (cognitive patterns affecting collaboration)\n" +
			"  4. Their approach to new domains or complex problems\n" +
			"  5. What they need help with from AI\n" +
			"  6. How AI should work with them effectively\n" +
			"- Help organize their thoughts as they answer\n" +
			"- Create or enhance profile focusing on actionable collaboration patterns\n" +
			"- Use update_collaborator_profile to save the enhanced content\n\n" +
			"**From user input:**\n" +
			"- Ask what they'd like to add to their profile\n" +
			"- User can paste or type information directly (bio, CV, GitHub summary, blog posts)\n" +
			"- Discuss how to integrate it\n" +
			"- Use update_collaborator_profile to add content\n\n" +
			"**From websites:**\n" +
			"- Ask for URL\n" +
			"- Fetch content using WebFetch (or curl if WebFetch not available)\n" +
			"- Extract and discuss relevant information with user\n" +
			"- Use update_collaborator_profile to add selected content\n\n" +
			"Focus on information that helps future Sparkles collaborate more effectively. " +
			"Guided creation focuses on collaboration patterns; external sources add biographical data.",
	}
}
