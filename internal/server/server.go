// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/HendryAvila/sparkle/internal/journal"
	"github.com/HendryAvila/sparkle/internal/prompts"
	"github.com/HendryAvila/sparkle/internal/resources"
	"github.com/HendryAvila/sparkle/internal/templates"
	"github.com/HendryAvila/sparkle/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options configures New.
type Options struct {
	// Root is the sparkle home (normally ~/.sparkle).
	Root string
	// Proxied is set when the ACP proxy launched this server. The proxy
	// embodies sessions itself, so embody_sparkle and the sparkle prompt
	// are left out.
	Proxied bool
	// Sparkler presets the active sparkler for identity and insight tools.
	Sparkler string
	Logger   *zap.Logger
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The returned cleanup function closes the embodiment journal and must be
// called on shutdown (typically via defer). It is always non-nil and safe
// to call even if the journal could not be opened.
func New(opts Options) (*server.MCPServer, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// --- Create shared dependencies ---

	store := config.NewFileStore(opts.Root)

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, noop, fmt.Errorf("creating template renderer: %w", err)
	}

	state := tools.NewSparklerState(opts.Sparkler)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"sparkle",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions(opts.Proxied)),
	)

	// --- Register embodiment ---
	//
	// Under the ACP proxy the session is embodied before the first prompt;
	// offering the tool as well would embody twice.

	if !opts.Proxied {
		assembler := embodiment.NewAssembler(store, renderer, logger.Named("embodiment"))
		embodyTool := tools.NewEmbodyTool(store, assembler, state)
		s.AddTool(embodyTool.Definition(), embodyTool.Handle)

		sparklePrompt := prompts.NewSparklePrompt(store)
		s.AddPrompt(sparklePrompt.Definition(), sparklePrompt.Handle)
	}

	// --- Register persona tools ---

	setupTool := tools.NewSetupTool(store, renderer)
	s.AddTool(setupTool.Definition(), setupTool.Handle)

	checkpointTool := tools.NewCheckpointTool(state)
	s.AddTool(checkpointTool.Definition(), checkpointTool.Handle)

	insightTool := tools.NewSaveInsightTool(store, renderer, state)
	s.AddTool(insightTool.Definition(), insightTool.Handle)

	evolutionTool := tools.NewLoadEvolutionTool(store)
	s.AddTool(evolutionTool.Definition(), evolutionTool.Handle)

	profileTool := tools.NewUpdateProfileTool(store)
	s.AddTool(profileTool.Definition(), profileTool.Handle)

	identityTool := tools.NewUpdateIdentityTool(store, renderer, state)
	s.AddTool(identityTool.Definition(), identityTool.Handle)

	// --- Register sparkler management ---

	createTool := tools.NewCreateSparklerTool(store, renderer)
	s.AddTool(createTool.Definition(), createTool.Handle)

	renameTool := tools.NewRenameSparklerTool(store, state)
	s.AddTool(renameTool.Definition(), renameTool.Handle)

	listTool := tools.NewListSparklersTool(store)
	s.AddTool(listTool.Definition(), listTool.Handle)

	// --- Register embodiment journal ---
	//
	// The journal is an independent subsystem: if it fails to open, the
	// persona tools keep working. We log a warning and skip the history tool.

	cleanup := noop
	j, jErr := journal.New(journal.DefaultConfig(opts.Root))
	if jErr != nil {
		logger.Warn("embodiment journal disabled", zap.Error(jErr))
		j = nil
	} else {
		cleanup = func() {
			if err := j.Close(); err != nil {
				logger.Warn("embodiment journal close", zap.Error(err))
			}
		}
		historyTool := tools.NewHistoryTool(j)
		s.AddTool(historyTool.Definition(), historyTool.Handle)
	}

	// --- Register prompts ---

	checkpointPrompt := prompts.NewCheckpointPrompt(store)
	s.AddPrompt(checkpointPrompt.Definition(), checkpointPrompt.Handle)

	identityPrompt := prompts.NewSparklerIdentityPrompt(store, renderer, state)
	s.AddPrompt(identityPrompt.Definition(), identityPrompt.Handle)

	for _, p := range []*prompts.StaticPrompt{
		prompts.NewShowThinkingPrompt(),
		prompts.NewEmbodimentTestPrompt(),
		prompts.NewPresenceCheckPrompt(),
		prompts.NewEnrichProfilePrompt(),
	} {
		s.AddPrompt(p.Definition(), p.Handle)
	}

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store, j)
	s.AddResource(resourceHandler.SparklersResource(), resourceHandler.HandleSparklers)
	s.AddResource(resourceHandler.EmbodimentsResource(), resourceHandler.HandleEmbodiments)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used as the default when the journal
// is disabled.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use sparkle.
func serverInstructions(proxied bool) string {
	embody := `## Embodiment
At the start of a session, call embody_sparkle with workspace_path set to the
current working directory. If the sparkle home does not exist yet, use the
sparkle prompt: it walks you through setup_sparkle first.`
	if proxied {
		embody = `## Embodiment
This session was embodied automatically before your first prompt. Do not try
to embody again.`
	}

	return `You have access to Sparkle, an AI collaboration identity server.

` + embody + `

## During the session
- save_insight: capture pattern anchors, collaboration breakthroughs and
  cross-workspace connections as they happen.
- session_checkpoint: when the collaborator asks for a checkpoint (see the
  checkpoint prompt), write the working memory and a narrative handoff.
- update_collaborator_profile and update_sparkler_identity replace those
  documents. Get the collaborator's consent first.

## Sparklers
A Sparkler is one named persona. list_sparklers shows them,
create_sparkler adds one (moving a single-persona setup to multi-sparkler
mode), rename_sparkler renames one. embodiment_history shows how recent
proxied sessions were embodied.`
}
