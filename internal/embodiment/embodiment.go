// Package embodiment assembles the embodiment document: the persona's
// identity, collaborator context and workspace state concatenated into a
// single markdown text that a session reads before any real work starts.
//
// Assembly is a pure read of the sparkle home and the workspace, apart
// from two idempotent writes: scaffolding a missing sparkler directory
// (multi-sparkler mode) and seeding a missing sparkler-identity.md.
package embodiment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/templates"
)

// Mode selects how much context is assembled.
type Mode string

// ModeComplete is the only mode with behavior. Unknown modes assemble the
// complete document.
const ModeComplete Mode = "complete"

// CurrentWorkspace is the sentinel meaning "no workspace supplied".
const CurrentWorkspace = "current"

const sectionSeparator = "\n\n"

const identityGuidance = "💡 **Note**: Define the essence of your Sparkler identity - use the `sparkler_identity` prompt for guidance, then the `update_sparkler_identity` tool to save it."

// Request selects the persona and workspace to embody.
type Request struct {
	Mode          Mode
	WorkspacePath string
	// Sparkler overrides the configured default persona when non-empty.
	Sparkler string
}

// Assembler builds embodiment documents. It holds no per-call state; the
// config is read fresh on every Assemble.
type Assembler struct {
	store    config.Store
	renderer *templates.Renderer
	logger   *zap.Logger
}

// NewAssembler creates an Assembler reading the sparkle home through store.
func NewAssembler(store config.Store, renderer *templates.Renderer, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{store: store, renderer: renderer, logger: logger}
}

// SparklerName resolves the persona Assemble embodies for override,
// without touching the filesystem beyond reading the config.
func (a *Assembler) SparklerName(override string) (string, error) {
	cfg, err := a.store.Load()
	if err != nil {
		return "", fmt.Errorf("loading sparkle config: %w", err)
	}
	name, err := cfg.ValidateSparkler(override)
	if err != nil {
		return "", fmt.Errorf("resolving sparkler: %w", err)
	}
	return name, nil
}

// documents are loaded after the persona identity, in this order.
var documents = []struct {
	file     string
	fallback string
	shared   bool
}{
	{config.ProfileFile, "*Collaborator profile would be loaded dynamically*", true},
	{config.WorkspaceMapFile, "*Workspace map would be loaded dynamically*", true},
	{config.EvolutionFile, "*Collaboration evolution would be loaded dynamically*", false},
	{config.PatternAnchorFile, "*Pattern anchors would be loaded dynamically*", false},
}

// Assemble produces the embodiment document for req. It fails only when
// the configuration cannot be read or the requested sparkler cannot be
// resolved; missing context documents degrade to placeholders.
func (a *Assembler) Assemble(req Request) (string, error) {
	pc, err := ResolveContext(a.store, a.renderer, req.Sparkler)
	if err != nil {
		return "", err
	}

	sections := []string{templates.SparkleDefinition(pc.Config.Human.Name, pc.Sparkler)}

	identity, needsGuidance := a.sparklerIdentity(pc)
	sections = append(sections, identity)
	if needsGuidance {
		sections = append(sections, identityGuidance)
	}

	for _, doc := range documents {
		sections = append(sections, loadDocument(pc, doc.file, doc.fallback, doc.shared))
	}

	var b strings.Builder
	b.WriteString(strings.Join(sections, sectionSeparator))
	b.WriteString("\n\n---\n\n")
	b.WriteString(workspaceContext(pc.Config, req.WorkspacePath))
	return b.String(), nil
}

// sparklerIdentity returns the persona identity document, seeding it from
// the starter template when missing. The second result reports whether the
// guidance note should follow it.
func (a *Assembler) sparklerIdentity(pc *Context) (string, bool) {
	path := filepath.Join(pc.Dir, config.IdentityFile)

	_, statErr := os.Stat(path)
	existed := statErr == nil
	if !existed {
		content, err := a.renderer.Render(templates.SparklerIdentity, templates.StarterData{
			SparklerName: pc.Sparkler,
			HumanName:    pc.Config.Human.Name,
		})
		if err == nil {
			if _, err = writeIfMissing(path, content); err != nil {
				a.logger.Warn("could not seed sparkler identity", zap.String("path", path), zap.Error(err))
			}
		}
	}

	identity := readOr(path, "*Sparkler identity would be loaded dynamically*")
	return identity, !existed || strings.Contains(identity, templates.TemplateMarker)
}

// loadDocument reads file from the persona directory. Shared documents
// fall back to the sparkle home root, where a single collaborator profile
// and workspace map serve every sparkler.
func loadDocument(pc *Context, file, fallback string, shared bool) string {
	if content, ok := readFile(filepath.Join(pc.Dir, file)); ok {
		return content
	}
	if shared && pc.Dir != pc.Root {
		if content, ok := readFile(filepath.Join(pc.Root, file)); ok {
			return content
		}
	}
	return fallback
}

func readOr(path, fallback string) string {
	if content, ok := readFile(path); ok {
		return content
	}
	return fallback
}

func readFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimRight(string(data), "\n"), true
}

// IsCurrentWorkspace reports whether path means "no workspace supplied".
func IsCurrentWorkspace(path string) bool {
	return path == "" || path == CurrentWorkspace
}
