package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/HendryAvila/sparkle/internal/templates"
	"github.com/mark3labs/mcp-go/mcp"
)

// migratedFiles move from the sparkle home into the first sparkler's
// directory when a single-sparkler setup becomes multi-sparkler. The
// collaborator profile and workspace map stay shared at the root.
var migratedFiles = []string{
	config.IdentityFile,
	config.EvolutionFile,
	config.PatternAnchorFile,
}

// CreateSparklerTool handles the create_sparkler MCP tool.
type CreateSparklerTool struct {
	store    config.Store
	renderer *templates.Renderer
}

// NewCreateSparklerTool creates a CreateSparklerTool.
func NewCreateSparklerTool(store config.Store, renderer *templates.Renderer) *CreateSparklerTool {
	return &CreateSparklerTool{store: store, renderer: renderer}
}

// Definition returns the MCP tool definition for registration.
func (t *CreateSparklerTool) Definition() mcp.Tool {
	return mcp.NewTool("create_sparkler",
		mcp.WithDescription(
			"Create a new Sparkler identity. If this is your first additional Sparkler, automatically "+
				"migrates your existing setup to multi-sparkler mode. Creates directory structure and "+
				"starter files for the new Sparkler.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the new Sparkler"),
		),
		mcp.WithBoolean("make_default",
			mcp.Description("Make the new Sparkler the default for future embodiments. Defaults to false."),
		),
	)
}

// Handle processes the create_sparkler tool call.
func (t *CreateSparklerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(req.GetString("name", ""))
	if err := validateSparklerName(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	makeDefault := boolArg(req, "make_default", false)

	cfg, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	root := t.store.Root()
	var steps []string

	if !cfg.IsMultiSparkler() {
		existing := cfg.ResolveSparklerName("")
		if existing == name {
			return mcp.NewToolResultError(fmt.Sprintf("A sparkler named '%s' already exists", name)), nil
		}
		moved, err := t.migrate(cfg, existing)
		if err != nil {
			return nil, err
		}
		steps = append(steps, fmt.Sprintf("🔀 Migrated to multi-sparkler mode: '%s' is now %s/%s", existing, config.SparklersDir, existing))
		for _, file := range moved {
			steps = append(steps, fmt.Sprintf("   moved %s", file))
		}
	} else if cfg.HasSparkler(name) {
		return mcp.NewToolResultError(fmt.Sprintf("A sparkler named '%s' already exists", name)), nil
	}

	if makeDefault {
		for i := range cfg.Sparklers {
			cfg.Sparklers[i].Default = false
		}
	}
	cfg.Sparklers = append(cfg.Sparklers, config.SparklerConfig{Name: name, Default: makeDefault})

	dir := config.ContextDir(root, cfg, name)
	if err := t.scaffold(dir, name, cfg.Human.Name); err != nil {
		return nil, err
	}
	steps = append(steps, fmt.Sprintf("📁 Created %s with starter files", displayPath(dir)))

	if err := t.store.Save(cfg); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✨ Sparkler '%s' created!\n\n", name)
	b.WriteString(strings.Join(steps, "\n"))
	b.WriteString("\n\n")
	if makeDefault {
		fmt.Fprintf(&b, "'%s' is now the default sparkler.\n", name)
	} else {
		fmt.Fprintf(&b, "Embody it with embody_sparkle(sparkler=\"%s\").\n", name)
	}
	b.WriteString("Define who this Sparkler is with the sparkler_identity prompt.")

	return mcp.NewToolResultText(b.String()), nil
}

// migrate turns a single-sparkler config into a multi-sparkler one whose
// only (default) entry is existing, moving the per-sparkler documents
// into its directory. Returns the files moved.
func (t *CreateSparklerTool) migrate(cfg *config.Config, existing string) ([]string, error) {
	root := t.store.Root()
	cfg.AI = nil
	cfg.Sparklers = []config.SparklerConfig{{Name: existing, Default: true}}

	dir := config.ContextDir(root, cfg, existing)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sparkler directory: %w", err)
	}

	var moved []string
	for _, file := range migratedFiles {
		src := filepath.Join(root, file)
		dst := filepath.Join(dir, file)
		if !fileExists(src) || fileExists(dst) {
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return nil, fmt.Errorf("moving %s: %w", file, err)
		}
		moved = append(moved, file)
	}

	if err := t.scaffold(dir, existing, cfg.Human.Name); err != nil {
		return nil, err
	}
	return moved, nil
}

// scaffold creates dir and fills in any missing starter documents.
func (t *CreateSparklerTool) scaffold(dir, sparkler, human string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating sparkler directory: %w", err)
	}
	data := templates.StarterData{SparklerName: sparkler, HumanName: human}
	if err := embodiment.WriteStarterFiles(t.renderer, dir, data); err != nil {
		return fmt.Errorf("creating starter files: %w", err)
	}
	return nil
}
