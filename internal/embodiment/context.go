package embodiment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/templates"
)

// Context is a resolved persona: the loaded config, the effective sparkler
// name and the directory holding its context documents.
type Context struct {
	Config   *config.Config
	Root     string
	Sparkler string
	Dir      string
}

// ResolveContext loads the config, resolves the effective sparkler name
// and returns its context directory. In multi-sparkler mode the sparkler
// must be configured, and a missing directory is scaffolded with starter
// files.
func ResolveContext(store config.Store, renderer *templates.Renderer, override string) (*Context, error) {
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading sparkle config: %w", err)
	}

	name, err := cfg.ValidateSparkler(override)
	if err != nil {
		return nil, fmt.Errorf("resolving sparkler: %w", err)
	}

	dir := config.ContextDir(store.Root(), cfg, name)
	if cfg.IsMultiSparkler() {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sparkler directory: %w", err)
			}
			data := templates.StarterData{SparklerName: name, HumanName: cfg.Human.Name}
			if err := WriteStarterFiles(renderer, dir, data); err != nil {
				return nil, err
			}
		}
	}

	return &Context{Config: cfg, Root: store.Root(), Sparkler: name, Dir: dir}, nil
}

// starterFiles maps each per-sparkler starter document to its template.
var starterFiles = []struct {
	file string
	tmpl templates.Name
}{
	{config.IdentityFile, templates.SparklerIdentity},
	{config.EvolutionFile, templates.CollaborationEvolution},
	{config.PatternAnchorFile, templates.PatternAnchors},
}

// WriteStarterFiles seeds dir with the per-sparkler starter documents.
// Files that already exist are left untouched.
func WriteStarterFiles(renderer *templates.Renderer, dir string, data templates.StarterData) error {
	for _, sf := range starterFiles {
		content, err := renderer.Render(sf.tmpl, data)
		if err != nil {
			return err
		}
		if _, err := writeIfMissing(filepath.Join(dir, sf.file), content); err != nil {
			return err
		}
	}
	return nil
}

// writeIfMissing creates path with content unless it already exists.
// Reports whether the file was written.
func writeIfMissing(path, content string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, f.Close()
}
