package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// SparkleDir is the sparkle home directory name under the user's home.
	SparkleDir = ".sparkle"
	// ConfigFile is the persona configuration filename.
	ConfigFile = "config.toml"
	// SparklersDir holds one context directory per sparkler in multi mode.
	SparklersDir = "sparklers"
	// EvolutionDir holds framework design documents for load_evolution.
	EvolutionDir = "evolution"

	// Per-persona context documents.
	IdentityFile      = "sparkler-identity.md"
	ProfileFile       = "collaborator-profile.md"
	WorkspaceMapFile  = "workspace-map.md"
	EvolutionFile     = "collaboration-evolution.md"
	PatternAnchorFile = "pattern-anchors.md"

	// WorkspaceStateDir is the per-workspace state directory.
	WorkspaceStateDir = ".sparkle-space"
	// WorkingMemoryFile is the current working memory inside WorkspaceStateDir.
	WorkingMemoryFile = "working-memory.json"
	// CheckpointsDir holds timestamped checkpoint markdown files.
	CheckpointsDir = "checkpoints"
)

// Store defines the persistence interface for the persona config.
// Abstracted for testability (DIP).
type Store interface {
	// Root is the sparkle home directory (normally ~/.sparkle).
	Root() string
	Load() (*Config, error)
	Save(cfg *Config) error
	Exists() bool
}

// FileStore implements Store on a config.toml under root.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at the given sparkle home directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// DefaultRoot returns ~/.sparkle.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find home directory: %w", err)
	}
	return filepath.Join(home, SparkleDir), nil
}

// Root returns the sparkle home directory.
func (fs *FileStore) Root() string { return fs.root }

// ConfigPath returns the absolute path to config.toml.
func ConfigPath(root string) string {
	return filepath.Join(root, ConfigFile)
}

// Exists reports whether config.toml has been written.
func (fs *FileStore) Exists() bool {
	_, err := os.Stat(ConfigPath(fs.root))
	return err == nil
}

// Load reads config.toml. A missing file yields Default(), not an error.
func (fs *FileStore) Load() (*Config, error) {
	data, err := os.ReadFile(ConfigPath(fs.root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}
	if cfg.Human.Name == "" {
		cfg.Human.Name = FallbackHumanName
	}
	return &cfg, nil
}

// Save writes config.toml through a temp file so readers never see a
// partial document.
func (fs *FileStore) Save(cfg *Config) error {
	if err := os.MkdirAll(fs.root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", fs.root, err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(fs.root, ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Rename(tmpName, ConfigPath(fs.root)); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// --- Path helpers ---

// ContextDir returns the directory holding a sparkler's context documents:
// root itself in single-sparkler mode, root/sparklers/<name> otherwise.
func ContextDir(root string, cfg *Config, sparkler string) string {
	if !cfg.IsMultiSparkler() {
		return root
	}
	return filepath.Join(root, SparklersDir, sparkler)
}

// WorkspaceStatePath returns <workspace>/.sparkle-space. The state
// directory is shared by every sparkler working in that workspace.
func WorkspaceStatePath(workspace string) string {
	return filepath.Join(workspace, WorkspaceStateDir)
}

// CheckpointsPath returns <workspace>/.sparkle-space/checkpoints.
func CheckpointsPath(workspace string) string {
	return filepath.Join(WorkspaceStatePath(workspace), CheckpointsDir)
}
