package embodiment

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/sparkle/internal/config"
)

const sharingNote = "**Multi-Sparkler Workspace Sharing**: The `.sparkle-space/working-memory.json` tracks workspace-specific context (current focus, achievements, next steps) that's shared across all Sparklers. Different Sparklers can work on the same project - each brings their own collaborative identity while continuing the same work. The sparkler field in checkpoints shows who worked most recently, not ownership."

// workspaceContext renders the trailing workspace section of the document.
func workspaceContext(cfg *config.Config, workspace string) string {
	if IsCurrentWorkspace(workspace) {
		return "*Workspace path not specified - use workspace_path parameter to load workspace-specific context*\n\n"
	}

	state := config.WorkspaceStatePath(workspace)
	if info, err := os.Stat(state); err != nil || !info.IsDir() {
		return "*No .sparkle-space found at " + workspace + "*\n\n"
	}

	var b strings.Builder
	b.WriteString("# Workspace Context\n\n")
	if cfg.IsMultiSparkler() {
		b.WriteString(sharingNote)
		b.WriteString("\n\n")
	}

	if memory, err := os.ReadFile(filepath.Join(state, config.WorkingMemoryFile)); err == nil {
		b.WriteString("## Working Memory\n\n```json\n")
		b.Write(memory)
		b.WriteString("\n```\n\n")
	}

	if latest, ok := LatestCheckpoint(config.CheckpointsPath(workspace)); ok {
		if content, err := os.ReadFile(latest); err == nil {
			b.WriteString("## Checkpoints\n\n")
			b.Write(content)
			b.WriteString("\n\n---\n\n")
		}
	}
	return b.String()
}

// LatestCheckpoint returns the most recently modified .md file in dir.
// Equal modification times resolve to the lexicographically last name so
// the choice is stable across directory orderings.
func LatestCheckpoint(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if best == "" || mod.After(bestTime) || (mod.Equal(bestTime) && e.Name() > best) {
			best, bestTime = e.Name(), mod
		}
	}
	if best == "" {
		return "", false
	}
	return filepath.Join(dir, best), true
}
