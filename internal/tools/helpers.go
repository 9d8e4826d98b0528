// Package tools implements the sparkle MCP tool handlers.
//
// Each tool is a struct that receives its dependencies through the
// constructor (DIP) and exposes Definition() for registration and Handle()
// as the mcp-go handler.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on config.Store and the renderer, never on ~/.sparkle directly
// - Input problems are tool errors (mcp.NewToolResultError); I/O failures are Go errors
package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// SparklerState remembers which sparkler the session last embodied, so
// later tools and prompts act on the same persona without restating it.
// The zero value is ready to use.
type SparklerState struct {
	mu      sync.RWMutex
	current string
}

// NewSparklerState returns a state preset to name ("" means unset).
func NewSparklerState(name string) *SparklerState {
	return &SparklerState{current: name}
}

// Current returns the active sparkler, or "" if none was chosen.
func (s *SparklerState) Current() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set records name as the active sparkler.
func (s *SparklerState) Set(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
}

// pick returns explicit when set, else the remembered sparkler.
func (s *SparklerState) pick(explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return s.Current()
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringsArg extracts a string array argument, skipping non-string and
// blank items.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// isSparklerLookupError reports errors caused by the caller naming a
// sparkler that cannot be used. Those are tool errors, not failures.
func isSparklerLookupError(err error) bool {
	var notFound *config.SparklerNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, config.ErrNoSparkler)
}

// validateSparklerName rejects names that cannot double as a directory
// name under sparklers/.
func validateSparklerName(name string) error {
	switch {
	case name == "":
		return errors.New("sparkler name cannot be empty")
	case name == "." || name == "..":
		return fmt.Errorf("%q is not a valid sparkler name", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("sparkler name %q must not contain path separators", name)
	}
	return nil
}

// displayPath shortens paths under the user's home to ~/...
func displayPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	rel, err := filepath.Rel(home, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return path
	}
	return "~/" + filepath.ToSlash(rel)
}

// appendFile appends content to path, creating it and its parent
// directory as needed.
func appendFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return f.Close()
}

// writeFile writes content to path, creating parent directories as needed.
func writeFile(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
