// Package resources implements the sparkle MCP resources.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (sparkle://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/journal"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	SparklersURI   = "sparkle://sparklers"
	EmbodimentsURI = "sparkle://embodiments"
)

// Handler manages sparkle resource endpoints.
type Handler struct {
	store   config.Store
	journal *journal.Store
}

// NewHandler creates a resource Handler. j may be nil, in which case the
// embodiments resource reports an empty journal.
func NewHandler(store config.Store, j *journal.Store) *Handler {
	return &Handler{store: store, journal: j}
}

// SparklerSummary describes one configured persona.
type SparklerSummary struct {
	Name        string `json:"name"`
	Default     bool   `json:"default"`
	Dir         string `json:"dir"`
	HasIdentity bool   `json:"has_identity"`
}

// Summary is the sparkle://sparklers document.
type Summary struct {
	Root      string            `json:"root"`
	Mode      string            `json:"mode"`
	Human     string            `json:"human"`
	Default   string            `json:"default"`
	Sparklers []SparklerSummary `json:"sparklers"`
}

// SparklersResource returns the MCP resource definition for the persona summary.
func (h *Handler) SparklersResource() mcp.Resource {
	return mcp.NewResource(
		SparklersURI,
		"Sparkle Sparklers",
		mcp.WithResourceDescription("Configured sparklers, the default one, and where their context lives"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleSparklers returns the persona summary as JSON.
func (h *Handler) HandleSparklers(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cfg, err := h.store.Load()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	root := h.store.Root()
	summary := Summary{
		Root:    root,
		Mode:    "single",
		Human:   cfg.Human.Name,
		Default: cfg.ResolveSparklerName(""),
	}

	entries := cfg.Sparklers
	if cfg.IsMultiSparkler() {
		summary.Mode = "multi"
	} else {
		entries = []config.SparklerConfig{{Name: summary.Default, Default: true}}
	}
	for _, s := range entries {
		dir := config.ContextDir(root, cfg, s.Name)
		_, statErr := os.Stat(filepath.Join(dir, config.IdentityFile))
		summary.Sparklers = append(summary.Sparklers, SparklerSummary{
			Name:        s.Name,
			Default:     s.Name == summary.Default,
			Dir:         dir,
			HasIdentity: statErr == nil,
		})
	}

	return jsonResource(req.Params.URI, summary)
}

// EmbodimentsResource returns the MCP resource definition for journal stats.
func (h *Handler) EmbodimentsResource() mcp.Resource {
	return mcp.NewResource(
		EmbodimentsURI,
		"Sparkle Embodiments",
		mcp.WithResourceDescription("Counts of session embodiments performed by the ACP proxy, by outcome"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleEmbodiments returns the journal statistics as JSON.
func (h *Handler) HandleEmbodiments(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.journal == nil {
		return jsonResource(req.Params.URI, journal.Stats{ByOutcome: map[journal.Outcome]int{}})
	}
	stats, err := h.journal.Stats()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, stats)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
