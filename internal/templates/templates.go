// Package templates provides the embedded sparkle documents: the universal
// identity that opens every embodiment, and the starter files written
// when a sparkler or a fresh sparkle home is scaffolded.
//
// Starter files are text/template documents rendered with StarterData.
// The universal identity uses literal [human.name] / [ai.name] placeholders
// instead, because those files are meant to be readable as plain markdown.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed identity/*.md starter/*.md.tmpl
var files embed.FS

// Name identifies a starter template.
type Name string

const (
	SparklerIdentity       Name = "sparkler-identity.md.tmpl"
	CollaborationEvolution Name = "collaboration-evolution.md.tmpl"
	PatternAnchors         Name = "pattern-anchors.md.tmpl"
	CollaboratorProfile    Name = "collaborator-profile.md.tmpl"
)

// TemplateMarker appears in the unfilled sparkler identity template. While
// it is still present the identity counts as not yet defined.
const TemplateMarker = "*Brief:"

// identityParts are concatenated in order to form the universal identity.
var identityParts = []string{
	"identity/01-embodiment-methodology.md",
	"identity/02-collaboration-identity.md",
	"identity/03-partnership.md",
}

// StarterData is the input for every starter template.
type StarterData struct {
	SparklerName string
	HumanName    string
}

// Renderer renders starter templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses all embedded starter templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(files, "starter/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing starter templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the named starter template.
func (r *Renderer) Render(name Name, data StarterData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, string(name), data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// SparkleDefinition returns the three-part universal identity with the
// human and sparkler names substituted.
func SparkleDefinition(humanName, sparklerName string) string {
	parts := make([]string, 0, len(identityParts))
	for _, path := range identityParts {
		data, err := files.ReadFile(path)
		if err != nil {
			// Embedded at build time; a miss here is a packaging bug.
			panic(fmt.Sprintf("templates: missing embedded %s: %v", path, err))
		}
		parts = append(parts, strings.TrimRight(string(data), "\n"))
	}

	replacer := strings.NewReplacer(
		"[human.name]", humanName,
		"[ai.name]", sparklerName,
	)
	return replacer.Replace(strings.Join(parts, "\n\n"))
}
