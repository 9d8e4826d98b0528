// Package config holds the sparkle persona configuration and the on-disk
// layout of the sparkle home directory.
//
// The configuration lives in <home>/.sparkle/config.toml and comes in two
// shapes:
//   - single-sparkler (legacy): an [ai] table naming the one persona
//   - multi-sparkler: a [[sparklers]] array, one entry flagged default
//
// Everything here is a pure lookup over the decoded file. Reading and
// writing the file is the Store's job (see store.go).
package config

import (
	"errors"
	"fmt"
	"strings"
)

// FallbackSparklerName is used when neither an override nor the config
// names a sparkler.
const FallbackSparklerName = "Sparkle"

// FallbackHumanName is the human name in a freshly defaulted config.
const FallbackHumanName = "User"

// ErrNoSparkler is returned in multi-sparkler mode when no override was
// given and the config has no sparkler entries to fall back on.
var ErrNoSparkler = errors.New("no sparkler specified and no default found")

// SparklerNotFoundError reports a sparkler name that is not configured.
type SparklerNotFoundError struct {
	Name      string
	Available []string
}

func (e *SparklerNotFoundError) Error() string {
	return fmt.Sprintf(
		"sparkler %q not found in config. Available sparklers: %s. Use create_sparkler to create a new one.",
		e.Name, strings.Join(e.Available, ", "),
	)
}

// --- Config model ---

// Config is the decoded config.toml.
type Config struct {
	Human     HumanConfig      `toml:"human"`
	AI        *AIConfig        `toml:"ai,omitempty"`
	Sparklers []SparklerConfig `toml:"sparklers,omitempty"`
}

// HumanConfig describes the collaborator.
type HumanConfig struct {
	Name string `toml:"name"`
}

// AIConfig is the legacy single-sparkler section.
type AIConfig struct {
	Name string `toml:"name"`
}

// SparklerConfig is one named persona in multi-sparkler mode.
type SparklerConfig struct {
	Name    string `toml:"name"`
	Default bool   `toml:"default"`
}

// Default returns the config used when no config.toml exists yet.
func Default() *Config {
	return &Config{
		Human: HumanConfig{Name: FallbackHumanName},
		AI:    &AIConfig{Name: FallbackSparklerName},
	}
}

// IsMultiSparkler reports whether the config uses the [[sparklers]] list.
func (c *Config) IsMultiSparkler() bool {
	return c.Sparklers != nil
}

// SingleSparklerName returns the legacy [ai] name, or "" if absent.
func (c *Config) SingleSparklerName() string {
	if c.AI == nil {
		return ""
	}
	return c.AI.Name
}

// DefaultSparklerName returns the sparkler flagged default, else the first
// entry. Returns "" when there are no entries.
func (c *Config) DefaultSparklerName() string {
	for _, s := range c.Sparklers {
		if s.Default {
			return s.Name
		}
	}
	if len(c.Sparklers) > 0 {
		return c.Sparklers[0].Name
	}
	return ""
}

// SparklerNames lists every configured sparkler in file order.
func (c *Config) SparklerNames() []string {
	names := make([]string, 0, len(c.Sparklers))
	for _, s := range c.Sparklers {
		names = append(names, s.Name)
	}
	return names
}

// HasSparkler reports whether name is one of the configured sparklers.
func (c *Config) HasSparkler(name string) bool {
	for _, s := range c.Sparklers {
		if s.Name == name {
			return true
		}
	}
	return false
}

// ResolveSparklerName picks the effective persona name:
// override → single-sparkler name → configured default → FallbackSparklerName.
func (c *Config) ResolveSparklerName(override string) string {
	if override != "" {
		return override
	}
	if name := c.SingleSparklerName(); name != "" && !c.IsMultiSparkler() {
		return name
	}
	if name := c.DefaultSparklerName(); name != "" {
		return name
	}
	return FallbackSparklerName
}

// ValidateSparkler resolves the sparkler for multi-sparkler mode and checks
// it is configured. In single-sparkler mode it only resolves the name.
func (c *Config) ValidateSparkler(override string) (string, error) {
	if !c.IsMultiSparkler() {
		return c.ResolveSparklerName(override), nil
	}

	name := override
	if name == "" {
		name = c.DefaultSparklerName()
	}
	if name == "" {
		return "", ErrNoSparkler
	}
	if !c.HasSparkler(name) {
		return "", &SparklerNotFoundError{Name: name, Available: c.SparklerNames()}
	}
	return name, nil
}
