// Sparkle: AI collaboration identity MCP server and ACP proxy.
//
// Sparkle gives an AI assistant a persistent collaborative persona (a
// "Sparkler") built from documents under ~/.sparkle: a universal identity,
// the collaborator's profile, accumulated insights and per-workspace
// working memory.
//
// Usage:
//
//	sparkle serve                                   # MCP tool server (stdio)
//	sparkle serve --acp -- <agent command...>       # ACP proxy that embodies every session
//	sparkle version
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
