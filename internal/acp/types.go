// Package acp implements the slice of the Agent Client Protocol that the
// sparkle proxy needs: newline-delimited JSON-RPC 2.0 over a byte stream,
// plus the session schema types it reads and writes.
//
// The proxy forwards most traffic verbatim as json.RawMessage, so only the
// fields it inspects or synthesizes are modeled here.
package acp

import "encoding/json"

// Method names.
const (
	MethodInitialize    = "initialize"
	MethodSessionNew    = "session/new"
	MethodSessionLoad   = "session/load"
	MethodSessionPrompt = "session/prompt"
	MethodSessionCancel = "session/cancel"
	MethodSessionUpdate = "session/update"
)

// SessionID identifies a session. Assigned by the agent on session/new.
type SessionID string

// StopReason is why the agent finished a prompt turn.
type StopReason string

const (
	StopEndTurn         StopReason = "end_turn"
	StopCancelled       StopReason = "cancelled"
	StopMaxTokens       StopReason = "max_tokens"
	StopMaxTurnRequests StopReason = "max_turn_requests"
	StopRefusal         StopReason = "refusal"
)

// Meta is the free-form _meta extension object.
type Meta map[string]any

// EnvVariable is one environment variable passed to an MCP server.
type EnvVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// McpServer describes an MCP server the agent should connect to. Only the
// stdio transport is produced by sparkle; other variants pass through as
// raw JSON.
type McpServer struct {
	Name    string        `json:"name"`
	Command string        `json:"command"`
	Args    []string      `json:"args"`
	Env     []EnvVariable `json:"env"`
}

// NewSessionRequest is the params of session/new.
type NewSessionRequest struct {
	Cwd        string            `json:"cwd"`
	McpServers []json.RawMessage `json:"mcpServers"`
	Meta       Meta              `json:"_meta,omitempty"`
}

// NewSessionResponse is the result of session/new.
type NewSessionResponse struct {
	SessionID SessionID `json:"sessionId"`
	Meta      Meta      `json:"_meta,omitempty"`
}

// ContentBlock is one block of prompt content. Non-text blocks are never
// built by sparkle and are forwarded untouched.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// PromptRequest is the params of session/prompt.
type PromptRequest struct {
	SessionID SessionID      `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
	Meta      Meta           `json:"_meta,omitempty"`
}

// PromptResponse is the result of session/prompt.
type PromptResponse struct {
	StopReason StopReason `json:"stopReason"`
	Meta       Meta       `json:"_meta,omitempty"`
}

// UpdateAgentMessageChunk tags a session/update carrying agent output.
const UpdateAgentMessageChunk = "agent_message_chunk"

// ContentChunk is a session update streaming one content block.
type ContentChunk struct {
	SessionUpdate string       `json:"sessionUpdate"`
	Content       ContentBlock `json:"content"`
}

// AgentMessage returns an agent_message_chunk update with text.
func AgentMessage(text string) ContentChunk {
	return ContentChunk{SessionUpdate: UpdateAgentMessageChunk, Content: TextBlock(text)}
}

// SessionNotification is the params of session/update.
type SessionNotification struct {
	SessionID SessionID       `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}
