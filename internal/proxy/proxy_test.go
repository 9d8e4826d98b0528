package proxy

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HendryAvila/sparkle/internal/acp"
	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/embodiment"
	"github.com/HendryAvila/sparkle/internal/journal"
	"github.com/HendryAvila/sparkle/internal/templates"
)

// fakeAgent is an ACP agent on the far side of a pipe. Every prompt
// produces one session/update notification and then an end_turn.
type fakeAgent struct {
	conn *acp.Conn

	mu          sync.Mutex
	prompts     []acp.PromptRequest
	newSessions []json.RawMessage
	notified    []string
}

func (a *fakeAgent) HandleRequest(ctx context.Context, req *acp.Request) {
	go func() {
		switch req.Method {
		case acp.MethodInitialize:
			_ = req.Reply(map[string]any{"protocolVersion": 1})
		case acp.MethodSessionNew:
			a.mu.Lock()
			a.newSessions = append(a.newSessions, req.Params)
			a.mu.Unlock()
			_ = req.Reply(acp.NewSessionResponse{SessionID: acp.SessionID(uuid.NewString())})
		case acp.MethodSessionPrompt:
			var p acp.PromptRequest
			if err := json.Unmarshal(req.Params, &p); err != nil {
				_ = req.ReplyError(&acp.Error{Code: acp.CodeInvalidParams, Message: err.Error()})
				return
			}
			a.mu.Lock()
			a.prompts = append(a.prompts, p)
			n := len(a.prompts)
			a.mu.Unlock()

			_ = a.conn.Notify(acp.MethodSessionUpdate, acp.SessionNotification{
				SessionID: p.SessionID,
				Update:    mustJSON(map[string]any{"sessionUpdate": "agent_message_chunk", "turn": n}),
			})
			_ = req.Reply(acp.PromptResponse{StopReason: acp.StopEndTurn})
		case "ask/client":
			raw, err := a.conn.Call(ctx, "fs/read_text_file", map[string]string{"path": "/ws/notes.md"})
			if err != nil {
				_ = req.ReplyError(err)
				return
			}
			_ = req.Reply(raw)
		default:
			_ = req.ReplyError(&acp.Error{Code: acp.CodeMethodNotFound, Message: "method not found"})
		}
	}()
}

func (a *fakeAgent) HandleNotification(_ context.Context, n *acp.Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notified = append(a.notified, n.Method)
}

// fakeClient stands in for the editor.
type fakeClient struct {
	updates chan acp.SessionNotification
}

func (c *fakeClient) HandleRequest(_ context.Context, req *acp.Request) {
	if req.Method == "fs/read_text_file" {
		_ = req.Reply(map[string]string{"content": "notes"})
		return
	}
	_ = req.ReplyError(&acp.Error{Code: acp.CodeMethodNotFound, Message: "method not found"})
}

func (c *fakeClient) HandleNotification(_ context.Context, n *acp.Notification) {
	if n.Method != acp.MethodSessionUpdate {
		return
	}
	var sn acp.SessionNotification
	if err := json.Unmarshal(n.Params, &sn); err == nil {
		c.updates <- sn
	}
}

type harness struct {
	client    *acp.Conn
	agent     *fakeAgent
	proxy     *Proxy
	assembler *embodiment.Assembler
	updates   chan acp.SessionNotification
}

// startHarness wires client <-> proxy <-> fake agent over pipes. The
// proxy uses the real assembler over a temporary sparkle home.
func startHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	renderer, err := templates.NewRenderer()
	require.NoError(t, err)
	assembler := embodiment.NewAssembler(config.NewFileStore(t.TempDir()), renderer, nil)

	clientToProxyR, clientToProxyW := io.Pipe()
	proxyToClientR, proxyToClientW := io.Pipe()
	proxyToAgentR, proxyToAgentW := io.Pipe()
	agentToProxyR, agentToProxyW := io.Pipe()

	h := &harness{
		client:    acp.NewConn("test-client", proxyToClientR, clientToProxyW, nil),
		agent:     &fakeAgent{conn: acp.NewConn("fake-agent", proxyToAgentR, agentToProxyW, nil)},
		assembler: assembler,
		updates:   make(chan acp.SessionNotification, 16),
	}
	h.proxy = New(
		acp.NewConn("client", clientToProxyR, proxyToClientW, nil),
		acp.NewConn("agent", agentToProxyR, proxyToAgentW, nil),
		assembler, cfg,
	)

	var wg sync.WaitGroup
	runErr := make(chan error, 1)
	wg.Add(3)
	go func() { defer wg.Done(); runErr <- h.proxy.Run(context.Background()) }()
	go func() {
		defer wg.Done()
		_ = h.agent.conn.Serve(context.Background(), h.agent)
		_ = h.agent.conn.Close()
	}()
	go func() { defer wg.Done(); _ = h.client.Serve(context.Background(), &fakeClient{updates: h.updates}) }()

	t.Cleanup(func() {
		_ = h.client.Close()
		wg.Wait()
		assert.NoError(t, <-runErr)
	})
	return h
}

func (h *harness) call(t *testing.T, method string, params, out any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	raw, err := h.client.Call(ctx, method, params)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func (h *harness) nextUpdate(t *testing.T) acp.SessionNotification {
	t.Helper()
	select {
	case u := <-h.updates:
		return u
	case <-time.After(10 * time.Second):
		t.Fatal("no session/update delivered")
		return acp.SessionNotification{}
	}
}

type seenPrompt struct {
	Session acp.SessionID
	Text    string
}

func TestProxy_EmbodiesBeforeFirstPrompt(t *testing.T) {
	h := startHarness(t, Config{})

	var created acp.NewSessionResponse
	h.call(t, acp.MethodSessionNew, acp.NewSessionRequest{Cwd: "/ws", McpServers: []json.RawMessage{}}, &created)
	require.NotEmpty(t, created.SessionID)

	var resp acp.PromptResponse
	h.call(t, acp.MethodSessionPrompt, acp.PromptRequest{
		SessionID: created.SessionID,
		Prompt:    []acp.ContentBlock{acp.TextBlock("hi")},
	}, &resp)
	assert.Equal(t, acp.StopEndTurn, resp.StopReason)

	want, err := h.assembler.Assemble(embodiment.Request{Mode: embodiment.ModeComplete, WorkspacePath: "/ws"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(want, "# Embodiment\n\n## Embodiment Sequence\n\n**🪷 We now begin a FULL COMPREHENSIVE embodiment** This is a careful and mindful proces"))
	assert.True(t, strings.HasSuffix(want, "*No .sparkle-space found at /ws*\n\n"))

	h.agent.mu.Lock()
	var got []seenPrompt
	for _, p := range h.agent.prompts {
		require.Len(t, p.Prompt, 1)
		got = append(got, seenPrompt{Session: p.SessionID, Text: p.Prompt[0].Text})
	}
	h.agent.mu.Unlock()

	expected := []seenPrompt{
		{Session: created.SessionID, Text: want},
		{Session: created.SessionID, Text: "hi"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("prompts seen by the agent (-want +got):\n%s", diff)
	}

	// The embodiment notice comes first, then updates from both turns,
	// in order.
	notice := h.nextUpdate(t)
	assert.Equal(t, created.SessionID, notice.SessionID)
	assert.JSONEq(t,
		`{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"Embodying Sparkle"}}`,
		string(notice.Update))
	for _, turn := range []string{`1`, `2`} {
		u := h.nextUpdate(t)
		assert.Equal(t, created.SessionID, u.SessionID)
		assert.JSONEq(t, `{"sessionUpdate":"agent_message_chunk","turn":`+turn+`}`, string(u.Update))
	}
}

func TestProxy_PassThrough(t *testing.T) {
	h := startHarness(t, Config{})

	var init map[string]any
	h.call(t, acp.MethodInitialize, map[string]any{"protocolVersion": 1}, &init)
	assert.EqualValues(t, 1, init["protocolVersion"])

	// Agent-to-client requests are relayed and answered.
	var file map[string]string
	h.call(t, "ask/client", map[string]any{}, &file)
	assert.Equal(t, "notes", file["content"])

	// Errors from the agent are relayed unchanged.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := h.client.Call(ctx, "session/set_mode", map[string]any{})
	var rpcErr *acp.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, acp.CodeMethodNotFound, rpcErr.Code)

	// Client notifications reach the agent.
	require.NoError(t, h.client.Notify(acp.MethodSessionCancel, map[string]string{"sessionId": "x"}))
	require.Eventually(t, func() bool {
		h.agent.mu.Lock()
		defer h.agent.mu.Unlock()
		return len(h.agent.notified) == 1 && h.agent.notified[0] == acp.MethodSessionCancel
	}, 5*time.Second, 10*time.Millisecond)
}

func TestProxy_ProvidesTools(t *testing.T) {
	tools := &acp.McpServer{Name: "sparkle", Command: "/usr/local/bin/sparkle", Args: []string{"serve", "--proxied"}, Env: []acp.EnvVariable{}}
	h := startHarness(t, Config{Tools: tools})

	existing := json.RawMessage(`{"name":"other","command":"other-mcp","args":[],"env":[]}`)
	var created acp.NewSessionResponse
	h.call(t, acp.MethodSessionNew, map[string]any{
		"cwd":        "/ws",
		"mcpServers": []json.RawMessage{existing},
		"_meta":      map[string]any{"editor": "zed"},
	}, &created)

	h.agent.mu.Lock()
	require.Len(t, h.agent.newSessions, 1)
	sent := h.agent.newSessions[0]
	h.agent.mu.Unlock()

	var req struct {
		Cwd        string          `json:"cwd"`
		McpServers []acp.McpServer `json:"mcpServers"`
		Meta       map[string]any  `json:"_meta"`
	}
	require.NoError(t, json.Unmarshal(sent, &req))
	assert.Equal(t, "/ws", req.Cwd)
	assert.Equal(t, "zed", req.Meta["editor"])
	want := []acp.McpServer{
		{Name: "other", Command: "other-mcp", Args: []string{}, Env: []acp.EnvVariable{}},
		*tools,
	}
	if diff := cmp.Diff(want, req.McpServers); diff != "" {
		t.Errorf("mcpServers (-want +got):\n%s", diff)
	}
}

func TestProxy_JournalsEmbodiments(t *testing.T) {
	store, err := journal.New(journal.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	defer store.Close()

	h := startHarness(t, Config{Observer: NewJournalBridge(store, nil)})

	var created acp.NewSessionResponse
	h.call(t, acp.MethodSessionNew, acp.NewSessionRequest{Cwd: "/ws", McpServers: []json.RawMessage{}}, &created)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.proxy.Coordinator().Pending().Wait(ctx, created.SessionID))

	require.Eventually(t, func() bool {
		entries, err := store.Recent("", 10)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 10*time.Millisecond)

	entries, err := store.Recent("", 10)
	require.NoError(t, err)
	assert.Equal(t, string(created.SessionID), entries[0].SessionID)
	assert.Equal(t, journal.OutcomeEmbodied, entries[0].Outcome)
	assert.Equal(t, "/ws", entries[0].Workspace)
	assert.Equal(t, "Sparkle", entries[0].Sparkler)
	assert.Positive(t, entries[0].Bytes)

	filtered, err := store.Recent("Sparkle", 10)
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestProxy_RunReturnsOnCancel(t *testing.T) {
	clientR, clientW := io.Pipe()
	agentR, agentW := io.Pipe()
	toClientR, toClientW := io.Pipe()
	toAgentR, toAgentW := io.Pipe()
	defer clientW.Close()
	defer agentW.Close()
	defer toClientR.Close()
	defer toAgentR.Close()

	p := New(
		acp.NewConn("client", clientR, toClientW, nil),
		acp.NewConn("agent", agentR, toAgentW, nil),
		&fakeAssembler{}, Config{},
	)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel with both peers idle")
	}
}

func TestWithMcpServer_LeavesUnreadableParams(t *testing.T) {
	server := acp.McpServer{Name: "sparkle", Command: "sparkle"}
	for _, params := range []string{`[]`, `{"mcpServers":"nope"}`} {
		got := withMcpServer(json.RawMessage(params), server, zap.NewNop())
		assert.Equal(t, params, string(got))
	}
}

func TestStartAgent_NoCommand(t *testing.T) {
	_, err := StartAgent(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestStartAgent_RunsSubprocess(t *testing.T) {
	script := filepath.Join(t.TempDir(), "agent.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat\n"), 0o755))

	agent, err := StartAgent(context.Background(), []string{script}, nil)
	require.NoError(t, err)

	_, err = agent.Stdin.Write([]byte("ping\n"))
	require.NoError(t, err)
	require.NoError(t, agent.Stdin.Close())

	out, err := io.ReadAll(agent.Stdout)
	require.NoError(t, err)
	assert.Equal(t, "ping\n", string(out))
	require.NoError(t, agent.Wait())
}
