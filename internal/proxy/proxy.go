package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/sparkle/internal/acp"
)

// Config configures a Proxy.
type Config struct {
	Workspace string
	Sparkler  string
	// Tools, when set, is appended to the mcpServers of every session/new
	// so the agent can reach the sparkle tools.
	Tools    *acp.McpServer
	Observer Observer
	Logger   *zap.Logger
}

// Proxy relays an ACP client connection to an agent connection, with the
// coordinator in the client-to-agent request path.
type Proxy struct {
	client *acp.Conn
	agent  *acp.Conn
	coord  *Coordinator
	tools  *acp.McpServer
	logger *zap.Logger

	inflight sync.WaitGroup
}

// New creates a proxy. client faces the editor; agent faces the successor.
func New(client, agent *acp.Conn, assembler Assembler, cfg Config) *Proxy {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("proxy")
	return &Proxy{
		client: client,
		agent:  agent,
		coord: NewCoordinator(agent, assembler, Options{
			Workspace: cfg.Workspace,
			Sparkler:  cfg.Sparkler,
			Client:    client,
			Observer:  cfg.Observer,
			Logger:    logger,
		}),
		tools:  cfg.Tools,
		logger: logger,
	}
}

// Coordinator returns the proxy's coordinator.
func (p *Proxy) Coordinator() *Coordinator { return p.coord }

// Run pumps both connections until one side ends. When either stream
// ends the other side's writer is closed, so the peer winds down too.
// Cancelling ctx closes both readers, and Run reports ctx.Err() wrapped.
// Run returns after every in-flight request and embodiment task is done.
func (p *Proxy) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer func() { _ = p.agent.Close() }()
		if err := p.client.Serve(gctx, clientSide{p}); err != nil {
			return fmt.Errorf("client connection: %w", err)
		}
		p.logger.Debug("client stream ended")
		return nil
	})
	g.Go(func() error {
		defer func() { _ = p.client.Close() }()
		if err := p.agent.Serve(gctx, agentSide{p}); err != nil {
			return fmt.Errorf("agent connection: %w", err)
		}
		p.logger.Debug("agent stream ended")
		return nil
	})

	err := g.Wait()
	p.inflight.Wait()
	p.coord.Wait()
	return err
}

func (p *Proxy) spawn(fn func()) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		fn()
	}()
}

// forward relays req to peer and relays the outcome back unchanged.
func (p *Proxy) forward(ctx context.Context, peer *acp.Conn, req *acp.Request, params json.RawMessage) {
	result, err := peer.Call(ctx, req.Method, params)
	if err != nil {
		if werr := req.ReplyError(err); werr != nil {
			p.logger.Warn("relaying error failed", zap.String("method", req.Method), zap.Error(werr))
		}
		return
	}
	if werr := req.Reply(result); werr != nil {
		p.logger.Warn("relaying result failed", zap.String("method", req.Method), zap.Error(werr))
	}
}

func (p *Proxy) notify(peer *acp.Conn, n *acp.Notification) {
	if err := peer.Notify(n.Method, n.Params); err != nil {
		p.logger.Warn("relaying notification failed", zap.String("method", n.Method), zap.Error(err))
	}
}

// clientSide handles traffic arriving from the client.
type clientSide struct{ p *Proxy }

func (h clientSide) HandleRequest(ctx context.Context, req *acp.Request) {
	h.p.spawn(func() {
		params := req.Params
		if req.Method == acp.MethodSessionNew && h.p.tools != nil {
			params = withMcpServer(params, *h.p.tools, h.p.logger)
		}
		if h.p.coord.Intercept(ctx, req.Method, params, req) {
			return
		}
		h.p.forward(ctx, h.p.agent, req, params)
	})
}

func (h clientSide) HandleNotification(_ context.Context, n *acp.Notification) {
	h.p.notify(h.p.agent, n)
}

// agentSide handles traffic arriving from the agent: permission prompts,
// file system and terminal requests, and session updates. All of it is
// passed through, including updates caused by an embodiment prompt.
type agentSide struct{ p *Proxy }

func (h agentSide) HandleRequest(ctx context.Context, req *acp.Request) {
	h.p.spawn(func() { h.p.forward(ctx, h.p.client, req, req.Params) })
}

func (h agentSide) HandleNotification(_ context.Context, n *acp.Notification) {
	h.p.notify(h.p.client, n)
}

// withMcpServer appends server to the mcpServers list of session/new
// params, leaving every other field as sent.
func withMcpServer(params json.RawMessage, server acp.McpServer, logger *zap.Logger) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil {
		logger.Warn("session/new params not an object, tools not registered", zap.Error(err))
		return params
	}

	var servers []json.RawMessage
	if raw, ok := fields["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &servers); err != nil {
			logger.Warn("unreadable mcpServers, tools not registered", zap.Error(err))
			return params
		}
	}

	entry, err := json.Marshal(server)
	if err != nil {
		return params
	}
	servers = append(servers, entry)

	if fields["mcpServers"], err = json.Marshal(servers); err != nil {
		return params
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return params
	}
	return out
}
