// Package proxy sits between an ACP client and the agent it talks to and
// embodies every new session exactly once: after session/new succeeds the
// session is marked pending, the creation response goes back to the
// client, and a background task sends the assembled embodiment document
// as a synthetic prompt. Client prompts for a pending session are parked
// until that synthetic prompt settles. Other sessions are never held up.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/sparkle/internal/acp"
	"github.com/HendryAvila/sparkle/internal/embodiment"
)

// timeNow is a package-level var for testability.
var timeNow = time.Now

// Successor is the downstream agent.
type Successor interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Responder answers one intercepted request. *acp.Request satisfies it.
type Responder interface {
	Reply(result any) error
	ReplyError(err error) error
}

// Assembler produces the embodiment document.
type Assembler interface {
	// SparklerName resolves the persona embodied for override.
	SparklerName(override string) (string, error)
	Assemble(req embodiment.Request) (string, error)
}

// Notifier sends notifications to the client. *acp.Conn satisfies it.
type Notifier interface {
	Notify(method string, params any) error
}

// Observer is told about every settled embodiment. It's optional; a nil
// observer is skipped.
type Observer interface {
	EmbodimentSettled(s Settlement)
}

// Settlement describes how one injected embodiment ended.
type Settlement struct {
	SessionID  acp.SessionID
	Sparkler   string
	Workspace  string
	StopReason acp.StopReason
	Bytes      int
	StartedAt  time.Time
	Duration   time.Duration
	// Err is nil only when the agent finished the embodiment with end_turn.
	Err error
}

// InjectionError reports an embodiment prompt that finished with a stop
// reason other than end_turn. The session stays usable.
type InjectionError struct {
	SessionID  acp.SessionID
	StopReason acp.StopReason
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("embodiment for session %s stopped with %s", e.SessionID, e.StopReason)
}

// Options configures a Coordinator.
type Options struct {
	// Workspace overrides the cwd from session/new as the workspace whose
	// state is embodied.
	Workspace string
	// Sparkler overrides the configured default persona.
	Sparkler string
	// Client, when set, is told "Embodying <name>" as each injection starts.
	Client   Notifier
	Observer Observer
	Logger   *zap.Logger
}

// Coordinator intercepts session/new and session/prompt.
type Coordinator struct {
	successor Successor
	assembler Assembler
	pending   *PendingSet
	opts      Options
	logger    *zap.Logger

	tasks sync.WaitGroup
}

// NewCoordinator creates a coordinator forwarding to successor.
func NewCoordinator(successor Successor, assembler Assembler, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		successor: successor,
		assembler: assembler,
		pending:   NewPendingSet(),
		opts:      opts,
		logger:    logger.Named("coordinator"),
	}
}

// Pending exposes the pending set.
func (c *Coordinator) Pending() *PendingSet { return c.pending }

// Wait blocks until every spawned embodiment task has finished.
func (c *Coordinator) Wait() { c.tasks.Wait() }

// ─── Intercepted requests ───────────────────────────────────────────────

// intercepted is the closed set of requests the coordinator handles.
type intercepted interface {
	isIntercepted()
}

type newSessionCall struct {
	params json.RawMessage
	cwd    string
	reply  Responder
}

type promptCall struct {
	params    json.RawMessage
	sessionID acp.SessionID
	reply     Responder
}

func (newSessionCall) isIntercepted() {}
func (promptCall) isIntercepted()     {}

// classify decodes the requests the coordinator cares about. Anything
// else, including params it cannot read, is left for pass-through.
func classify(method string, params json.RawMessage, reply Responder) (intercepted, bool) {
	switch method {
	case acp.MethodSessionNew:
		var req acp.NewSessionRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, false
		}
		return newSessionCall{params: params, cwd: req.Cwd, reply: reply}, true
	case acp.MethodSessionPrompt:
		var req acp.PromptRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, false
		}
		return promptCall{params: params, sessionID: req.SessionID, reply: reply}, true
	default:
		return nil, false
	}
}

// Intercept handles method if it is one the coordinator owns and reports
// whether it did. It blocks until the request has been answered, so
// callers run it on a goroutine per request.
func (c *Coordinator) Intercept(ctx context.Context, method string, params json.RawMessage, reply Responder) bool {
	call, ok := classify(method, params, reply)
	if !ok {
		return false
	}

	switch call := call.(type) {
	case newSessionCall:
		c.newSession(ctx, call)
	case promptCall:
		c.prompt(ctx, call)
	}
	return true
}

func (c *Coordinator) newSession(ctx context.Context, call newSessionCall) {
	raw, err := c.successor.Call(ctx, acp.MethodSessionNew, call.params)
	if err != nil {
		c.replyError(call.reply, acp.MethodSessionNew, err)
		return
	}

	var resp acp.NewSessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.SessionID == "" {
		c.logger.Warn("session/new response without a session id, skipping embodiment", zap.Error(err))
		c.reply(call.reply, acp.MethodSessionNew, raw)
		return
	}

	// Pending before the client can learn the id.
	c.pending.Insert(resp.SessionID)
	c.reply(call.reply, acp.MethodSessionNew, raw)

	workspace := c.opts.Workspace
	if workspace == "" {
		workspace = call.cwd
	}
	c.spawn(func() { c.embody(ctx, resp.SessionID, workspace) })
}

func (c *Coordinator) prompt(ctx context.Context, call promptCall) {
	if c.pending.Contains(call.sessionID) {
		c.logger.Debug("prompt parked until embodiment settles", zap.String("session", string(call.sessionID)))
	}
	if err := c.pending.Wait(ctx, call.sessionID); err != nil {
		c.replyError(call.reply, acp.MethodSessionPrompt, err)
		return
	}

	raw, err := c.successor.Call(ctx, acp.MethodSessionPrompt, call.params)
	if err != nil {
		c.replyError(call.reply, acp.MethodSessionPrompt, err)
		return
	}
	c.reply(call.reply, acp.MethodSessionPrompt, raw)
}

// ─── Embodiment task ────────────────────────────────────────────────────

func (c *Coordinator) spawn(fn func()) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn()
	}()
}

// embody sends the synthetic embodiment prompt for id. The session leaves
// the pending set exactly once, whatever the outcome.
func (c *Coordinator) embody(ctx context.Context, id acp.SessionID, workspace string) {
	s := Settlement{
		SessionID: id,
		Sparkler:  c.opts.Sparkler,
		Workspace: workspace,
		StartedAt: timeNow(),
	}
	defer func() {
		c.pending.Remove(id)
		s.Duration = timeNow().Sub(s.StartedAt)
		c.settled(s)
	}()

	name, err := c.assembler.SparklerName(c.opts.Sparkler)
	if err != nil {
		s.Err = fmt.Errorf("assembling embodiment: %w", err)
		return
	}
	s.Sparkler = name
	c.announce(id, name)

	doc, err := c.assembler.Assemble(embodiment.Request{
		Mode:          embodiment.ModeComplete,
		WorkspacePath: workspace,
		Sparkler:      c.opts.Sparkler,
	})
	if err != nil {
		s.Err = fmt.Errorf("assembling embodiment: %w", err)
		return
	}
	s.Bytes = len(doc)

	raw, err := c.successor.Call(ctx, acp.MethodSessionPrompt, acp.PromptRequest{
		SessionID: id,
		Prompt:    []acp.ContentBlock{acp.TextBlock(doc)},
	})
	if err != nil {
		s.Err = fmt.Errorf("sending embodiment: %w", err)
		return
	}

	var resp acp.PromptResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.Err = fmt.Errorf("decoding embodiment response: %w", err)
		return
	}
	s.StopReason = resp.StopReason
	if resp.StopReason != acp.StopEndTurn {
		s.Err = &InjectionError{SessionID: id, StopReason: resp.StopReason}
	}
}

// announce tells the client which persona is being embodied. The update
// is written before the embodiment prompt is sent, so it reaches the
// client ahead of anything the agent streams back.
func (c *Coordinator) announce(id acp.SessionID, sparkler string) {
	if c.opts.Client == nil {
		return
	}
	update, err := json.Marshal(acp.AgentMessage("Embodying " + sparkler))
	if err != nil {
		return
	}
	if err := c.opts.Client.Notify(acp.MethodSessionUpdate, acp.SessionNotification{SessionID: id, Update: update}); err != nil {
		c.logger.Warn("embodiment notice failed", zap.String("session", string(id)), zap.Error(err))
	}
}

func (c *Coordinator) settled(s Settlement) {
	fields := []zap.Field{
		zap.String("session", string(s.SessionID)),
		zap.String("sparkler", s.Sparkler),
		zap.String("workspace", s.Workspace),
		zap.Duration("took", s.Duration),
	}
	if s.Err != nil {
		c.logger.Warn("embodiment failed", append(fields, zap.Error(s.Err))...)
	} else {
		c.logger.Info("session embodied", append(fields, zap.Int("bytes", s.Bytes))...)
	}

	if c.opts.Observer != nil {
		c.opts.Observer.EmbodimentSettled(s)
	}
}

// ─── Replies ────────────────────────────────────────────────────────────

func (c *Coordinator) reply(r Responder, method string, result json.RawMessage) {
	if err := r.Reply(result); err != nil {
		c.logger.Warn("reply failed", zap.String("method", method), zap.Error(err))
	}
}

func (c *Coordinator) replyError(r Responder, method string, err error) {
	if werr := r.ReplyError(err); werr != nil {
		c.logger.Warn("error reply failed", zap.String("method", method), zap.Error(werr))
	}
}
