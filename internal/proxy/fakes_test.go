package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/HendryAvila/sparkle/internal/acp"
	"github.com/HendryAvila/sparkle/internal/embodiment"
)

const embodimentText = "# Embodiment\n\nfake document"

// call is one request seen by fakeSuccessor.
type call struct {
	Method  string
	Session acp.SessionID
	Text    string
}

func (c call) isEmbodiment() bool {
	return c.Method == acp.MethodSessionPrompt && strings.HasPrefix(c.Text, "# Embodiment")
}

// fakeSuccessor is an in-process agent. Embodiment prompts for sessions
// listed in hold block until the channel is closed.
type fakeSuccessor struct {
	mu     sync.Mutex
	calls  []call
	nextID int

	hold          map[acp.SessionID]chan struct{}
	newSessionErr error
	embodyStop    acp.StopReason
	embodyErr     error
	promptErr     error
}

func newFakeSuccessor() *fakeSuccessor {
	return &fakeSuccessor{hold: make(map[acp.SessionID]chan struct{}), embodyStop: acp.StopEndTurn}
}

// holdSession makes the embodiment prompt for id block until the returned
// func is called. Session ids are handed out as sess-1, sess-2, ...
func (f *fakeSuccessor) holdSession(id acp.SessionID) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold[id] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeSuccessor) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	switch method {
	case acp.MethodSessionNew:
		f.mu.Lock()
		f.calls = append(f.calls, call{Method: method})
		if f.newSessionErr != nil {
			f.mu.Unlock()
			return nil, f.newSessionErr
		}
		f.nextID++
		id := fmt.Sprintf("sess-%d", f.nextID)
		f.mu.Unlock()
		return json.Marshal(acp.NewSessionResponse{SessionID: acp.SessionID(id)})

	case acp.MethodSessionPrompt:
		var req acp.PromptRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		c := call{Method: method, Session: req.SessionID}
		if len(req.Prompt) > 0 {
			c.Text = req.Prompt[0].Text
		}

		f.mu.Lock()
		f.calls = append(f.calls, c)
		gate := f.hold[req.SessionID]
		f.mu.Unlock()

		if !c.isEmbodiment() {
			if f.promptErr != nil {
				return nil, f.promptErr
			}
			return json.Marshal(acp.PromptResponse{StopReason: acp.StopEndTurn})
		}

		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if f.embodyErr != nil {
			return nil, f.embodyErr
		}
		return json.Marshal(acp.PromptResponse{StopReason: f.embodyStop})

	default:
		return nil, &acp.Error{Code: acp.CodeMethodNotFound, Message: "method not found"}
	}
}

func (f *fakeSuccessor) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// fakeAssembler returns a fixed document and records requests. The
// default persona is "Sparkle".
type fakeAssembler struct {
	mu       sync.Mutex
	requests []embodiment.Request
	err      error
	nameErr  error
}

func (a *fakeAssembler) SparklerName(override string) (string, error) {
	if a.nameErr != nil {
		return "", a.nameErr
	}
	if override != "" {
		return override, nil
	}
	return "Sparkle", nil
}

func (a *fakeAssembler) Assemble(req embodiment.Request) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return "", a.err
	}
	return embodimentText, nil
}

// fakeResponder captures the single reply to an intercepted request.
type fakeResponder struct {
	result json.RawMessage
	err    error
	done   chan struct{}
}

func newFakeResponder() *fakeResponder {
	return &fakeResponder{done: make(chan struct{})}
}

func (r *fakeResponder) Reply(result any) error {
	raw, ok := result.(json.RawMessage)
	if !ok {
		return errors.New("expected raw result")
	}
	r.result = raw
	close(r.done)
	return nil
}

func (r *fakeResponder) ReplyError(err error) error {
	r.err = err
	close(r.done)
	return nil
}

func (r *fakeResponder) sessionID() acp.SessionID {
	var resp acp.NewSessionResponse
	_ = json.Unmarshal(r.result, &resp)
	return resp.SessionID
}

// recordingObserver collects settlements.
type recordingObserver struct {
	mu          sync.Mutex
	settlements []Settlement
}

func (o *recordingObserver) EmbodimentSettled(s Settlement) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settlements = append(o.settlements, s)
}

func (o *recordingObserver) all() []Settlement {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Settlement(nil), o.settlements...)
}

// recordingNotifier collects client notifications in order.
type recordingNotifier struct {
	mu    sync.Mutex
	sent []acp.SessionNotification
}

func (n *recordingNotifier) Notify(method string, params any) error {
	sn, ok := params.(acp.SessionNotification)
	if method != acp.MethodSessionUpdate || !ok {
		return fmt.Errorf("unexpected notification %s", method)
	}
	n.mu.Lock()
	n.sent = append(n.sent, sn)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) all() []acp.SessionNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]acp.SessionNotification(nil), n.sent...)
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func newSessionParams(cwd string) json.RawMessage {
	return mustJSON(acp.NewSessionRequest{Cwd: cwd, McpServers: []json.RawMessage{}})
}

func promptParams(id acp.SessionID, text string) json.RawMessage {
	return mustJSON(acp.PromptRequest{SessionID: id, Prompt: []acp.ContentBlock{acp.TextBlock(text)}})
}
