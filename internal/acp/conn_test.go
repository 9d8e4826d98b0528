package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type handlerFuncs struct {
	request      func(ctx context.Context, req *Request)
	notification func(ctx context.Context, n *Notification)
}

func (h handlerFuncs) HandleRequest(ctx context.Context, req *Request) {
	if h.request != nil {
		h.request(ctx, req)
		return
	}
	_ = req.ReplyError(&Error{Code: CodeMethodNotFound, Message: "method not found"})
}

func (h handlerFuncs) HandleNotification(ctx context.Context, n *Notification) {
	if h.notification != nil {
		h.notification(ctx, n)
	}
}

// servePair connects two Conns back to back and serves both until the
// test ends.
func servePair(t *testing.T, left, right Handler) (*Conn, *Conn) {
	t.Helper()
	leftR, rightW := io.Pipe()
	rightR, leftW := io.Pipe()
	l := NewConn("left", leftR, leftW, nil)
	r := NewConn("right", rightR, rightW, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = l.Serve(context.Background(), left) }()
	go func() { defer wg.Done(); _ = r.Serve(context.Background(), right) }()

	t.Cleanup(func() {
		_ = l.Close()
		_ = r.Close()
		wg.Wait()
	})
	return l, r
}

func TestConn_CallRoundTrip(t *testing.T) {
	echo := handlerFuncs{request: func(_ context.Context, req *Request) {
		_ = req.Reply(req.Params)
	}}
	client, _ := servePair(t, handlerFuncs{}, echo)

	raw, err := client.Call(context.Background(), MethodSessionNew, NewSessionRequest{Cwd: "/ws"})
	require.NoError(t, err)

	var got NewSessionRequest
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "/ws", got.Cwd)
}

func TestConn_ErrorResponseIsRelayable(t *testing.T) {
	failing := handlerFuncs{request: func(_ context.Context, req *Request) {
		_ = req.ReplyError(&Error{Code: -32002, Message: "auth required", Data: json.RawMessage(`{"why":"token"}`)})
	}}
	client, _ := servePair(t, handlerFuncs{}, failing)

	_, err := client.Call(context.Background(), MethodSessionPrompt, PromptRequest{SessionID: "s1"})
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32002, rpcErr.Code)
	assert.Equal(t, "auth required", rpcErr.Message)
	assert.JSONEq(t, `{"why":"token"}`, string(rpcErr.Data))
	assert.Same(t, rpcErr, InternalError(err), "peer errors pass through unchanged")
}

func TestConn_UnknownMethod(t *testing.T) {
	client, _ := servePair(t, handlerFuncs{}, handlerFuncs{})

	_, err := client.Call(context.Background(), "nope", nil)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestConn_NotificationsInOrder(t *testing.T) {
	got := make(chan string, 3)
	recorder := handlerFuncs{notification: func(_ context.Context, n *Notification) {
		var sn SessionNotification
		if err := json.Unmarshal(n.Params, &sn); err == nil {
			got <- n.Method + ":" + string(sn.Update)
		}
	}}
	client, _ := servePair(t, handlerFuncs{}, recorder)

	for _, update := range []string{`1`, `2`, `3`} {
		require.NoError(t, client.Notify(MethodSessionUpdate, SessionNotification{SessionID: "s", Update: json.RawMessage(update)}))
	}

	for _, want := range []string{"session/update:1", "session/update:2", "session/update:3"} {
		select {
		case n := <-got:
			assert.Equal(t, want, n)
		case <-time.After(5 * time.Second):
			t.Fatal("notification not delivered")
		}
	}
}

func TestConn_LargeFrame(t *testing.T) {
	echo := handlerFuncs{request: func(_ context.Context, req *Request) {
		_ = req.Reply(req.Params)
	}}
	client, _ := servePair(t, handlerFuncs{}, echo)

	text := strings.Repeat("embodiment ", 20_000)
	raw, err := client.Call(context.Background(), MethodSessionPrompt, PromptRequest{
		SessionID: "s1",
		Prompt:    []ContentBlock{TextBlock(text)},
	})
	require.NoError(t, err)

	var got PromptRequest
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Prompt, 1)
	assert.Equal(t, text, got.Prompt[0].Text)
}

func TestConn_PendingCallFailsWhenStreamEnds(t *testing.T) {
	started := make(chan struct{})
	var stalled *Request
	silent := handlerFuncs{request: func(_ context.Context, req *Request) {
		stalled = req
		close(started)
	}}
	client, server := servePair(t, handlerFuncs{}, silent)

	errc := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), MethodSessionPrompt, PromptRequest{SessionID: "s1"})
		errc <- err
	}()

	<-started
	require.NotNil(t, stalled)
	require.NoError(t, server.Close())

	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("pending call not released")
	}

	_, err := client.Call(context.Background(), MethodSessionPrompt, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConn_CallHonorsContext(t *testing.T) {
	silent := handlerFuncs{request: func(context.Context, *Request) {}}
	client, _ := servePair(t, handlerFuncs{}, silent)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Call(ctx, MethodSessionPrompt, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_ServeReturnsOnCancel(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer inW.Close()
	defer outR.Close()
	conn := NewConn("idle", inR, outW, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- conn.Serve(ctx, handlerFuncs{}) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// The reader was closed, so the peer's writes fail instead of hanging.
	_, err := inW.Write([]byte("{}\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestConn_RejectsUnusableFrames(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	conn := NewConn("strict", inR, outW, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.Serve(context.Background(), handlerFuncs{})
	}()
	t.Cleanup(func() {
		_ = inW.Close()
		<-done
		_ = outR.Close()
	})

	replies := bufio.NewReader(outR)
	tests := []struct {
		frame string
		id    string
		code  int
	}{
		{"this is not json", "null", CodeParseError},
		{`{"jsonrpc":"1.0","id":7,"method":"session/new"}`, "7", CodeInvalidRequest},
		{`{"jsonrpc":"2.0"}`, "null", CodeInvalidRequest},
	}
	for _, tt := range tests {
		_, err := inW.Write([]byte(tt.frame + "\n"))
		require.NoError(t, err)

		line, err := replies.ReadBytes('\n')
		require.NoError(t, err)
		var reply message
		require.NoError(t, json.Unmarshal(line, &reply), string(line))
		assert.Equal(t, tt.id, string(reply.ID), tt.frame)
		require.NotNil(t, reply.Error, tt.frame)
		assert.Equal(t, tt.code, reply.Error.Code, tt.frame)
	}
}

func TestInternalError(t *testing.T) {
	err := InternalError(errors.New("config missing"))
	assert.Equal(t, CodeInternalError, err.Code)
	assert.JSONEq(t, `"config missing"`, string(err.Data))
}
