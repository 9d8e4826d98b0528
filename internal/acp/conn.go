package acp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by calls that cannot complete because the
// connection's read side has ended or Close was called.
var ErrClosed = errors.New("acp: connection closed")

// Handler receives the requests and notifications read by Serve. Both
// methods are called from the read loop in arrival order, so they must
// not block on the same connection; long work belongs in a goroutine.
type Handler interface {
	HandleRequest(ctx context.Context, req *Request)
	HandleNotification(ctx context.Context, n *Notification)
}

// Notification is an incoming JSON-RPC notification.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Request is an incoming JSON-RPC request awaiting exactly one reply.
type Request struct {
	ID     json.RawMessage
	Method string
	Params json.RawMessage

	conn *Conn
}

// Reply sends a successful response. A json.RawMessage result is sent
// verbatim.
func (r *Request) Reply(result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return r.ReplyError(fmt.Errorf("encoding %s result: %w", r.Method, err))
	}
	return r.conn.write(&message{JSONRPC: jsonrpcVersion, ID: r.ID, Result: data})
}

// ReplyError sends an error response. *Error values are sent unchanged;
// anything else becomes an internal error.
func (r *Request) ReplyError(err error) error {
	return r.conn.write(&message{JSONRPC: jsonrpcVersion, ID: r.ID, Error: InternalError(err)})
}

// Conn is one side of a newline-delimited JSON-RPC 2.0 stream. Calls and
// notifications may be issued from any goroutine; Serve owns the reader.
type Conn struct {
	name   string
	reader *bufio.Reader
	source io.Reader
	writer io.Writer
	logger *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[string]chan *message
	closed  bool
}

// NewConn wraps a reader and writer. name labels log lines.
func NewConn(name string, r io.Reader, w io.Writer, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{
		name:    name,
		reader:  bufio.NewReader(r),
		source:  r,
		writer:  w,
		logger:  logger.Named(name),
		pending: make(map[string]chan *message),
	}
}

// Call sends a request and waits for its response. A peer error response
// is returned as *Error.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding %s params: %w", method, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := json.RawMessage(strconv.FormatInt(c.nextID, 10))
	ch := make(chan *message, 1)
	c.pending[string(id)] = ch
	c.mu.Unlock()

	if err := c.write(&message{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: raw}); err != nil {
		c.forget(string(id))
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		if len(resp.Result) == 0 {
			return json.RawMessage("null"), nil
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.forget(string(id))
		return nil, ctx.Err()
	}
}

// Notify sends a notification.
func (c *Conn) Notify(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}
	return c.write(&message{JSONRPC: jsonrpcVersion, Method: method, Params: raw})
}

// Serve reads frames until the stream ends, resolving responses to
// pending calls and handing requests and notifications to h. It returns
// nil on a clean end of stream and ctx.Err() once ctx is done; on
// cancellation the reader is closed when it is an io.Closer. Every call
// still waiting fails with ErrClosed once Serve returns.
func (c *Conn) Serve(ctx context.Context, h Handler) error {
	defer c.closePending()

	done := make(chan error, 1)
	go func() { done <- c.readLoop(ctx, h) }()

	select {
	case err := <-done:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	case <-ctx.Done():
		// A read blocked on a terminal may outlive Close; the loop drops
		// whatever it reads after cancellation.
		c.closeReader()
		return ctx.Err()
	}
}

func (c *Conn) readLoop(ctx context.Context, h Handler) error {
	for {
		line, err := c.reader.ReadBytes('\n')
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if line = bytes.TrimSpace(line); len(line) > 0 {
			c.dispatch(ctx, h, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s: reading: %w", c.name, err)
		}
	}
}

func (c *Conn) closeReader() {
	if closer, ok := c.source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Debug("closing reader", zap.Error(err))
		}
	}
}

// Close fails pending calls and closes the writer when it is an io.Closer.
// Serve keeps reading until the peer closes its side.
func (c *Conn) Close() error {
	c.closePending()
	if closer, ok := c.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) dispatch(ctx context.Context, h Handler, line []byte) {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		c.logger.Warn("malformed frame", zap.Error(err), zap.ByteString("frame", line))
		c.reject(nullID, CodeParseError, "Parse error")
		return
	}

	switch {
	case msg.isRequest() && msg.JSONRPC != jsonrpcVersion:
		c.reject(msg.ID, CodeInvalidRequest, "Invalid Request")
	case msg.isResponse():
		c.resolve(&msg)
	case msg.isRequest():
		h.HandleRequest(ctx, &Request{ID: msg.ID, Method: msg.Method, Params: msg.Params, conn: c})
	case msg.Method != "":
		h.HandleNotification(ctx, &Notification{Method: msg.Method, Params: msg.Params})
	default:
		c.logger.Warn("frame with neither method nor id", zap.ByteString("frame", line))
		c.reject(nullID, CodeInvalidRequest, "Invalid Request")
	}
}

// nullID answers frames whose id could not be read.
var nullID = json.RawMessage("null")

// reject answers an unusable frame with a JSON-RPC error response.
func (c *Conn) reject(id json.RawMessage, code int, text string) {
	err := c.write(&message{JSONRPC: jsonrpcVersion, ID: id, Error: &Error{Code: code, Message: text}})
	if err != nil {
		c.logger.Warn("rejecting frame", zap.Error(err))
	}
}

func (c *Conn) resolve(msg *message) {
	c.mu.Lock()
	ch, ok := c.pending[string(msg.ID)]
	delete(c.pending, string(msg.ID))
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("response for unknown request", zap.ByteString("id", msg.ID))
		return
	}
	ch <- msg
}

func (c *Conn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) closePending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Conn) write(msg *message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: encoding frame: %w", c.name, err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("%s: writing frame: %w", c.name, err)
	}
	return nil
}
