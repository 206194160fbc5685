package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	connectTimeout  = 15 * time.Second
	responseTimeout = 5 * time.Second
)

var ErrTimeout = errors.New("rpc: response timeout")

// Caller is the workflow-side end of the control channel. Every request
// carries a fresh correlation id; the read pump routes each reply to the
// waiter that owns its id and drops frames for ids nobody is waiting on,
// so concurrent callers over one socket never see each other's replies.
type Caller struct {
	logger  *slog.Logger
	conn    *websocket.Conn
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Envelope
	closed  bool
}

// Dial connects to the coordinator's websocket endpoint. The handshake
// is bounded so a caller never hangs on a coordinator that is not there.
func Dial(ctx context.Context, url, token string, log *slog.Logger) (*Caller, error) {
	if log == nil {
		log = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial coordinator: %w", err)
	}

	c := &Caller{
		logger:  log.With(slog.String("component", "rpc_caller")),
		conn:    conn,
		timeout: responseTimeout,
		pending: map[string]chan Envelope{},
	}
	go c.readLoop()
	return c, nil
}

func (c *Caller) readLoop() {
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.failAll(err)
			return
		}
		c.mu.Lock()
		waiter, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.mu.Unlock()
		if !ok {
			continue
		}
		waiter <- env
	}
}

// Call sends one request and decodes its reply into out (when non-nil).
// A prompt request is given its configured wait plus slack; everything
// else answers within the flat response timeout or fails.
func (c *Caller) Call(ctx context.Context, msgType string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	env := Envelope{Type: msgType, ID: uuid.NewString(), Data: data}

	waiter := make(chan Envelope, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("rpc: connection closed")
	}
	c.pending[env.ID] = waiter
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(env.ID)
		return fmt.Errorf("send request: %w", err)
	}

	timeout := c.timeout
	if msgType == TypeSendPrompt {
		var req SendPromptRequest
		if json.Unmarshal(data, &req) == nil && req.Timeout > 0 {
			timeout += time.Duration(req.Timeout) * time.Second
		}
	}

	select {
	case <-ctx.Done():
		c.drop(env.ID)
		return ctx.Err()
	case <-time.After(timeout):
		c.drop(env.ID)
		return fmt.Errorf("%w: %s", ErrTimeout, msgType)
	case reply := <-waiter:
		if reply.Error != "" {
			return errors.New(reply.Error)
		}
		if out == nil || len(reply.Data) == 0 {
			return nil
		}
		return json.Unmarshal(reply.Data, out)
	}
}

func (c *Caller) drop(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Caller) failAll(err error) {
	c.mu.Lock()
	c.closed = true
	for id, waiter := range c.pending {
		delete(c.pending, id)
		waiter <- Envelope{Error: err.Error()}
	}
	c.mu.Unlock()
}

func (c *Caller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
