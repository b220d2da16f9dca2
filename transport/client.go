// Package transport receives server responses over a websocket and hands
// them to a form engine. A response is fully applied before the next one
// is read, so at most one batch is in flight.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	xforms "github.com/orbeon/orbeon-forms-sub002"
	"github.com/orbeon/orbeon-forms-sub002/internal/schedule"
)

// Handler applies one server response, *xforms.Engine implements it
type Handler interface {
	HandleResponse(ctx context.Context, r io.Reader) (*xforms.Result, error)
}

var _ Handler = (*xforms.Engine)(nil)

// Options configures a Client. Zero values are usable.
type Options struct {
	// MaxMessageSize bounds a response, in bytes. Zero means no limit.
	MaxMessageSize int64

	Logger *log.Logger

	// OnResult is called after each response is applied
	OnResult func(*xforms.Result, error)
}

// Client reads responses from one websocket connection
type Client struct {
	conn    *websocket.Conn
	loop    *schedule.Loop
	handler Handler
	opts    Options

	writeMu sync.Mutex
}

// Dial connects to a server and returns a client applying its responses
// on loop
func Dial(ctx context.Context, url string, header http.Header, loop *schedule.Loop, handler Handler, opts Options) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewClient(conn, loop, handler, opts), nil
}

// NewClient wraps an established connection
func NewClient(conn *websocket.Conn, loop *schedule.Loop, handler Handler, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	return &Client{conn: conn, loop: loop, handler: handler, opts: opts}
}

// Run reads and applies responses until the server closes the connection,
// ctx is done or a read fails. The connection is closed on return. A
// response that fails to parse is reported to OnResult and reading goes on.
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.opts.Logger.Printf("WebSocket error: %v", err)
			}
			return fmt.Errorf("failed to read response: %w", err)
		}

		var (
			res       *xforms.Result
			handleErr error
		)
		if err := c.loop.Do(ctx, func() {
			res, handleErr = c.handler.HandleResponse(ctx, bytes.NewReader(data))
		}); err != nil {
			if errors.Is(err, schedule.ErrLoopClosed) {
				return err
			}
			return fmt.Errorf("failed to apply response: %w", err)
		}
		if handleErr != nil {
			c.opts.Logger.Printf("Failed to apply response: %v", handleErr)
		}
		if c.opts.OnResult != nil {
			c.opts.OnResult(res, handleErr)
		}
	}
}

// Send writes an event request to the server
func (c *Client) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send event request: %w", err)
	}
	return nil
}

// Close sends a close frame; Run returns once the server answers
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
