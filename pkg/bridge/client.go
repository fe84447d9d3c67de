package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/storesync/pkg/storage"
)

// ErrClientClosed is returned when announcing through a closed client.
var ErrClientClosed = errors.New("bridge client is closed")

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer sets the WebSocket dialer. Default: websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithWriteTimeout bounds each frame write. Default: 10s.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// Client is one process's connection to a Hub.
type Client struct {
	id           string
	conn         *websocket.Conn
	dialer       *websocket.Dialer
	logger       *slog.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu    sync.RWMutex
	areas map[*Area]struct{}

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to the hub at url.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		id:           uuid.NewString(),
		dialer:       websocket.DefaultDialer,
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
		areas:        make(map[*Area]struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial bridge %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial bridge %s: %w", url, err)
	}
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// ID identifies the client in messages that carry no other origin.
func (c *Client) ID() string {
	return c.id
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				c.err = err
				c.logger.Error("bridge read error", "error", err)
			}
			return
		}

		m, err := decodeMessage(data)
		if err != nil {
			c.logger.Warn("bridge message dropped", "error", err)
			continue
		}
		ev, _ := m.Event()
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev storage.Event) {
	c.mu.RLock()
	targets := make([]*Area, 0, len(c.areas))
	for a := range c.areas {
		if a.scope == ev.Scope {
			targets = append(targets, a)
		}
	}
	c.mu.RUnlock()

	for _, a := range targets {
		a.emit(ev)
	}
}

// Announce sends m to the hub, which relays it to every other client.
func (c *Client) Announce(m Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	if m.Origin == "" {
		m.Origin = c.id
	}
	data, err := encodeMessage(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Wrap returns an area that announces writes made through it and reports
// writes announced by other clients for scope to its watchers.
//
// Remote writes are not copied into area: every process is expected to
// share the underlying storage, or to persist what its cells adopt.
func (c *Client) Wrap(area storage.Area, scope storage.Scope) *Area {
	a := &Area{inner: area, scope: scope, client: c}

	c.mu.Lock()
	c.areas[a] = struct{}{}
	c.mu.Unlock()

	return a
}

func (c *Client) unwrap(a *Area) {
	c.mu.Lock()
	delete(c.areas, a)
	c.mu.Unlock()
}

// Close disconnects from the hub and waits for the read loop to exit.
// Wrapped areas keep working locally.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
		<-c.done
	})
	return err
}
