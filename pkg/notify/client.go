package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/retry"
)

// ErrNoRooms is returned by Run when the client has no room to join.
var ErrNoRooms = errors.New("no rooms to join")

// Client connects to a relay, joins rooms and delivers their events. After
// every successful join it emits a refresh event for the room so the
// consumer can resynchronise whatever it missed while disconnected.
type Client struct {
	url    string
	codec  Codec
	rooms  []string
	policy retry.Policy
	header http.Header
	http   *http.Client
	logger logging.Logger

	events chan Event
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCodec selects the wire codec. JSON is the default.
func WithCodec(c Codec) ClientOption {
	return func(cl *Client) { cl.codec = c }
}

// WithRooms sets the rooms joined on every connection.
func WithRooms(rooms ...string) ClientOption {
	return func(cl *Client) { cl.rooms = append(cl.rooms, rooms...) }
}

// WithReconnect sets the reconnect backoff. Attempts is ignored; the
// client reconnects until its context ends.
func WithReconnect(p retry.Policy) ClientOption {
	return func(cl *Client) { cl.policy = p }
}

// WithHeader adds headers to the websocket handshake.
func WithHeader(h http.Header) ClientOption {
	return func(cl *Client) { cl.header = h }
}

// WithDialClient sets the HTTP client used for the handshake.
func WithDialClient(hc *http.Client) ClientOption {
	return func(cl *Client) { cl.http = hc }
}

// WithClientLogger sets the logger.
func WithClientLogger(l logging.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client for the relay websocket at url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:    url,
		codec:  JSONCodec{},
		policy: retry.Forever(),
		logger: logging.Nop{},
		events: make(chan Event, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the channel events are delivered on. It is closed when
// Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run connects and keeps reconnecting until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	if len(c.rooms) == 0 {
		return ErrNoRooms
	}

	attempt := 0
	for {
		joined, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if joined {
			attempt = 0
		}

		delay := c.policy.Delay(attempt)
		attempt++
		c.logger.Warn("relay connection lost",
			logging.Err(err),
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one connection. joined reports whether at least one join
// was acknowledged.
func (c *Client) session(ctx context.Context) (joined bool, err error) {
	ws, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPClient:   c.http,
		HTTPHeader:   c.header,
		Subprotocols: []string{c.codec.Subprotocol()},
	})
	if err != nil {
		return false, err
	}
	defer ws.CloseNow()

	c.logger.Info("relay connected", logging.String("url", c.url), logging.String("codec", c.codec.Name()))

	for _, room := range c.rooms {
		if err := c.write(ctx, ws, Frame{Type: FrameJoin, Room: room}); err != nil {
			return false, err
		}
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return joined, err
		}
		f, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("malformed frame from relay", logging.Err(err))
			continue
		}

		switch f.Type {
		case FrameAck:
			joined = true
			if !c.emit(ctx, Event{Room: f.Room, Success: true, Action: ActionRefresh}) {
				return joined, ctx.Err()
			}
		case FrameEvent:
			if f.Event == nil {
				continue
			}
			ev := *f.Event
			if ev.Room == "" {
				ev.Room = f.Room
			}
			if !c.emit(ctx, ev) {
				return joined, ctx.Err()
			}
		case FrameError:
			c.logger.Warn("relay error", logging.Room(f.Room), logging.String("error", f.Error))
		}
	}
}

func (c *Client) write(ctx context.Context, ws *websocket.Conn, f Frame) error {
	data, err := c.codec.Encode(f)
	if err != nil {
		return err
	}
	return ws.Write(ctx, c.codec.MessageType(), data)
}

func (c *Client) emit(ctx context.Context, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
