package notify

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/greonxpert/console/pkg/limits"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/pubsub"
)

// Hub errors.
var (
	ErrHubClosed    = errors.New("hub is closed")
	ErrInvalidRoom  = errors.New("invalid room name")
	ErrUnauthorized = errors.New("invalid publish secret")
)

// SecretHeader carries the shared secret on publish requests.
const SecretHeader = "X-Relay-Secret"

// HubConfig configures a Hub.
type HubConfig struct {
	// AllowedOrigins are host patterns accepted for browser connections.
	// Empty means same-origin only.
	AllowedOrigins []string

	// PublishSecret protects the HTTP publish endpoint. Empty disables the
	// check.
	PublishSecret string

	// MaxPerIP caps concurrent websocket connections from one address.
	// Zero means unlimited.
	MaxPerIP int

	// SendQueue bounds each connection's outgoing backlog. A connection
	// that falls further behind is closed.
	SendQueue int

	WriteTimeout time.Duration
	MaxMessage   int64
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendQueue:    64,
		WriteTimeout: 10 * time.Second,
		MaxMessage:   1 << 20,
	}
}

// Hub is the relay server. Browser panels and the watch command connect
// over websocket and join rooms; events published to a room, locally or on
// another node through the pub/sub backend, reach every member.
type Hub struct {
	cfg    HubConfig
	ps     pubsub.PubSub
	logger logging.Logger
	perIP  *limits.ConnLimiter

	conns  map[*conn]struct{}
	rooms  map[string]map[*conn]struct{}
	subs   map[string]pubsub.Subscription
	closed bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHub creates a hub fanning out through ps.
func NewHub(ps pubsub.PubSub, cfg HubConfig, logger logging.Logger) *Hub {
	def := DefaultHubConfig()
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = def.SendQueue
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxMessage <= 0 {
		cfg.MaxMessage = def.MaxMessage
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Hub{
		cfg:    cfg,
		ps:     ps,
		logger: logger,
		perIP:  limits.NewConnLimiter(cfg.MaxPerIP),
		conns:  make(map[*conn]struct{}),
		rooms:  make(map[string]map[*conn]struct{}),
		subs:   make(map[string]pubsub.Subscription),
	}
}

// Routes mounts the hub's endpoints:
//
//	GET  /ws                  websocket
//	POST /rooms/{room}/events publish an event
//	GET  /rooms               member count per room
func (h *Hub) Routes(r chi.Router) {
	r.Get("/ws", h.ServeHTTP)
	r.Post("/rooms/{room}/events", h.handlePublish)
	r.Get("/rooms", h.handleRooms)
}

// Publish sends ev to every member of room on every node.
func (h *Hub) Publish(ctx context.Context, room string, ev Event) error {
	if !ValidRoom(room) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	ev.Room = room
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.ps.Publish(ctx, room, data)
}

// ServeHTTP upgrades the request and serves one connection until it
// closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := limits.ClientIP(r)
	if !h.perIP.Acquire(ip) {
		h.logger.Warn("connection refused", logging.String("ip", ip))
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	defer h.perIP.Release(ip)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   subprotocols(),
		OriginPatterns: h.cfg.AllowedOrigins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", logging.Err(err))
		return
	}
	ws.SetReadLimit(h.cfg.MaxMessage)

	c := &conn{
		id:    uuid.NewString(),
		ws:    ws,
		codec: codecForSubprotocol(ws.Subprotocol()),
		out:   make(chan Frame, h.cfg.SendQueue),
		rooms: make(map[string]struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close(websocket.StatusGoingAway, "relay shutting down")
		return
	}
	h.conns[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	log := h.logger.With(logging.String("conn", c.id), logging.String("codec", c.codec.Name()))
	log.Debug("connection opened")

	err = h.serve(r.Context(), c)
	h.drop(c)

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		ws.Close(websocket.StatusNormalClosure, "")
	default:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug("connection ended", logging.Err(err))
		}
		ws.Close(websocket.StatusInternalError, "")
	}
	log.Debug("connection closed")
}

func (h *Hub) serve(parent context.Context, c *conn) error {
	g, ctx := errgroup.WithContext(parent)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		for {
			_, data, err := c.ws.Read(ctx)
			if err != nil {
				return err
			}
			f, err := c.codec.Decode(data)
			if err != nil {
				c.send(Frame{Type: FrameError, Error: "malformed frame"})
				continue
			}
			h.handleFrame(c, f)
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case f := <-c.out:
				data, err := c.codec.Encode(f)
				if err != nil {
					h.logger.Warn("encode frame", logging.Err(err))
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
				err = c.ws.Write(wctx, c.codec.MessageType(), data)
				wcancel()
				if err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

func (h *Hub) handleFrame(c *conn, f Frame) {
	switch f.Type {
	case FrameJoin:
		if err := h.join(c, f.Room); err != nil {
			c.send(Frame{Type: FrameError, Room: f.Room, Error: err.Error()})
			return
		}
		c.send(Frame{Type: FrameAck, Room: f.Room})
	case FrameLeave:
		h.leave(c, f.Room)
		c.send(Frame{Type: FrameAck, Room: f.Room})
	default:
		c.send(Frame{Type: FrameError, Error: fmt.Sprintf("unexpected frame %q", f.Type)})
	}
}

func (h *Hub) join(c *conn, room string) error {
	if !ValidRoom(room) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}

	if _, ok := h.subs[room]; !ok {
		sub, err := h.ps.Subscribe(room, func(msg []byte) { h.deliver(room, msg) })
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", room, err)
		}
		h.subs[room] = sub
		h.rooms[room] = make(map[*conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
	h.logger.Debug("joined", logging.Room(room), logging.String("conn", c.id))
	return nil
}

func (h *Hub) leave(c *conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *conn, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	delete(c.rooms, room)
	if len(members) > 0 {
		return
	}
	delete(h.rooms, room)
	if sub, ok := h.subs[room]; ok {
		delete(h.subs, room)
		if err := sub.Unsubscribe(); err != nil {
			h.logger.Warn("unsubscribe", logging.Room(room), logging.Err(err))
		}
	}
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.conns, c)
}

// deliver is the pub/sub handler for room.
func (h *Hub) deliver(room string, msg []byte) {
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		h.logger.Warn("dropping malformed event", logging.Room(room), logging.Err(err))
		return
	}

	h.mu.Lock()
	members := make([]*conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		if !c.send(Frame{Type: FrameEvent, Room: room, Event: &ev}) {
			h.logger.Warn("slow consumer, closing", logging.String("conn", c.id))
			c.close()
		}
	}
}

// RoomSizes returns the number of local members per room.
func (h *Hub) RoomSizes() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		out[room] = len(members)
	}
	return out
}

// ConnCount returns the number of open connections.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and waits for their handlers. The
// pub/sub backend is left open; its owner closes it.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	h.wg.Wait()
	return nil
}

type publishResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *Hub) handlePublish(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PublishSecret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.PublishSecret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, publishResponse{Message: ErrUnauthorized.Error()})
			return
		}
	}

	room := chi.URLParam(r, "room")
	var ev Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxMessage)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, publishResponse{Message: "malformed event"})
		return
	}

	if err := h.Publish(r.Context(), room, ev); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, ErrInvalidRoom) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, publishResponse{Message: err.Error()})
		return
	}
	logging.L(r.Context()).Debug("event published", logging.Room(room), logging.String("action", string(ev.Action)))
	writeJSON(w, http.StatusAccepted, publishResponse{Success: true})
}

func (h *Hub) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.RoomSizes()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type conn struct {
	id    string
	ws    *websocket.Conn
	codec Codec
	out   chan Frame
	rooms map[string]struct{} // guarded by Hub.mu
	once  sync.Once
}

// send queues f without blocking. It reports false when the queue is full.
func (c *conn) send(f Frame) bool {
	select {
	case c.out <- f:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		c.ws.Close(websocket.StatusGoingAway, "closing")
	})
}
