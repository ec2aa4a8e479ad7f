package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/claimdesk/claimdesk/server/internal/api"
)

const (
	writeWait    = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// queueDepth is how many snapshots may wait for a slow session before
	// it is disconnected.
	queueDepth = 16

	// maxInbound limits frames read from dashboards; they only send control
	// frames.
	maxInbound = 512
)

// Broadcast events.
const (
	EventDashboard = "dashboard"
	EventUpdated   = "claims_updated"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string                `json:"event"`
	Data  api.DashboardResponse `json:"data"`
}

// Hub pushes dashboard snapshots to connected adjuster sessions.
type Hub struct {
	src   api.Sources
	every time.Duration
	log   *zap.Logger
	wake  chan struct{}

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// New creates a Hub that reads from src and broadcasts every interval.
func New(src api.Sources, interval time.Duration, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		src:      src,
		every:    interval,
		log:      log,
		wake:     make(chan struct{}, 1),
		sessions: make(map[*session]struct{}),
	}
}

// Notify asks for an out-of-band broadcast. It never blocks; pending
// requests collapse into one.
func (h *Hub) Notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run broadcasts until ctx is done, then disconnects every session.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.every)
	defer tick.Stop()

	for {
		var event string
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case <-tick.C:
			event = EventDashboard
		case <-h.wake:
			event = EventUpdated
		}
		h.publish(event)
	}
}

// ServeHTTP upgrades the request and serves one dashboard session until
// either side closes it. The session gets a snapshot right away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s := newSession(conn)
	h.attach(s)
	defer h.detach(s)

	if payload, err := h.snapshot(EventDashboard); err == nil {
		s.offer(payload)
	}

	go s.writeLoop()
	s.readLoop()
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// --- helpers ----------------------------------------------------------------

func (h *Hub) attach(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	h.log.Debug("dashboard session opened", zap.Int("sessions", n))
}

func (h *Hub) detach(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()
	if ok {
		s.stop()
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	all := h.sessions
	h.sessions = make(map[*session]struct{})
	h.mu.Unlock()
	for s := range all {
		s.stop()
	}
}

// publish encodes one snapshot and hands it to every session. Sessions
// whose queue is full are dropped.
func (h *Hub) publish(event string) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	payload, err := h.snapshot(event)
	if err != nil {
		h.log.Warn("encode dashboard", zap.Error(err))
		return
	}
	for _, s := range targets {
		if !s.offer(payload) {
			h.log.Debug("dropping slow dashboard session", zap.String("remote", s.conn.RemoteAddr().String()))
			h.detach(s)
		}
	}
}

func (h *Hub) snapshot(event string) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: api.BuildDashboard(h.src)})
}

// session is one connected dashboard. Its outbound queue is never closed;
// done signals the writer to send a close frame and exit.
type session struct {
	conn  *websocket.Conn
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn:  conn,
		queue: make(chan []byte, queueDepth),
		done:  make(chan struct{}),
	}
}

func (s *session) stop() { s.once.Do(func() { close(s.done) }) }

// offer queues payload without blocking. It reports false when the queue is
// full or the session has stopped.
func (s *session) offer(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- payload:
		return true
	default:
		return false
	}
}

func (s *session) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "")) //nolint:errcheck
			return
		case data = <-s.queue:
			kind = websocket.TextMessage
		case <-ping.C:
			kind = websocket.PingMessage
		}
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// readLoop consumes control frames so pongs extend the deadline. It returns
// once the peer goes away.
func (s *session) readLoop() {
	defer s.stop()
	s.conn.SetReadLimit(maxInbound)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
