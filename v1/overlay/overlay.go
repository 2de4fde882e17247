// Package overlay drives the stretch overlay shown in a browser tab. Pages
// connect over WebSocket; the server pushes show/close/status commands and
// receives the dismissal.
package overlay

import (
	_ "embed"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mirkobrombin/go-stretch/v1/record"
	"github.com/mirkobrombin/go-stretch/v1/status"
)

// Overlay is the surface shown on expiry.
type Overlay interface {
	// Show displays the overlay. onClose runs once when it goes away.
	Show(onClose func())
	// Close hides the overlay if shown.
	Close()
}

// Commands exchanged with overlay pages.
const (
	CommandShow         = "show"
	CommandClose        = "close"
	CommandStatus       = "status"
	CommandCloseOverlay = "closeOverlay"
)

// Message is the JSON frame exchanged over the socket.
type Message struct {
	Command     string `json:"command"`
	URL         string `json:"url,omitempty"`
	State       string `json:"state,omitempty"`
	Remaining   string `json:"remaining,omitempty"`
	RemainingMs int64  `json:"remainingMs,omitempty"`
}

//go:embed page.html
var page []byte

const clientBuffer = 16

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Server implements Overlay and status.Indicator for every connected page.
type Server struct {
	url      string
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	shown   bool
	onClose func()
	status  *Message
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer returns a Server that shows url when the overlay opens.
func NewServer(url string, opts ...Option) *Server {
	s := &Server{
		url:     url,
		logger:  slog.Default(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler serves the overlay page at / and the socket at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
	return mux
}

// Show implements Overlay. Showing an already shown overlay re-sends the
// command and replaces onClose.
func (s *Server) Show(onClose func()) {
	s.mu.Lock()
	s.shown = true
	s.onClose = onClose
	s.broadcastLocked(Message{Command: CommandShow, URL: s.url})
	n := len(s.clients)
	s.mu.Unlock()
	if n == 0 {
		s.logger.Warn("stretch: overlay shown with no page connected")
	}
}

// Close implements Overlay.
func (s *Server) Close() {
	s.dismiss()
}

// Shown reports whether the overlay is currently shown.
func (s *Server) Shown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

// Clients returns the number of connected pages.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// UpdateState implements status.Indicator.
func (s *Server) UpdateState(st record.State, remaining time.Duration) {
	m := Message{
		Command:     CommandStatus,
		State:       string(st),
		Remaining:   status.FormatRemaining(remaining),
		RemainingMs: remaining.Milliseconds(),
	}
	s.mu.Lock()
	s.status = &m
	s.broadcastLocked(m)
	s.mu.Unlock()
}

func (s *Server) dismiss() {
	s.mu.Lock()
	if !s.shown {
		s.mu.Unlock()
		return
	}
	s.shown = false
	cb := s.onClose
	s.onClose = nil
	s.broadcastLocked(Message{Command: CommandClose})
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan Message, clientBuffer)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.status != nil {
		enqueue(c, *s.status)
	}
	if s.shown {
		enqueue(c, Message{Command: CommandShow, URL: s.url})
	}
	s.mu.Unlock()

	go c.writeLoop()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		close(c.send)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			return
		}
		switch m.Command {
		case CommandCloseOverlay:
			s.dismiss()
		default:
			s.logger.Debug("stretch: ignoring overlay message", "command", m.Command)
		}
	}
}

func (c *client) writeLoop() {
	for m := range c.send {
		if err := c.conn.WriteJSON(m); err != nil {
			_ = c.conn.Close()
		}
	}
}

// broadcastLocked must be called with s.mu held.
func (s *Server) broadcastLocked(m Message) {
	for c := range s.clients {
		enqueue(c, m)
	}
}

// enqueue drops the message when the page is not keeping up.
func enqueue(c *client, m Message) {
	select {
	case c.send <- m:
	default:
	}
}
