// Package statusserver serves the assistant's overlay state on the local
// status endpoint and collects commands typed into the overlay.
package statusserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go.aimuz.me/orb/internal/types"
)

// DefaultAddr is the loopback address the overlay polls.
const DefaultAddr = "127.0.0.1:9877"

const (
	maxCommandBody = 4 << 10
	commandBuffer  = 32
	writeTimeout   = 2 * time.Second
)

// Command is one piece of text submitted through the overlay.
type Command struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Received time.Time `json:"received"`
}

// Server holds the current state and fans changes out to websocket
// subscribers. The zero value is not usable; create one with New.
type Server struct {
	mu    sync.RWMutex
	state types.OverlayState

	commands chan Command

	upgrader websocket.Upgrader
	cmu      sync.Mutex
	clients  map[*subscriber]struct{}

	mux *http.ServeMux
}

type subscriber struct {
	conn *websocket.Conn
	send chan types.StateEvent
}

// New creates a Server serving the idle state.
func New() *Server {
	s := &Server{
		commands: make(chan Command, commandBuffer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleGet)
	s.mux.HandleFunc("POST /{$}", s.handlePost)
	s.mux.HandleFunc("PUT /{$}", s.handlePut)
	s.mux.HandleFunc("OPTIONS /{$}", s.handleOptions)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	return s
}

// State returns the state currently served.
func (s *Server) State() types.OverlayState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState changes the served state and notifies subscribers. It reports
// whether the state changed.
func (s *Server) SetState(state types.OverlayState) (bool, error) {
	if !state.Valid() {
		return false, fmt.Errorf("%w: %d", types.ErrUnknownState, uint8(state))
	}

	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return false, nil
	}
	s.state = state
	s.mu.Unlock()

	slog.Info("served state changed", "state", state)
	s.broadcast(types.StateEvent{Type: types.StateEventType, State: state})
	return true, nil
}

// Commands returns the channel submitted commands are delivered on.
func (s *Server) Commands() <-chan Command {
	return s.commands
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	allowCORS(w.Header())
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.closeSubscribers()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func allowCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id, X-Client-Id")
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, s.State().String())
}

func (s *Server) handleOptions(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	text, err := readText(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if text == "" {
		http.Error(w, "empty command", http.StatusBadRequest)
		return
	}

	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	cmd := Command{ID: id, Text: text, Received: time.Now()}

	select {
	case s.commands <- cmd:
	default:
		slog.Warn("drop command", "id", id, "reason", "queue full")
		http.Error(w, "command queue full", http.StatusServiceUnavailable)
		return
	}

	slog.Info("command received", "id", id, "length", len(text))
	w.Header().Set("X-Request-Id", id)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	text, err := readText(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	state, err := types.ParseState(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.SetState(state); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readText(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Push feed
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("upgrade state feed", "error", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan types.StateEvent, 8)}

	s.cmu.Lock()
	s.clients[sub] = struct{}{}
	// The first event carries the current state.
	sub.send <- types.StateEvent{Type: types.StateEventType, State: s.State()}
	s.cmu.Unlock()
	slog.Debug("state feed subscribed", "remote", r.RemoteAddr)

	go s.writeLoop(sub)
	s.readLoop(sub)
}

// readLoop discards client frames and detects disconnects.
func (s *Server) readLoop(sub *subscriber) {
	defer s.remove(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for evt := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteJSON(evt); err != nil {
			slog.Debug("write state feed", "error", err)
			return
		}
	}
	_ = sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

func (s *Server) broadcast(evt types.StateEvent) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	for sub := range s.clients {
		select {
		case sub.send <- evt:
		default:
			// Slow subscriber; it polls anyway.
			slog.Debug("drop state event", "state", evt.State)
		}
	}
}

func (s *Server) remove(sub *subscriber) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	if _, ok := s.clients[sub]; !ok {
		return
	}
	delete(s.clients, sub)
	close(sub.send)
}

func (s *Server) closeSubscribers() {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	for sub := range s.clients {
		delete(s.clients, sub)
		close(sub.send)
	}
}
