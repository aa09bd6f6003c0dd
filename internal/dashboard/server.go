// Package dashboard provides the daemon's small HTTP surface: a WebSocket
// feed of sync lifecycle events, a manual "sync now" trigger, and a status
// endpoint backed by the state file.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	gosync "sync"
	"time"

	"github.com/coder/websocket"

	"github.com/markvault/ksync/internal/logger"
	"github.com/markvault/ksync/internal/sync"
)

// TriggerResult is the response of the manual trigger surface.
type TriggerResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Config holds server configuration.
type Config struct {
	// Port to listen on.
	Port int

	// StatePath is the pass state file served by /status. Optional.
	StatePath string

	// Trigger requests an immediate pass from the daemon.
	Trigger func()

	// Logger for server activity.
	Logger logger.Logger
}

// Server broadcasts sync events to WebSocket clients and accepts manual
// sync triggers.
type Server struct {
	addr      string
	statePath string
	trigger   func()
	log       logger.Logger

	listener net.Listener
	server   *http.Server

	clientsMu gosync.RWMutex
	clients   map[*websocket.Conn]bool

	broadcast chan sync.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// NewServer creates a dashboard server.
func NewServer(config *Config) *Server {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		statePath: config.StatePath,
		trigger:   config.Trigger,
		log:       log,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan sync.Event, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins serving. Non-blocking; use Stop to shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/sync", s.handleTrigger)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go s.broadcastLoop()
	go func() {
		defer s.wg.Done()
		s.log.Infof("dashboard listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("dashboard server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("dashboard shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

// Broadcast queues a sync event for delivery to all connected clients.
// Safe to call from the driver's event callback.
func (s *Server) Broadcast(ev sync.Event) {
	select {
	case s.broadcast <- ev:
	case <-s.ctx.Done():
	default:
		s.log.Warnf("broadcast channel full, dropping event")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case ev := <-s.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Warnf("failed to marshal event: %v", err)
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.log.Infof("dashboard client connected (total: %d)", count)

	go s.readLoop(conn)
}

// readLoop keeps the connection alive; client messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()
}

// handleTrigger is the manual "sync now" surface. The trigger is
// fire-and-forget; an already-running pass absorbs it.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, TriggerResult{Success: false, Message: "no sync target configured"})
		return
	}
	s.trigger()
	writeJSON(w, http.StatusAccepted, TriggerResult{Success: true, Message: "sync triggered"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.statePath == "" {
		writeJSON(w, http.StatusOK, &sync.State{})
		return
	}
	st, err := sync.LoadState(s.statePath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
