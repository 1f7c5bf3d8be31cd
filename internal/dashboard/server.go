// Package dashboard serves the live item snapshot to WebSocket clients and
// accepts item mutations from them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/idilsaglam/itemsync/internal/itemsync"
	"github.com/idilsaglam/itemsync/internal/logging"
	"github.com/idilsaglam/itemsync/internal/model"
)

const writeTimeout = 5 * time.Second

// Syncer is what the dashboard needs from itemsync.Syncer.
type Syncer interface {
	Snapshot() []model.Item
	Observe() (<-chan []model.Item, func())
	AddItem(title, description string) *itemsync.Result
	DeleteItem(id string) *itemsync.Result
	UpdateItem(item model.Item) *itemsync.Result
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default ":8080"; use "127.0.0.1:0" for a random port)
	Addr string

	Logger *logrus.Entry
}

// Server manages WebSocket connections and broadcasts snapshots.
type Server struct {
	syncer   Syncer
	addr     string
	listener net.Listener
	server   *http.Server

	// latest is the last snapshot sent to clients. New clients get it while
	// holding clientsMu so no broadcast can overtake it.
	clients   map[*websocket.Conn]struct{}
	latest    []byte
	clientsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	logger *logrus.Entry
}

// NewServer creates a dashboard over syncer. The syncer must be started by
// the caller.
func NewServer(syncer Syncer, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("dashboard")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		syncer:  syncer,
		addr:    cfg.Addr,
		clients: make(map[*websocket.Conn]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.Logger,
	}
}

// Start begins the HTTP server and the snapshot broadcaster.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	updates, stopObserving := s.syncer.Observe()
	latest, err := json.Marshal(newSnapshot(s.syncer.Snapshot()))
	if err != nil {
		stopObserving()
		_ = ln.Close()
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	s.latest = latest

	s.wg.Go(func() {
		defer stopObserving()
		s.broadcastLoop(updates)
	})

	s.wg.Go(func() {
		s.logger.WithField("addr", ln.Addr().String()).Info("dashboard listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("server error")
		}
	})
	return nil
}

// Stop closes every client and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("server shutdown error: %w", shutdownErr)
		}
	}

	s.wg.Wait()
	s.logger.Info("dashboard stopped")
	return err
}

// broadcastLoop pushes every new snapshot to all clients.
func (s *Server) broadcastLoop(updates <-chan []model.Item) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case items, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(newSnapshot(items))
			if err != nil {
				s.logger.WithError(err).Error("failed to marshal snapshot")
				continue
			}
			s.clientsMu.Lock()
			s.latest = data
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.Unlock()

			for _, conn := range clients {
				if err := s.write(conn, data); err != nil {
					s.logger.WithError(err).Debug("failed to send to client")
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
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	s.clientsMu.Lock()
	if err := s.write(conn, s.latest); err != nil {
		s.clientsMu.Unlock()
		s.logger.WithError(err).Debug("failed to send to client")
		_ = conn.Close(websocket.StatusInternalError, "")
		return
	}
	s.clients[conn] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.WithField("clients", count).Debug("client connected")

	s.readLoop(conn)
}

// readLoop handles client messages until the client goes away.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		res, err := s.handleMessage(data)
		if err != nil {
			s.send(conn, newError(err))
			continue
		}
		s.wg.Go(func() {
			if err := res.Wait(s.ctx); err != nil && s.ctx.Err() == nil {
				s.send(conn, newError(err))
			}
		})
	}
}

func (s *Server) send(conn *websocket.Conn, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal message")
		return
	}
	if err := s.write(conn, data); err != nil {
		s.logger.WithError(err).Debug("failed to send to client")
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; !exists {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.WithField("clients", count).Debug("client disconnected")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>itemsync</title>
</head>
<body>
    <h1>itemsync dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
