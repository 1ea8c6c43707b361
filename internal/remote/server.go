// ABOUTME: WebSocket remote control server
// ABOUTME: Applies client commands to the player and broadcasts its state
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/noodler-audio/noodler/internal/version"
	"github.com/noodler-audio/noodler/pkg/musictime"
	"github.com/noodler-audio/noodler/pkg/playback"
)

const (
	// Path is the websocket endpoint
	Path = "/ws"

	// BroadcastInterval bounds how often state is pushed to clients
	BroadcastInterval = 50 * time.Millisecond

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 32
)

// ErrNotListening is returned by Serve before Listen
var ErrNotListening = errors.New("remote server is not listening")

// Controller is the playback surface the remote drives
type Controller interface {
	Play() error
	Stop() error
	Restart() error
	SetCursor(t float64)
	SetLoopStart(t float64)
	SetLoopEnd(t float64)
	SetLoopEnabled(enabled bool)
	LoopEnabled() bool
	ShiftLoop(delta float64)
	Rate() float64
	SetRate(ctx context.Context, rate float64) error
	Snapshot() *playback.Snapshot
	CurrentTimestamp() float64
	Playing() bool
	Mode() playback.Mode
}

// Config holds server configuration
type Config struct {
	Addr   string
	Name   string
	Meter  musictime.Meter
	Logger *log.Logger
}

// Server exposes a Controller over websockets
type Server struct {
	config   Config
	ctrl     Controller
	serverID string
	logger   *log.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	listener net.Listener

	clients   map[string]*client
	clientsMu sync.RWMutex

	// ctx is the Serve context, used for rate changes
	ctx context.Context
	wg  sync.WaitGroup
}

type client struct {
	id       string
	name     string
	conn     *websocket.Conn
	sendChan chan Message
}

// NewServer creates a server bound to ctrl
func NewServer(cfg Config, ctrl Controller) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Name == "" {
		cfg.Name = version.Product
	}

	s := &Server{
		config:   cfg,
		ctrl:     ctrl,
		serverID: uuid.New().String(),
		logger:   logger.WithPrefix("remote"),
		mux:      http.NewServeMux(),
		clients:  make(map[string]*client),
		ctx:      context.Background(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Non-browser clients send no Origin header; the player is meant for local networks
			if origin := r.Header.Get("Origin"); origin != "" {
				s.logger.Debug("Accepting websocket origin", "origin", origin)
			}
			return true
		},
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// ID returns the server's session identifier
func (s *Server) ID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving Path
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds the configured address
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("remote listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	return nil
}

// Port returns the bound port, or 0 before Listen
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	_, port, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// Run listens and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	return s.Serve(ctx)
}

// Serve handles connections on the bound listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return ErrNotListening
	}
	s.ctx = ctx

	httpServer := &http.Server{Handler: s.mux}
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.logger.Info("Remote control listening", "addr", s.listener.Addr().String(), "id", s.serverID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.broadcastLoop(ctx)
	}()

	var serverErr error
	select {
	case <-ctx.Done():
	case serverErr = <-errChan:
		s.logger.Error("HTTP server error", "err", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "err", err)
	}
	s.closeClients()
	s.wg.Wait()
	s.logger.Info("Remote control stopped")

	if serverErr != nil {
		return fmt.Errorf("remote server failed: %w", serverErr)
	}
	return nil
}

// broadcastLoop pushes state to every client when it changes
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()

	var last PlayerState
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := s.state()
			if state == last {
				continue
			}
			last = state
			s.broadcast(Message{Type: TypeState, Payload: state})
		}
	}
}

func (s *Server) broadcast(msg Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		s.enqueue(c, msg)
	}
}

// enqueue never blocks; slow clients miss intermediate states
func (s *Server) enqueue(c *client, msg Message) {
	select {
	case c.sendChan <- msg:
	default:
		s.logger.Debug("Dropping message for slow client", "client", c.name, "type", msg.Type)
	}
}

// state reads the controller into a wire snapshot
func (s *Server) state() PlayerState {
	snap := s.ctrl.Snapshot()
	return PlayerState{
		Playing:     s.ctrl.Playing(),
		Position:    s.ctrl.CurrentTimestamp(),
		Duration:    snap.Duration(),
		LoopStart:   snap.Loop.Start,
		LoopEnd:     snap.Loop.End,
		HasLoopEnd:  snap.Loop.HasEnd,
		LoopEnabled: s.ctrl.LoopEnabled(),
		Rate:        s.ctrl.Rate(),
		Mode:        s.ctrl.Mode().String(),
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", "err", err)
		return
	}
	s.logger.Debug("New websocket connection", "remote", r.RemoteAddr)

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(writeDeadline))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		s.logger.Warn("Error reading hello", "err", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	if msg.Type != TypeHello {
		s.logger.Warn("Expected hello", "got", msg.Type)
		writeError(conn, "expected_hello", fmt.Sprintf("expected %s, got %s", TypeHello, msg.Type))
		return
	}

	var hello ClientHello
	if err := decodePayload(msg, &hello); err != nil || hello.ClientID == "" {
		writeError(conn, "invalid_hello", "hello requires a client_id")
		return
	}
	if hello.Name == "" {
		hello.Name = hello.ClientID
	}

	c := &client{
		id:       hello.ClientID,
		name:     hello.Name,
		conn:     conn,
		sendChan: make(chan Message, sendQueueSize),
	}

	// Hello and the first state go out ahead of any broadcast
	c.sendChan <- Message{Type: TypeHello, Payload: ServerHello{
		ServerID:  s.serverID,
		Name:      s.config.Name,
		Version:   ProtocolVersion,
		UserAgent: version.UserAgent(),
	}}
	c.sendChan <- Message{Type: TypeState, Payload: s.state()}

	s.clientsMu.Lock()
	if existing, ok := s.clients[c.id]; ok {
		s.clientsMu.Unlock()
		s.logger.Warn("Rejecting duplicate client", "id", c.id, "name", existing.name)
		writeError(conn, "duplicate_client_id", "client ID already connected")
		return
	}
	s.clients[c.id] = c
	s.clientsMu.Unlock()
	s.logger.Info("Remote client connected", "name", c.name, "id", c.id, "agent", hello.UserAgent)

	writerDone := make(chan struct{})
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		close(c.sendChan)
		<-writerDone
		s.logger.Info("Remote client disconnected", "name", c.name)
	}()

	go func() {
		defer close(writerDone)
		s.clientWriter(c)
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "client", c.name, "err", err)
			}
			return
		}
		if err := s.handleCommand(msg); err != nil {
			s.logger.Debug("Command rejected", "client", c.name, "type", msg.Type, "err", err)
			s.enqueue(c, Message{Type: TypeError, ID: msg.ID, Payload: ErrorPayload{Error: "command_failed", Message: err.Error()}})
			continue
		}
		s.enqueue(c, Message{Type: TypeState, ID: msg.ID, Payload: s.state()})
	}
}

func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("Error marshaling message", "err", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("Error writing message", "client", c.name, "err", err)
				c.conn.Close()
				drain(c.sendChan)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				c.conn.Close()
				drain(c.sendChan)
				return
			}
		}
	}
}

// handleCommand applies one client message to the controller
func (s *Server) handleCommand(msg Message) error {
	switch msg.Type {
	case TypePlay:
		return s.ctrl.Play()
	case TypeStop:
		return s.ctrl.Stop()
	case TypeRestart:
		return s.ctrl.Restart()
	case TypeSeek:
		var cmd SeekCommand
		if err := decodePayload(msg, &cmd); err != nil {
			return err
		}
		t, err := musictime.ParseDuration(cmd.Position, s.config.Meter)
		if err != nil {
			return err
		}
		s.ctrl.SetCursor(t)
	case TypeLoop:
		var cmd LoopCommand
		if err := decodePayload(msg, &cmd); err != nil {
			return err
		}
		return s.applyLoop(cmd)
	case TypeRate:
		var cmd RateCommand
		if err := decodePayload(msg, &cmd); err != nil {
			return err
		}
		return s.ctrl.SetRate(s.ctx, cmd.Rate)
	case TypeShift:
		var cmd ShiftCommand
		if err := decodePayload(msg, &cmd); err != nil {
			return err
		}
		d, err := musictime.ParseDuration(cmd.Delta, s.config.Meter)
		if err != nil {
			return err
		}
		s.ctrl.ShiftLoop(d)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

// applyLoop parses every field before touching the controller
func (s *Server) applyLoop(cmd LoopCommand) error {
	var start, end float64
	var err error
	if cmd.Start != "" {
		if start, err = musictime.ParseDuration(cmd.Start, s.config.Meter); err != nil {
			return fmt.Errorf("loop start: %w", err)
		}
	}
	if cmd.End != "" {
		if end, err = musictime.ParseDuration(cmd.End, s.config.Meter); err != nil {
			return fmt.Errorf("loop end: %w", err)
		}
	}

	if cmd.Enabled != nil {
		s.ctrl.SetLoopEnabled(*cmd.Enabled)
	}
	if cmd.Start != "" {
		s.ctrl.SetLoopStart(start)
	}
	if cmd.End != "" {
		s.ctrl.SetLoopEnd(end)
	}
	return nil
}

func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "player shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}

func writeError(conn *websocket.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteJSON(Message{Type: TypeError, Payload: ErrorPayload{Error: code, Message: message}})
}

func drain(ch <-chan Message) {
	for range ch {
	}
}
