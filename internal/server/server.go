// Single-peer streaming server: accept loop, admission, shutdown
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"rdcp/internal/atomics"
	"rdcp/internal/auth"
	"rdcp/internal/capture"
	"rdcp/internal/codec"
	"rdcp/internal/connection"
	"rdcp/internal/global"
	"rdcp/internal/inject"
	"rdcp/internal/logctx"
	"rdcp/internal/network"
	"rdcp/internal/session"
	"rdcp/internal/stats"
	"rdcp/pkg/protocol"
)

// Builds the frame source for one authenticated peer
type SourceFactory func(fps int) (source capture.Source, err error)

type Settings struct {
	BindAddress  string
	Port         int
	ServerName   string
	ScreenWidth  uint16
	ScreenHeight uint16

	Password       string
	PasswordSalt   []byte
	AuthIterations int
	AuthKeyLength  int

	FrameRate int
	Quality   float64
	Strategy  codec.Strategy

	// A peer silent for this long is destroyed so the single slot frees
	// up without waiting for OS keepalive
	HeartbeatTimeout time.Duration

	// Hold a desktop screensaver inhibition while a peer is streaming
	InhibitScreensaver bool
}

func DefaultSettings() (settings Settings) {
	settings = Settings{
		BindAddress:      "0.0.0.0",
		Port:             global.DefaultServerPort,
		ServerName:       global.ProgName,
		ScreenWidth:      1920,
		ScreenHeight:     1080,
		AuthIterations:   global.DefaultAuthIterations,
		AuthKeyLength:    global.DefaultAuthKeyLength,
		FrameRate:        global.DefaultFrameRate,
		Quality:          global.DefaultQuality,
		Strategy:         codec.StrategyAdaptive,
		HeartbeatTimeout: global.DefaultHeartbeatTimeout,
	}
	return
}

// Accepts one TCP peer at a time and owns its handler
type Server struct {
	ctx       context.Context
	settings  Settings
	newSource SourceFactory
	injector  inject.Injector

	listener  net.Listener
	boundPort int

	mu      sync.Mutex
	handler *handler

	active   atomic.Int64
	stopping atomic.Bool

	inhibitMu sync.Mutex
	inhibitor *capture.Inhibitor
}

func New(ctx context.Context, settings Settings, newSource SourceFactory, injector inject.Injector) (server *Server) {
	server = &Server{
		ctx:       logctx.AppendCtxTag(ctx, global.NSServer),
		settings:  settings,
		newSource: newSource,
		injector:  injector,
	}
	return
}

// Binds the listen socket, walking the port fallback range, and starts
// accepting. Returns the port actually bound.
func (server *Server) Start() (boundPort int, err error) {
	var listener net.Listener
	listener, boundPort, err = network.ListenWithFallback(server.settings.BindAddress, server.settings.Port)
	if err != nil {
		err = fmt.Errorf("failed to start server: %w", err)
		return
	}

	server.listener = listener
	server.boundPort = boundPort
	logctx.LogEvent(server.ctx, global.VerbosityStandard, global.InfoLog, "listening on %s:%d", server.settings.BindAddress, boundPort)

	go server.acceptLoop()
	return
}

func (server *Server) BoundPort() (port int) {
	port = server.boundPort
	return
}

// Snapshot of whether a peer currently holds the single slot
func (server *Server) HasClient() (occupied bool) {
	server.mu.Lock()
	defer server.mu.Unlock()
	occupied = server.handler != nil
	return
}

func (server *Server) acceptLoop() {
	for {
		conn, err := server.listener.Accept()
		if err != nil {
			// Listener closed during shutdown
			return
		}

		if server.stopping.Load() {
			conn.Close()
			continue
		}

		server.mu.Lock()
		if server.handler != nil {
			server.mu.Unlock()
			server.rejectBusy(conn)
			continue
		}

		h := server.newHandler(conn)
		server.handler = h
		server.mu.Unlock()

		server.active.Add(1)
		logctx.LogEvent(server.ctx, global.VerbosityStandard, global.InfoLog, "accepted peer %s", conn.RemoteAddr())
		go h.run()
	}
}

// The single slot is taken: tell the newcomer and close it
func (server *Server) rejectBusy(conn net.Conn) {
	logctx.LogEvent(server.ctx, global.VerbosityStandard, global.WarnLog, "rejecting peer %s, server already has a client", conn.RemoteAddr())

	rec := protocol.ErrorMessage{
		Code: protocol.ErrCodeServerFull,
		Text: "server already has a client",
	}
	var oneShot protocol.FrameEncoder
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.Write(oneShot.Encode(protocol.MsgErrorMessage, rec.Encode()))
	conn.Close()
}

func (server *Server) newHandler(conn net.Conn) (h *handler) {
	network.TuneConn(conn)

	h = &handler{
		ctx:    logctx.AppendCtxTag(server.ctx, global.NSHandler),
		server: server,
		conn:   conn,
		queue:  connection.NewSendQueue(global.SendQueueHighWater),
		stats:  stats.NewCollector(),
		done:   make(chan struct{}),
	}

	verifier, err := server.verifier()
	if err != nil {
		logctx.LogEvent(server.ctx, global.VerbosityNone, global.ErrorLog, "verifier setup failed: %v", err)
	}

	h.session = session.New(h.ctx, session.Config{
		Role:            session.RoleServer,
		Sender:          h,
		Verifier:        verifier,
		Injector:        server.injector,
		ServerName:      server.settings.ServerName,
		ScreenWidth:     server.settings.ScreenWidth,
		ScreenHeight:    server.settings.ScreenHeight,
		Quality:         server.settings.Quality,
		Strategy:        server.settings.Strategy,
		Stats:           h.stats,
		OnAuthenticated: h.onAuthenticated,
	})
	h.session.Begin()
	return
}

func (server *Server) verifier() (verifier *auth.Verifier, err error) {
	verifier, err = auth.NewVerifier(server.settings.Password, server.settings.PasswordSalt,
		server.settings.AuthIterations, server.settings.AuthKeyLength)
	return
}

// Frees the slot once a handler is fully torn down
func (server *Server) handlerGone(h *handler) {
	server.mu.Lock()
	if server.handler == h {
		server.handler = nil
	}
	server.mu.Unlock()
	server.active.Add(-1)
}

// Synchronous shutdown: stop accepting, ask the peer to leave, wait for
// the handler to drain within the stop timeout, then force-close.
func (server *Server) Stop() (err error) {
	server.stopping.Store(true)
	if server.listener != nil {
		server.listener.Close()
	}

	server.mu.Lock()
	h := server.handler
	server.mu.Unlock()

	if h != nil {
		h.Send(protocol.MsgDisconnectRequest, nil)
	}

	drained, remaining := atomics.WaitUntilZero(&server.active, global.ServerStopTimeout)
	if !drained {
		logctx.LogEvent(server.ctx, global.VerbosityStandard, global.WarnLog, "forcing %d handler(s) closed at stop timeout", remaining)
		if h != nil {
			h.destroy(fmt.Errorf("server stopping"))
		}
	}

	logctx.LogEvent(server.ctx, global.VerbosityStandard, global.InfoLog, "server stopped")
	return
}

// Asynchronous shutdown with the same semantics; the returned channel
// closes when the server has fully stopped
func (server *Server) StopAsync() (stopped <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		server.Stop()
		close(done)
	}()
	stopped = done
	return
}

func (server *Server) inhibit() {
	if !server.settings.InhibitScreensaver {
		return
	}

	server.inhibitMu.Lock()
	defer server.inhibitMu.Unlock()

	if server.inhibitor == nil {
		inhibitor, err := capture.NewInhibitor()
		if err != nil {
			logctx.LogEvent(server.ctx, global.VerbosityProgress, global.WarnLog, "screensaver inhibition unavailable: %v", err)
			return
		}
		server.inhibitor = inhibitor
	}

	err := server.inhibitor.Inhibit("remote screen streaming active")
	if err != nil {
		logctx.LogEvent(server.ctx, global.VerbosityProgress, global.WarnLog, "screensaver inhibit failed: %v", err)
	}
}

func (server *Server) release() {
	if !server.settings.InhibitScreensaver {
		return
	}

	server.inhibitMu.Lock()
	defer server.inhibitMu.Unlock()

	if server.inhibitor != nil {
		server.inhibitor.Release()
	}
}
