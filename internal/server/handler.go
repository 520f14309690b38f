package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"rdcp/internal/capture"
	"rdcp/internal/connection"
	"rdcp/internal/global"
	"rdcp/internal/logctx"
	"rdcp/internal/session"
	"rdcp/internal/stats"
	"rdcp/pkg/protocol"
)

// Per-connection actor. Owns its receive buffer, outbound sequence,
// auth state and session engine; destroyed with the socket.
type handler struct {
	ctx    context.Context
	server *Server
	conn   net.Conn
	queue  *connection.SendQueue

	sendMu  sync.Mutex
	encoder protocol.FrameEncoder

	// The session is driven by the read goroutine and the capture and
	// status tickers, so its calls are serialized here
	sessionMu sync.Mutex
	session   *session.Session

	stats *stats.Collector

	captureCancel context.CancelFunc
	destroyOnce   sync.Once
	done          chan struct{}
}

// Outbound path handed to the session engine
func (h *handler) Send(msgType uint32, payload []byte) (err error) {
	h.sendMu.Lock()
	frame := h.encoder.Encode(msgType, payload)
	h.sendMu.Unlock()

	dropped, err := h.queue.Push(msgType, frame)
	if err != nil {
		return
	}
	if dropped > 0 {
		logctx.LogEvent(h.ctx, global.VerbosityStandard, global.WarnLog, "send queue over high water, dropped %d screen frames", dropped)
	}
	return
}

func (h *handler) run() {
	go h.writeLoop()
	h.readLoop()
}

// Socket read side. Applies the destroy policy for protocol failures:
// wrong version or oversized payloads kill the handler outright, and
// checksum corruption kills it after enough consecutive bad frames.
// The read deadline doubles as the liveness window; the client's
// heartbeats keep it from firing.
func (h *handler) readLoop() {
	decoder := protocol.StreamDecoder{}
	tracker := protocol.SequenceTracker{}
	checksumFailures := 0
	buf := make([]byte, 64*1024)
	liveness := h.server.settings.HeartbeatTimeout

	for {
		if liveness > 0 {
			h.conn.SetReadDeadline(time.Now().Add(liveness))
		}
		n, readErr := h.conn.Read(buf)
		if n > 0 {
			h.stats.AddRx(n)
			decoder.Feed(buf[:n])

			for {
				hdr, payload, err := decoder.TryDecode()
				if err != nil {
					if err == protocol.ErrChecksumMismatch {
						checksumFailures++
						logctx.LogEvent(h.ctx, global.VerbosityStandard, global.WarnLog, "dropped frame with bad checksum (%d consecutive)", checksumFailures)
						if checksumFailures < global.MaxChecksumFailures {
							continue
						}
					}
					h.destroy(fmt.Errorf("stream decode failed: %w", err))
					return
				}
				if hdr == nil {
					break
				}
				checksumFailures = 0

				if seqErr := tracker.Check(hdr.Sequence); seqErr != nil {
					logctx.LogEvent(h.ctx, global.VerbosityStandard, global.WarnLog, "dropped frame with regressed sequence %d", hdr.Sequence)
					continue
				}

				h.sessionMu.Lock()
				dispatchErr := h.session.HandleFrame(hdr, payload)
				terminated := h.session.State() == session.StateTerminated
				h.sessionMu.Unlock()

				if dispatchErr != nil {
					logctx.LogEvent(h.ctx, global.VerbosityStandard, global.WarnLog, "frame dispatch failed: %v", dispatchErr)
				}
				if terminated {
					h.destroy(nil)
					return
				}
			}
		}

		if readErr != nil {
			if netErr, ok := readErr.(net.Error); ok && netErr.Timeout() {
				readErr = fmt.Errorf("no traffic from peer within %s", liveness)
			}
			h.destroy(readErr)
			return
		}
	}
}

func (h *handler) writeLoop() {
	for {
		frame, ok := h.queue.Pop()
		if !ok {
			return
		}
		n, err := h.conn.Write(frame)
		if n > 0 {
			h.stats.AddTx(n)
		}
		if err != nil {
			h.destroy(err)
			return
		}
	}
}

// Called by the session once the peer authenticates: starts the capture
// pacing and status loops, and inhibits the local screensaver
func (h *handler) onAuthenticated(sessionID string) {
	logctx.LogEvent(h.ctx, global.VerbosityStandard, global.InfoLog, "streaming to authenticated peer, session %q", sessionID)

	h.server.inhibit()

	var captureCtx context.Context
	captureCtx, h.captureCancel = context.WithCancel(h.ctx)
	go h.captureLoop(captureCtx)
	go h.statusLoop(captureCtx)
}

// Drives the capture source at the configured pace, pushing each frame
// through the compression pipeline
func (h *handler) captureLoop(ctx context.Context) {
	fps := capture.ClampFrameRate(h.server.settings.FrameRate)
	source, err := h.server.newSource(fps)
	if err != nil {
		logctx.LogEvent(h.ctx, global.VerbosityNone, global.ErrorLog, "capture source unavailable: %v", err)
		return
	}
	defer source.Close()

	for {
		frame, err := source.Next(ctx)
		if err != nil {
			return
		}

		h.sessionMu.Lock()
		err = h.session.SendFrame(frame)
		h.sessionMu.Unlock()
		if err != nil {
			logctx.LogEvent(h.ctx, global.VerbosityData, global.WarnLog, "frame not sent: %v", err)
			continue
		}
		h.stats.FrameDelivered()
	}
}

// Periodic status updates to the authenticated peer
func (h *handler) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(global.StatusUpdateEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec := h.stats.Snapshot(protocol.StatusStreaming)
			h.Send(protocol.MsgStatusUpdate, rec.Encode())
			logctx.LogEvent(h.ctx, global.VerbosityData, global.InfoLog, "status sent: %d fps, %.1fms frame interval", rec.FPS, h.stats.FrameIntervalMs())
		}
	}
}

// Tears the handler down exactly once: capture stops, the socket and
// queue close, and the server slot frees up
func (h *handler) destroy(reason error) {
	h.destroyOnce.Do(func() {
		if reason != nil {
			logctx.LogEvent(h.ctx, global.VerbosityStandard, global.WarnLog, "handler closing: %v", reason)
		}

		h.sessionMu.Lock()
		if h.captureCancel != nil {
			h.captureCancel()
		}
		wasAuthenticated := h.session.Authenticated()
		h.session.Terminate()
		h.sessionMu.Unlock()

		h.queue.Close()
		h.conn.Close()

		if wasAuthenticated {
			h.server.release()
		}
		h.server.handlerGone(h)
		close(h.done)
	})
}
