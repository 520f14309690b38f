package connection

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"rdcp/internal/global"
	"rdcp/internal/logctx"
	"rdcp/internal/network"
	"rdcp/internal/stats"
	"rdcp/pkg/protocol"
)

// Tunables for one supervised connection
type Settings struct {
	ConnectTimeout   time.Duration
	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration
	AutoReconnect    bool
	ReconnectEvery   time.Duration
	MaxReconnects    int
}

func DefaultSettings() (settings Settings) {
	settings = Settings{
		ConnectTimeout:   global.DefaultConnectTimeout,
		HeartbeatEvery:   global.DefaultHeartbeatEvery,
		HeartbeatTimeout: global.DefaultHeartbeatTimeout,
		AutoReconnect:    true,
		ReconnectEvery:   global.DefaultReconnectEvery,
		MaxReconnects:    global.DefaultMaxReconnects,
	}
	return
}

// Owns one outbound TCP endpoint: its socket, outbound frame sequence,
// heartbeat and liveness timers, and the reconnect schedule. Decoded
// inbound frames and state transitions are delivered on the event
// stream; the owning session consumes them on one goroutine.
type Supervisor struct {
	ctx      context.Context
	settings Settings
	stats    *stats.Collector

	mu             sync.Mutex
	state          State
	host           string
	port           int
	conn           net.Conn
	queue          *SendQueue
	encoder        protocol.FrameEncoder
	attempts       int
	reconnectTimer *time.Timer
	closed         bool
	connGen        int

	lastRecv atomic.Int64 // unix nanos of last received bytes

	events chan Event
	done   chan struct{}
}

// The collector may be nil when the owner does not surface statistics
func NewSupervisor(ctx context.Context, settings Settings, collector *stats.Collector) (supervisor *Supervisor) {
	supervisor = &Supervisor{
		ctx:      logctx.AppendCtxTag(ctx, global.NSConn),
		settings: settings,
		stats:    collector,
		state:    StateDisconnected,
		events:   make(chan Event, 128),
		done:     make(chan struct{}),
	}
	return
}

// Closed once the supervisor is released via Close
func (supervisor *Supervisor) Done() (done <-chan struct{}) {
	done = supervisor.done
	return
}

// Event stream for the owner. Never closed while the supervisor lives;
// drained after Close returns.
func (supervisor *Supervisor) Events() (events <-chan Event) {
	events = supervisor.events
	return
}

func (supervisor *Supervisor) State() (state State) {
	supervisor.mu.Lock()
	defer supervisor.mu.Unlock()
	state = supervisor.state
	return
}

func (supervisor *Supervisor) ReconnectAttempts() (attempts int) {
	supervisor.mu.Lock()
	defer supervisor.mu.Unlock()
	attempts = supervisor.attempts
	return
}

// Begins dialing the endpoint. Illegal unless Disconnected. The dial
// itself runs asynchronously; the outcome arrives on the event stream.
func (supervisor *Supervisor) Connect(host string, port int) (err error) {
	supervisor.mu.Lock()
	if supervisor.state != StateDisconnected {
		supervisor.mu.Unlock()
		err = fmt.Errorf("connect illegal in state %s", supervisor.state)
		return
	}
	supervisor.host = host
	supervisor.port = port
	supervisor.attempts = 0
	supervisor.toStateLocked(StateConnecting)
	supervisor.mu.Unlock()

	go supervisor.dial()
	return
}

// Dials with the connect timeout and wires the socket on success
func (supervisor *Supervisor) dial() {
	logctx.LogEvent(supervisor.ctx, global.VerbosityProgress, global.InfoLog, "dialing %s:%d", supervisor.host, supervisor.port)

	conn, err := network.DialTimeout(supervisor.host, supervisor.port, supervisor.settings.ConnectTimeout)
	if err != nil {
		supervisor.handleLost(err)
		return
	}

	supervisor.mu.Lock()
	if supervisor.state != StateConnecting && supervisor.state != StateReconnecting {
		// Owner disconnected while the dial was in flight
		supervisor.mu.Unlock()
		conn.Close()
		return
	}

	network.TuneConn(conn)
	supervisor.conn = conn
	supervisor.queue = NewSendQueue(global.SendQueueHighWater)
	supervisor.encoder = protocol.FrameEncoder{}
	supervisor.connGen++
	gen := supervisor.connGen
	supervisor.lastRecv.Store(time.Now().UnixNano())
	supervisor.toStateLocked(StateConnected)
	queue := supervisor.queue
	supervisor.mu.Unlock()

	logctx.LogEvent(supervisor.ctx, global.VerbosityStandard, global.InfoLog, "connected to %s:%d", supervisor.host, supervisor.port)

	go supervisor.readLoop(conn, gen)
	go supervisor.writeLoop(conn, queue)
	go supervisor.heartbeatLoop(conn, gen)
}

// Encodes and enqueues one outbound frame. Screen frames are subject
// to the queue's backpressure policy.
func (supervisor *Supervisor) Send(msgType uint32, payload []byte) (err error) {
	supervisor.mu.Lock()
	if supervisor.conn == nil || supervisor.state < StateConnected || supervisor.state > StateAuthenticated {
		state := supervisor.state
		supervisor.mu.Unlock()
		err = fmt.Errorf("send illegal in state %s", state)
		return
	}
	frame := supervisor.encoder.Encode(msgType, payload)
	queue := supervisor.queue
	supervisor.mu.Unlock()

	dropped, err := queue.Push(msgType, frame)
	if err != nil {
		return
	}
	if dropped > 0 {
		logctx.LogEvent(supervisor.ctx, global.VerbosityStandard, global.WarnLog, "send queue over high water, dropped %d screen frames", dropped)
	}
	return
}

// Marks the endpoint as running the credential exchange
func (supervisor *Supervisor) MarkAuthenticating() {
	supervisor.mu.Lock()
	defer supervisor.mu.Unlock()
	if supervisor.state == StateConnected {
		supervisor.toStateLocked(StateAuthenticating)
	}
}

// Marks the endpoint authenticated and resets the reconnect budget
func (supervisor *Supervisor) MarkAuthenticated() {
	supervisor.mu.Lock()
	defer supervisor.mu.Unlock()
	if supervisor.state == StateAuthenticating || supervisor.state == StateConnected {
		supervisor.attempts = 0
		supervisor.toStateLocked(StateAuthenticated)
	}
}

// Deliberate teardown. Idempotent: cancels the reconnect timer, closes
// the socket and the send queue, and settles in Disconnected.
func (supervisor *Supervisor) Disconnect() {
	supervisor.mu.Lock()
	if supervisor.state == StateDisconnected || supervisor.state == StateDisconnecting {
		supervisor.mu.Unlock()
		return
	}
	supervisor.toStateLocked(StateDisconnecting)
	if supervisor.reconnectTimer != nil {
		supervisor.reconnectTimer.Stop()
		supervisor.reconnectTimer = nil
	}
	conn := supervisor.conn
	queue := supervisor.queue
	supervisor.conn = nil
	supervisor.queue = nil
	supervisor.toStateLocked(StateDisconnected)
	supervisor.mu.Unlock()

	if queue != nil {
		queue.Close()
	}
	if conn != nil {
		conn.Close()
	}
	logctx.LogEvent(supervisor.ctx, global.VerbosityProgress, global.InfoLog, "disconnected from %s:%d", supervisor.host, supervisor.port)
}

// Releases the supervisor. No events are emitted afterward.
func (supervisor *Supervisor) Close() {
	supervisor.Disconnect()
	supervisor.mu.Lock()
	if !supervisor.closed {
		supervisor.closed = true
		close(supervisor.done)
	}
	supervisor.mu.Unlock()
}

func (supervisor *Supervisor) toStateLocked(next State) {
	if supervisor.state == next {
		return
	}
	supervisor.state = next
	supervisor.emitLocked(Event{Kind: EventStateChanged, State: next})
}

// Non-blocking emit; the buffer is deep enough that an owner draining
// its event loop never misses a transition
func (supervisor *Supervisor) emitLocked(event Event) {
	if supervisor.closed {
		return
	}
	select {
	case supervisor.events <- event:
	default:
		logctx.LogEvent(supervisor.ctx, global.VerbosityStandard, global.WarnLog, "event stream full, dropping %d event", event.Kind)
	}
}

func (supervisor *Supervisor) emit(event Event) {
	supervisor.mu.Lock()
	defer supervisor.mu.Unlock()
	supervisor.emitLocked(event)
}

// Unsolicited connection loss or dial failure. Schedules a reconnect
// when the budget allows, otherwise settles in Disconnected and
// surfaces the cause.
func (supervisor *Supervisor) handleLost(cause error) {
	supervisor.mu.Lock()

	if supervisor.state == StateDisconnecting || supervisor.state == StateDisconnected {
		// Deliberate teardown already in progress
		supervisor.mu.Unlock()
		return
	}

	conn := supervisor.conn
	queue := supervisor.queue
	supervisor.conn = nil
	supervisor.queue = nil

	if supervisor.settings.AutoReconnect && supervisor.attempts < supervisor.settings.MaxReconnects {
		supervisor.toStateLocked(StateDisconnected)
		supervisor.attempts++
		attempt := supervisor.attempts
		supervisor.toStateLocked(StateReconnecting)
		supervisor.reconnectTimer = time.AfterFunc(supervisor.settings.ReconnectEvery, supervisor.retryDial)
		supervisor.mu.Unlock()

		if queue != nil {
			queue.Close()
		}
		if conn != nil {
			conn.Close()
		}
		logctx.LogEvent(supervisor.ctx, global.VerbosityStandard, global.WarnLog, "connection lost (%v), reconnect attempt %d of %d", cause, attempt, supervisor.settings.MaxReconnects)
		return
	}

	supervisor.toStateLocked(StateError)
	supervisor.toStateLocked(StateDisconnected)
	supervisor.emitLocked(Event{Kind: EventError, Err: cause})
	supervisor.mu.Unlock()

	if queue != nil {
		queue.Close()
	}
	if conn != nil {
		conn.Close()
	}
	logctx.LogEvent(supervisor.ctx, global.VerbosityNone, global.ErrorLog, "connection to %s:%d lost: %v", supervisor.host, supervisor.port, cause)
}

func (supervisor *Supervisor) retryDial() {
	supervisor.mu.Lock()
	if supervisor.state != StateReconnecting {
		supervisor.mu.Unlock()
		return
	}
	supervisor.reconnectTimer = nil
	supervisor.mu.Unlock()

	supervisor.dial()
}

// Socket read side: feeds the stream decoder and delivers every decoded
// frame on the event stream. Runs until the socket dies.
func (supervisor *Supervisor) readLoop(conn net.Conn, gen int) {
	decoder := protocol.StreamDecoder{}
	tracker := protocol.SequenceTracker{}
	checksumFailures := 0
	buf := make([]byte, 64*1024)

	for {
		n, readErr := conn.Read(buf)
		if n > 0 {
			supervisor.lastRecv.Store(time.Now().UnixNano())
			if supervisor.stats != nil {
				supervisor.stats.AddRx(n)
			}
			decoder.Feed(buf[:n])

			for {
				hdr, payload, err := decoder.TryDecode()
				if err != nil {
					if err == protocol.ErrChecksumMismatch {
						checksumFailures++
						logctx.LogEvent(supervisor.ctx, global.VerbosityStandard, global.WarnLog, "dropped frame with bad checksum (%d consecutive)", checksumFailures)
						if checksumFailures < global.MaxChecksumFailures {
							continue
						}
					}
					if supervisor.stale(gen) {
						return
					}
					supervisor.handleLost(fmt.Errorf("stream decode failed: %w", err))
					return
				}
				if hdr == nil {
					break
				}
				checksumFailures = 0

				if seqErr := tracker.Check(hdr.Sequence); seqErr != nil {
					logctx.LogEvent(supervisor.ctx, global.VerbosityStandard, global.WarnLog, "dropped frame with regressed sequence %d", hdr.Sequence)
					continue
				}

				supervisor.emit(Event{Kind: EventFrame, Header: hdr, Payload: payload})
			}
		}

		if readErr != nil {
			if supervisor.stale(gen) {
				return
			}
			supervisor.handleLost(readErr)
			return
		}
	}
}

// True when this goroutine's socket generation is no longer current,
// meaning teardown or reconnect already happened
func (supervisor *Supervisor) stale(gen int) (old bool) {
	supervisor.mu.Lock()
	defer supervisor.mu.Unlock()
	old = gen != supervisor.connGen || supervisor.conn == nil
	return
}

// Socket write side: drains the send queue until it closes
func (supervisor *Supervisor) writeLoop(conn net.Conn, queue *SendQueue) {
	for {
		frame, ok := queue.Pop()
		if !ok {
			return
		}

		n, err := conn.Write(frame)
		if supervisor.stats != nil && n > 0 {
			supervisor.stats.AddTx(n)
		}
		if err != nil {
			supervisor.handleLost(err)
			return
		}
	}
}

// Sends a heartbeat on every interval and enforces the liveness window.
// Any received bytes reset the window, not just heartbeat replies.
func (supervisor *Supervisor) heartbeatLoop(conn net.Conn, gen int) {
	ticker := time.NewTicker(supervisor.settings.HeartbeatEvery)
	defer ticker.Stop()

	for range ticker.C {
		if supervisor.stale(gen) {
			return
		}

		silence := time.Since(time.Unix(0, supervisor.lastRecv.Load()))
		if silence > supervisor.settings.HeartbeatTimeout {
			supervisor.handleLost(fmt.Errorf("heartbeat timeout after %s of silence", silence.Round(time.Second)))
			return
		}

		err := supervisor.Send(protocol.MsgHeartbeat, nil)
		if err != nil {
			return
		}
	}
}
