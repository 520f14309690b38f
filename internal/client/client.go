// Client core: one outbound connection paired with one session engine
package client

import (
	"context"
	"image"
	"sync"

	"rdcp/internal/connection"
	"rdcp/internal/global"
	"rdcp/internal/logctx"
	"rdcp/internal/session"
	"rdcp/internal/stats"
	"rdcp/pkg/protocol"
)

type Settings struct {
	Username   string
	Password   string
	ViewWidth  uint16
	ViewHeight uint16
	Connection connection.Settings
}

// Consumers of what the remote side produces. Nil sinks are skipped.
type Sinks struct {
	Frame  func(img image.Image)
	Status func(rec protocol.StatusUpdate)
	Error  func(err error)
}

// Owns exactly one connection supervisor and one session, and runs the
// event loop binding them together
type Client struct {
	ctx      context.Context
	settings Settings
	sinks    Sinks

	supervisor *connection.Supervisor
	stats      *stats.Collector

	// The session is driven by the event loop and by user-facing input
	// calls, so access is serialized here
	sessMu  sync.Mutex
	session *session.Session

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

func New(ctx context.Context, settings Settings, sinks Sinks) (client *Client) {
	ctx = logctx.AppendCtxTag(ctx, global.NSClient)

	client = &Client{
		ctx:      ctx,
		settings: settings,
		sinks:    sinks,
		stats:    stats.NewCollector(),
		done:     make(chan struct{}),
	}
	client.supervisor = connection.NewSupervisor(ctx, settings.Connection, client.stats)

	client.session = session.New(ctx, session.Config{
		Role:       session.RoleClient,
		Sender:     client.supervisor,
		Username:   settings.Username,
		Password:   settings.Password,
		ViewWidth:  settings.ViewWidth,
		ViewHeight: settings.ViewHeight,
		Stats:      client.stats,
		FrameSink: func(img image.Image, rec protocol.ScreenData) {
			if client.sinks.Frame != nil {
				client.sinks.Frame(img)
			}
		},
		StatusSink: func(rec protocol.StatusUpdate) {
			if client.sinks.Status != nil {
				client.sinks.Status(rec)
			}
		},
		ErrorSink: func(rec protocol.ErrorMessage) {
			client.surfaceError(newServerError(rec))
		},
		OnAuthStarted:   client.supervisor.MarkAuthenticating,
		OnAuthenticated: func(sessionID string) { client.supervisor.MarkAuthenticated() },
		OnAuthFailed:    client.onAuthFailed,
		OnClose:         client.onSessionClose,
	})
	return
}

// Dials the endpoint and starts the event loop. One shot per client.
func (client *Client) Connect(host string, port int) (err error) {
	client.mu.Lock()
	if !client.started {
		client.started = true
		go client.eventLoop()
	}
	client.mu.Unlock()

	err = client.supervisor.Connect(host, port)
	return
}

func (client *Client) State() (state connection.State) {
	state = client.supervisor.State()
	return
}

func (client *Client) SessionID() (id string) {
	client.sessMu.Lock()
	defer client.sessMu.Unlock()
	id = client.session.SessionID()
	return
}

// Statistics shared with the owner's presentation layer
func (client *Client) Stats() (collector *stats.Collector) {
	collector = client.stats
	return
}

// Orderly teardown: tell the peer, then drop the socket
func (client *Client) Disconnect() {
	client.sessMu.Lock()
	client.session.RequestDisconnect()
	client.sessMu.Unlock()
	client.supervisor.Disconnect()
}

// Releases the client. The done channel closes once the event loop has
// fully drained.
func (client *Client) Close() {
	client.mu.Lock()
	alreadyStopped := client.stopped
	client.stopped = true
	started := client.started
	client.mu.Unlock()

	client.supervisor.Close()
	if !alreadyStopped && !started {
		close(client.done)
	}
}

func (client *Client) Done() (done <-chan struct{}) {
	done = client.done
	return
}

// Translates a view-local mouse position to remote screen coordinates
// through the current scale transform and sends it. Dropped silently
// before authentication.
func (client *Client) SendMouse(kind uint8, viewX, viewY int, buttons uint8, wheelDelta int16) (err error) {
	remoteX, remoteY := client.viewToRemote(viewX, viewY)
	event := protocol.MouseEvent{
		Kind:       kind,
		X:          remoteX,
		Y:          remoteY,
		Buttons:    buttons,
		WheelDelta: wheelDelta,
	}
	client.sessMu.Lock()
	defer client.sessMu.Unlock()
	err = client.session.SendMouse(event)
	return
}

func (client *Client) SendKeyboard(kind uint8, keyCode, modifiers uint32, text string) (err error) {
	event := protocol.KeyboardEvent{
		Kind:      kind,
		KeyCode:   keyCode,
		Modifiers: modifiers,
		Text:      text,
	}
	client.sessMu.Lock()
	defer client.sessMu.Unlock()
	err = client.session.SendKeyboard(event)
	return
}

func (client *Client) SendClipboard(format uint8, data []byte) (err error) {
	client.sessMu.Lock()
	defer client.sessMu.Unlock()
	err = client.session.SendClipboard(protocol.ClipboardData{Format: format, Data: data})
	return
}

// Scales view coordinates into the remote screen's space. Falls back to
// identity until the peer's geometry is known.
func (client *Client) viewToRemote(viewX, viewY int) (remoteX, remoteY int16) {
	client.sessMu.Lock()
	remoteWidth, remoteHeight := client.session.PeerScreen()
	client.sessMu.Unlock()
	viewWidth := int(client.settings.ViewWidth)
	viewHeight := int(client.settings.ViewHeight)

	if remoteWidth == 0 || remoteHeight == 0 || viewWidth == 0 || viewHeight == 0 {
		remoteX = int16(viewX)
		remoteY = int16(viewY)
		return
	}

	remoteX = int16(viewX * int(remoteWidth) / viewWidth)
	remoteY = int16(viewY * int(remoteHeight) / viewHeight)
	return
}

// Consumes the supervisor's event stream, feeding decoded frames to the
// session and surfacing terminal errors
func (client *Client) eventLoop() {
	defer close(client.done)

	for {
		select {
		case <-client.supervisor.Done():
			return
		case event := <-client.supervisor.Events():
			switch event.Kind {

			case connection.EventStateChanged:
				if event.State == connection.StateConnected {
					// Fresh socket: restart the session dialogue
					client.sessMu.Lock()
					client.session.Reset()
					err := client.session.Begin()
					client.sessMu.Unlock()
					if err != nil {
						client.surfaceError(err)
					}
				}

			case connection.EventFrame:
				client.sessMu.Lock()
				err := client.session.HandleFrame(event.Header, event.Payload)
				client.sessMu.Unlock()
				if err != nil {
					logctx.LogEvent(client.ctx, global.VerbosityStandard, global.WarnLog, "frame dispatch failed: %v", err)
				}

			case connection.EventError:
				client.surfaceError(event.Err)
			}
		}
	}
}

func (client *Client) onAuthFailed(result uint8) {
	client.surfaceError(authFailureError(result))
	client.supervisor.Disconnect()
}

func (client *Client) onSessionClose(reason error) {
	if reason != nil {
		client.surfaceError(reason)
	}
	client.supervisor.Disconnect()
}

func (client *Client) surfaceError(err error) {
	if err == nil {
		return
	}
	logctx.LogEvent(client.ctx, global.VerbosityNone, global.ErrorLog, "%v", err)
	if client.sinks.Error != nil {
		client.sinks.Error(err)
	}
}
