package session

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"

	"rdcp/internal/auth"
	"rdcp/internal/codec"
	"rdcp/internal/crypto/random"
	"rdcp/internal/global"
	"rdcp/internal/inject"
	"rdcp/internal/logctx"
	"rdcp/internal/stats"
	"rdcp/pkg/protocol"
)

// Outbound frame path; satisfied by the connection supervisor on the
// client and by the handler's send queue on the server
type Sender interface {
	Send(msgType uint32, payload []byte) (err error)
}

// Collaborators and callbacks for one session. Role selects which
// fields matter; unused ones stay nil.
type Config struct {
	Role   Role
	Sender Sender

	// Server side
	Verifier     *auth.Verifier
	Injector     inject.Injector
	ServerName   string
	ScreenWidth  uint16
	ScreenHeight uint16
	Quality      float64
	Strategy     codec.Strategy

	// Client side
	Username   string
	Password   string
	ViewWidth  uint16
	ViewHeight uint16
	FrameSink  func(img image.Image, rec protocol.ScreenData)
	StatusSink func(rec protocol.StatusUpdate)
	ErrorSink  func(rec protocol.ErrorMessage)

	// Both sides
	ClipboardSink func(rec protocol.ClipboardData)
	Stats         *stats.Collector

	// Lifecycle callbacks into the owner
	OnAuthStarted   func()
	OnAuthenticated func(sessionID string)
	OnAuthFailed    func(result uint8)
	OnClose         func(reason error)
}

// Drives one connected socket through handshake, credential exchange
// and streaming. Owns the codec state for its direction; every method
// runs on the owner's I/O goroutine, so no locking.
type Session struct {
	ctx   context.Context
	cfg   Config
	state State

	authenticated bool
	sessionID     string
	reframeAsked  bool

	encoder *codec.Encoder // server: previous-full reference for outbound frames
	decoder codec.Decoder  // client: reference for inbound differential frames

	peerWidth  uint16
	peerHeight uint16
}

func New(ctx context.Context, cfg Config) (session *Session) {
	session = &Session{
		ctx:   logctx.AppendCtxTag(ctx, global.NSSession),
		cfg:   cfg,
		state: StateInactive,
	}
	if cfg.Role == RoleServer {
		session.encoder = codec.NewEncoder(cfg.Strategy, cfg.Quality)
	}
	return
}

func (session *Session) State() (state State) {
	state = session.state
	return
}

func (session *Session) Authenticated() (ok bool) {
	ok = session.authenticated
	return
}

func (session *Session) SessionID() (id string) {
	id = session.sessionID
	return
}

// Remote screen geometry learned from the peer's handshake
func (session *Session) PeerScreen() (width, height uint16) {
	width = session.peerWidth
	height = session.peerHeight
	return
}

// Starts the session. The client opens with its handshake request; the
// server waits for one.
func (session *Session) Begin() (err error) {
	if session.state != StateInactive {
		err = fmt.Errorf("begin illegal in state %s", session.state)
		return
	}
	session.state = StateInitializing

	if session.cfg.Role != RoleClient {
		return
	}

	hostname, _ := os.Hostname()
	request := protocol.HandshakeRequest{
		ClientVersion: protocol.ProtocolVersion,
		ScreenWidth:   session.cfg.ViewWidth,
		ScreenHeight:  session.cfg.ViewHeight,
		ColorDepth:    32,
		ClientName:    hostname,
		ClientOS:      runtime.GOOS,
	}
	err = session.cfg.Sender.Send(protocol.MsgHandshakeRequest, request.Encode())
	return
}

// Pauses frame delivery while keeping the connection alive
func (session *Session) Suspend() {
	if session.state == StateActive {
		session.state = StateSuspended
	}
}

func (session *Session) Resume() {
	if session.state == StateSuspended {
		session.state = StateActive
	}
}

// Ends the session. Idempotent; the owner closes the socket.
func (session *Session) Terminate() {
	session.state = StateTerminated
	session.authenticated = false
}

// Returns the session to Inactive so the owner can reuse it after a
// reconnect. Codec references are dropped; the next frame goes out or
// arrives full.
func (session *Session) Reset() {
	session.state = StateInactive
	session.authenticated = false
	session.sessionID = ""
	session.reframeAsked = false
	session.decoder.Reset()
	if session.encoder != nil {
		session.encoder.Reset()
	}
}

// Encodes and sends one captured frame. Server role only, called by the
// capture pacing loop while a peer is authenticated.
func (session *Session) SendFrame(img image.Image) (err error) {
	if session.cfg.Role != RoleServer {
		err = fmt.Errorf("frame sending is a server operation")
		return
	}
	if !session.authenticated || session.state != StateActive {
		err = fmt.Errorf("no authenticated peer for frame")
		return
	}

	rec, err := session.encoder.EncodeFrame(img)
	if err != nil {
		// Keep the session; this frame is lost
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "frame encode failed: %v", err)
		return
	}

	err = session.cfg.Sender.Send(protocol.MsgScreenData, rec.Encode())
	return
}

// Packs and sends one user input event. Client role only; input before
// authentication is dropped.
func (session *Session) SendMouse(event protocol.MouseEvent) (err error) {
	if !session.authenticated {
		logctx.LogEvent(session.ctx, global.VerbosityData, global.WarnLog, "dropping mouse event before authentication")
		return
	}
	err = session.cfg.Sender.Send(protocol.MsgMouseEvent, event.Encode())
	return
}

func (session *Session) SendKeyboard(event protocol.KeyboardEvent) (err error) {
	if !session.authenticated {
		logctx.LogEvent(session.ctx, global.VerbosityData, global.WarnLog, "dropping keyboard event before authentication")
		return
	}
	err = session.cfg.Sender.Send(protocol.MsgKeyboardEvent, event.Encode())
	return
}

func (session *Session) SendClipboard(rec protocol.ClipboardData) (err error) {
	if !session.authenticated {
		err = fmt.Errorf("clipboard requires an authenticated session")
		return
	}
	err = session.cfg.Sender.Send(protocol.MsgClipboardData, rec.Encode())
	return
}

// Asks the peer for an orderly teardown, then terminates locally
func (session *Session) RequestDisconnect() {
	if session.state == StateActive || session.state == StateSuspended || session.state == StateInitializing {
		session.cfg.Sender.Send(protocol.MsgDisconnectRequest, nil)
	}
	session.Terminate()
}

// Dispatches one decoded inbound frame by type and role. Unknown types
// are logged and dropped; they never close the connection.
func (session *Session) HandleFrame(hdr *protocol.Header, payload []byte) (err error) {
	switch hdr.Type {

	case protocol.MsgHandshakeRequest:
		if session.cfg.Role == RoleServer {
			err = session.handleHandshakeRequest(payload)
		}

	case protocol.MsgHandshakeResponse:
		if session.cfg.Role == RoleClient {
			err = session.handleHandshakeResponse(payload)
		}

	case protocol.MsgAuthRequest:
		if session.cfg.Role == RoleServer {
			err = session.handleAuthRequest(payload)
		}

	case protocol.MsgAuthChallenge:
		if session.cfg.Role == RoleClient {
			err = session.handleAuthChallenge(payload)
		}

	case protocol.MsgAuthResponse:
		if session.cfg.Role == RoleClient {
			err = session.handleAuthResponse(payload)
		}

	case protocol.MsgHeartbeat:
		// Liveness is tracked by the transport on any received bytes;
		// the server additionally echoes so the client's window resets
		if session.cfg.Role == RoleServer {
			err = session.cfg.Sender.Send(protocol.MsgHeartbeat, nil)
		}

	case protocol.MsgMouseEvent, protocol.MsgKeyboardEvent:
		if session.cfg.Role == RoleServer {
			session.handleInput(hdr.Type, payload)
		}

	case protocol.MsgScreenData:
		if session.cfg.Role == RoleClient {
			session.handleScreenData(payload)
		}

	case protocol.MsgStatusUpdate:
		if session.cfg.Role == RoleClient {
			session.handleStatusUpdate(payload)
		} else {
			session.handleReframeRequest(payload)
		}

	case protocol.MsgClipboardData:
		session.handleClipboard(payload)

	case protocol.MsgErrorMessage:
		err = session.handleErrorMessage(payload)

	case protocol.MsgDisconnectRequest:
		logctx.LogEvent(session.ctx, global.VerbosityProgress, global.InfoLog, "peer requested disconnect")
		session.Terminate()
		session.close(nil)

	default:
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "dropping frame with unknown type %#x", hdr.Type)
	}
	return
}

func (session *Session) handleHandshakeRequest(payload []byte) (err error) {
	request, err := protocol.DecodeHandshakeRequest(payload)
	if err != nil {
		err = fmt.Errorf("malformed handshake request: %w", err)
		return
	}

	session.peerWidth = request.ScreenWidth
	session.peerHeight = request.ScreenHeight
	logctx.LogEvent(session.ctx, global.VerbosityProgress, global.InfoLog, "handshake from %s (%s, %dx%d)",
		request.ClientName, request.ClientOS, request.ScreenWidth, request.ScreenHeight)

	response := protocol.HandshakeResponse{
		ServerVersion:     protocol.ProtocolVersion,
		ScreenWidth:       session.cfg.ScreenWidth,
		ScreenHeight:      session.cfg.ScreenHeight,
		ColorDepth:        32,
		SupportedFeatures: protocol.FeatureDiffFrames | protocol.FeatureInput | protocol.FeatureClipboard,
		ServerName:        session.cfg.ServerName,
		ServerOS:          runtime.GOOS,
	}
	err = session.cfg.Sender.Send(protocol.MsgHandshakeResponse, response.Encode())
	return
}

func (session *Session) handleHandshakeResponse(payload []byte) (err error) {
	response, err := protocol.DecodeHandshakeResponse(payload)
	if err != nil {
		err = fmt.Errorf("malformed handshake response: %w", err)
		return
	}

	session.peerWidth = response.ScreenWidth
	session.peerHeight = response.ScreenHeight
	logctx.LogEvent(session.ctx, global.VerbosityProgress, global.InfoLog, "connected to %s (%s, %dx%d)",
		response.ServerName, response.ServerOS, response.ScreenWidth, response.ScreenHeight)

	// Open the credential exchange with an empty credential; a server
	// with a secret replies with its challenge
	if session.cfg.OnAuthStarted != nil {
		session.cfg.OnAuthStarted()
	}
	request := protocol.AuthRequest{
		Username: session.cfg.Username,
		Method:   protocol.AuthMethodPBKDF2,
	}
	err = session.cfg.Sender.Send(protocol.MsgAuthRequest, request.Encode())
	return
}

func (session *Session) handleAuthRequest(payload []byte) (err error) {
	request, err := protocol.DecodeAuthRequest(payload)
	if err != nil {
		err = fmt.Errorf("malformed auth request: %w", err)
		return
	}

	if session.cfg.Verifier.NeedsChallenge(request) {
		challenge := session.cfg.Verifier.Challenge()
		err = session.cfg.Sender.Send(protocol.MsgAuthChallenge, challenge.Encode())
		return
	}

	result, closeConn := session.cfg.Verifier.Verify(request, global.MaxAuthFailures)

	response := protocol.AuthResponse{Result: result}
	if result == protocol.AuthSuccess {
		// Open servers hand out an empty session id
		if request.Credential != "" {
			response.SessionID, err = random.SessionID()
			if err != nil {
				return
			}
		}
		session.sessionID = response.SessionID
		session.authenticated = true
		session.state = StateActive
	}

	sendErr := session.cfg.Sender.Send(protocol.MsgAuthResponse, response.Encode())
	if sendErr != nil {
		err = sendErr
		return
	}

	if result == protocol.AuthSuccess {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.InfoLog, "peer %q authenticated", request.Username)
		if session.cfg.OnAuthenticated != nil {
			session.cfg.OnAuthenticated(session.sessionID)
		}
		return
	}

	logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "auth failure %d for %q", result, request.Username)
	if closeConn {
		session.Terminate()
		session.close(fmt.Errorf("authentication failure budget exhausted"))
	}
	return
}

func (session *Session) handleAuthChallenge(payload []byte) (err error) {
	challenge, err := protocol.DecodeAuthChallenge(payload)
	if err != nil {
		err = fmt.Errorf("malformed auth challenge: %w", err)
		return
	}

	credential, err := auth.SolveChallenge(session.cfg.Password, challenge)
	if err != nil {
		err = fmt.Errorf("cannot answer challenge: %w", err)
		return
	}

	request := protocol.AuthRequest{
		Username:   session.cfg.Username,
		Credential: credential,
		Method:     protocol.AuthMethodPBKDF2,
	}
	err = session.cfg.Sender.Send(protocol.MsgAuthRequest, request.Encode())
	return
}

func (session *Session) handleAuthResponse(payload []byte) (err error) {
	response, err := protocol.DecodeAuthResponse(payload)
	if err != nil {
		err = fmt.Errorf("malformed auth response: %w", err)
		return
	}

	if response.Result != protocol.AuthSuccess {
		logctx.LogEvent(session.ctx, global.VerbosityNone, global.ErrorLog, "authentication rejected with result %d", response.Result)
		if session.cfg.OnAuthFailed != nil {
			session.cfg.OnAuthFailed(response.Result)
		}
		return
	}

	session.sessionID = response.SessionID
	session.authenticated = true
	session.state = StateActive
	logctx.LogEvent(session.ctx, global.VerbosityStandard, global.InfoLog, "authenticated, session %q", response.SessionID)

	if session.cfg.OnAuthenticated != nil {
		session.cfg.OnAuthenticated(response.SessionID)
	}
	return
}

// Input from the peer is applied through the platform injector only
// while authenticated; anything earlier is dropped with a warning
func (session *Session) handleInput(msgType uint32, payload []byte) {
	if !session.authenticated {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "dropping input event from unauthenticated peer")
		return
	}
	if session.state == StateSuspended {
		return
	}
	if session.cfg.Injector == nil {
		return
	}

	switch msgType {
	case protocol.MsgMouseEvent:
		event, err := protocol.DecodeMouseEvent(payload)
		if err != nil {
			logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "malformed mouse event: %v", err)
			return
		}
		session.cfg.Injector.InjectMouse(event)

	case protocol.MsgKeyboardEvent:
		event, err := protocol.DecodeKeyboardEvent(payload)
		if err != nil {
			logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "malformed keyboard event: %v", err)
			return
		}
		session.cfg.Injector.InjectKeyboard(event)
	}
}

// Reconstruction failures drop the frame, clear the reference and ask
// the peer to restart from a full frame; the session itself survives
func (session *Session) handleScreenData(payload []byte) {
	rec, err := protocol.DecodeScreenData(payload)
	if err != nil {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "malformed screen data: %v", err)
		return
	}

	img, err := session.decoder.Reconstruct(rec)
	if err != nil {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "frame reconstruction failed (%d so far): %v", session.decoder.LoadFailures, err)
		session.requestReframe()
		return
	}
	session.reframeAsked = false

	// Reconstruction continues while suspended so the diff reference
	// stays current; only delivery pauses
	if session.state == StateSuspended {
		return
	}

	if session.cfg.Stats != nil {
		session.cfg.Stats.FrameDelivered()
	}
	if session.cfg.FrameSink != nil {
		session.cfg.FrameSink(img, rec)
	}
}

// Asks the peer to restart differential encoding from a full frame.
// Sent at most once per failure streak; the flag clears when a frame
// reconstructs again.
func (session *Session) requestReframe() {
	if session.reframeAsked {
		return
	}
	rec := protocol.StatusUpdate{Status: protocol.StatusReframeNeeded}
	err := session.cfg.Sender.Send(protocol.MsgStatusUpdate, rec.Encode())
	if err != nil {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "reframe request not sent: %v", err)
		return
	}
	session.reframeAsked = true
}

// A peer without a valid diff reference cannot apply differential
// frames; drop the encoder reference so the next frame goes out full
func (session *Session) handleReframeRequest(payload []byte) {
	rec, err := protocol.DecodeStatusUpdate(payload)
	if err != nil {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "malformed status update: %v", err)
		return
	}
	if rec.Status != protocol.StatusReframeNeeded {
		return
	}

	logctx.LogEvent(session.ctx, global.VerbosityProgress, global.InfoLog, "peer requested a full frame")
	if session.encoder != nil {
		session.encoder.Reset()
	}
}

func (session *Session) handleStatusUpdate(payload []byte) {
	rec, err := protocol.DecodeStatusUpdate(payload)
	if err != nil {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "malformed status update: %v", err)
		return
	}
	if session.cfg.StatusSink != nil {
		session.cfg.StatusSink(rec)
	}
}

func (session *Session) handleClipboard(payload []byte) {
	if !session.authenticated {
		return
	}
	rec, err := protocol.DecodeClipboardData(payload)
	if err != nil {
		logctx.LogEvent(session.ctx, global.VerbosityStandard, global.WarnLog, "malformed clipboard data: %v", err)
		return
	}
	if session.cfg.ClipboardSink != nil {
		session.cfg.ClipboardSink(rec)
	}
}

// An error message closes the server side; the client surfaces it
func (session *Session) handleErrorMessage(payload []byte) (err error) {
	rec, decodeErr := protocol.DecodeErrorMessage(payload)
	if decodeErr != nil {
		err = fmt.Errorf("malformed error message: %w", decodeErr)
		return
	}

	logctx.LogEvent(session.ctx, global.VerbosityNone, global.ErrorLog, "peer error %d: %s", rec.Code, rec.Text)

	if session.cfg.Role == RoleServer {
		session.Terminate()
		session.close(fmt.Errorf("peer reported error %d: %s", rec.Code, rec.Text))
		return
	}

	if session.cfg.ErrorSink != nil {
		session.cfg.ErrorSink(rec)
	}
	return
}

func (session *Session) close(reason error) {
	if session.cfg.OnClose != nil {
		session.cfg.OnClose(reason)
	}
}
