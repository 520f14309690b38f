// Outbound connection lifecycle: dialing, heartbeat, auto-reconnect
package connection

import "rdcp/pkg/protocol"

// Lifecycle states for one supervised endpoint
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateReconnecting
	StateDisconnecting
	StateError
)

var stateNames = [...]string{
	"Disconnected",
	"Connecting",
	"Connected",
	"Authenticating",
	"Authenticated",
	"Reconnecting",
	"Disconnecting",
	"Error",
}

func (state State) String() (name string) {
	if int(state) < len(stateNames) {
		name = stateNames[state]
		return
	}
	name = "Unknown"
	return
}

type EventKind uint8

const (
	// State transition; Event.State carries the new state
	EventStateChanged EventKind = iota

	// One decoded inbound frame; Event.Header and Event.Payload are set
	EventFrame

	// Terminal failure surfaced to the owner; Event.Err is set
	EventError
)

// Emitted to the owner on the supervisor's event stream
type Event struct {
	Kind    EventKind
	State   State
	Header  *protocol.Header
	Payload []byte
	Err     error
}
