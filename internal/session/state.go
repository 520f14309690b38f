// Session engine: handshake, credential exchange, frame dispatch
package session

// Role decides which half of the dispatch table applies
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

// Engine lifecycle states
type State uint8

const (
	StateInactive State = iota
	StateInitializing
	StateActive
	StateSuspended
	StateTerminated
)

var stateNames = [...]string{
	"Inactive",
	"Initializing",
	"Active",
	"Suspended",
	"Terminated",
}

func (state State) String() (name string) {
	if int(state) < len(stateNames) {
		name = stateNames[state]
		return
	}
	name = "Unknown"
	return
}
