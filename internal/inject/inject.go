// Input event delivery behind a pluggable injector interface
package inject

import (
	"sync"

	"rdcp/pkg/protocol"
)

// Applies remote input events to the local machine. Implementations
// translate the wire records into platform input.
type Injector interface {
	InjectMouse(event protocol.MouseEvent) error
	InjectKeyboard(event protocol.KeyboardEvent) error
}

// Accepts and drops every event. Default when no platform backend is
// available or input is disabled.
type Discard struct{}

func (Discard) InjectMouse(event protocol.MouseEvent) error       { return nil }
func (Discard) InjectKeyboard(event protocol.KeyboardEvent) error { return nil }

// Captures injected events for inspection in tests and loopback runs
type Recorder struct {
	mu       sync.Mutex
	mouse    []protocol.MouseEvent
	keyboard []protocol.KeyboardEvent
}

func (recorder *Recorder) InjectMouse(event protocol.MouseEvent) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.mouse = append(recorder.mouse, event)
	return nil
}

func (recorder *Recorder) InjectKeyboard(event protocol.KeyboardEvent) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.keyboard = append(recorder.keyboard, event)
	return nil
}

func (recorder *Recorder) MouseEvents() (events []protocol.MouseEvent) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	events = append(events, recorder.mouse...)
	return
}

func (recorder *Recorder) KeyboardEvents() (events []protocol.KeyboardEvent) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	events = append(events, recorder.keyboard...)
	return
}
