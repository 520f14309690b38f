// Tracks concurrent outbound client sessions keyed by connection id
package registry

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"rdcp/internal/client"
	"rdcp/internal/config"
	"rdcp/internal/connection"
	"rdcp/internal/global"
	"rdcp/internal/logctx"
	"rdcp/pkg/protocol"
)

// Upstream sinks; every signal carries the owning connection id
type Sinks struct {
	Frame  func(id string, img image.Image)
	Status func(id string, rec protocol.StatusUpdate)
	Error  func(id string, err error)
}

// Read-only view of one tracked connection
type Info struct {
	ID          string
	Host        string
	Port        int
	ConnectedAt time.Time
	State       connection.State
	SessionID   string
}

type entry struct {
	info   Info
	client *client.Client
}

// Owns every outbound client on this host, routes their events by id,
// and records endpoints to the reconnect history
type Registry struct {
	ctx      context.Context
	settings client.Settings
	cfg      *config.Config // nil disables history persistence
	sinks    Sinks

	mu      sync.Mutex
	entries map[string]*entry
}

func New(ctx context.Context, settings client.Settings, cfg *config.Config, sinks Sinks) (registry *Registry) {
	registry = &Registry{
		ctx:      logctx.AppendCtxTag(ctx, global.NSRegistry),
		settings: settings,
		cfg:      cfg,
		sinks:    sinks,
		entries:  make(map[string]*entry),
	}
	return
}

// Opens a new outbound connection and returns its freshly generated id
func (registry *Registry) Connect(host string, port int) (id string, err error) {
	if port < 1 || port > 65535 {
		err = fmt.Errorf("invalid port %d", port)
		return
	}

	id = uuid.NewString()

	boundID := id
	cli := client.New(registry.ctx, registry.settings, client.Sinks{
		Frame: func(img image.Image) {
			if registry.sinks.Frame != nil {
				registry.sinks.Frame(boundID, img)
			}
		},
		Status: func(rec protocol.StatusUpdate) {
			if registry.sinks.Status != nil {
				registry.sinks.Status(boundID, rec)
			}
		},
		Error: func(surfacedErr error) {
			if registry.sinks.Error != nil {
				registry.sinks.Error(boundID, surfacedErr)
			}
		},
	})

	now := time.Now()
	registry.mu.Lock()
	registry.entries[id] = &entry{
		info: Info{
			ID:          id,
			Host:        host,
			Port:        port,
			ConnectedAt: now,
		},
		client: cli,
	}
	registry.mu.Unlock()

	err = cli.Connect(host, port)
	if err != nil {
		registry.mu.Lock()
		delete(registry.entries, id)
		registry.mu.Unlock()
		cli.Close()
		id = ""
		return
	}

	if registry.cfg != nil {
		registry.cfg.RecordConnection(host, port, now)
	}

	logctx.LogEvent(registry.ctx, global.VerbosityStandard, global.InfoLog, "connection %s opened to %s:%d", id, host, port)
	return
}

// Closes and forgets one connection. Unknown ids report an error.
func (registry *Registry) Disconnect(id string) (err error) {
	registry.mu.Lock()
	tracked, known := registry.entries[id]
	if known {
		delete(registry.entries, id)
	}
	registry.mu.Unlock()

	if !known {
		err = fmt.Errorf("unknown connection id %s", id)
		return
	}

	tracked.client.Disconnect()
	tracked.client.Close()
	logctx.LogEvent(registry.ctx, global.VerbosityStandard, global.InfoLog, "connection %s closed", id)
	return
}

// Closes every tracked connection
func (registry *Registry) DisconnectAll() {
	registry.mu.Lock()
	drained := registry.entries
	registry.entries = make(map[string]*entry)
	registry.mu.Unlock()

	for id, tracked := range drained {
		tracked.client.Disconnect()
		tracked.client.Close()
		logctx.LogEvent(registry.ctx, global.VerbosityProgress, global.InfoLog, "connection %s closed", id)
	}
}

func (registry *Registry) Count() (n int) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	n = len(registry.entries)
	return
}

func (registry *Registry) IDs() (ids []string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for id := range registry.entries {
		ids = append(ids, id)
	}
	return
}

// Current view of one connection, including its live state
func (registry *Registry) Lookup(id string) (info Info, known bool) {
	registry.mu.Lock()
	tracked, known := registry.entries[id]
	registry.mu.Unlock()

	if !known {
		return
	}
	info = tracked.info
	info.State = tracked.client.State()
	info.SessionID = tracked.client.SessionID()
	return
}

// Direct access for input routing; callers must not retain the client
// past a Disconnect of its id
func (registry *Registry) Client(id string) (cli *client.Client, known bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	tracked, known := registry.entries[id]
	if known {
		cli = tracked.client
	}
	return
}
