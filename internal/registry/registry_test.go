package registry

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"rdcp/internal/client"
	"rdcp/internal/config"
	"rdcp/internal/connection"
)

func testClientSettings() (settings client.Settings) {
	conn := connection.DefaultSettings()
	conn.AutoReconnect = false
	settings = client.Settings{
		Username:   "operator",
		ViewWidth:  640,
		ViewHeight: 480,
		Connection: conn,
	}
	return
}

// Accepts connections and holds them open for the test's lifetime
func quietListener(t *testing.T) (addr *net.TCPAddr) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			defer conn.Close()
		}
	}()

	addr = listener.Addr().(*net.TCPAddr)
	return
}

func TestConnectAssignsUniqueIDs(t *testing.T) {
	addr := quietListener(t)
	registry := New(context.Background(), testClientSettings(), nil, Sinks{})
	defer registry.DisconnectAll()

	first, err := registry.Connect(addr.IP.String(), addr.Port)
	if err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	second, err := registry.Connect(addr.IP.String(), addr.Port)
	if err != nil {
		t.Fatalf("second connect failed: %v", err)
	}

	if first == second {
		t.Error("connection ids are not unique")
	}
	if registry.Count() != 2 {
		t.Errorf("count %d, want 2", registry.Count())
	}

	info, known := registry.Lookup(first)
	if !known {
		t.Fatal("first id unknown")
	}
	if info.Host != addr.IP.String() || info.Port != addr.Port {
		t.Errorf("lookup returned %s:%d", info.Host, info.Port)
	}
}

func TestDisconnectForgetsEntry(t *testing.T) {
	addr := quietListener(t)
	registry := New(context.Background(), testClientSettings(), nil, Sinks{})
	defer registry.DisconnectAll()

	id, err := registry.Connect(addr.IP.String(), addr.Port)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if err = registry.Disconnect(id); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("count %d after disconnect, want 0", registry.Count())
	}
	if _, known := registry.Lookup(id); known {
		t.Error("disconnected id still resolvable")
	}

	if err = registry.Disconnect(id); err == nil {
		t.Error("double disconnect did not report the unknown id")
	}
}

func TestDisconnectAll(t *testing.T) {
	addr := quietListener(t)
	registry := New(context.Background(), testClientSettings(), nil, Sinks{})

	for i := 0; i < 3; i++ {
		_, err := registry.Connect(addr.IP.String(), addr.Port)
		if err != nil {
			t.Fatalf("connect %d failed: %v", i, err)
		}
	}

	registry.DisconnectAll()
	if registry.Count() != 0 {
		t.Errorf("count %d after disconnect all, want 0", registry.Count())
	}
	if len(registry.IDs()) != 0 {
		t.Error("ids remain after disconnect all")
	}
}

func TestConnectRecordsHistory(t *testing.T) {
	addr := quietListener(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := config.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	registry := New(context.Background(), testClientSettings(), cfg, Sinks{})
	defer registry.DisconnectAll()

	before := time.Now().Add(-time.Second)
	_, err = registry.Connect(addr.IP.String(), addr.Port)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	entries := cfg.History()
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if entries[0].Host != addr.IP.String() || entries[0].Port != addr.Port {
		t.Errorf("history entry %+v does not match endpoint", entries[0])
	}
	if entries[0].Time.Before(before.UTC().Truncate(time.Second)) {
		t.Errorf("history timestamp %s is stale", entries[0].Time)
	}
}

func TestConnectRejectsBadPort(t *testing.T) {
	registry := New(context.Background(), testClientSettings(), nil, Sinks{})

	if _, err := registry.Connect("localhost", 0); err == nil {
		t.Error("port 0 accepted")
	}
	if _, err := registry.Connect("localhost", 70000); err == nil {
		t.Error("port 70000 accepted")
	}
	if registry.Count() != 0 {
		t.Errorf("failed connects left %d entries", registry.Count())
	}
}
