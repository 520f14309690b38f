package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rdcp/internal/global"
)

func testConfig(t *testing.T) (cfg *Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg := testConfig(t)

	conn := cfg.ConnectionSettings()
	if conn.ConnectTimeout != 10*time.Second {
		t.Errorf("connect timeout %s, want 10s", conn.ConnectTimeout)
	}
	if conn.HeartbeatEvery != 10*time.Second || conn.HeartbeatTimeout != 30*time.Second {
		t.Errorf("heartbeat defaults wrong: %s / %s", conn.HeartbeatEvery, conn.HeartbeatTimeout)
	}
	if !conn.AutoReconnect || conn.MaxReconnects != 5 || conn.ReconnectEvery != 5*time.Second {
		t.Error("reconnect defaults wrong")
	}

	srv, err := cfg.ServerSettings()
	if err != nil {
		t.Fatalf("server settings failed: %v", err)
	}
	if srv.Port != global.DefaultServerPort {
		t.Errorf("port %d, want %d", srv.Port, global.DefaultServerPort)
	}
	if srv.AuthIterations != 100000 || srv.AuthKeyLength != 32 {
		t.Error("auth defaults wrong")
	}
	if srv.FrameRate != 30 {
		t.Errorf("frame rate %d, want 30", srv.FrameRate)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	cfg.SetServerPassword("hunter2", salt)
	cfg.SetServerPort(15893)
	if err = cfg.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	settings, err := reloaded.ServerSettings()
	if err != nil {
		t.Fatalf("server settings failed: %v", err)
	}
	if settings.Password != "hunter2" {
		t.Errorf("password %q not persisted", settings.Password)
	}
	if string(settings.PasswordSalt) != string(salt) {
		t.Error("salt not persisted intact")
	}
	if settings.Port != 15893 {
		t.Errorf("port %d, want persisted 15893", settings.Port)
	}
}

func TestHistoryOrderAndDedup(t *testing.T) {
	cfg := testConfig(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg.RecordConnection("alpha", 5900, base)
	cfg.RecordConnection("beta", 5901, base.Add(time.Minute))
	cfg.RecordConnection("alpha", 5900, base.Add(2*time.Minute))

	entries := cfg.History()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 after dedup", len(entries))
	}
	if entries[0].Host != "alpha" || entries[1].Host != "beta" {
		t.Errorf("order %s,%s, want alpha,beta", entries[0].Host, entries[1].Host)
	}
	if !entries[0].Time.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("repeat connection kept stale timestamp %s", entries[0].Time)
	}
}

func TestHistoryCapped(t *testing.T) {
	cfg := testConfig(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < global.HistoryMaxEntries+5; i++ {
		cfg.RecordConnection("host", 10000+i, base.Add(time.Duration(i)*time.Second))
	}

	entries := cfg.History()
	if len(entries) != global.HistoryMaxEntries {
		t.Fatalf("got %d entries, cap is %d", len(entries), global.HistoryMaxEntries)
	}
	// Most recent first
	if entries[0].Port != 10000+global.HistoryMaxEntries+4 {
		t.Errorf("front entry port %d is not the newest", entries[0].Port)
	}
}

func TestHistorySurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	when := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	cfg.RecordConnection("remote.example", 15890, when)

	reloaded, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	entries := reloaded.History()
	if len(entries) != 1 {
		t.Fatalf("got %d entries after reload, want 1", len(entries))
	}
	if entries[0].Host != "remote.example" || entries[0].Port != 15890 {
		t.Errorf("entry %+v not persisted intact", entries[0])
	}
	if !entries[0].Time.Equal(when) {
		t.Errorf("timestamp %s, want %s", entries[0].Time, when)
	}
}
