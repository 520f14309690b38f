package client

import (
	"context"
	"testing"

	"rdcp/internal/connection"
	"rdcp/pkg/protocol"
)

func newTestClient(t *testing.T) (cli *Client) {
	t.Helper()
	settings := Settings{
		Username:   "viewer",
		ViewWidth:  1280,
		ViewHeight: 720,
		Connection: connection.DefaultSettings(),
	}
	cli = New(context.Background(), settings, Sinks{})
	t.Cleanup(cli.Close)
	return
}

func TestViewToRemoteIdentityBeforeHandshake(t *testing.T) {
	cli := newTestClient(t)

	x, y := cli.viewToRemote(640, 360)
	if x != 640 || y != 360 {
		t.Errorf("expected identity mapping before handshake, got (%d,%d)", x, y)
	}
}

func TestViewToRemoteScaling(t *testing.T) {
	cli := newTestClient(t)

	// Teach the session the remote geometry through a handshake response.
	// The follow-up auth request fails to send on the closed transport,
	// which is irrelevant to the transform under test.
	response := protocol.HandshakeResponse{
		ServerVersion: protocol.ProtocolVersion,
		ScreenWidth:   1920,
		ScreenHeight:  1080,
		ServerName:    "desk",
	}
	cli.sessMu.Lock()
	cli.session.HandleFrame(&protocol.Header{Type: protocol.MsgHandshakeResponse}, response.Encode())
	cli.sessMu.Unlock()

	tests := []struct {
		name         string
		viewX, viewY int
		wantX, wantY int16
	}{
		{"origin", 0, 0, 0, 0},
		{"center", 640, 360, 960, 540},
		{"far corner", 1279, 719, 1918, 1078},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := cli.viewToRemote(tt.viewX, tt.viewY)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("(%d,%d) mapped to (%d,%d), want (%d,%d)", tt.viewX, tt.viewY, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestAuthFailureMessages(t *testing.T) {
	if got := authFailureError(protocol.AuthInvalidPassword).Error(); got != "authentication failed: invalid password" {
		t.Errorf("unexpected message: %q", got)
	}
	if got := authFailureError(99).Error(); got == "" {
		t.Error("unknown result code produced empty message")
	}
}
