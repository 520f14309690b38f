package network

import "testing"

func TestParseHostPort(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"plain host", "example.com:5900", "example.com", 5900, false},
		{"ipv4", "192.168.1.10:15890", "192.168.1.10", 15890, false},
		{"ipv6", "[::1]:8080", "::1", 8080, false},
		{"missing port", "example.com", "", 0, true},
		{"empty host", ":5900", "", 0, true},
		{"port zero", "host:0", "", 0, true},
		{"port too large", "host:70000", "", 0, true},
		{"not a number", "host:abc", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := ParseHostPort(tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got %q:%d, want %q:%d", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestListenWithFallback(t *testing.T) {
	// Occupy a port, then ask for it again: the second listener must
	// land on a later port in the fallback range
	first, firstPort, err := ListenWithFallback("127.0.0.1", 0)
	if err == nil {
		// Port 0 is rejected as out of range
		first.Close()
		t.Fatal("base port 0 accepted")
	}

	first, firstPort, err = ListenWithFallback("127.0.0.1", 29350)
	if err != nil {
		t.Fatalf("initial bind failed: %v", err)
	}
	defer first.Close()

	second, secondPort, err := ListenWithFallback("127.0.0.1", firstPort)
	if err != nil {
		t.Fatalf("fallback bind failed: %v", err)
	}
	defer second.Close()

	if secondPort <= firstPort {
		t.Errorf("expected fallback beyond %d, got %d", firstPort, secondPort)
	}
	if secondPort >= firstPort+10 {
		t.Errorf("fallback port %d outside the 10 port range", secondPort)
	}
}
