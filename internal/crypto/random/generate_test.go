package random

import "testing"

func TestSalt(t *testing.T) {
	salt1, err := Salt(16)
	if err != nil {
		t.Fatalf("salt generation failed: %v", err)
	}
	if len(salt1) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(salt1))
	}

	salt2, err := Salt(16)
	if err != nil {
		t.Fatalf("salt generation failed: %v", err)
	}

	identical := true
	for i := range salt1 {
		if salt1[i] != salt2[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Error("two generated salts were identical")
	}
}

func TestSessionIDFitsWireField(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := SessionID()
		if err != nil {
			t.Fatalf("session id generation failed: %v", err)
		}
		if len(id) == 0 || len(id) > 31 {
			t.Fatalf("session id %q does not fit the 31 char wire field", id)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}
