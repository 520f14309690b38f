package random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generates a fresh random salt of the given size
func Salt(size int) (salt []byte, err error) {
	salt = make([]byte, size)
	_, err = rand.Read(salt)
	if err != nil {
		err = fmt.Errorf("failed to generate random salt: %w", err)
		salt = nil
		return
	}
	return
}

// Generates a short unique session identifier.
// Form: 8 hex chars of random + unix seconds, at most 19 characters
// (the wire field allows 31 plus terminator).
func SessionID() (id string, err error) {
	var raw [4]byte
	_, err = rand.Read(raw[:])
	if err != nil {
		err = fmt.Errorf("failed to generate session id: %w", err)
		return
	}

	id = fmt.Sprintf("%s-%d", hex.EncodeToString(raw[:]), time.Now().Unix())
	return
}
