// PBKDF2-SHA256 challenge/response verification of a shared secret.
// The secret itself never crosses the wire; only a derived key does.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"rdcp/internal/crypto/random"
	"rdcp/pkg/protocol"

	"golang.org/x/crypto/pbkdf2"
)

const saltSize = 16

// Per-connection verification state owned by a server handler
type Verifier struct {
	password   string // configured shared secret, empty means open server
	salt       []byte // persisted when the password was set; fresh per connection otherwise
	iterations int
	keyLength  int
	failures   int
}

// Creates a verifier for one connection attempt.
// A nil salt with a configured password is replaced by a fresh one, but
// interoperating peers then cannot pre-derive keys; the caller should
// pass the salt persisted at password-set time.
func NewVerifier(password string, salt []byte, iterations, keyLength int) (verifier *Verifier, err error) {
	if len(salt) == 0 {
		salt, err = random.Salt(saltSize)
		if err != nil {
			err = fmt.Errorf("failed to create verifier: %w", err)
			return
		}
	}

	verifier = &Verifier{
		password:   password,
		salt:       salt,
		iterations: iterations,
		keyLength:  keyLength,
	}
	return
}

// Whether a request with an empty credential should receive a challenge
// instead of an immediate verdict
func (verifier *Verifier) NeedsChallenge(request protocol.AuthRequest) (needed bool) {
	needed = request.Credential == "" && verifier.password != ""
	return
}

// Builds the challenge record for this connection
func (verifier *Verifier) Challenge() (challenge protocol.AuthChallenge) {
	challenge = protocol.AuthChallenge{
		Method:     protocol.AuthMethodPBKDF2,
		Iterations: uint32(verifier.iterations),
		KeyLength:  uint32(verifier.keyLength),
		SaltHex:    hex.EncodeToString(verifier.salt),
	}
	return
}

// Verifies a credential against the configured secret.
// closeConn is set once the failure budget is exhausted.
func (verifier *Verifier) Verify(request protocol.AuthRequest, maxFailures int) (result uint8, closeConn bool) {
	// Open server: empty credential succeeds immediately
	if verifier.password == "" {
		result = protocol.AuthSuccess
		return
	}

	provided, err := hex.DecodeString(request.Credential)
	if err != nil || len(provided) != verifier.keyLength {
		result = protocol.AuthInvalidPassword
		closeConn = verifier.recordFailure(maxFailures)
		return
	}

	expected := DeriveKey(verifier.password, verifier.salt, verifier.iterations, verifier.keyLength)

	if subtle.ConstantTimeCompare(provided, expected) != 1 {
		result = protocol.AuthInvalidPassword
		closeConn = verifier.recordFailure(maxFailures)
		return
	}

	verifier.failures = 0
	result = protocol.AuthSuccess
	return
}

// Consecutive failures on this connection
func (verifier *Verifier) Failures() (count int) {
	count = verifier.failures
	return
}

func (verifier *Verifier) recordFailure(maxFailures int) (exhausted bool) {
	verifier.failures++
	exhausted = verifier.failures >= maxFailures
	return
}

// PBKDF2-HMAC-SHA256 key derivation shared by both ends
func DeriveKey(password string, salt []byte, iterations, keyLength int) (key []byte) {
	key = pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
	return
}

// Client side: derives the key demanded by a received challenge and
// returns its hex form for the credential field
func SolveChallenge(password string, challenge protocol.AuthChallenge) (credentialHex string, err error) {
	if challenge.Method != protocol.AuthMethodPBKDF2 {
		err = fmt.Errorf("unsupported auth method %d", challenge.Method)
		return
	}

	salt, err := hex.DecodeString(challenge.SaltHex)
	if err != nil {
		err = fmt.Errorf("malformed challenge salt: %w", err)
		return
	}

	key := DeriveKey(password, salt, int(challenge.Iterations), int(challenge.KeyLength))
	credentialHex = hex.EncodeToString(key)
	return
}
