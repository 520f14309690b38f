package auth

import (
	"encoding/hex"
	"rdcp/internal/global"
	"rdcp/pkg/protocol"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Deterministic test fixture: password "P@ssw0rd", salt 01 02 .. 10
func fixtureSalt() []byte {
	salt := make([]byte, 16)
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	return salt
}

func TestChallengeResponseSuccess(t *testing.T) {
	verifier, err := NewVerifier("P@ssw0rd", fixtureSalt(), global.DefaultAuthIterations, global.DefaultAuthKeyLength)
	require.NoError(t, err)

	first := protocol.AuthRequest{Username: "alice", Method: protocol.AuthMethodPBKDF2}
	require.True(t, verifier.NeedsChallenge(first))

	challenge := verifier.Challenge()
	assert.Equal(t, protocol.AuthMethodPBKDF2, challenge.Method)
	assert.Equal(t, uint32(100000), challenge.Iterations)
	assert.Equal(t, uint32(32), challenge.KeyLength)
	assert.Equal(t, hex.EncodeToString(fixtureSalt()), challenge.SaltHex)

	credential, err := SolveChallenge("P@ssw0rd", challenge)
	require.NoError(t, err)
	assert.Len(t, credential, 64)

	result, closeConn := verifier.Verify(protocol.AuthRequest{
		Username:   "alice",
		Credential: credential,
		Method:     protocol.AuthMethodPBKDF2,
	}, global.MaxAuthFailures)
	assert.Equal(t, protocol.AuthSuccess, result)
	assert.False(t, closeConn)
}

func TestBitFlippedCredentialRejected(t *testing.T) {
	verifier, err := NewVerifier("P@ssw0rd", fixtureSalt(), global.DefaultAuthIterations, global.DefaultAuthKeyLength)
	require.NoError(t, err)

	credential, err := SolveChallenge("P@ssw0rd", verifier.Challenge())
	require.NoError(t, err)

	// Flip one nibble of the hex credential
	tampered := []byte(credential)
	if tampered[10] == 'a' {
		tampered[10] = 'b'
	} else {
		tampered[10] = 'a'
	}

	result, _ := verifier.Verify(protocol.AuthRequest{
		Username:   "alice",
		Credential: string(tampered),
	}, global.MaxAuthFailures)
	assert.Equal(t, protocol.AuthInvalidPassword, result)
}

func TestFailureBudgetClosesConnection(t *testing.T) {
	verifier, err := NewVerifier("secret", nil, 1000, 32)
	require.NoError(t, err)

	bad := protocol.AuthRequest{Username: "mallory", Credential: "deadbeef"}

	for attempt := 1; attempt <= global.MaxAuthFailures; attempt++ {
		result, closeConn := verifier.Verify(bad, global.MaxAuthFailures)
		assert.Equal(t, protocol.AuthInvalidPassword, result)
		if attempt < global.MaxAuthFailures {
			assert.False(t, closeConn, "attempt %d should not close yet", attempt)
		} else {
			assert.True(t, closeConn, "attempt %d must close the connection", attempt)
		}
	}
}

func TestOpenServerAcceptsEmptyCredential(t *testing.T) {
	verifier, err := NewVerifier("", nil, 1000, 32)
	require.NoError(t, err)

	request := protocol.AuthRequest{Username: "guest"}
	assert.False(t, verifier.NeedsChallenge(request))

	result, closeConn := verifier.Verify(request, global.MaxAuthFailures)
	assert.Equal(t, protocol.AuthSuccess, result)
	assert.False(t, closeConn)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	key1 := DeriveKey("P@ssw0rd", fixtureSalt(), 100000, 32)
	key2 := DeriveKey("P@ssw0rd", fixtureSalt(), 100000, 32)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)

	other := DeriveKey("P@ssw0rc", fixtureSalt(), 100000, 32)
	assert.NotEqual(t, key1, other)
}

func TestSolveChallengeRejectsUnknownMethod(t *testing.T) {
	_, err := SolveChallenge("pw", protocol.AuthChallenge{Method: 9})
	assert.Error(t, err)
}
