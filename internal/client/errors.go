package client

import (
	"fmt"

	"rdcp/pkg/protocol"
)

// Human-readable reasons for the auth result codes a server can return
var authFailureReasons = map[uint8]string{
	protocol.AuthInvalidPassword: "invalid password",
	protocol.AuthAccessDenied:    "access denied",
	protocol.AuthServerFull:      "server already has a client",
	protocol.AuthUnknownError:    "unknown server-side failure",
}

func authFailureError(result uint8) (err error) {
	reason, known := authFailureReasons[result]
	if !known {
		reason = fmt.Sprintf("unrecognized failure code %d", result)
	}
	err = fmt.Errorf("authentication failed: %s", reason)
	return
}

// Wraps a peer-sent error record, keeping the server's reason text
func newServerError(rec protocol.ErrorMessage) (err error) {
	err = fmt.Errorf("server error %d: %s", rec.Code, rec.Text)
	return
}
