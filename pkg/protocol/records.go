package protocol

import (
	"bytes"
	"encoding/binary"
)

// Field-wise payload (de)serialization. All numerics are little-endian;
// fixed-length strings are UTF-8 padded with zero bytes and truncated on
// overflow. Decoding cuts strings at the first zero byte; a field with no
// zero byte is taken whole (the 64-byte derived-key hex fills its field
// exactly).

// Copies s into a fixed-width window, truncating on overflow
func putFixedString(dst []byte, s string) {
	copy(dst, s)
}

// Reads a zero-padded fixed-width string field
func fixedString(src []byte) (s string) {
	if idx := bytes.IndexByte(src, 0); idx >= 0 {
		src = src[:idx]
	}
	s = string(src)
	return
}

// --- HandshakeRequest ---

const handshakeRequestSize = 10 + clientNameLen + clientOSLen

func (rec *HandshakeRequest) Encode() (payload []byte) {
	payload = make([]byte, handshakeRequestSize)
	binary.LittleEndian.PutUint32(payload[0:], rec.ClientVersion)
	binary.LittleEndian.PutUint16(payload[4:], rec.ScreenWidth)
	binary.LittleEndian.PutUint16(payload[6:], rec.ScreenHeight)
	payload[8] = rec.ColorDepth
	payload[9] = rec.CompressionLevel
	putFixedString(payload[10:10+clientNameLen], rec.ClientName)
	putFixedString(payload[10+clientNameLen:], rec.ClientOS)
	return
}

func DecodeHandshakeRequest(payload []byte) (rec HandshakeRequest, err error) {
	if len(payload) < handshakeRequestSize {
		err = ErrShortPayload
		return
	}
	rec.ClientVersion = binary.LittleEndian.Uint32(payload[0:])
	rec.ScreenWidth = binary.LittleEndian.Uint16(payload[4:])
	rec.ScreenHeight = binary.LittleEndian.Uint16(payload[6:])
	rec.ColorDepth = payload[8]
	rec.CompressionLevel = payload[9]
	rec.ClientName = fixedString(payload[10 : 10+clientNameLen])
	rec.ClientOS = fixedString(payload[10+clientNameLen : handshakeRequestSize])
	return
}

// --- HandshakeResponse ---

const handshakeResponseSize = 13 + clientNameLen + clientOSLen

func (rec *HandshakeResponse) Encode() (payload []byte) {
	payload = make([]byte, handshakeResponseSize)
	binary.LittleEndian.PutUint32(payload[0:], rec.ServerVersion)
	binary.LittleEndian.PutUint16(payload[4:], rec.ScreenWidth)
	binary.LittleEndian.PutUint16(payload[6:], rec.ScreenHeight)
	payload[8] = rec.ColorDepth
	binary.LittleEndian.PutUint32(payload[9:], rec.SupportedFeatures)
	putFixedString(payload[13:13+clientNameLen], rec.ServerName)
	putFixedString(payload[13+clientNameLen:], rec.ServerOS)
	return
}

func DecodeHandshakeResponse(payload []byte) (rec HandshakeResponse, err error) {
	if len(payload) < handshakeResponseSize {
		err = ErrShortPayload
		return
	}
	rec.ServerVersion = binary.LittleEndian.Uint32(payload[0:])
	rec.ScreenWidth = binary.LittleEndian.Uint16(payload[4:])
	rec.ScreenHeight = binary.LittleEndian.Uint16(payload[6:])
	rec.ColorDepth = payload[8]
	rec.SupportedFeatures = binary.LittleEndian.Uint32(payload[9:])
	rec.ServerName = fixedString(payload[13 : 13+clientNameLen])
	rec.ServerOS = fixedString(payload[13+clientNameLen : handshakeResponseSize])
	return
}

// --- AuthRequest ---

const authRequestSize = usernameLen + credentialLen + 4

func (rec *AuthRequest) Encode() (payload []byte) {
	payload = make([]byte, authRequestSize)
	putFixedString(payload[0:usernameLen], rec.Username)
	putFixedString(payload[usernameLen:usernameLen+credentialLen], rec.Credential)
	binary.LittleEndian.PutUint32(payload[usernameLen+credentialLen:], rec.Method)
	return
}

func DecodeAuthRequest(payload []byte) (rec AuthRequest, err error) {
	if len(payload) < authRequestSize {
		err = ErrShortPayload
		return
	}
	rec.Username = fixedString(payload[0:usernameLen])
	rec.Credential = fixedString(payload[usernameLen : usernameLen+credentialLen])
	rec.Method = binary.LittleEndian.Uint32(payload[usernameLen+credentialLen:])
	return
}

// --- AuthChallenge ---

const authChallengeSize = 12 + saltHexLen

func (rec *AuthChallenge) Encode() (payload []byte) {
	payload = make([]byte, authChallengeSize)
	binary.LittleEndian.PutUint32(payload[0:], rec.Method)
	binary.LittleEndian.PutUint32(payload[4:], rec.Iterations)
	binary.LittleEndian.PutUint32(payload[8:], rec.KeyLength)
	putFixedString(payload[12:], rec.SaltHex)
	return
}

func DecodeAuthChallenge(payload []byte) (rec AuthChallenge, err error) {
	if len(payload) < authChallengeSize {
		err = ErrShortPayload
		return
	}
	rec.Method = binary.LittleEndian.Uint32(payload[0:])
	rec.Iterations = binary.LittleEndian.Uint32(payload[4:])
	rec.KeyLength = binary.LittleEndian.Uint32(payload[8:])
	rec.SaltHex = fixedString(payload[12:authChallengeSize])
	return
}

// --- AuthResponse ---

const authResponseSize = 1 + sessionIDLen + 4

func (rec *AuthResponse) Encode() (payload []byte) {
	payload = make([]byte, authResponseSize)
	payload[0] = rec.Result
	putFixedString(payload[1:1+sessionIDLen], rec.SessionID)
	binary.LittleEndian.PutUint32(payload[1+sessionIDLen:], rec.Permissions)
	return
}

func DecodeAuthResponse(payload []byte) (rec AuthResponse, err error) {
	if len(payload) < authResponseSize {
		err = ErrShortPayload
		return
	}
	rec.Result = payload[0]
	rec.SessionID = fixedString(payload[1 : 1+sessionIDLen])
	rec.Permissions = binary.LittleEndian.Uint32(payload[1+sessionIDLen:])
	return
}

// --- ScreenData ---

const screenDataHeaderSize = 14

func (rec *ScreenData) Encode() (payload []byte) {
	payload = make([]byte, screenDataHeaderSize+len(rec.ImageData))
	binary.LittleEndian.PutUint16(payload[0:], rec.X)
	binary.LittleEndian.PutUint16(payload[2:], rec.Y)
	binary.LittleEndian.PutUint16(payload[4:], rec.Width)
	binary.LittleEndian.PutUint16(payload[6:], rec.Height)
	payload[8] = rec.ImageType
	payload[9] = rec.CompressionType
	binary.LittleEndian.PutUint32(payload[10:], uint32(len(rec.ImageData)))
	copy(payload[screenDataHeaderSize:], rec.ImageData)
	return
}

func DecodeScreenData(payload []byte) (rec ScreenData, err error) {
	if len(payload) < screenDataHeaderSize {
		err = ErrShortPayload
		return
	}
	rec.X = binary.LittleEndian.Uint16(payload[0:])
	rec.Y = binary.LittleEndian.Uint16(payload[2:])
	rec.Width = binary.LittleEndian.Uint16(payload[4:])
	rec.Height = binary.LittleEndian.Uint16(payload[6:])
	rec.ImageType = payload[8]
	rec.CompressionType = payload[9]

	dataSize := binary.LittleEndian.Uint32(payload[10:])
	if len(payload) < screenDataHeaderSize+int(dataSize) {
		err = ErrShortPayload
		return
	}
	rec.ImageData = payload[screenDataHeaderSize : screenDataHeaderSize+int(dataSize)]
	return
}

// --- MouseEvent ---

const mouseEventSize = 8

func (rec *MouseEvent) Encode() (payload []byte) {
	payload = make([]byte, mouseEventSize)
	payload[0] = rec.Kind
	binary.LittleEndian.PutUint16(payload[1:], uint16(rec.X))
	binary.LittleEndian.PutUint16(payload[3:], uint16(rec.Y))
	payload[5] = rec.Buttons
	binary.LittleEndian.PutUint16(payload[6:], uint16(rec.WheelDelta))
	return
}

func DecodeMouseEvent(payload []byte) (rec MouseEvent, err error) {
	if len(payload) < mouseEventSize {
		err = ErrShortPayload
		return
	}
	rec.Kind = payload[0]
	rec.X = int16(binary.LittleEndian.Uint16(payload[1:]))
	rec.Y = int16(binary.LittleEndian.Uint16(payload[3:]))
	rec.Buttons = payload[5]
	rec.WheelDelta = int16(binary.LittleEndian.Uint16(payload[6:]))
	return
}

// --- KeyboardEvent ---

const keyboardEventSize = 9 + keyTextLen

func (rec *KeyboardEvent) Encode() (payload []byte) {
	payload = make([]byte, keyboardEventSize)
	payload[0] = rec.Kind
	binary.LittleEndian.PutUint32(payload[1:], rec.KeyCode)
	binary.LittleEndian.PutUint32(payload[5:], rec.Modifiers)
	putFixedString(payload[9:], rec.Text)
	return
}

func DecodeKeyboardEvent(payload []byte) (rec KeyboardEvent, err error) {
	if len(payload) < keyboardEventSize {
		err = ErrShortPayload
		return
	}
	rec.Kind = payload[0]
	rec.KeyCode = binary.LittleEndian.Uint32(payload[1:])
	rec.Modifiers = binary.LittleEndian.Uint32(payload[5:])
	rec.Text = fixedString(payload[9:keyboardEventSize])
	return
}

// --- ErrorMessage ---

const errorMessageSize = 4 + errorTextLen

func (rec *ErrorMessage) Encode() (payload []byte) {
	payload = make([]byte, errorMessageSize)
	binary.LittleEndian.PutUint32(payload[0:], rec.Code)
	putFixedString(payload[4:], rec.Text)
	return
}

func DecodeErrorMessage(payload []byte) (rec ErrorMessage, err error) {
	if len(payload) < errorMessageSize {
		err = ErrShortPayload
		return
	}
	rec.Code = binary.LittleEndian.Uint32(payload[0:])
	rec.Text = fixedString(payload[4:errorMessageSize])
	return
}

// --- StatusUpdate ---

const statusUpdateSize = 16

func (rec *StatusUpdate) Encode() (payload []byte) {
	payload = make([]byte, statusUpdateSize)
	payload[0] = rec.Status
	binary.LittleEndian.PutUint32(payload[1:], rec.BytesRx)
	binary.LittleEndian.PutUint32(payload[5:], rec.BytesTx)
	binary.LittleEndian.PutUint16(payload[9:], rec.FPS)
	payload[11] = rec.CPUPercent
	binary.LittleEndian.PutUint32(payload[12:], rec.Memory)
	return
}

func DecodeStatusUpdate(payload []byte) (rec StatusUpdate, err error) {
	if len(payload) < statusUpdateSize {
		err = ErrShortPayload
		return
	}
	rec.Status = payload[0]
	rec.BytesRx = binary.LittleEndian.Uint32(payload[1:])
	rec.BytesTx = binary.LittleEndian.Uint32(payload[5:])
	rec.FPS = binary.LittleEndian.Uint16(payload[9:])
	rec.CPUPercent = payload[11]
	rec.Memory = binary.LittleEndian.Uint32(payload[12:])
	return
}

// --- ClipboardData ---

const clipboardHeaderSize = 5

func (rec *ClipboardData) Encode() (payload []byte) {
	payload = make([]byte, clipboardHeaderSize+len(rec.Data))
	payload[0] = rec.Format
	binary.LittleEndian.PutUint32(payload[1:], uint32(len(rec.Data)))
	copy(payload[clipboardHeaderSize:], rec.Data)
	return
}

func DecodeClipboardData(payload []byte) (rec ClipboardData, err error) {
	if len(payload) < clipboardHeaderSize {
		err = ErrShortPayload
		return
	}
	rec.Format = payload[0]
	dataSize := binary.LittleEndian.Uint32(payload[1:])
	if len(payload) < clipboardHeaderSize+int(dataSize) {
		err = ErrShortPayload
		return
	}
	rec.Data = payload[clipboardHeaderSize : clipboardHeaderSize+int(dataSize)]
	return
}
