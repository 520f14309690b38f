package protocol

import "errors"

// Sentinel failures the stream decoder and record parsers return
var (
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrPayloadTooLarge    = errors.New("payload exceeds maximum size")
	ErrChecksumMismatch   = errors.New("payload checksum mismatch")
	ErrUnknownType        = errors.New("unknown message type")
	ErrShortPayload       = errors.New("payload too short for record layout")
	ErrSequenceRegressed  = errors.New("sequence number did not increase")
)

// Fixed 28 byte little-endian frame header preceding every payload
type Header struct {
	Magic         uint32
	Version       uint32
	Type          uint32
	PayloadLength uint32
	Sequence      uint32
	Checksum      uint32 // low 4 bytes of MD5 of payload
	TimestampMs   uint32 // low 32 bits of the sender wall clock in ms
}

// Opening record sent by the client immediately after connect
type HandshakeRequest struct {
	ClientVersion    uint32
	ScreenWidth      uint16
	ScreenHeight     uint16
	ColorDepth       uint8
	CompressionLevel uint8
	ClientName       string // at most 64 bytes, zero padded
	ClientOS         string // at most 32 bytes, zero padded
}

// Server reply mirroring the handshake request, with a feature bitmap
// in place of the client's requested compression level
type HandshakeResponse struct {
	ServerVersion     uint32
	ScreenWidth       uint16
	ScreenHeight      uint16
	ColorDepth        uint8
	SupportedFeatures uint32
	ServerName        string
	ServerOS          string
}

// Credential field is empty on the first request (triggers a challenge),
// then carries the hex of the PBKDF2 derived key
type AuthRequest struct {
	Username   string
	Credential string
	Method     uint32
}

type AuthChallenge struct {
	Method     uint32
	Iterations uint32
	KeyLength  uint32
	SaltHex    string // at most 64 bytes
}

type AuthResponse struct {
	Result      uint8
	SessionID   string // at most 31 chars + terminator
	Permissions uint32
}

// One captured screen frame, possibly differentially encoded
type ScreenData struct {
	X               uint16
	Y               uint16
	Width           uint16
	Height          uint16
	ImageType       uint8
	CompressionType uint8
	ImageData       []byte
}

type MouseEvent struct {
	Kind       uint8
	X          int16
	Y          int16
	Buttons    uint8
	WheelDelta int16
}

type KeyboardEvent struct {
	Kind      uint8
	KeyCode   uint32
	Modifiers uint32
	Text      string // at most 8 bytes of UTF-8
}

type ErrorMessage struct {
	Code uint32
	Text string
}

type StatusUpdate struct {
	Status     uint8
	BytesRx    uint32
	BytesTx    uint32
	FPS        uint16
	CPUPercent uint8
	Memory     uint32
}

// Pass-through clipboard envelope; semantics live outside the core
type ClipboardData struct {
	Format uint8
	Data   []byte
}
