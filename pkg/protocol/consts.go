package protocol

const (
	// Every wire frame starts with this literal ("RDCP" big-endian)
	FrameMagic uint32 = 0x52444350

	ProtocolVersion uint32 = 1

	HeaderSize int = 28

	// Hard guard against runaway allocation from corrupt length fields
	MaxPayloadSize uint32 = 5 * 1024 * 1024
)

// Message type closed set
const (
	MsgHandshakeRequest  uint32 = 0x0001
	MsgHandshakeResponse uint32 = 0x0002
	MsgAuthRequest       uint32 = 0x0003
	MsgAuthResponse      uint32 = 0x0004
	MsgDisconnectRequest uint32 = 0x0005
	MsgHeartbeat         uint32 = 0x0006
	MsgAuthChallenge     uint32 = 0x0007
	MsgScreenData        uint32 = 0x1001
	MsgMouseEvent        uint32 = 0x2001
	MsgKeyboardEvent     uint32 = 0x2002
	MsgClipboardData     uint32 = 0x5001
	MsgErrorMessage      uint32 = 0x9001
	MsgStatusUpdate      uint32 = 0x9002

	// Reserved, never produced at runtime. Received frames of these
	// types are logged and dropped.
	MsgAudioData      uint32 = 0x3001
	MsgFileTransfer   uint32 = 0x4001
	MsgCursorPosition uint32 = 0x2003
	MsgCursorShape    uint32 = 0x2004
)

// Authentication result codes
const (
	AuthSuccess         uint8 = 0
	AuthInvalidPassword uint8 = 1
	AuthAccessDenied    uint8 = 2
	AuthServerFull      uint8 = 3
	AuthUnknownError    uint8 = 4
)

// PBKDF2-HMAC-SHA256 challenge/response
const AuthMethodPBKDF2 uint32 = 1

// Capability bits advertised in the handshake response
const (
	FeatureDiffFrames uint32 = 1 << 0
	FeatureInput      uint32 = 1 << 1
	FeatureClipboard  uint32 = 1 << 2
)

// Application error codes carried in ErrorMessage
const (
	ErrCodeServerFull uint32 = 1001
)

// Status codes carried in StatusUpdate. StatusReframeNeeded travels
// client to server when a lost or unusable frame left the receiver
// without a valid diff reference.
const (
	StatusStreaming     uint8 = 1
	StatusReframeNeeded uint8 = 2
)

// Screen image container formats
const (
	ImageJPEG uint8 = 0
	ImagePNG  uint8 = 1
	ImageWEBP uint8 = 2
	ImageBMP  uint8 = 3
	ImageTIFF uint8 = 4
)

// Screen payload interpretation
const (
	CompressionFull uint8 = 0 // image_data is a complete encoded image
	CompressionDiff uint8 = 1 // image_data is a diff against the previous full frame
)

// Mouse event kinds
const (
	MouseMove         uint8 = 0
	MouseLeftPress    uint8 = 1
	MouseLeftRelease  uint8 = 2
	MouseRightPress   uint8 = 3
	MouseRightRelease uint8 = 4
	MouseMidPress     uint8 = 5
	MouseMidRelease   uint8 = 6
	MouseWheelUp      uint8 = 7
	MouseWheelDown    uint8 = 8
)

// Keyboard event kinds
const (
	KeyPress   uint8 = 0
	KeyRelease uint8 = 1
)

// Fixed field widths of record layouts
const (
	clientNameLen = 64
	clientOSLen   = 32
	usernameLen   = 64
	credentialLen = 64
	saltHexLen    = 64
	sessionIDLen  = 32
	errorTextLen  = 256
	keyTextLen    = 8
)
