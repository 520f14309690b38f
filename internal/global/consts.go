package global

import "time"

const (
	// Descriptive names for available verbosity levels
	VerbosityNone int = iota
	VerbosityStandard
	VerbosityProgress
	VerbosityData
	VerbosityDebug

	// Descriptive names for available severity levels
	ErrorLog string = "Error"
	WarnLog  string = "Warn"
	InfoLog  string = "Info"
)

const (
	ProgVersion string = "v0.4.1"
	ProgName    string = "rdcp"

	// Context keys
	LoggerKey  CtxKey = "logger"  // Event queue (mostly for variable log verbosity handling)
	LogTagsKey CtxKey = "logtags" // List of tags in order of broad->specific appended/popped at various parts of the program

	DefaultConfigName string = "rdcp"
	DefaultConfigType string = "yaml"

	// Network defaults, overridable through the config file
	DefaultServerPort       int           = 15890
	PortFallbackRange       int           = 10 // bind tries default port then +1..+9
	DefaultConnectTimeout   time.Duration = 10 * time.Second
	DefaultHeartbeatEvery   time.Duration = 10 * time.Second
	DefaultHeartbeatTimeout time.Duration = 30 * time.Second
	DefaultReconnectEvery   time.Duration = 5 * time.Second
	DefaultMaxReconnects    int           = 5
	SocketBufferSize        int           = 256 * 1024

	// Capture defaults
	DefaultFrameRate int     = 30
	MinFrameRate     int     = 1
	MaxFrameRate     int     = 120
	DefaultQuality   float64 = 0.8

	// Timeout values
	ServerStopTimeout  time.Duration = 5 * time.Second
	StatusUpdateEvery  time.Duration = 5 * time.Second
	SendQueueHighWater int           = 4 * 1024 * 1024 // bytes queued before screen frames are shed

	// Auth defaults
	DefaultAuthIterations int = 100000
	DefaultAuthKeyLength  int = 32
	MaxAuthFailures       int = 3

	// Consecutive checksum failures tolerated before a handler is destroyed
	MaxChecksumFailures int = 4

	// Connection history
	HistoryMaxEntries int = 20

	// Namespacing Name Components
	NSCLI       string = "CLI"
	NSServer    string = "Server"
	NSClient    string = "Client"
	NSHandler   string = "Handler"
	NSSession   string = "Session"
	NSConn      string = "Connection"
	NSConfig    string = "Config"
	NSCapture   string = "Capture"
	NSCodec     string = "Codec"
	NSAuth      string = "Auth"
	NSRegistry  string = "Registry"
	NSHeartbeat string = "Heartbeat"
	NSStats     string = "Stats"
)
