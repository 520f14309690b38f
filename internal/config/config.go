// Persistent configuration and connection history backed by viper
package config

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"rdcp/internal/codec"
	"rdcp/internal/connection"
	"rdcp/internal/global"
	"rdcp/internal/logctx"
	"rdcp/internal/server"
)

// Keys the core reads
const (
	KeyConnTimeoutMs        = "connection.timeout_ms"
	KeyHeartbeatIntervalMs  = "connection.heartbeat_interval_ms"
	KeyHeartbeatTimeoutMs   = "connection.heartbeat_timeout_ms"
	KeyAutoReconnect        = "connection.auto_reconnect"
	KeyReconnectIntervalMs  = "connection.reconnect_interval_ms"
	KeyMaxReconnectAttempts = "connection.max_reconnect_attempts"
	KeyServerDefaultPort    = "server.default_port"
	KeyServerPassword       = "server.password"
	KeyServerPasswordSalt   = "server.password_hash_salt"
	KeyServerInhibit        = "server.inhibit_screensaver"
	KeyAuthIterations       = "auth.iterations"
	KeyAuthKeyLength        = "auth.key_length"
	KeyCaptureFrameRate     = "capture.frame_rate"
	KeyCaptureQuality       = "capture.quality"
	KeyLogLevel             = "log.level"

	// History lists, most-recent first, parallel by index
	KeyHistoryHosts = "connections/hosts"
	KeyHistoryPorts = "connections/ports"
	KeyHistoryTimes = "connections/times"
)

type Config struct {
	ctx   context.Context
	viper *viper.Viper
	path  string
}

// Loads configuration from the given file, or from the user profile
// directory when path is empty. A missing file is not an error; the
// defaults apply and the file appears on first save.
func Load(ctx context.Context, path string) (cfg *Config, err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSConfig)

	if path == "" {
		path, err = defaultPath()
		if err != nil {
			return
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		if _, missing := err.(*os.PathError); !missing {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				err = fmt.Errorf("failed to read config %s: %w", path, err)
				return
			}
		}
		// No file yet; run on defaults
		err = nil
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "no config at %s, using defaults", path)
	}

	cfg = &Config{ctx: ctx, viper: v, path: path}
	return
}

func defaultPath() (path string, err error) {
	base, err := os.UserConfigDir()
	if err != nil {
		err = fmt.Errorf("cannot locate user config directory: %w", err)
		return
	}
	path = filepath.Join(base, global.ProgName, "config.yaml")
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyConnTimeoutMs, int(global.DefaultConnectTimeout/time.Millisecond))
	v.SetDefault(KeyHeartbeatIntervalMs, int(global.DefaultHeartbeatEvery/time.Millisecond))
	v.SetDefault(KeyHeartbeatTimeoutMs, int(global.DefaultHeartbeatTimeout/time.Millisecond))
	v.SetDefault(KeyAutoReconnect, true)
	v.SetDefault(KeyReconnectIntervalMs, int(global.DefaultReconnectEvery/time.Millisecond))
	v.SetDefault(KeyMaxReconnectAttempts, global.DefaultMaxReconnects)
	v.SetDefault(KeyServerDefaultPort, global.DefaultServerPort)
	v.SetDefault(KeyServerInhibit, true)
	v.SetDefault(KeyAuthIterations, global.DefaultAuthIterations)
	v.SetDefault(KeyAuthKeyLength, global.DefaultAuthKeyLength)
	v.SetDefault(KeyCaptureFrameRate, global.DefaultFrameRate)
	v.SetDefault(KeyCaptureQuality, global.DefaultQuality)
	v.SetDefault(KeyLogLevel, global.VerbosityStandard)
}

// Writes the current state back to the config file, creating parent
// directories as needed
func (cfg *Config) Save() (err error) {
	err = os.MkdirAll(filepath.Dir(cfg.path), 0o755)
	if err != nil {
		err = fmt.Errorf("failed to create config directory: %w", err)
		return
	}

	err = cfg.viper.WriteConfigAs(cfg.path)
	if err != nil {
		err = fmt.Errorf("failed to save config %s: %w", cfg.path, err)
		return
	}
	return
}

func (cfg *Config) Path() (path string) {
	path = cfg.path
	return
}

func (cfg *Config) LogLevel() (level int) {
	level = cfg.viper.GetInt(KeyLogLevel)
	return
}

// Supervisor tunables assembled from the connection.* keys
func (cfg *Config) ConnectionSettings() (settings connection.Settings) {
	settings = connection.Settings{
		ConnectTimeout:   time.Duration(cfg.viper.GetInt(KeyConnTimeoutMs)) * time.Millisecond,
		HeartbeatEvery:   time.Duration(cfg.viper.GetInt(KeyHeartbeatIntervalMs)) * time.Millisecond,
		HeartbeatTimeout: time.Duration(cfg.viper.GetInt(KeyHeartbeatTimeoutMs)) * time.Millisecond,
		AutoReconnect:    cfg.viper.GetBool(KeyAutoReconnect),
		ReconnectEvery:   time.Duration(cfg.viper.GetInt(KeyReconnectIntervalMs)) * time.Millisecond,
		MaxReconnects:    cfg.viper.GetInt(KeyMaxReconnectAttempts),
	}
	return
}

// Server tunables assembled from the server.*, auth.* and capture.*
// keys. The salt is stored hex encoded next to the password.
func (cfg *Config) ServerSettings() (settings server.Settings, err error) {
	settings = server.DefaultSettings()
	settings.Port = cfg.viper.GetInt(KeyServerDefaultPort)
	settings.Password = cfg.viper.GetString(KeyServerPassword)
	settings.AuthIterations = cfg.viper.GetInt(KeyAuthIterations)
	settings.AuthKeyLength = cfg.viper.GetInt(KeyAuthKeyLength)
	settings.FrameRate = cfg.viper.GetInt(KeyCaptureFrameRate)
	settings.Quality = cfg.viper.GetFloat64(KeyCaptureQuality)
	settings.HeartbeatTimeout = time.Duration(cfg.viper.GetInt(KeyHeartbeatTimeoutMs)) * time.Millisecond
	settings.Strategy = codec.StrategyAdaptive
	settings.InhibitScreensaver = cfg.viper.GetBool(KeyServerInhibit)

	saltHex := cfg.viper.GetString(KeyServerPasswordSalt)
	if saltHex != "" {
		settings.PasswordSalt, err = hex.DecodeString(saltHex)
		if err != nil {
			err = fmt.Errorf("malformed %s: %w", KeyServerPasswordSalt, err)
			return
		}
	}
	return
}

// Stores the shared secret with a fresh salt so interoperating peers
// can pre-derive keys against a stable value
func (cfg *Config) SetServerPassword(password string, salt []byte) {
	cfg.viper.Set(KeyServerPassword, password)
	cfg.viper.Set(KeyServerPasswordSalt, hex.EncodeToString(salt))
}

// Persists the port a fallback bind actually landed on
func (cfg *Config) SetServerPort(port int) {
	cfg.viper.Set(KeyServerDefaultPort, port)
}
