// Package config loads and hot-reloads the litebus process configuration:
// the bind/advertise URLs for each transport, the shared worker pool
// size, and the handful of LITEBUS_* knobs the runtime exposes.
package config

import (
	"time"
)

// LogLevel mirrors logrus's level names so the YAML file and LITEBUS_LOG_LEVEL
// can be validated without importing logrus into this package.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

func (l LogLevel) String() string { return string(l) }

// IsValid reports whether l is one of the recognized logrus levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
		return true
	default:
		return false
	}
}

// Config is the complete litebus process configuration: everything
// bootstrap.Application needs to start the actor system, timer service
// and HTTP transport.
type Config struct {
	App     AppConfig     `yaml:"app" json:"app"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Network NetworkConfig `yaml:"network" json:"network"`
	Actor   ActorConfig   `yaml:"actor" json:"actor"`

	// Custom carries process-specific settings this package doesn't know
	// about, preserved across reload the same way the YAML file is.
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// AppConfig is process identity, used for log fields and the
// Litebus-From header's name component.
type AppConfig struct {
	Name    string `yaml:"name" json:"name" env:"LITEBUS_APP_NAME" envDefault:"litebus"`
	Version string `yaml:"version" json:"version"`
	Debug   bool   `yaml:"debug" json:"debug" env:"LITEBUS_DEBUG" envDefault:"false"`
}

// LogConfig configures the process-wide logrus.Logger.
type LogConfig struct {
	Level LogLevel `yaml:"level" json:"level" env:"LITEBUS_LOG_LEVEL" envDefault:"info"`
	Format string  `yaml:"format" json:"format" env:"LITEBUS_LOG_FORMAT" envDefault:"text"`
	Output string  `yaml:"output" json:"output" env:"LITEBUS_LOG_OUTPUT" envDefault:"stdout"`
	Color  bool    `yaml:"color" json:"color" env:"LITEBUS_LOG_COLOR" envDefault:"true"`
}

// NetworkConfig names every bind/advertise URL litebus listens on or
// reports to peers, plus the connection-management knobs from
// http_iomgr.cpp/http_actor.cpp.
type NetworkConfig struct {
	// TCPBindURL is where the framed-TCP KMSG listener binds, e.g.
	// "tcp://0.0.0.0:7890". Empty disables the TCP listener.
	TCPBindURL string `yaml:"tcp-bind-url" json:"tcp_bind_url" env:"LITEBUS_TCP_BIND_URL"`

	// TCPAdvertiseURL names the address peers reach this process at when
	// it differs from TCPBindURL (NAT/container port mapping). It is
	// loaded and validated only: the runtime does not read it, and no AID
	// is stamped with it.
	TCPAdvertiseURL string `yaml:"tcp-advertise-url" json:"tcp_advertise_url" env:"LITEBUS_TCP_ADVERTISE_URL"`

	// UDPBindURL and UDPAdvertiseURL are UDP's equivalents of the above.
	// They are loaded only; this module has no UDP listener or sender.
	UDPBindURL      string `yaml:"udp-bind-url" json:"udp_bind_url" env:"LITEBUS_UDP_BIND_URL"`
	UDPAdvertiseURL string `yaml:"udp-advertise-url" json:"udp_advertise_url" env:"LITEBUS_UDP_ADVERTISE_URL"`

	// HTTPBindURL is the httpd.Server's listen address, e.g.
	// "tcp://0.0.0.0:8080".
	HTTPBindURL string `yaml:"http-bind-url" json:"http_bind_url" env:"LITEBUS_HTTP_BIND_URL" envDefault:"tcp://0.0.0.0:8080"`

	// MaxConnections bounds concurrent accepted HTTP connections; the
	// (MaxConnections+1)-th is accepted, has its requests ignored, and
	// is closed. 0 means unbounded.
	MaxConnections int `yaml:"max-connections" json:"max_connections" env:"LITEBUS_MAX_CONNECTIONS" envDefault:"0"`

	// LinkRecyclePeriod is the sweep period for idle connections. It is
	// loaded only: this module has no idle-connection recycler, and
	// nothing reads the value.
	LinkRecyclePeriod time.Duration `yaml:"link-recycle-period" json:"link_recycle_period" env:"LITEBUS_LINK_RECYCLE_PERIOD" envDefault:"5s"`

	// HTTPKmsgLegacyEncoding selects the legacy HTTP-POST form (Litebus-From
	// header) for outgoing KMSG. It is loaded only: nothing reads it, and
	// outgoing KMSG always use the framed TCP format (wire.Sender). The
	// HTTP-POST form is accepted on ingest by httpd.Server either way.
	HTTPKmsgLegacyEncoding bool `yaml:"http-kmsg-legacy-encoding" json:"http_kmsg_legacy_encoding" env:"LITEBUS_HTTP_KMSG_LEGACY_ENCODING" envDefault:"false"`
}

// ActorConfig sizes the shared worker pool and default mailbox
// capacity actorsys.NewSystem/DefaultSpawnOptions are built from.
type ActorConfig struct {
	// ThreadCount is the shared worker pool size; 0 means
	// runtime.NumCPU().
	ThreadCount int `yaml:"thread-count" json:"thread_count" env:"LITEBUS_THREAD_COUNT" envDefault:"0"`

	// DefaultMailboxSize is a default for SpawnOptions.MailboxCap. It is
	// loaded only: nothing reads it, and every actor mailbox is
	// unbounded.
	DefaultMailboxSize int `yaml:"default-mailbox-size" json:"default_mailbox_size" env:"LITEBUS_DEFAULT_MAILBOX_SIZE" envDefault:"0"`
}

// DefaultConfig returns the configuration a freshly started litebus
// process uses absent a config file or LITEBUS_* overrides.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "litebus",
			Version: "1.0.0",
			Debug:   false,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "text",
			Output: "stdout",
			Color:  true,
		},
		Network: NetworkConfig{
			HTTPBindURL:            "tcp://0.0.0.0:8080",
			MaxConnections:         0,
			LinkRecyclePeriod:      5 * time.Second,
			HTTPKmsgLegacyEncoding: false,
		},
		Actor: ActorConfig{
			ThreadCount:        0,
			DefaultMailboxSize: 0,
		},
		Custom: make(map[string]interface{}),
	}
}

// Validate rejects configurations bootstrap.Application cannot start
// from.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	if c.Network.MaxConnections < 0 {
		return ErrInvalidMaxConnections
	}
	if c.Network.LinkRecyclePeriod < 0 {
		return ErrInvalidRecyclePeriod
	}
	if c.Actor.ThreadCount < 0 {
		return ErrInvalidThreadCount
	}
	return nil
}

// IsDebugEnabled reports whether debug-level behavior (verbose logging,
// extra diagnostics) should be active.
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug
}
