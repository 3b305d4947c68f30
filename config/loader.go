// Package config provides configuration loading and parsing functionality
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"./configs",
			"/etc/litebus",
			os.Getenv("HOME") + "/.litebus",
		},
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads the named file, overlays LITEBUS_* environment variables
// (which always win, per the fallback-bind-address rule), and validates
// the result.
func (l *Loader) Load(filename string) (*Config, error) {
	config := l.defaultConfig
	if config == nil {
		config = DefaultConfig()
	}

	if filename != "" {
		fileConfig, err := l.loadFromFile(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "load config from file %s", filename)
		}
		config = fileConfig
	}

	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(err, "load config from environment")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific file, without the
// environment overlay or validation Load performs.
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	return l.loadFromFile(filename)
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "read configuration data")
	}
	return l.parseConfig(data, format)
}

// AutoLoad discovers a config file in the search paths, falling back to
// DefaultConfig if none is found.
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, _, err := l.findConfigFile()
	if err != nil {
		if err == ErrConfigFileNotFound {
			return l.Load("")
		}
		return nil, err
	}
	return l.Load(configFile)
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, ConfigFormat, error) {
	filenames := []string{
		"litebus.yaml", "litebus.yml",
		"config.yaml", "config.yml",
		"litebus.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				ext := strings.ToLower(filepath.Ext(filename))
				var format ConfigFormat
				switch ext {
				case ".yaml", ".yml":
					format = FormatYAML
				case ".json":
					format = FormatJSON
				default:
					continue
				}
				return fullPath, format, nil
			}
		}
	}

	return "", "", ErrConfigFileNotFound
}

// loadFromFile loads configuration from a file, merged over defaultConfig.
func (l *Loader) loadFromFile(filename string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var format ConfigFormat
	switch ext {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return nil, errors.Errorf("unsupported config file format: %s", ext)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	fileConfig, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}

	defaultConfig := l.defaultConfig
	if defaultConfig == nil {
		defaultConfig = DefaultConfig()
	}
	return l.mergeConfig(defaultConfig, fileConfig), nil
}

// parseConfig parses configuration data based on format
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := &Config{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrap(err, "parse YAML config")
		}
	case FormatJSON:
		return nil, errors.New("JSON config parsing is not implemented")
	default:
		return nil, errors.Errorf("unsupported config format: %s", format)
	}

	return config, nil
}

// mergeConfig overlays non-zero fields of userConfig onto a copy of
// defaultConfig.
func (l *Loader) mergeConfig(defaultConfig, userConfig *Config) *Config {
	merged := *defaultConfig

	if userConfig.App.Name != "" {
		merged.App.Name = userConfig.App.Name
	}
	if userConfig.App.Version != "" {
		merged.App.Version = userConfig.App.Version
	}
	merged.App.Debug = userConfig.App.Debug

	if userConfig.Log.Level != "" {
		merged.Log.Level = userConfig.Log.Level
	}
	if userConfig.Log.Format != "" {
		merged.Log.Format = userConfig.Log.Format
	}
	if userConfig.Log.Output != "" {
		merged.Log.Output = userConfig.Log.Output
	}
	merged.Log.Color = userConfig.Log.Color

	if userConfig.Network.TCPBindURL != "" {
		merged.Network.TCPBindURL = userConfig.Network.TCPBindURL
	}
	if userConfig.Network.TCPAdvertiseURL != "" {
		merged.Network.TCPAdvertiseURL = userConfig.Network.TCPAdvertiseURL
	}
	if userConfig.Network.UDPBindURL != "" {
		merged.Network.UDPBindURL = userConfig.Network.UDPBindURL
	}
	if userConfig.Network.UDPAdvertiseURL != "" {
		merged.Network.UDPAdvertiseURL = userConfig.Network.UDPAdvertiseURL
	}
	if userConfig.Network.HTTPBindURL != "" {
		merged.Network.HTTPBindURL = userConfig.Network.HTTPBindURL
	}
	if userConfig.Network.MaxConnections != 0 {
		merged.Network.MaxConnections = userConfig.Network.MaxConnections
	}
	if userConfig.Network.LinkRecyclePeriod != 0 {
		merged.Network.LinkRecyclePeriod = userConfig.Network.LinkRecyclePeriod
	}
	merged.Network.HTTPKmsgLegacyEncoding = userConfig.Network.HTTPKmsgLegacyEncoding

	if userConfig.Actor.ThreadCount != 0 {
		merged.Actor.ThreadCount = userConfig.Actor.ThreadCount
	}
	if userConfig.Actor.DefaultMailboxSize != 0 {
		merged.Actor.DefaultMailboxSize = userConfig.Actor.DefaultMailboxSize
	}

	if userConfig.Custom != nil {
		if merged.Custom == nil {
			merged.Custom = make(map[string]interface{})
		}
		for k, v := range userConfig.Custom {
			merged.Custom[k] = v
		}
	}

	return &merged
}
