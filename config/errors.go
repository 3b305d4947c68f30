// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName        = errors.New("invalid application name")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidMaxConnections = errors.New("invalid max connections")
	ErrInvalidRecyclePeriod  = errors.New("invalid link recycle period")
	ErrInvalidThreadCount    = errors.New("invalid thread count")
)

// ErrConfigFileNotFound is returned by findConfigFile when no candidate
// filename exists in any search path.
var ErrConfigFileNotFound = errors.New("configuration file not found")
