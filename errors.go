package sdfatlas

import "errors"

// Sentinel errors for sdfatlas package.
var (
	// ErrNoFont is returned by Run when no font or renderer factory is set.
	ErrNoFont = errors.New("sdfatlas: no font")

	// ErrNoDevices is returned when no compute device could be set up.
	ErrNoDevices = errors.New("sdfatlas: no compute devices")
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "sdfatlas: invalid config." + e.Field + ": " + e.Reason
}
