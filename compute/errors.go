package compute

import "errors"

// Sentinel errors for compute package.
var (
	// ErrBufferTooSmall is returned when an operation would overrun a device buffer.
	ErrBufferTooSmall = errors.New("compute: buffer too small")

	// ErrForeignBuffer is returned when a buffer from another device is passed in.
	ErrForeignBuffer = errors.New("compute: buffer belongs to another device")

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("compute: device closed")
)

// ParamError reports an invalid pipeline parameter.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return "compute: invalid parameter " + e.Field + ": " + e.Reason
}
