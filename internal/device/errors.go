package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle unknown target
//	}
var (
	// ErrNotFound is returned when a device ID is not registered.
	ErrNotFound = errors.New("device: not found")

	// ErrWrongKind is returned when a typed lookup finds a device of another kind.
	ErrWrongKind = errors.New("device: wrong kind")

	// ErrDuplicateID is returned when an ID appears more than once across namespaces.
	ErrDuplicateID = errors.New("device: duplicate id")

	// ErrNoCameras is returned when the device list has no camera entries.
	ErrNoCameras = errors.New("device: at least one camera is required")

	// ErrInvalidID is returned for empty IDs or the reserved target "all".
	ErrInvalidID = errors.New("device: invalid id")

	// ErrInvalidEndpoint is returned when a camera address is not host:port.
	ErrInvalidEndpoint = errors.New("device: invalid endpoint")

	// ErrInvalidPort is returned when a motor serial port is empty.
	ErrInvalidPort = errors.New("device: invalid serial port")

	// ErrUnknownNamespace is returned for device list sections other than camera and motor.
	ErrUnknownNamespace = errors.New("device: unknown namespace")
)
