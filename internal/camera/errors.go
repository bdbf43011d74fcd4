package camera

import "errors"

// Domain errors for the camera package.
var (
	// ErrUnsupportedPath is returned when the camera does not advertise an API path.
	ErrUnsupportedPath = errors.New("camera: api path not available")

	// ErrUnknownSetting is returned for a setting name outside the supported set.
	ErrUnknownSetting = errors.New("camera: unknown setting")

	// ErrInvalidValue is returned when a value is not in the camera's ability list
	// or cannot be encoded for the setting.
	ErrInvalidValue = errors.New("camera: invalid setting value")

	// ErrInvalidPayload is returned when a request body is not valid JSON.
	ErrInvalidPayload = errors.New("camera: invalid payload")

	// ErrInvalidMethod is returned for HTTP verbs outside get, post, put, delete.
	ErrInvalidMethod = errors.New("camera: invalid method")

	// ErrBadResponse is returned when a camera reply cannot be decoded.
	ErrBadResponse = errors.New("camera: malformed response")
)
