package renderer

import "github.com/cockroachdb/errors"

var (
	// ErrNoSuitableDevice is returned when no physical device passes selection.
	ErrNoSuitableDevice = errors.New("no suitable GPU found")
	// ErrUnsuitableDevice wraps the reason a single device was rejected.
	ErrUnsuitableDevice = errors.New("device is unsuitable")
	// ErrValidationUnavailable is returned when validation was requested but the layer is not installed.
	ErrValidationUnavailable = errors.New("validation layer unavailable")
	// ErrMissingExtension is returned when a required instance extension is absent.
	ErrMissingExtension = errors.New("missing required extension")
	// ErrNoMemoryType is returned when no memory type satisfies an allocation.
	ErrNoMemoryType = errors.New("no suitable memory type")
	// ErrUnsupportedTransition is returned for an image layout pair outside the transition table.
	ErrUnsupportedTransition = errors.New("unsupported image layout transition")
	// ErrMalformedShader is returned when shader bytecode is not a whole number of 32-bit words.
	ErrMalformedShader = errors.New("malformed shader bytecode")
	// ErrNoSupportedFormat is returned when none of the candidate formats has the required features.
	ErrNoSupportedFormat = errors.New("no supported format")
)
