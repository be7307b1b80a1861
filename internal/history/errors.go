package history

import "errors"

var (
	// ErrMissingDevice is returned when recording or querying without a device name.
	ErrMissingDevice = errors.New("history: device is required")

	// ErrMissingAttribute is returned when recording without an attribute name.
	ErrMissingAttribute = errors.New("history: attribute is required")

	// ErrInvalidRetention is returned when pruning with a non-positive retention.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
