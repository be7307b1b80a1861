package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrInvalidPayload is returned when a reading payload cannot be decoded.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrUnexpectedTopic is returned for a message outside the reading topics.
	ErrUnexpectedTopic = errors.New("bridge: unexpected topic")

	// ErrQueueFull is returned when a reading is dropped because Run is
	// not keeping up.
	ErrQueueFull = errors.New("bridge: reading queue full")

	// ErrCircuitOpen is returned when publishing is suspended after
	// repeated broker failures.
	ErrCircuitOpen = errors.New("bridge: publish circuit open")
)
