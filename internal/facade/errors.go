package facade

import (
	"errors"
	"strings"
)

// Domain errors for the facade package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, facade.ErrNotConnected) {
//	    // device failed to initialise
//	}
var (
	// ErrNotConnected is returned when reading or writing a device that is
	// not initialised.
	ErrNotConnected = errors.New("facade: device not connected")

	// ErrAlreadyInitialised is returned when declaring attributes after Init.
	ErrAlreadyInitialised = errors.New("facade: device already initialised")

	// ErrUnknownAttribute is returned when an attribute name is not declared.
	ErrUnknownAttribute = errors.New("facade: unknown attribute")

	// ErrDuplicateAttribute is returned when an attribute name is declared twice.
	ErrDuplicateAttribute = errors.New("facade: duplicate attribute")

	// ErrNotWritable is returned when writing a read-only attribute.
	ErrNotWritable = errors.New("facade: attribute not writable")

	// ErrNoRule is returned when a computed attribute has no update function.
	ErrNoRule = errors.New("facade: no update method defined")

	// ErrNoBinding is returned when a computed attribute binds to nothing.
	ErrNoBinding = errors.New("facade: no binding defined")

	// ErrEmptySource is returned when a proxy or combined attribute has no source.
	ErrEmptySource = errors.New("facade: empty source")

	// ErrNoMatch is returned when a source pattern matches no remote attribute.
	ErrNoMatch = errors.New("facade: no remote attribute matches pattern")

	// ErrNoSource is returned when a remote attribute is declared but the
	// device has no Source to subscribe with.
	ErrNoSource = errors.New("facade: no source configured")

	// ErrNoWriter is returned when writing a remote attribute without a RemoteWriter.
	ErrNoWriter = errors.New("facade: no remote writer configured")

	// ErrInvalidState is returned when a state value cannot be interpreted.
	ErrInvalidState = errors.New("facade: invalid state")
)

// ContextError records what the device was doing when err occurred.
//
// It renders as:
//
//	Exception while updating node <temperature>:
//	  sensor offline
type ContextError struct {
	Action string
	Origin string
	Err    error
}

func withContext(action, origin string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextError{Action: action, Origin: origin, Err: err}
}

// Error implements the error interface.
func (e *ContextError) Error() string {
	return indent("Exception while "+e.Action+" "+e.Origin, e.Err.Error())
}

// Unwrap returns the underlying error.
func (e *ContextError) Unwrap() error {
	return e.Err
}

// indent renders body under header, each body line prefixed by two spaces.
func indent(header, body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return header + ":\n" + strings.Join(lines, "\n")
}
