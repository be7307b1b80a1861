package definition

import "errors"

// Sentinel errors for definition loading and validation.
var (
	// ErrUnknownFormat indicates a definition file extension other than
	// .yaml, .yml or .toml.
	ErrUnknownFormat = errors.New("definition: unknown file format")

	// ErrMissingField indicates a required field is empty.
	ErrMissingField = errors.New("definition: required field missing")

	// ErrDuplicateAttribute indicates two attributes share a name.
	ErrDuplicateAttribute = errors.New("definition: duplicate attribute")

	// ErrUnexpectedField indicates a field that the attribute kind does not use.
	ErrUnexpectedField = errors.New("definition: field not allowed for this kind")

	// ErrUnknownRule indicates a rule name missing from the registry.
	ErrUnknownRule = errors.New("definition: unknown rule")

	// ErrDuplicateRule indicates a rule name registered twice.
	ErrDuplicateRule = errors.New("definition: rule already registered")

	// ErrInvalidArgs indicates rule arguments of the wrong type or shape.
	ErrInvalidArgs = errors.New("definition: invalid rule arguments")

	// ErrNotNumeric indicates a rule input that is not a number.
	ErrNotNumeric = errors.New("definition: value is not numeric")

	// ErrInputCount indicates a rule called with the wrong number of inputs.
	ErrInputCount = errors.New("definition: wrong number of inputs")
)
