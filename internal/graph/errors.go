package graph

import "errors"

// Domain errors for the graph package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, graph.ErrCyclicDependency) {
//	    // reject the definition
//	}
var (
	// ErrDuplicateNode is returned when a node name is already registered.
	ErrDuplicateNode = errors.New("graph: duplicate node")

	// ErrUnknownNode is returned when a name does not match a registered node.
	ErrUnknownNode = errors.New("graph: unknown node")

	// ErrDuplicateRule is returned when a node already has a rule.
	ErrDuplicateRule = errors.New("graph: duplicate rule")

	// ErrInvalidRule is returned when a rule has no update function.
	ErrInvalidRule = errors.New("graph: invalid rule")

	// ErrCyclicDependency is returned by Build when a node depends on itself.
	ErrCyclicDependency = errors.New("graph: cyclic dependency")

	// ErrInvalidTriplet is returned when a triplet is built from a bad stamp,
	// an unknown quality or a nested triplet.
	ErrInvalidTriplet = errors.New("graph: invalid triplet")

	// ErrNotTriplet is returned when a restricted node receives a result that
	// is neither nil nor a Triplet.
	ErrNotTriplet = errors.New("graph: result is not a triplet")

	// ErrInvalidFault is returned when SetException receives a nil error.
	ErrInvalidFault = errors.New("graph: invalid fault")

	// ErrRulePanic wraps a panic recovered while running a rule.
	ErrRulePanic = errors.New("graph: rule panicked")
)
