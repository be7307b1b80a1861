package graph

import (
	"fmt"
	"reflect"
)

// Callback is invoked with the node after its outcome changed.
// A returned error is logged as a warning and otherwise ignored.
type Callback func(n *Node) error

type callbackEntry struct {
	fn    Callback
	owner *Graph
}

// Node is a named reactive cell.
//
// After its first write a node holds exactly one of a result (possibly nil)
// or a fault. Its outcome changes only through SetResult and SetException,
// and every change is announced to the registered callbacks.
type Node struct {
	name        string
	description string
	result      any
	fault       error
	restricted  bool
	callbacks   []callbackEntry

	logger         Logger
	explicitLogger bool
}

// NewNode creates a node that accepts any result.
func NewNode(name string) *Node {
	return &Node{name: name, logger: noopLogger{}}
}

// NewRestrictedNode creates a node whose results must be nil or a Triplet.
func NewRestrictedNode(name string) *Node {
	n := NewNode(name)
	n.restricted = true
	return n
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Description returns the node description.
func (n *Node) Description() string { return n.description }

// SetDescription sets a human readable description.
func (n *Node) SetDescription(desc string) { n.description = desc }

// Restricted reports whether the node only accepts triplets.
func (n *Node) Restricted() bool { return n.restricted }

// SetLogger sets the logger used to report failing callbacks.
func (n *Node) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	n.logger = logger
	n.explicitLogger = true
}

func (n *Node) inheritLogger(logger Logger) {
	if !n.explicitLogger {
		n.logger = logger
	}
}

// SetResult stores a result and clears any fault.
// Callbacks run when the node held a fault or a different result.
//
// Returns ErrNotTriplet if the node is restricted and v is neither nil nor a Triplet.
func (n *Node) SetResult(v any) error {
	if v != nil {
		if t, ok := AsTriplet(v); ok {
			v = t
		} else if n.restricted {
			return fmt.Errorf("%w: %s received %T", ErrNotTriplet, n.name, v)
		}
	}
	changed := n.fault != nil || !resultsEqual(n.result, v)
	n.result, n.fault = v, nil
	if changed {
		n.Notify()
	}
	return nil
}

// SetException stores a fault and clears any result.
// Callbacks run when the node held a result or a different fault.
//
// Returns ErrInvalidFault if err is nil.
func (n *Node) SetException(err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s received a nil error", ErrInvalidFault, n.name)
	}
	changed := n.result != nil || !faultsEqual(n.fault, err)
	n.result, n.fault = nil, err
	if changed {
		n.Notify()
	}
	return nil
}

// Result returns the stored result, or the stored fault as the error.
func (n *Node) Result() (any, error) {
	if n.fault != nil {
		return nil, n.fault
	}
	return n.result, nil
}

// Triplet returns the stored result as a triplet.
// ok is false when the node holds a fault, no result or a non-triplet value.
func (n *Node) Triplet() (t Triplet, ok bool) {
	if n.fault != nil {
		return Triplet{}, false
	}
	return AsTriplet(n.result)
}

// Exception returns the stored fault, or nil.
func (n *Node) Exception() error {
	return n.fault
}

// AddCallback registers cb to run after every change of the node.
func (n *Node) AddCallback(cb Callback) {
	n.callbacks = append(n.callbacks, callbackEntry{fn: cb})
}

// CallbackCount returns the number of registered callbacks, including the
// graph wiring attached by Build.
func (n *Node) CallbackCount() int {
	return len(n.callbacks)
}

// Notify runs every callback with the node.
// A failing or panicking callback is logged and does not stop the others.
func (n *Node) Notify() {
	callbacks := make([]callbackEntry, len(n.callbacks))
	copy(callbacks, n.callbacks)
	for _, cb := range callbacks {
		n.invoke(cb.fn)
	}
}

func (n *Node) invoke(cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("node callback panicked", "node", n.name, "panic", r)
		}
	}()
	if err := cb(n); err != nil {
		n.logger.Warn("node callback failed", "node", n.name, "error", err)
	}
}

// attach registers the graph hook once per owner.
func (n *Node) attach(owner *Graph, cb Callback) {
	for _, entry := range n.callbacks {
		if entry.owner == owner {
			return
		}
	}
	n.callbacks = append(n.callbacks, callbackEntry{fn: cb, owner: owner})
}

// detach removes the graph hook registered by owner.
func (n *Node) detach(owner *Graph) {
	kept := n.callbacks[:0]
	for _, entry := range n.callbacks {
		if entry.owner != owner {
			kept = append(kept, entry)
		}
	}
	clear(n.callbacks[len(kept):])
	n.callbacks = kept
}

func (n *Node) String() string {
	if n.fault != nil {
		return fmt.Sprintf("Node(%s, fault=%v)", n.name, n.fault)
	}
	return fmt.Sprintf("Node(%s, %v)", n.name, n.result)
}

func resultsEqual(a, b any) bool {
	if ta, ok := AsTriplet(a); ok {
		return ta.Equal(b)
	}
	if _, ok := AsTriplet(b); ok {
		return false
	}
	return valuesEqual(a, b)
}

// faultsEqual compares errors by identity, falling back to false for
// error types that cannot be compared.
func faultsEqual(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return safeCompare(a, b)
}
