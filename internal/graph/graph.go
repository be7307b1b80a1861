package graph

import (
	"fmt"
	"iter"
	"slices"
)

// UpdateFunc computes a node result from its bound input nodes.
type UpdateFunc func(inputs ...*Node) (any, error)

type rule struct {
	fn   UpdateFunc
	bind []string
}

type nameSet map[string]struct{}

// Graph owns a set of named nodes and the rules computing them.
//
// Nodes and rules are declared with AddNode and AddRule, then Build derives
// the subscriptions and dependency sets and wires change propagation.
// Reset tears the derived state down and keeps the declaration.
type Graph struct {
	nodes map[string]*Node
	order []string
	rules map[string]rule

	// Derived by Build, cleared by Reset.
	subscriptions map[string]nameSet
	dependencies  map[string]nameSet
	updaters      map[string]func() (any, error)
	pending       nameSet
	propagating   bool
	built         bool

	logger Logger
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:  make(map[string]*Node),
		rules:  make(map[string]rule),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for propagation warnings.
// Nodes without their own logger report callback failures through it too.
func (g *Graph) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	g.logger = logger
	for _, n := range g.nodes {
		n.inheritLogger(logger)
	}
}

// AddNode registers n under its name.
//
// Returns ErrDuplicateNode if the name is already taken.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrUnknownNode)
	}
	if _, exists := g.nodes[n.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.name)
	}
	g.nodes[n.name] = n
	g.order = append(g.order, n.name)
	n.inheritLogger(g.logger)
	return nil
}

// AddRule declares n as computed by fn from the nodes named in bind.
// Bound names are resolved by Build, so inputs may be added later.
//
// Returns ErrUnknownNode if n is not registered in this graph, and
// ErrDuplicateRule if n already has a rule.
func (g *Graph) AddRule(n *Node, fn UpdateFunc, bind []string) error {
	if n == nil || g.nodes[n.name] != n {
		return fmt.Errorf("%w: rule target is not part of this graph", ErrUnknownNode)
	}
	if _, exists := g.rules[n.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, n.name)
	}
	if fn == nil {
		return fmt.Errorf("%w: %s has no update function", ErrInvalidRule, n.name)
	}
	g.rules[n.name] = rule{fn: fn, bind: slices.Clone(bind)}
	return nil
}

// Build resolves every rule, checks for cycles and wires propagation.
//
// Nothing is wired unless every rule is valid: on error the graph is left
// exactly as it was.
//
// Returns ErrUnknownNode for a binding to an undeclared node and
// ErrCyclicDependency for a node that depends on itself.
func (g *Graph) Build() error {
	subscriptions := make(map[string]nameSet)
	dependencies := make(map[string]nameSet)
	updaters := make(map[string]func() (any, error))

	for _, name := range g.order {
		r, ok := g.rules[name]
		if !ok {
			continue
		}
		inputs := make([]*Node, len(r.bind))
		for i, b := range r.bind {
			in, ok := g.nodes[b]
			if !ok {
				return fmt.Errorf("%w: %s is bound to %s", ErrUnknownNode, name, b)
			}
			inputs[i] = in
			if subscriptions[b] == nil {
				subscriptions[b] = make(nameSet)
			}
			subscriptions[b][name] = struct{}{}
		}
		fn := r.fn
		updaters[name] = func() (any, error) { return fn(inputs...) }
	}

	for _, name := range g.order {
		if _, ok := g.rules[name]; !ok {
			continue
		}
		deps := g.collectDependencies(name)
		if _, cyclic := deps[name]; cyclic {
			return fmt.Errorf("%w: %s is involved in a cyclic dependency", ErrCyclicDependency, name)
		}
		dependencies[name] = deps
	}

	g.subscriptions = subscriptions
	g.dependencies = dependencies
	g.updaters = updaters
	g.pending = make(nameSet)
	g.built = true

	for _, name := range g.order {
		if _, ok := subscriptions[name]; ok {
			g.nodes[name].attach(g, g.callback)
		}
	}
	return nil
}

// collectDependencies walks the bindings of name transitively.
func (g *Graph) collectDependencies(name string) nameSet {
	seen := make(nameSet)
	stack := slices.Clone(g.rules[name].bind)
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		if r, ok := g.rules[b]; ok {
			stack = append(stack, r.bind...)
		}
	}
	return seen
}

// Reset detaches propagation and clears the derived state.
// The declared nodes and rules are kept for a later Build.
func (g *Graph) Reset() {
	for _, n := range g.nodes {
		n.detach(g)
	}
	g.subscriptions = nil
	g.dependencies = nil
	g.updaters = nil
	g.pending = nil
	g.propagating = false
	g.built = false
}

// Built reports whether the graph is wired.
func (g *Graph) Built() bool { return g.built }

func (g *Graph) callback(n *Node) error {
	for sub := range g.subscriptions[n.name] {
		g.pending[sub] = struct{}{}
	}
	if !g.propagating {
		g.propagate()
	}
	return nil
}

// propagate drains the pending set, always recomputing a node none of whose
// dependencies is still pending. Nodes enqueued while draining are picked
// up by the same loop.
func (g *Graph) propagate() {
	g.propagating = true
	defer func() { g.propagating = false }()
	for len(g.pending) > 0 {
		name := g.nextReady()
		delete(g.pending, name)
		g.update(name)
	}
}

func (g *Graph) nextReady() string {
	names := make([]string, 0, len(g.pending))
	for name := range g.pending {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if g.ready(name) {
			return name
		}
	}
	g.logger.Warn("propagation deadlocked, forcing an update", "pending", names, "node", names[0])
	return names[0]
}

func (g *Graph) ready(name string) bool {
	for dep := range g.dependencies[name] {
		if _, ok := g.pending[dep]; ok {
			return false
		}
	}
	return true
}

func (g *Graph) update(name string) {
	n := g.nodes[name]
	updater, ok := g.updaters[name]
	if n == nil || !ok {
		return
	}
	result, err := runUpdater(updater)
	if err == nil {
		err = n.SetResult(result)
		if err == nil {
			return
		}
	}
	// err is never nil here, so SetException cannot fail.
	_ = n.SetException(err)
}

func runUpdater(updater func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: %v", ErrRulePanic, r)
		}
	}()
	return updater()
}

// Node returns the node registered under name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Contains reports whether a node is registered under name.
func (g *Graph) Contains(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Names returns the node names in registration order.
func (g *Graph) Names() []string {
	return slices.Clone(g.order)
}

// All iterates over the nodes in registration order.
func (g *Graph) All() iter.Seq2[string, *Node] {
	return func(yield func(string, *Node) bool) {
		for _, name := range g.order {
			if !yield(name, g.nodes[name]) {
				return
			}
		}
	}
}

// HasRule reports whether the node registered under name is computed.
func (g *Graph) HasRule(name string) bool {
	_, ok := g.rules[name]
	return ok
}

// Bindings returns the input names of the rule computing name.
func (g *Graph) Bindings(name string) []string {
	return slices.Clone(g.rules[name].bind)
}

// Subnodes returns the input nodes of the rule computing name, in binding
// order. A node without a rule has no subnodes.
//
// Returns ErrUnknownNode if name, or one of its bindings, is not registered.
func (g *Graph) Subnodes(name string) ([]*Node, error) {
	if !g.Contains(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	r, ok := g.rules[name]
	if !ok {
		return nil, nil
	}
	inputs := make([]*Node, len(r.bind))
	for i, b := range r.bind {
		in, ok := g.nodes[b]
		if !ok {
			return nil, fmt.Errorf("%w: %s is bound to %s", ErrUnknownNode, name, b)
		}
		inputs[i] = in
	}
	return inputs, nil
}

// Dependencies returns the sorted transitive inputs of name.
// It is empty until the graph is built.
func (g *Graph) Dependencies(name string) []string {
	deps := make([]string, 0, len(g.dependencies[name]))
	for dep := range g.dependencies[name] {
		deps = append(deps, dep)
	}
	slices.Sort(deps)
	return deps
}
