// Package graph provides the reactive attribute graph behind a Gray Logic facade.
//
// A graph is a set of named cells (nodes) linked by rules. A rule declares that
// one node is computed from an ordered list of other nodes. Once built, any
// SetResult or SetException on a node recomputes every node that depends on it,
// in dependency order, until the graph settles.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                    Graph (graph.go)                    │
//	│  name-keyed arena of nodes, rules and derived wiring   │
//	│                                                        │
//	│   leaf ──SetResult──▶ callback ──▶ pending set         │
//	│                                     │                  │
//	│                                     ▼                  │
//	│                      propagate: pick a ready node,     │
//	│                      run its rule, SetResult/Exception │
//	│                                     │                  │
//	│                                     ▼                  │
//	│                      Notify ──▶ user callbacks         │
//	└───────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Triplet: immutable (value, stamp, quality) reading
//   - Quality: Tango-compatible quality ordinal (VALID, INVALID, ALARM, CHANGING, WARNING)
//   - Node: named cell holding a result or a fault, with change callbacks
//   - Graph: container that builds the wiring and drives propagation
//
// # Lifecycle
//
//	g := graph.New()
//	a := graph.NewRestrictedNode("a")
//	b := graph.NewRestrictedNode("b")
//	_ = g.AddNode(a)
//	_ = g.AddNode(b)
//	_ = g.AddRule(b, graph.StandardRule(double), []string{"a"})
//	if err := g.Build(); err != nil {
//	    return err // duplicate, unknown or cyclic rule
//	}
//	_ = a.SetResult(graph.NewValue(21))
//	res, err := b.Result() // Triplet(42, stamp of a, VALID)
//
// Reset detaches the wiring but keeps the declared nodes and rules, so the
// graph can be built again later.
//
// # Faults
//
// A rule that returns an error or panics stores that error as the node's fault.
// Faults never escape propagation; they surface when a caller reads Result.
// Callbacks that fail are logged as warnings and never stop their siblings.
//
// # Thread Safety
//
// A Graph is not safe for concurrent use. Propagation is synchronous and
// re-entrant on the calling goroutine; callers serialise external triggers
// (the facade package holds a device lock around every entry point).
package graph
