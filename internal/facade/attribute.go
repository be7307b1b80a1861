package facade

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// Kind identifies how an attribute gets its value.
type Kind int

// Attribute kinds.
const (
	// KindLocal is set by writes, an initial provider or the device itself.
	KindLocal Kind = iota
	// KindLogical is computed from other attributes.
	KindLogical
	// KindProxy follows a remote attribute, or holds a literal default.
	KindProxy
	// KindCombined is computed from several remote attributes.
	KindCombined
	// KindState drives the device state and status.
	KindState
)

var kindNames = [...]string{
	KindLocal:    "local",
	KindLogical:  "logical",
	KindProxy:    "proxy",
	KindCombined: "combined",
	KindState:    "state",
}

// String returns the kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses a kind name.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == strings.ToLower(name) {
			return Kind(i), nil
		}
	}
	return KindLocal, fmt.Errorf("facade: unknown attribute kind %q", name)
}

// Rule computes an attribute from the attributes named in Bind.
//
// With Func set the standard aggregation applies: faults are forwarded,
// missing or INVALID inputs short-circuit, and the result is stamped with
// the latest input stamp and the worst input quality. With only Custom set
// the function receives the input nodes and handles all of that itself.
type Rule struct {
	Bind   []string
	Func   graph.ValueFunc
	Custom graph.UpdateFunc
}

func (r Rule) defined() bool {
	return r.Func != nil || r.Custom != nil
}

func (r Rule) validate() error {
	if !r.defined() {
		return ErrNoRule
	}
	if len(r.Bind) == 0 {
		return ErrNoBinding
	}
	return nil
}

// AttrOption configures an attribute declaration.
type AttrOption func(*attribute)

// Description sets the attribute description.
func Description(desc string) AttrOption {
	return func(a *attribute) { a.description = desc }
}

// Writable allows writes to the attribute.
func Writable() AttrOption {
	return func(a *attribute) { a.writable = true }
}

// Hidden keeps the attribute as an internal node: no change is published.
func Hidden() AttrOption {
	return func(a *attribute) { a.hidden = true }
}

// Zero sets the value reported in place of an INVALID reading.
func Zero(v any) AttrOption {
	return func(a *attribute) { a.zero = v }
}

// Initial sets a provider for the initial value of a local attribute.
func Initial(fn func() (any, error)) AttrOption {
	return func(a *attribute) { a.initial = fn }
}

// Notify registers a hook run after every change of the attribute.
func Notify(h Hook) AttrOption {
	return func(a *attribute) { a.hooks = append(a.hooks, h) }
}

// Computed attaches a rule to a proxy or state attribute.
// For a proxy attribute the binding is the remote attribute itself and
// Bind is ignored.
func Computed(r Rule) AttrOption {
	return func(a *attribute) {
		a.rule = r
		a.computed = true
	}
}

// Exclude removes remote attributes matching the patterns from the
// expansion of a combined attribute wildcard.
func Exclude(patterns ...string) AttrOption {
	return func(a *attribute) { a.exclude = append(a.exclude, patterns...) }
}

// attribute is one declared attribute and the nodes it owns.
type attribute struct {
	name        string
	kind        Kind
	description string
	writable    bool
	hidden      bool
	zero        any
	initial     func() (any, error)
	hooks       []Hook
	rule        Rule
	computed    bool
	source      string
	sources     []string
	exclude     []string

	// Resolved by configure.
	literal    any
	hasLiteral bool
	remotes    map[string]string // node name -> remote attribute
}

func (a *attribute) origin() string {
	return a.kind.String() + " attribute <" + a.name + ">"
}

// remoteTarget returns the remote attribute written by a proxy attribute.
func (a *attribute) remoteTarget() string {
	if a.kind != KindProxy || a.hasLiteral {
		return ""
	}
	return strings.TrimSpace(a.source)
}

// Info describes a declared attribute.
type Info struct {
	Name        string
	Kind        Kind
	Description string
	Writable    bool
	Hidden      bool
	Bind        []string
	Remotes     []string
}

// AddLocal declares an attribute set by writes or by the device itself.
func (d *Device) AddLocal(name string, opts ...AttrOption) error {
	return d.declare(&attribute{name: name, kind: KindLocal}, opts)
}

// AddLogical declares an attribute computed from other attributes.
//
// Returns ErrNoRule or ErrNoBinding for an incomplete rule.
func (d *Device) AddLogical(name string, rule Rule, opts ...AttrOption) error {
	if err := rule.validate(); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}
	return d.declare(&attribute{name: name, kind: KindLogical, rule: rule, computed: true}, opts)
}

// AddProxy declares an attribute following a remote attribute.
//
// A source without a slash is a literal default value instead, for
// example "0.5" or "[1, 2]". With a Computed option the remote reading
// is fed through the rule via a subnode named name[0].
func (d *Device) AddProxy(name, source string, opts ...AttrOption) error {
	a := &attribute{name: name, kind: KindProxy, source: source}
	for _, opt := range opts {
		opt(a)
	}
	if a.computed && !a.rule.defined() {
		return fmt.Errorf("%w: %s", ErrNoRule, name)
	}
	return d.declare(a, nil)
}

// AddCombined declares an attribute computed from several remote attributes.
//
// sources is either a list of remote attributes or a single wildcard
// pattern resolved by the device Source. The inputs are bound as subnodes
// named name[0], name[1] and so on; rule.Bind is ignored.
func (d *Device) AddCombined(name string, sources []string, rule Rule, opts ...AttrOption) error {
	if !rule.defined() {
		return fmt.Errorf("%w: %s", ErrNoRule, name)
	}
	a := &attribute{name: name, kind: KindCombined, sources: slices.Clone(sources), rule: rule, computed: true}
	for _, opt := range opts {
		opt(a)
	}
	if a.writable {
		return fmt.Errorf("%w: combined attribute %s cannot be writable", ErrNotWritable, name)
	}
	return d.declare(a, nil)
}

// AddState declares the attribute driving the device state and status.
//
// Its value is a State, a state name, or a StateStatus pair. Without a
// Computed option it behaves as a local attribute.
func (d *Device) AddState(name string, opts ...AttrOption) error {
	a := &attribute{name: name, kind: KindState}
	for _, opt := range opts {
		opt(a)
	}
	if a.computed {
		if err := a.rule.validate(); err != nil {
			return fmt.Errorf("%w: %s", err, name)
		}
	}
	return d.declare(a, nil)
}

func (d *Device) declare(a *attribute, opts []AttrOption) error {
	for _, opt := range opts {
		opt(a)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialised {
		return ErrAlreadyInitialised
	}
	if a.name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownAttribute)
	}
	if _, exists := d.attrs[a.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAttribute, a.name)
	}
	d.attrs[a.name] = a
	d.order = append(d.order, a.name)
	return nil
}

// configure creates the attribute nodes and rules.
func (d *Device) configure(a *attribute) error {
	a.literal, a.hasLiteral = nil, false
	a.remotes = make(map[string]string)

	node := graph.NewRestrictedNode(a.name)
	node.SetDescription(a.description)
	if err := d.graph.AddNode(node); err != nil {
		return err
	}
	for _, h := range a.hooks {
		node.AddCallback(d.runCallback("running user callback for", h))
	}
	switch {
	case a.kind == KindState:
		node.AddCallback(d.runCallback("setting the state from", d.setStateFromNode))
	case !a.hidden:
		node.AddCallback(d.runCallback("pushing events for", d.pushEvent))
	}

	switch a.kind {
	case KindLogical:
		return d.bindRule(node, a.rule)
	case KindState:
		if a.computed {
			return d.bindRule(node, a.rule)
		}
		return nil
	case KindProxy:
		return d.configureProxy(a, node)
	case KindCombined:
		return d.configureCombined(a, node)
	}
	return nil
}

func (d *Device) configureProxy(a *attribute, node *graph.Node) error {
	source := strings.TrimSpace(a.source)
	if source == "" {
		return fmt.Errorf("%w: %s", ErrEmptySource, a.name)
	}
	if !isRemote(source) {
		v, err := parseLiteral(source)
		if err != nil {
			return err
		}
		a.literal, a.hasLiteral = v, true
		return nil
	}
	if a.writable && d.writer == nil {
		return fmt.Errorf("%w: %s writes to %s", ErrNoWriter, a.name, source)
	}
	if !a.computed {
		a.remotes[a.name] = source
		return nil
	}
	sub := graph.NewRestrictedNode(a.name + "[0]")
	if err := d.graph.AddNode(sub); err != nil {
		return err
	}
	a.remotes[sub.Name()] = source
	rule := a.rule
	rule.Bind = []string{sub.Name()}
	return d.bindRule(node, rule)
}

func (d *Device) configureCombined(a *attribute, node *graph.Node) error {
	var sources []string
	for _, s := range a.sources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptySource, a.name)
	}
	if len(sources) == 1 && !isRemote(sources[0]) {
		v, err := parseLiteral(sources[0])
		if err != nil {
			return err
		}
		a.literal, a.hasLiteral = v, true
		return nil
	}
	if len(sources) == 1 && isPattern(sources[0]) {
		expanded, err := d.expand(sources[0], a.exclude)
		if err != nil {
			return err
		}
		sources = expanded
	}

	bind := make([]string, len(sources))
	for i, remote := range sources {
		sub := graph.NewRestrictedNode(fmt.Sprintf("%s[%d]", a.name, i))
		if err := d.graph.AddNode(sub); err != nil {
			return err
		}
		a.remotes[sub.Name()] = remote
		bind[i] = sub.Name()
	}
	rule := a.rule
	rule.Bind = bind
	return d.bindRule(node, rule)
}

func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func (d *Device) expand(pattern string, exclude []string) ([]string, error) {
	expander, ok := d.source.(Expander)
	if !ok {
		return nil, fmt.Errorf("%w: source cannot expand %s", ErrNoMatch, pattern)
	}
	remotes, err := expander.Expand(pattern)
	if err != nil {
		return nil, err
	}
	kept := remotes[:0:0]
	for _, remote := range remotes {
		if !matchesAny(remote, exclude) {
			kept = append(kept, remote)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, pattern)
	}
	return kept, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// connect sets initial values and subscribes to remote attributes.
func (d *Device) connect(a *attribute) error {
	node, _ := d.graph.Node(a.name)
	switch {
	case a.kind == KindLocal && a.initial != nil:
		v, err := a.initial()
		if err != nil {
			return node.SetException(err)
		}
		t, err := d.triplet(v)
		if err != nil {
			return node.SetException(err)
		}
		return node.SetResult(t)
	case a.hasLiteral:
		t, err := d.triplet(a.literal)
		if err != nil {
			return err
		}
		return node.SetResult(t)
	}

	names := make([]string, 0, len(a.remotes))
	for name := range a.remotes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := d.subscribe(a.remotes[name], name); err != nil {
			return err
		}
	}
	return nil
}
