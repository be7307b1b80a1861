package facade

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// Names of the device level attributes carried by State and Status changes.
const (
	AttributeState  = "State"
	AttributeStatus = "Status"
)

// Status messages set by the device.
const (
	statusStateUnavailable = "The state is currently not available."
	statusStateInvalid     = "The state cannot be computed. Some values are invalid."
	msgInitFailed          = "Exception while initializing the device"
)

// DefaultIgnoredReasons lists event error reasons that are recorded but
// never stored as attribute faults.
var DefaultIgnoredReasons = []string{"API_PollThreadOutOfSync"}

// Reading is the value of an attribute as reported to clients.
// An INVALID reading carries the attribute zero value.
type Reading struct {
	Value   any
	Time    time.Time
	Quality graph.Quality
}

// subscription is one remote attribute feeding one or more nodes.
type subscription struct {
	remote string
	nodes  []string
}

// Device is a facade device: a set of attributes backed by a reactive
// graph, fed by remote readings and local writes.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Every entry point (events, writes, reads, clock ticks) holds the
//     device lock while the graph propagates.
type Device struct {
	mu sync.Mutex

	name  string
	attrs map[string]*attribute
	order []string
	graph *graph.Graph

	source         Source
	writer         RemoteWriter
	publishers     []Publisher
	logger         Logger
	ignoredReasons []string
	now            func() time.Time

	clock     bool
	clockHook func(stamp float64)

	ctx           context.Context
	initialised   bool
	connected     bool
	state         State
	status        string
	subscriptions map[string]*subscription
	initStamp     time.Time
	history       map[string]int
	historyOrder  []string
}

// Option configures a Device.
type Option func(*Device)

// WithSource sets the source of remote readings. A source that also
// implements RemoteWriter is used for proxy writes unless WithWriter is given.
func WithSource(s Source) Option {
	return func(d *Device) { d.source = s }
}

// WithWriter sets the writer used by writable proxy attributes.
func WithWriter(w RemoteWriter) Option {
	return func(d *Device) { d.writer = w }
}

// WithPublishers adds change publishers.
func WithPublishers(p ...Publisher) Option {
	return func(d *Device) { d.publishers = append(d.publishers, p...) }
}

// WithLogger sets the device logger.
func WithLogger(l Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithIgnoredReasons replaces the event error reasons that never fault
// an attribute.
func WithIgnoredReasons(reasons ...string) Option {
	return func(d *Device) { d.ignoredReasons = slices.Clone(reasons) }
}

// WithNow sets the clock used for stamps. It is meant for tests.
func WithNow(now func() time.Time) Option {
	return func(d *Device) { d.now = now }
}

// New creates a device. Attributes are declared with the Add methods
// before calling Init.
func New(name string, opts ...Option) *Device {
	d := &Device{
		name:           name,
		attrs:          make(map[string]*attribute),
		graph:          graph.New(),
		logger:         noopLogger{},
		ignoredReasons: slices.Clone(DefaultIgnoredReasons),
		now:            time.Now,
		ctx:            context.Background(),
		state:          StateUnknown,
		subscriptions:  make(map[string]*subscription),
		history:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.writer == nil {
		if w, ok := d.source.(RemoteWriter); ok {
			d.writer = w
		}
	}
	return d
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Init builds the graph and connects the attributes.
//
// On failure the device goes to FAULT with the error as status, stays
// disconnected, and the error is returned. Otherwise it leaves INIT for
// UNKNOWN unless an attribute already set another state.
func (d *Device) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return ErrAlreadyInitialised
	}
	d.initialised = true
	d.ctx = ctx
	d.initStamp = d.now()
	d.history = make(map[string]int)
	d.historyOrder = nil
	d.setState(StateInit, d.initStamp, graph.Valid)

	if err := d.initLocked(); err != nil {
		d.registerException(err, msgInitFailed, false)
		return fmt.Errorf("initializing device %s: %w", d.name, err)
	}
	d.connected = true
	if d.state == StateInit {
		d.setState(StateUnknown, d.now(), graph.Valid)
	}
	d.logger.Info("facade device initialised", "device", d.name, "attributes", len(d.order))
	if d.clock {
		d.tickLocked()
	}
	return nil
}

func (d *Device) initLocked() error {
	d.unsubscribeAll()
	if err := d.buildLocked(); err != nil {
		return err
	}
	for _, name := range d.order {
		a := d.attrs[name]
		if err := withContext("connecting", a.origin(), d.connect(a)); err != nil {
			return err
		}
	}
	return nil
}

// Build declares the graph without connecting anything. It lets tools
// inspect a device definition offline.
func (d *Device) Build() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialised = true
	return d.buildLocked()
}

func (d *Device) buildLocked() error {
	d.graph.Reset()
	d.graph = graph.New()
	d.graph.SetLogger(d.logger)
	for _, name := range d.order {
		a := d.attrs[name]
		if err := withContext("configuring", a.origin(), d.configure(a)); err != nil {
			return err
		}
	}
	return withContext("building", "graph", d.graph.Build())
}

// Close resets the graph and unsubscribes from every remote attribute.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph.Reset()
	d.unsubscribeAll()
	d.connected = false
	return nil
}

func (d *Device) unsubscribeAll() {
	for _, remote := range d.subscribedRemotes() {
		if err := d.source.Unsubscribe(remote); err != nil {
			d.ignoreException(err, "Cannot unsubscribe from attribute "+remote)
			continue
		}
		d.logger.Info("unsubscribed from remote attribute", "device", d.name, "remote", remote)
	}
	clear(d.subscriptions)
}

// Connected reports whether Init succeeded and Close was not called.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// State returns the current device state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Status returns the current device status message.
func (d *Device) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Attributes returns the declared attributes in declaration order.
func (d *Device) Attributes() []Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	infos := make([]Info, 0, len(d.order))
	for _, name := range d.order {
		a := d.attrs[name]
		info := Info{
			Name:        a.name,
			Kind:        a.kind,
			Description: a.description,
			Writable:    a.writable,
			Hidden:      a.hidden,
			Bind:        d.graph.Bindings(a.name),
		}
		for _, remote := range a.remotes {
			info.Remotes = append(info.Remotes, remote)
		}
		slices.Sort(info.Remotes)
		infos = append(infos, info)
	}
	return infos
}

// Inspect runs fn with the device graph while the device is locked.
// fn must not keep the graph nor call back into the device.
func (d *Device) Inspect(fn func(g *graph.Graph)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.graph)
}

// Read returns the current reading of an attribute.
// ok is false when the attribute has no value yet; a fault is returned as err.
func (d *Device) Read(name string) (r Reading, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, node, err := d.lookup(name)
	if err != nil {
		return Reading{}, false, err
	}
	res, err := node.Result()
	if err != nil || res == nil {
		return Reading{}, false, err
	}
	t, _ := graph.AsTriplet(res)
	value := t.Value()
	if value == nil {
		value = a.zero
	}
	return Reading{Value: value, Time: t.Time(), Quality: t.Quality()}, true, nil
}

// Write sets a writable attribute.
//
// Local attributes and literal proxies store the value directly. Remote
// proxies forward it to their RemoteWriter; the new value comes back as
// a regular event.
func (d *Device) Write(ctx context.Context, name string, value any) error {
	remote, err := d.writeLocked(name, value)
	if err != nil || remote == "" {
		return err
	}
	if err := d.writer.WriteRemote(ctx, remote, value); err != nil {
		return fmt.Errorf("writing %s to %s: %w", name, remote, err)
	}
	return nil
}

func (d *Device) writeLocked(name string, value any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, node, err := d.lookup(name)
	if err != nil {
		return "", err
	}
	if !a.writable {
		return "", fmt.Errorf("%w: %s", ErrNotWritable, name)
	}
	if remote := a.remoteTarget(); remote != "" {
		return remote, nil
	}
	t, err := d.triplet(value)
	if err != nil {
		return "", err
	}
	return "", node.SetResult(t)
}

// CombinedResults returns the outcome of every input of a combined
// attribute, in binding order.
func (d *Device) CombinedResults(name string) ([]CombinedResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, _, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	subnodes, err := d.graph.Subnodes(name)
	if err != nil {
		return nil, err
	}
	results := make([]CombinedResult, 0, len(subnodes))
	for _, sub := range subnodes {
		r := CombinedResult{Remote: a.remotes[sub.Name()], Err: sub.Exception()}
		r.Triplet, r.Valid = sub.Triplet()
		results = append(results, r)
	}
	return results, nil
}

func (d *Device) lookup(name string) (*attribute, *graph.Node, error) {
	if !d.connected {
		return nil, nil, ErrNotConnected
	}
	a, ok := d.attrs[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	node, ok := d.graph.Node(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	return a, node, nil
}

// triplet wraps a plain value as a VALID reading stamped now.
func (d *Device) triplet(v any) (graph.Triplet, error) {
	if t, ok := graph.AsTriplet(v); ok {
		return t, nil
	}
	return graph.NewTripletAt(v, d.now(), graph.Valid)
}

// ─── Events ─────────────────────────────────────────────────────────────────

func (d *Device) subscribe(remote, node string) error {
	if sub, ok := d.subscriptions[remote]; ok {
		sub.nodes = append(sub.nodes, node)
		return nil
	}
	if d.source == nil {
		return fmt.Errorf("%w: cannot subscribe to %s", ErrNoSource, remote)
	}
	sub := &subscription{remote: remote, nodes: []string{node}}
	d.subscriptions[remote] = sub
	if err := d.source.Subscribe(remote, d.eventHandler(sub)); err != nil {
		delete(d.subscriptions, remote)
		d.logger.Info("cannot subscribe to remote attribute", "device", d.name, "remote", remote, "error", err)
		return err
	}
	d.logger.Info("subscribed to remote attribute", "device", d.name, "remote", remote)
	return nil
}

func (d *Device) subscribedRemotes() []string {
	remotes := make([]string, 0, len(d.subscriptions))
	for remote := range d.subscriptions {
		remotes = append(remotes, remote)
	}
	slices.Sort(remotes)
	return remotes
}

// eventHandler serialises events behind the device lock and drops events
// of a subscription that was cancelled in the meantime.
func (d *Device) eventHandler(sub *subscription) EventHandler {
	return func(ev Event) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.subscriptions[sub.remote] != sub {
			return
		}
		for _, name := range sub.nodes {
			if node, ok := d.graph.Node(name); ok {
				d.onEvent(node, ev)
			}
		}
	}
}

func (d *Device) onEvent(node *graph.Node, ev Event) {
	if ev.Err != nil {
		d.ignoreException(ev.Err, fmt.Sprintf("Received an event from %s that contains errors", ev.Remote))
		if !slices.Contains(d.ignoredReasons, reasonOf(ev.Err)) {
			_ = node.SetException(ev.Err)
		}
		return
	}
	if ev.Reading == nil {
		d.logger.Error("received an empty event", "device", d.name, "remote", ev.Remote, "node", node.Name())
		return
	}
	d.logger.Debug("received a valid event", "device", d.name, "remote", ev.Remote, "node", node.Name())
	t, err := graph.FromReading(ev.Reading)
	if err != nil {
		_ = node.SetException(err)
		return
	}
	_ = node.SetResult(t)
}

func reasonOf(err error) string {
	var evErr *EventError
	if errors.As(err, &evErr) {
		return evErr.Reason
	}
	return ""
}

// ─── Rules & Callbacks ──────────────────────────────────────────────────────

func nodeOrigin(name string) string {
	return "node <" + name + ">"
}

func (d *Device) bindRule(node *graph.Node, r Rule) error {
	var fn graph.UpdateFunc
	if r.Func != nil {
		fn = d.standardAggregation(node.Name(), r.Func)
	} else {
		fn = d.customAggregation(node.Name(), r.Custom)
	}
	return d.graph.AddRule(node, fn, r.Bind)
}

// standardAggregation forwards input faults with context and records
// failures of fn in the exception history.
func (d *Device) standardAggregation(name string, fn graph.ValueFunc) graph.UpdateFunc {
	origin := nodeOrigin(name)
	rule := graph.StandardRule(func(values ...any) (any, error) {
		result, err := fn(values...)
		if err != nil {
			err = withContext("updating", origin, err)
			d.ignoreException(err, "")
			return nil, err
		}
		return result, nil
	})
	return func(inputs ...*graph.Node) (any, error) {
		if err := graph.FirstFault(inputs...); err != nil {
			return nil, withContext("updating", origin, err)
		}
		return rule(inputs...)
	}
}

func (d *Device) customAggregation(name string, fn graph.UpdateFunc) graph.UpdateFunc {
	origin := nodeOrigin(name)
	return graph.CustomRule(func(inputs ...*graph.Node) (any, error) {
		result, err := fn(inputs...)
		if err != nil {
			err = withContext("updating", origin, err)
			d.ignoreException(err, "")
			return nil, err
		}
		return result, nil
	})
}

// runCallback wraps a node callback so that failures are recorded in the
// exception history instead of reaching the graph.
func (d *Device) runCallback(action string, fn func(*graph.Node) error) graph.Callback {
	return func(n *graph.Node) error {
		if err := safeCall(fn, n); err != nil {
			d.ignoreException(withContext(action, nodeOrigin(n.Name()), err), "")
		}
		return nil
	}
}

func safeCall(fn func(*graph.Node) error, n *graph.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return fn(n)
}

func (d *Device) pushEvent(n *graph.Node) error {
	a, ok := d.attrs[n.Name()]
	if !ok || a.hidden {
		return nil
	}
	if err := n.Exception(); err != nil {
		d.logger.Debug("pushing an exception", "device", d.name, "attribute", a.name, "error", err)
		d.publish(Change{Attribute: a.name, Time: d.now(), Quality: graph.Invalid, Err: err})
		return nil
	}
	t, ok := n.Triplet()
	if !ok {
		return nil
	}
	value := t.Value()
	if value == nil {
		value = a.zero
	}
	d.publish(Change{Attribute: a.name, Value: value, Time: t.Time(), Quality: t.Quality()})
	return nil
}

func (d *Device) setStateFromNode(n *graph.Node) error {
	if err := n.Exception(); err != nil {
		d.registerException(err, "", false)
		return nil
	}
	t, ok := n.Triplet()
	if !ok {
		now := d.now()
		d.setState(StateUnknown, now, graph.Valid)
		d.setStatus(statusStateUnavailable, now, graph.Valid)
		return nil
	}
	value := t.Value()
	if value == nil {
		value = StateStatus{State: StateFault, Status: statusStateInvalid}
	}
	state, status, err := splitStateStatus(value)
	if err != nil {
		d.registerException(withContext("setting", "state and status", err), "", false)
		return nil
	}
	d.setState(state, t.Time(), t.Quality())
	d.setStatus(status, t.Time(), t.Quality())
	return nil
}

// ─── State & History ────────────────────────────────────────────────────────

func (d *Device) setState(s State, at time.Time, q graph.Quality) {
	d.state = s
	d.publish(Change{Attribute: AttributeState, Value: s.String(), Time: at, Quality: q})
}

func (d *Device) setStatus(status string, at time.Time, q graph.Quality) {
	d.status = status
	d.publish(Change{Attribute: AttributeStatus, Value: status, Time: at, Quality: q})
}

func (d *Device) publish(c Change) {
	c.Device = d.name
	for _, p := range d.publishers {
		if err := p.Publish(d.ctx, c); err != nil {
			d.logger.Warn("publishing change failed",
				"device", d.name,
				"attribute", c.Attribute,
				"error", err,
			)
		}
	}
}

// registerException logs err, counts it in the exception history and,
// unless ignore is set, puts the device in FAULT with err as status.
func (d *Device) registerException(err error, msg string, ignore bool) string {
	status := err.Error()
	if msg != "" {
		status = indent(msg, status)
	}
	d.logger.Error("device exception", "device", d.name, "status", status, "ignored", ignore)
	if _, seen := d.history[status]; !seen {
		d.historyOrder = append(d.historyOrder, status)
	}
	d.history[status]++
	if !ignore {
		now := d.now()
		d.setStatus(status, now, graph.Valid)
		d.setState(StateFault, now, graph.Valid)
	}
	return status
}

func (d *Device) ignoreException(err error, msg string) string {
	return d.registerException(err, msg, true)
}

// ExceptionHistory returns how many times each error was raised since
// the last Init, in order of first occurrence.
func (d *Device) ExceptionHistory() []HistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := make([]HistoryEntry, 0, len(d.historyOrder))
	for _, status := range d.historyOrder {
		entries = append(entries, HistoryEntry{Status: status, Count: d.history[status]})
	}
	return entries
}

// HistoryEntry is one distinct error of the exception history.
type HistoryEntry struct {
	Status string
	Count  int
}

// Info renders a human readable report of the connection, the
// subscriptions and the exception history.
func (d *Device) Info() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var lines []string
	if d.connected {
		lines = append(lines, "The device is currently connected.")
	} else {
		lines = append(lines, "The device is currently stopped because of:", d.status)
	}
	if len(d.subscriptions) > 0 {
		lines = append(lines, "It subscribed to event channel of the following attribute(s):")
		for _, remote := range d.subscribedRemotes() {
			lines = append(lines, "- "+remote)
		}
	} else {
		lines = append(lines, "It didn't subscribe to any event.")
	}
	lines = append(lines, strings.Repeat("-", 5))
	since := d.initStamp.Format(time.ANSIC)
	if len(d.historyOrder) == 0 {
		lines = append(lines, fmt.Sprintf("No errors in history since %s (last initialization).", since))
		return strings.Join(lines, "\n")
	}
	lines = append(lines, fmt.Sprintf("Error history since %s (last initialization):", since))
	for _, status := range d.historyOrder {
		times := "once"
		if n := d.history[status]; n != 1 {
			times = fmt.Sprintf("%d times", n)
		}
		lines = append(lines, fmt.Sprintf(" - Raised %s:", times))
		for _, line := range strings.Split(status, "\n") {
			lines = append(lines, "    "+line)
		}
	}
	return strings.Join(lines, "\n")
}
