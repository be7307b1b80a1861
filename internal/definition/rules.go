package definition

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// Args holds the arguments of a rule, as written in the definition.
type Args map[string]any

// Float returns a numeric argument, or def when it is absent.
func (a Args) Float(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidArgs, key, err)
	}
	return f, nil
}

// String returns a string argument, or def when it is absent.
func (a Args) String(key, def string) (string, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgs, key, v)
	}
	return s, nil
}

// Strings returns a table argument with string values.
func (a Args) Strings(key string) (map[string]string, error) {
	v, ok := a[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidArgs, key)
	}
	table, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a table, got %T", ErrInvalidArgs, key, v)
	}
	out := make(map[string]string, len(table))
	for k, item := range table {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s must be a string, got %T", ErrInvalidArgs, key, k, item)
		}
		out[k] = s
	}
	return out, nil
}

// Factory builds a rule function from its arguments.
type Factory func(args Args) (graph.ValueFunc, error)

// Registry maps rule names used in definitions to rule factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in rules:
//
//	sum, mean, min, max, product   numeric reductions
//	all, any, not                  boolean logic
//	first                          the first input unchanged
//	scale                          factor * x + offset on a single input
//	state                          maps an input value to a device state
//	threshold                      picks a state by comparing to a limit
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for name, f := range builtins {
		r.factories[name] = f
	}
	return r
}

// Register adds a rule factory.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, name)
	}
	r.factories[name] = f
	return nil
}

// Names returns the sorted rule names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Rule builds the named rule.
func (r *Registry) Rule(name string, args Args) (graph.ValueFunc, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
	fn, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", name, err)
	}
	return fn, nil
}

var builtins = map[string]Factory{
	"sum":       reduce(0, func(acc, x float64) float64 { return acc + x }),
	"product":   reduce(1, func(acc, x float64) float64 { return acc * x }),
	"min":       reduce(math.Inf(1), math.Min),
	"max":       reduce(math.Inf(-1), math.Max),
	"mean":      noArgs(mean),
	"all":       noArgs(all),
	"any":       noArgs(anyOf),
	"not":       noArgs(not),
	"first":     noArgs(first),
	"scale":     scale,
	"state":     stateMap,
	"threshold": threshold,
}

func noArgs(fn graph.ValueFunc) Factory {
	return func(Args) (graph.ValueFunc, error) { return fn, nil }
}

func reduce(start float64, op func(acc, x float64) float64) Factory {
	return noArgs(func(values ...any) (any, error) {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: need at least one", ErrInputCount)
		}
		acc := start
		for _, v := range values {
			x, err := toFloat(v)
			if err != nil {
				return nil, err
			}
			acc = op(acc, x)
		}
		return acc, nil
	})
}

func mean(values ...any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: need at least one", ErrInputCount)
	}
	total := 0.0
	for _, v := range values {
		x, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		total += x
	}
	return total / float64(len(values)), nil
}

func all(values ...any) (any, error) {
	for _, v := range values {
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

func anyOf(values ...any) (any, error) {
	for _, v := range values {
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return true, nil
		}
	}
	return false, nil
}

func not(values ...any) (any, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: not takes one input, got %d", ErrInputCount, len(values))
	}
	b, err := toBool(values[0])
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func first(values ...any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: need at least one", ErrInputCount)
	}
	return values[0], nil
}

// scale computes factor * x + offset.
func scale(args Args) (graph.ValueFunc, error) {
	factor, err := args.Float("factor", 1)
	if err != nil {
		return nil, err
	}
	offset, err := args.Float("offset", 0)
	if err != nil {
		return nil, err
	}
	return func(values ...any) (any, error) {
		if len(values) != 1 {
			return nil, fmt.Errorf("%w: scale takes one input, got %d", ErrInputCount, len(values))
		}
		x, err := toFloat(values[0])
		if err != nil {
			return nil, err
		}
		return factor*x + offset, nil
	}, nil
}

// stateMap maps the printed input value to a state name.
//
//	rule: state
//	args:
//	  map: {"true": "ON", "false": "OFF"}
//	  default: UNKNOWN
func stateMap(args Args) (graph.ValueFunc, error) {
	table, err := args.Strings("map")
	if err != nil {
		return nil, err
	}
	states := make(map[string]facade.State, len(table))
	for k, name := range table {
		s, err := facade.ParseState(name)
		if err != nil {
			return nil, fmt.Errorf("%w: map.%s: %w", ErrInvalidArgs, k, err)
		}
		states[k] = s
	}
	fallback, err := optionalState(args, "default")
	if err != nil {
		return nil, err
	}
	return func(values ...any) (any, error) {
		if len(values) != 1 {
			return nil, fmt.Errorf("%w: state takes one input, got %d", ErrInputCount, len(values))
		}
		key := fmt.Sprint(values[0])
		if s, ok := states[key]; ok {
			return s, nil
		}
		if fallback != nil {
			return facade.StateStatus{State: *fallback, Status: "Unexpected value " + key}, nil
		}
		return nil, fmt.Errorf("%w: no state for value %s", facade.ErrInvalidState, key)
	}, nil
}

// threshold returns the "above" state when the input exceeds "limit" and
// the "below" state otherwise.
func threshold(args Args) (graph.ValueFunc, error) {
	if _, ok := args["limit"]; !ok {
		return nil, fmt.Errorf("%w: limit is required", ErrInvalidArgs)
	}
	limit, err := args.Float("limit", 0)
	if err != nil {
		return nil, err
	}
	above, err := requiredState(args, "above", facade.StateAlarm)
	if err != nil {
		return nil, err
	}
	below, err := requiredState(args, "below", facade.StateOn)
	if err != nil {
		return nil, err
	}
	return func(values ...any) (any, error) {
		if len(values) != 1 {
			return nil, fmt.Errorf("%w: threshold takes one input, got %d", ErrInputCount, len(values))
		}
		x, err := toFloat(values[0])
		if err != nil {
			return nil, err
		}
		if x > limit {
			return facade.StateStatus{State: above, Status: fmt.Sprintf("Value %g above %g", x, limit)}, nil
		}
		return below, nil
	}, nil
}

func optionalState(args Args, key string) (*facade.State, error) {
	name, err := args.String(key, "")
	if err != nil || name == "" {
		return nil, err
	}
	s, err := facade.ParseState(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArgs, key, err)
	}
	return &s, nil
}

func requiredState(args Args, key string, def facade.State) (facade.State, error) {
	s, err := optionalState(args, key)
	if err != nil {
		return 0, err
	}
	if s == nil {
		return def, nil
	}
	return *s, nil
}

// toFloat accepts the numeric types produced by the YAML, TOML and JSON
// decoders.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %v (%T)", ErrNotNumeric, v, v)
}

func toBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return false, err
	}
	return f != 0, nil
}
