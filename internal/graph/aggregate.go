package graph

import (
	"fmt"
	"time"
)

// Aggregate returns the most severe of the given qualities.
//
// The result does not depend on argument order. With no input it returns Valid.
func Aggregate(qualities ...Quality) Quality {
	if len(qualities) == 0 {
		return Valid
	}
	worst := qualities[0]
	for _, q := range qualities[1:] {
		if q.WorseThan(worst) {
			worst = q
		}
	}
	return worst
}

// ValueFunc computes a derived value from the plain values of its inputs.
type ValueFunc func(values ...any) (any, error)

// StandardRule wraps fn with the standard aggregation convention:
//
//  1. the first input holding a fault is forwarded as the rule's fault
//  2. if any input has no result yet, the rule yields no result
//  3. if any input is INVALID, the rule yields an INVALID triplet stamped
//     with the latest input stamp, without calling fn
//  4. otherwise fn runs on the input values; a Triplet returned by fn is
//     used as is, any other value is stamped with the latest input stamp
//     and the aggregated input quality
func StandardRule(fn ValueFunc) UpdateFunc {
	return func(inputs ...*Node) (any, error) {
		triplets := make([]Triplet, 0, len(inputs))
		empty := false
		for _, n := range inputs {
			res, err := n.Result()
			if err != nil {
				return nil, err
			}
			if res == nil {
				empty = true
				continue
			}
			t, ok := AsTriplet(res)
			if !ok {
				return nil, fmt.Errorf("%w: input %s holds %T", ErrNotTriplet, n.Name(), res)
			}
			triplets = append(triplets, t)
		}
		if empty {
			return nil, nil
		}

		stamp := 0.0
		if len(triplets) > 0 {
			stamp = triplets[0].Stamp()
		}
		values := make([]any, len(triplets))
		qualities := make([]Quality, len(triplets))
		invalid := false
		for i, t := range triplets {
			if t.Stamp() > stamp {
				stamp = t.Stamp()
			}
			values[i] = t.Value()
			qualities[i] = t.Quality()
			if t.Quality() == Invalid {
				invalid = true
			}
		}
		if invalid {
			return InvalidAt(stamp), nil
		}

		result, err := fn(values...)
		if err != nil {
			return nil, err
		}
		if t, ok := AsTriplet(result); ok {
			return t, nil
		}
		return NewTriplet(result, stamp, Aggregate(qualities...))
	}
}

// CustomRule wraps fn so that a plain value it returns becomes a VALID
// triplet stamped with the current time. A nil result becomes an INVALID
// triplet and a Triplet result is kept as is.
func CustomRule(fn UpdateFunc) UpdateFunc {
	return func(inputs ...*Node) (any, error) {
		result, err := fn(inputs...)
		if err != nil {
			return nil, err
		}
		if t, ok := AsTriplet(result); ok {
			return t, nil
		}
		return NewTriplet(result, unixSeconds(time.Now()), Valid)
	}
}

// FirstFault returns the first fault held by the given nodes, or nil.
func FirstFault(nodes ...*Node) error {
	for _, n := range nodes {
		if err := n.Exception(); err != nil {
			return err
		}
	}
	return nil
}
