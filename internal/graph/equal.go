package graph

import (
	"math"
	"reflect"
)

// valuesEqual compares two reading values without panicking.
// Numbers compare across kinds, slices and arrays compare element by element.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			return ai == bi
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if isSequence(av) && isSequence(bv) {
		if av.Len() != bv.Len() {
			return false
		}
		for i := range av.Len() {
			if !valuesEqual(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	if av.Type() == bv.Type() && av.Type().Comparable() {
		return safeCompare(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// safeCompare uses == and treats a runtime panic (an interface field holding
// an uncomparable value) as inequality.
func safeCompare(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}

func isSequence(v reflect.Value) bool {
	k := v.Kind()
	return k == reflect.Slice || k == reflect.Array
}

func toInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
