package repository

import (
	"strings"
	"time"

	"natours/api/internal/query"
	"natours/api/internal/resource"
)

// matches evaluates f against rec with document-store semantics: a list
// field satisfies a condition when any element does, and a missing field
// only satisfies ne.
func matches(rec resource.Record, f query.Filter) bool {
	for _, c := range f {
		if !matchCondition(rec, c) {
			return false
		}
	}
	return true
}

func matchCondition(rec resource.Record, c query.Condition) bool {
	stored, present := rec[c.Field]
	switch c.Op {
	case query.Eq:
		return present && equalsAny(stored, c.Value)
	case query.Ne:
		return !present || !equalsAny(stored, c.Value)
	case query.Gt, query.Gte, query.Lt, query.Lte:
		if !present {
			return false
		}
		for _, v := range elements(stored) {
			cmp, ok := compare(v, c.Value)
			if ok && satisfies(c.Op, cmp) {
				return true
			}
		}
	}
	return false
}

func equalsAny(stored, operand any) bool {
	candidates, isList := operand.([]any)
	if !isList {
		candidates = []any{operand}
	}
	for _, v := range elements(stored) {
		for _, want := range candidates {
			if cmp, ok := compare(v, want); ok && cmp == 0 {
				return true
			}
		}
	}
	return false
}

func satisfies(op query.Operator, cmp int) bool {
	switch op {
	case query.Gt:
		return cmp > 0
	case query.Gte:
		return cmp >= 0
	case query.Lt:
		return cmp < 0
	case query.Lte:
		return cmp <= 0
	}
	return false
}

// elements flattens list values so conditions apply per element.
func elements(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	case []time.Time:
		out := make([]any, len(list))
		for i, t := range list {
			out[i] = t
		}
		return out
	}
	return []any{v}
}

// compare orders two scalars of the same kind. ok is false when the kinds
// differ or the values are not ordered.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}
	if af, ok := number(a); ok {
		bf, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case bv:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// sortValue compares two records on one sort key; missing values sort
// before present ones.
func sortValue(a, b resource.Record, field string) int {
	av, aok := a[field]
	bv, bok := b[field]
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	cmp, _ := compare(first(av), first(bv))
	return cmp
}

func first(v any) any {
	if els := elements(v); len(els) > 0 {
		return els[0]
	}
	return nil
}
