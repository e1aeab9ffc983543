// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package abac

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/flowgate/flowgate/internal/model"
)

// referencePattern matches an operand that is a single reference of the
// form {{path}}. References embedded inside larger strings or list
// elements are not substituted.
var referencePattern = regexp.MustCompile(`^\{\{(.+)\}\}$`)

// evaluateGroup evaluates a condition group against the bags. Exactly one
// of all/any/none must be set; otherwise the group never matches. A nil
// group matches unconditionally.
func evaluateGroup(group *model.ConditionGroup, bags Bags) bool {
	if group == nil {
		return true
	}

	set := 0
	if group.All != nil {
		set++
	}
	if group.Any != nil {
		set++
	}
	if group.None != nil {
		set++
	}
	if set != 1 {
		return false
	}

	switch {
	case group.All != nil:
		for _, cond := range group.All {
			if !evaluateCondition(cond, bags) {
				return false
			}
		}
		return true
	case group.Any != nil:
		for _, cond := range group.Any {
			if evaluateCondition(cond, bags) {
				return true
			}
		}
		return false
	default:
		for _, cond := range group.None {
			if evaluateCondition(cond, bags) {
				return false
			}
		}
		return true
	}
}

// evaluateCondition evaluates a single predicate. It never panics; any
// lookup or coercion failure yields false.
func evaluateCondition(cond model.Condition, bags Bags) bool {
	actual := lookupAttribute(cond.Attribute, bags)

	expected := cond.Value
	if s, ok := expected.(string); ok {
		if m := referencePattern.FindStringSubmatch(s); m != nil {
			expected = lookupAttribute(strings.TrimSpace(m[1]), bags)
		}
	}

	return applyOperator(cond.Operator, actual, expected)
}

// lookupAttribute resolves a dotted path against the bags. The first
// segment selects the bag; "user" is accepted as an alias for "subject".
// Any missing segment yields nil.
func lookupAttribute(path string, bags Bags) any {
	parts := strings.Split(path, ".")

	var current any
	switch parts[0] {
	case "subject", "user":
		current = bags.Subject
	case "resource":
		current = bags.Resource
	case "environment":
		current = bags.Environment
	default:
		return nil
	}

	for _, part := range parts[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok || current == nil {
			return nil
		}
	}

	return current
}

// applyOperator applies a comparison operator. Unknown operators and
// failed numeric coercions evaluate to false.
func applyOperator(operator string, actual, expected any) bool {
	switch operator {
	case model.OpEq:
		return valueEqual(actual, expected)
	case model.OpNe:
		return !valueEqual(actual, expected)
	case model.OpGt:
		a, e, ok := bothNumeric(actual, expected)
		return ok && a > e
	case model.OpGte:
		a, e, ok := bothNumeric(actual, expected)
		return ok && a >= e
	case model.OpLt:
		a, e, ok := bothNumeric(actual, expected)
		return ok && a < e
	case model.OpLte:
		a, e, ok := bothNumeric(actual, expected)
		return ok && a <= e
	case model.OpIn:
		list, ok := asList(expected)
		return ok && listContains(list, actual)
	case model.OpNotIn:
		list, ok := asList(expected)
		if !ok {
			return true
		}
		return !listContains(list, actual)
	case model.OpContains:
		return strings.Contains(stringify(actual), stringify(expected))
	case model.OpStartsWith:
		return strings.HasPrefix(stringify(actual), stringify(expected))
	case model.OpEndsWith:
		return strings.HasSuffix(stringify(actual), stringify(expected))
	case model.OpBetween:
		list, ok := asList(expected)
		if !ok || len(list) != 2 {
			return false
		}
		a, aok := toFloat(actual)
		lo, lok := toFloat(list[0])
		hi, hok := toFloat(list[1])
		return aok && lok && hok && lo <= a && a <= hi
	case model.OpIsNull:
		return actual == nil
	case model.OpIsNotNull:
		return actual != nil
	default:
		return false
	}
}

// valueEqual compares two values, treating numbers of different Go types
// as equal when numerically equal. Strings never compare equal to
// numbers.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func listContains(list []any, value any) bool {
	for _, item := range list {
		if valueEqual(item, value) {
			return true
		}
	}
	return false
}

// asList normalizes an operand to []any. Typed slices (from condition
// documents built in code rather than decoded from JSON) are flattened
// via reflection.
func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}
