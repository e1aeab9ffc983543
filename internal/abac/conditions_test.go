// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package abac

import (
	"testing"

	"github.com/flowgate/flowgate/internal/model"
)

func testBags() Bags {
	return Bags{
		Subject: map[string]any{
			"id":            int64(5),
			"role":          "manager",
			"department_id": int64(3),
			"nested":        map[string]any{"inner": "value"},
		},
		Resource: map[string]any{
			"type":       "Invoice",
			"id":         int64(7),
			"amount":     float64(25000),
			"status":     "pending",
			"created_by": float64(5),
			"tags":       []any{"urgent", "q3"},
		},
		Environment: map[string]any{
			"current_hour":        14,
			"current_day_of_week": "Tuesday",
		},
	}
}

func TestApplyOperator(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		actual   any
		expected any
		want     bool
	}{
		{"eq strings", model.OpEq, "pending", "pending", true},
		{"eq mixed numeric types", model.OpEq, int64(3), float64(3), true},
		{"eq string vs number", model.OpEq, "5", float64(5), false},
		{"ne", model.OpNe, "pending", "approved", true},
		{"gt", model.OpGt, float64(25000), 10000, true},
		{"gt equal", model.OpGt, 10, 10, false},
		{"gte equal", model.OpGte, 10, 10, true},
		{"lt", model.OpLt, 5, 10, true},
		{"lte", model.OpLte, 10, 10, true},
		{"gt non-numeric actual", model.OpGt, "abc", 10, false},
		{"gt numeric string coerces", model.OpGt, "15", 10, true},
		{"in", model.OpIn, "pending", []any{"pending", "approved"}, true},
		{"in absent", model.OpIn, "draft", []any{"pending", "approved"}, false},
		{"in non-list expected", model.OpIn, "pending", "pending", false},
		{"not_in", model.OpNotIn, "draft", []any{"pending"}, true},
		{"not_in non-list expected", model.OpNotIn, "pending", "pending", true},
		{"contains", model.OpContains, "hello world", "lo wo", true},
		{"starts_with", model.OpStartsWith, "flowgate", "flow", true},
		{"ends_with", model.OpEndsWith, "flowgate", "gate", true},
		{"between inside", model.OpBetween, float64(25000), []any{float64(5000), float64(50000)}, true},
		{"between boundary", model.OpBetween, float64(5000), []any{float64(5000), float64(50000)}, true},
		{"between below", model.OpBetween, float64(4999), []any{float64(5000), float64(50000)}, false},
		{"between wrong arity", model.OpBetween, 10, []any{float64(5)}, false},
		{"is_null on nil", model.OpIsNull, nil, nil, true},
		{"is_null on value", model.OpIsNull, "x", nil, false},
		{"is_not_null", model.OpIsNotNull, "x", nil, true},
		{"unknown operator", "matches", "a", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyOperator(tt.operator, tt.actual, tt.expected); got != tt.want {
				t.Errorf("applyOperator(%q, %v, %v) = %v, want %v",
					tt.operator, tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

func TestLookupAttribute(t *testing.T) {
	bags := testBags()

	tests := []struct {
		path string
		want any
	}{
		{"subject.role", "manager"},
		{"user.role", "manager"},
		{"resource.status", "pending"},
		{"environment.current_hour", 14},
		{"subject.nested.inner", "value"},
		{"subject.missing", nil},
		{"resource.status.deeper", nil},
		{"unknownbag.key", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := lookupAttribute(tt.path, bags); got != tt.want {
				t.Errorf("lookupAttribute(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionReference(t *testing.T) {
	bags := testBags()

	// Whole-operand reference resolves against the bags.
	matched := evaluateCondition(model.Condition{
		Attribute: "user.id",
		Operator:  model.OpEq,
		Value:     "{{resource.created_by}}",
	}, bags)
	if !matched {
		t.Error("expected reference substitution to match user.id against resource.created_by")
	}

	// A reference embedded in a longer string stays literal.
	matched = evaluateCondition(model.Condition{
		Attribute: "resource.status",
		Operator:  model.OpEq,
		Value:     "status is {{resource.status}}",
	}, bags)
	if matched {
		t.Error("expected embedded reference to stay literal and not match")
	}
}

func TestEvaluateGroup(t *testing.T) {
	bags := testBags()
	matchPending := model.Condition{Attribute: "resource.status", Operator: model.OpEq, Value: "pending"}
	matchNothing := model.Condition{Attribute: "resource.status", Operator: model.OpEq, Value: "archived"}

	tests := []struct {
		name  string
		group *model.ConditionGroup
		want  bool
	}{
		{"nil group matches", nil, true},
		{"all matching", &model.ConditionGroup{All: []model.Condition{matchPending}}, true},
		{"all with failure", &model.ConditionGroup{All: []model.Condition{matchPending, matchNothing}}, false},
		{"empty all is true", &model.ConditionGroup{All: []model.Condition{}}, true},
		{"any with one match", &model.ConditionGroup{Any: []model.Condition{matchNothing, matchPending}}, true},
		{"empty any is false", &model.ConditionGroup{Any: []model.Condition{}}, false},
		{"none without match", &model.ConditionGroup{None: []model.Condition{matchNothing}}, true},
		{"none with match", &model.ConditionGroup{None: []model.Condition{matchPending}}, false},
		{"no group key set", &model.ConditionGroup{}, false},
		{"two group keys set", &model.ConditionGroup{
			All: []model.Condition{matchPending},
			Any: []model.Condition{matchPending},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluateGroup(tt.group, bags); got != tt.want {
				t.Errorf("evaluateGroup = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMissingAttributeIsNotEqual(t *testing.T) {
	bags := Bags{Subject: map[string]any{"id": int64(1)}, Resource: map[string]any{}, Environment: map[string]any{}}

	matched := evaluateCondition(model.Condition{
		Attribute: "user.department_id",
		Operator:  model.OpEq,
		Value:     float64(3),
	}, bags)
	if matched {
		t.Error("missing attribute must not compare equal to a literal")
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{float64(7), "7"},
		{float64(7.5), "7.5"},
		{int64(12), "12"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := stringify(tt.in); got != tt.want {
			t.Errorf("stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
