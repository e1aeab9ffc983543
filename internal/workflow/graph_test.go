// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"errors"
	"strings"
	"testing"
)

func simpleGraph() map[string]any {
	return map[string]any{
		"name": "Test Flow",
		"nodes": []any{
			map[string]any{"id": "start-1", "type": "start", "data": map[string]any{"label": "Start"}},
			map[string]any{"id": "approval-1", "type": "approval", "data": map[string]any{
				"label": "HR Review", "required_role": "hr",
			}},
			map[string]any{"id": "end-1", "type": "end", "data": map[string]any{"label": "Done"}},
		},
		"edges": []any{
			map[string]any{"id": "e1", "source": "start-1", "target": "approval-1"},
			map[string]any{"id": "e2", "source": "approval-1", "target": "end-1"},
		},
	}
}

func requireValidationError(t *testing.T, err error, fragment string) {
	t.Helper()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, d := range validationErr.Diagnostics {
		if strings.Contains(d, fragment) {
			return
		}
	}
	t.Errorf("diagnostics %v missing %q", validationErr.Diagnostics, fragment)
}

func TestValidateGraphAccepts(t *testing.T) {
	doc, err := validateGraph(simpleGraph())
	if err != nil {
		t.Fatalf("validateGraph failed: %v", err)
	}
	if len(doc.Nodes) != 3 || len(doc.Edges) != 2 {
		t.Errorf("decoded %d nodes, %d edges", len(doc.Nodes), len(doc.Edges))
	}
}

func TestValidateGraphMissingKeys(t *testing.T) {
	_, err := validateGraph(map[string]any{"nodes": []any{}})
	requireValidationError(t, err, "must contain 'edges'")

	_, err = validateGraph(map[string]any{"edges": []any{}})
	requireValidationError(t, err, "must contain 'nodes'")
}

func TestValidateGraphEmptyNodes(t *testing.T) {
	_, err := validateGraph(map[string]any{"nodes": []any{}, "edges": []any{}})
	requireValidationError(t, err, "at least one node")
}

func TestValidateGraphMissingStart(t *testing.T) {
	graph := simpleGraph()
	graph["nodes"] = []any{
		map[string]any{"id": "approval-1", "type": "approval", "data": map[string]any{}},
	}
	graph["edges"] = []any{}
	_, err := validateGraph(graph)
	requireValidationError(t, err, "start node")
}

func TestValidateGraphDuplicateNodeIDs(t *testing.T) {
	graph := simpleGraph()
	graph["nodes"] = []any{
		map[string]any{"id": "n1", "type": "start", "data": map[string]any{}},
		map[string]any{"id": "n1", "type": "end", "data": map[string]any{}},
	}
	graph["edges"] = []any{}
	_, err := validateGraph(graph)
	requireValidationError(t, err, `duplicate node id "n1"`)
}

func TestValidateGraphDanglingEdge(t *testing.T) {
	graph := simpleGraph()
	graph["edges"] = []any{
		map[string]any{"id": "e1", "source": "start-1", "target": "ghost"},
	}
	_, err := validateGraph(graph)
	requireValidationError(t, err, `unknown target "ghost"`)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{float64(0), false},
		{float64(1), true},
		{"", false},
		{"yes", true},
		{map[string]any{}, true},
	}
	for _, tt := range tests {
		if got := truthy(tt.in); got != tt.want {
			t.Errorf("truthy(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
