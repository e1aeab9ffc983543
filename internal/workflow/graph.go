// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"encoding/json"
	"fmt"
)

// graphDoc is the typed view of an authored graph document. The stored
// form stays an opaque map so unrecognized authoring keys (name,
// description, viewport state) survive round trips; the compiler and
// validator decode into this shape on demand.
type graphDoc struct {
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
}

type graphNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position *nodePosition  `json:"position"`
	Data     map[string]any `json:"data"`
}

type nodePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type graphEdge struct {
	ID     string         `json:"id"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	Data   map[string]any `json:"data"`
}

// decodeGraph converts an opaque graph map to its typed view via a JSON
// round trip, which also normalizes numeric types.
func decodeGraph(graph map[string]any) (*graphDoc, error) {
	raw, err := json.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	var doc graphDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return &doc, nil
}

// validateGraph checks the structural rules for an authored graph:
// nodes and edges keys present, at least one node, at least one start
// node, unique node ids, and every edge endpoint resolving to a node.
// All diagnostics are collected before failing.
func validateGraph(graph map[string]any) (*graphDoc, error) {
	var diagnostics []string

	if _, ok := graph["nodes"]; !ok {
		diagnostics = append(diagnostics, "graph must contain 'nodes'")
	}
	if _, ok := graph["edges"]; !ok {
		diagnostics = append(diagnostics, "graph must contain 'edges'")
	}
	if len(diagnostics) > 0 {
		return nil, &ValidationError{Diagnostics: diagnostics}
	}

	doc, err := decodeGraph(graph)
	if err != nil {
		return nil, &ValidationError{Diagnostics: []string{err.Error()}}
	}

	if len(doc.Nodes) == 0 {
		diagnostics = append(diagnostics, "workflow must have at least one node")
	}

	seen := make(map[string]bool, len(doc.Nodes))
	hasStart := false
	for _, node := range doc.Nodes {
		if node.ID == "" {
			diagnostics = append(diagnostics, "node with empty id")
			continue
		}
		if seen[node.ID] {
			diagnostics = append(diagnostics, fmt.Sprintf("duplicate node id %q", node.ID))
		}
		seen[node.ID] = true
		if node.Type == "start" {
			hasStart = true
		}
	}
	if len(doc.Nodes) > 0 && !hasStart {
		diagnostics = append(diagnostics, "workflow must have a start node")
	}

	for _, edge := range doc.Edges {
		if !seen[edge.Source] {
			diagnostics = append(diagnostics, fmt.Sprintf("edge %q references unknown source %q", edge.ID, edge.Source))
		}
		if !seen[edge.Target] {
			diagnostics = append(diagnostics, fmt.Sprintf("edge %q references unknown target %q", edge.ID, edge.Target))
		}
	}

	if len(diagnostics) > 0 {
		return nil, &ValidationError{Diagnostics: diagnostics}
	}
	return doc, nil
}
