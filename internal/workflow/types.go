// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow implements visual workflow authoring: graph
// validation, stage compilation, version snapshots, and visibility
// enforcement.
package workflow

import (
	"errors"
	"strings"
)

// Sentinel errors returned by the workflow operations.
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNameConflict     = errors.New("workflow with this name already exists")
	ErrForbidden        = errors.New("no permission for this workflow")
	ErrVersionNotFound  = errors.New("workflow version not found")
)

// ValidationError reports structural problems in a graph or a
// completeness check. Diagnostics are ordered and human-readable.
type ValidationError struct {
	Diagnostics []string
}

func (e *ValidationError) Error() string {
	return "invalid workflow: " + strings.Join(e.Diagnostics, "; ")
}

// ListFilter narrows a workflow listing.
type ListFilter struct {
	Status       string
	DepartmentID *int64
}
