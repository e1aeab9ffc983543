// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

// Package abac implements the attribute-based access control decision
// engine: attribute resolution, condition evaluation, policy matching,
// priority arbitration with deny-overrides, and audit persistence.
package abac

import "errors"

// Sentinel errors returned by the policy management and decision
// operations.
var (
	ErrPolicyNotFound      = errors.New("policy not found")
	ErrPolicyNameConflict  = errors.New("policy with this name already exists")
	ErrInvalidPolicy       = errors.New("invalid policy")
	ErrProfileNotFound     = errors.New("subject profile not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrAuditWriteFailed    = errors.New("failed to write audit record")
	ErrSubjectRequired     = errors.New("subject is required")
	ErrInvalidAuditFilter  = errors.New("invalid audit log filter")
	ErrInvalidPolicyFilter = errors.New("invalid policy filter")
)

// Bags holds the three attribute bags a condition can reference. Missing
// attributes are absent keys, never zero values, so is_null checks can
// tell the difference.
type Bags struct {
	Subject     map[string]any
	Resource    map[string]any
	Environment map[string]any
}

// RequestContext carries transport-level request metadata into the
// environment bag and the audit record.
type RequestContext struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// Decision is the outcome of an access check. A deny is a normal return
// value, not an error.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason"`
	PolicyID   *uint  `json:"policy_id,omitempty"`
	PolicyName string `json:"policy_name,omitempty"`
}

// defaultReason is the reason recorded when no policy matches.
const defaultReason = "No matching policy found"
