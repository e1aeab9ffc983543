// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

// Package model defines the persisted schema for the policy decision
// engine and the visual workflow compiler. JSON-typed columns use gorm's
// json serializer so the stored shape matches the wire shape.
package model

import "time"

// PolicyEffect defines the effect of a policy: allow or deny.
type PolicyEffect string

const (
	PolicyEffectAllow PolicyEffect = "allow"
	PolicyEffectDeny  PolicyEffect = "deny"
)

// Condition operators. Unknown operators evaluate to false.
const (
	OpEq         = "eq"
	OpNe         = "ne"
	OpGt         = "gt"
	OpGte        = "gte"
	OpLt         = "lt"
	OpLte        = "lte"
	OpIn         = "in"
	OpNotIn      = "not_in"
	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpEndsWith   = "ends_with"
	OpBetween    = "between"
	OpIsNull     = "is_null"
	OpIsNotNull  = "is_not_null"
)

// Condition is a single typed predicate. Attribute is a dotted path whose
// first segment selects a bag (subject|user, resource, environment). Value
// is a literal, a list, or a "{{path}}" reference resolved at evaluation
// time against the same bags.
type Condition struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value,omitempty"`
}

// ConditionGroup wraps a condition list in exactly one of the three group
// modes: all (conjunction), any (disjunction), none (negated disjunction).
// A group with zero or more than one mode set never matches.
type ConditionGroup struct {
	All  []Condition `json:"all,omitempty"`
	Any  []Condition `json:"any,omitempty"`
	None []Condition `json:"none,omitempty"`
}

// Policy is an attribute-based access control policy. Higher priority
// policies are evaluated first. Action and ResourceType accept the literal
// wildcard "*"; wildcards never appear inside conditions.
type Policy struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Effect   PolicyEffect `gorm:"not null;default:allow" json:"effect"`
	Priority int          `gorm:"default:0" json:"priority"`

	Action       string `gorm:"not null;index" json:"action"`
	ResourceType string `gorm:"not null;index" json:"resource_type"`

	Conditions *ConditionGroup `gorm:"serializer:json" json:"conditions,omitempty"`

	// Scope limitations; nil means unscoped.
	DepartmentIDs    []int64  `gorm:"serializer:json" json:"department_ids,omitempty"`
	DivisionIDs      []int64  `gorm:"serializer:json" json:"division_ids,omitempty"`
	RoleRequirements []string `gorm:"serializer:json" json:"role_requirements,omitempty"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResourceAttribute stores a dynamic attribute for a resource instance,
// keyed by (resource_type, resource_id, attribute_name). The value is kept
// as text with a type tag and parsed at resolution time.
type ResourceAttribute struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ResourceType string `gorm:"not null;index:idx_resource_attr" json:"resource_type"`
	ResourceID   int64  `gorm:"not null;index:idx_resource_attr" json:"resource_id"`

	AttributeName  string `gorm:"not null;index" json:"attribute_name"`
	AttributeValue string `gorm:"type:text" json:"attribute_value"`
	// AttributeType is one of: string, number, boolean, json.
	AttributeType string `gorm:"not null" json:"attribute_type"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccessLog is the append-only audit trail for access decisions.
type AccessLog struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	SubjectID    uint   `gorm:"not null;index" json:"subject_id"`
	Action       string `gorm:"not null;index" json:"action"`
	ResourceType string `gorm:"not null;index" json:"resource_type"`
	ResourceID   *int64 `gorm:"index" json:"resource_id,omitempty"`

	// Decision is "allow" or "deny".
	Decision string `gorm:"not null" json:"decision"`
	PolicyID *uint  `json:"policy_id,omitempty"`

	// Attribute bags as captured at evaluation time.
	SubjectAttributes     map[string]any `gorm:"serializer:json" json:"subject_attributes,omitempty"`
	ResourceAttributes    map[string]any `gorm:"serializer:json" json:"resource_attributes,omitempty"`
	EnvironmentAttributes map[string]any `gorm:"serializer:json" json:"environment_attributes,omitempty"`

	EvaluatedPolicies []uint `gorm:"serializer:json" json:"evaluated_policies,omitempty"`
	EvaluationTimeMS  int64  `json:"evaluation_time_ms"`
	Reason            string `gorm:"type:text" json:"reason"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Subject is an authenticated principal. Roles is the set-valued role
// relationship; Role is the legacy single role field. The effective role
// set is the union, preferring Roles when non-empty.
type Subject struct {
	ID          uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email       string   `gorm:"uniqueIndex" json:"email"`
	Username    string   `gorm:"uniqueIndex" json:"username"`
	Role        string   `json:"role"`
	Roles       []string `gorm:"serializer:json" json:"roles,omitempty"`
	IsActive    bool     `gorm:"default:true" json:"is_active"`
	IsSuperuser bool     `gorm:"default:false" json:"is_superuser"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveRoles returns the subject's role set, falling back to the
// single role field when the set is empty.
func (s *Subject) EffectiveRoles() []string {
	if len(s.Roles) > 0 {
		return s.Roles
	}
	if s.Role != "" {
		return []string{s.Role}
	}
	return nil
}

// SubjectProfile carries the extended organizational attributes of a
// subject. Absent fields stay nil so is_null checks can distinguish
// missing from zero.
type SubjectProfile struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"id"`
	SubjectID uint `gorm:"uniqueIndex;not null" json:"subject_id"`

	DepartmentID *int64 `gorm:"index" json:"department_id,omitempty"`
	DivisionID   *int64 `gorm:"index" json:"division_id,omitempty"`
	TeamID       *int64 `gorm:"index" json:"team_id,omitempty"`

	JobTitle   *string `json:"job_title,omitempty"`
	JobLevel   *int    `json:"job_level,omitempty"`
	CostCenter *string `json:"cost_center,omitempty"`

	ApprovalLimitAmount      *int64 `json:"approval_limit_amount,omitempty"`
	CanApproveOwnDepartment  bool   `gorm:"default:false" json:"can_approve_own_department"`
	CanApproveAllDepartments bool   `gorm:"default:false" json:"can_approve_all_departments"`

	CustomAttributes map[string]any `gorm:"serializer:json" json:"custom_attributes,omitempty"`

	OfficeLocation *string `json:"office_location,omitempty"`
	CountryCode    *string `json:"country_code,omitempty"`
	Timezone       *string `json:"timezone,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
