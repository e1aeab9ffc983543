// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// WorkflowStatus is the lifecycle state of a workflow definition. Only
// draft, active and archived apply to definitions; the remaining states
// belong to runtime instances, which live outside this module.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusArchived WorkflowStatus = "archived"
)

// NodeType classifies a compiled workflow stage.
type NodeType string

const (
	NodeTypeStart        NodeType = "start"
	NodeTypeApproval     NodeType = "approval"
	NodeTypeCondition    NodeType = "condition"
	NodeTypeParallel     NodeType = "parallel"
	NodeTypeEnd          NodeType = "end"
	NodeTypeNotification NodeType = "notification"
	NodeTypeAction       NodeType = "action"
)

// ParseNodeType maps a graph node's type string to a NodeType, defaulting
// to approval on unknown values.
func ParseNodeType(s string) NodeType {
	switch NodeType(s) {
	case NodeTypeStart, NodeTypeApproval, NodeTypeCondition, NodeTypeParallel,
		NodeTypeEnd, NodeTypeNotification, NodeTypeAction:
		return NodeType(s)
	default:
		return NodeTypeApproval
	}
}

// ApprovalType controls how an approval stage collects decisions.
type ApprovalType string

const (
	ApprovalSequential       ApprovalType = "sequential"
	ApprovalParallelAll      ApprovalType = "parallel_all"
	ApprovalParallelAny      ApprovalType = "parallel_any"
	ApprovalParallelMajority ApprovalType = "parallel_majority"
)

// WorkflowDefinition is a visual workflow template. Graph holds the
// authored node/edge document verbatim; stages and routes are derived from
// it on every save and carry no authored state of their own.
type WorkflowDefinition struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	ModelName   string `gorm:"not null" json:"model_name"`

	Graph map[string]any `gorm:"serializer:json" json:"workflow_graph,omitempty"`

	Version    int            `gorm:"default:1" json:"version"`
	Status     WorkflowStatus `gorm:"default:draft" json:"status"`
	IsTemplate bool           `gorm:"default:false" json:"is_template"`

	CreatedBy    uint   `json:"created_by"`
	DepartmentID *int64 `json:"department_id,omitempty"`
	DivisionID   *int64 `json:"division_id,omitempty"`

	CanViewRoles []string `gorm:"serializer:json" json:"can_view_roles,omitempty"`
	CanEditRoles []string `gorm:"serializer:json" json:"can_edit_roles,omitempty"`
	CanUseRoles  []string `gorm:"serializer:json" json:"can_use_roles,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// WorkflowVersion is an immutable snapshot of a definition's graph taken
// before an edit. VersionNumber is the definition's version at snapshot
// time, i.e. the pre-edit version.
type WorkflowVersion struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkflowID        uint           `gorm:"not null;index" json:"workflow_id"`
	VersionNumber     int            `gorm:"not null" json:"version_number"`
	Graph             map[string]any `gorm:"serializer:json" json:"workflow_graph"`
	ChangeDescription string         `gorm:"type:text" json:"change_description,omitempty"`
	CreatedBy         uint           `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
}

// WorkflowStage is a compiled artifact generated from a graph node. Stage
// ids are not stable across saves: every save destroys and rebuilds the
// stage set from the graph.
type WorkflowStage struct {
	ID         uint `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkflowID uint `gorm:"not null;index" json:"workflow_id"`

	NodeID   string   `gorm:"not null" json:"node_id"`
	NodeType NodeType `gorm:"not null" json:"node_type"`

	Name       string `gorm:"not null" json:"name"`
	OrderIndex int    `gorm:"not null" json:"order_index"`

	// Approval configuration.
	RequiredRole           *string      `json:"required_role,omitempty"`
	RequiredRoles          []string     `gorm:"serializer:json" json:"required_roles,omitempty"`
	SpecificUsers          []int64      `gorm:"serializer:json" json:"specific_users,omitempty"`
	ApprovalType           ApprovalType `gorm:"default:sequential" json:"approval_type"`
	RequiredApprovalsCount *int         `json:"required_approvals_count,omitempty"`

	// Conditional configuration.
	ConditionField    *string `json:"condition_field,omitempty"`
	ConditionOperator *string `json:"condition_operator,omitempty"`
	ConditionValue    *string `json:"condition_value,omitempty"`

	// SLA and escalation.
	SLAHours         *int    `json:"sla_hours,omitempty"`
	EscalationUserID *uint   `json:"escalation_user_id,omitempty"`
	EscalationRole   *string `json:"escalation_role,omitempty"`
	AutoEscalate     bool    `gorm:"default:false" json:"auto_escalate"`

	// Actions and notifications.
	NotificationTemplate *string `json:"notification_template,omitempty"`
	CustomAction         *string `json:"custom_action,omitempty"`

	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`

	// Default successor; conditional successors live in ConditionalRoute.
	NextStageID *uint     `json:"next_stage_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConditionalRoute is a conditional path between two stages of the same
// workflow. Higher priority routes are evaluated first.
type ConditionalRoute struct {
	ID          uint `gorm:"primaryKey;autoIncrement" json:"id"`
	FromStageID uint `gorm:"not null;index" json:"from_stage_id"`
	ToStageID   uint `gorm:"not null" json:"to_stage_id"`

	ConditionLabel *string `json:"condition_label,omitempty"`
	ConditionField string  `gorm:"not null" json:"condition_field"`
	Operator       string  `gorm:"not null" json:"operator"`
	ConditionValue string  `gorm:"not null" json:"condition_value"`
	Priority       int     `gorm:"default:0" json:"priority"`
}
