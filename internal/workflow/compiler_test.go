// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flowgate/flowgate/internal/model"
)

func strPtr(s string) *string   { return &s }
func intPtr(n int) *int         { return &n }
func f64Ptr(f float64) *float64 { return &f }

func TestStageFromNodeFieldMapping(t *testing.T) {
	node := graphNode{
		ID:       "approval-7",
		Type:     "approval",
		Position: &nodePosition{X: 120, Y: 340},
		Data: map[string]any{
			"label":                    "Finance Sign-off",
			"required_role":            "finance_manager",
			"required_roles":           []any{"finance_manager", "cfo"},
			"specific_users":           []any{float64(4), float64(9)},
			"approval_type":            "parallel_any",
			"required_approvals_count": float64(2),
			"sla_hours":                float64(48),
			"escalation_role":          "cfo",
			"auto_escalate":            true,
			"notification_template":    "needs your sign-off",
		},
	}

	got := stageFromNode(12, 3, node)

	want := &model.WorkflowStage{
		WorkflowID:             12,
		NodeID:                 "approval-7",
		NodeType:               model.NodeTypeApproval,
		Name:                   "Finance Sign-off",
		OrderIndex:             3,
		RequiredRole:           strPtr("finance_manager"),
		RequiredRoles:          []string{"finance_manager", "cfo"},
		SpecificUsers:          []int64{4, 9},
		ApprovalType:           model.ApprovalParallelAny,
		RequiredApprovalsCount: intPtr(2),
		SLAHours:               intPtr(48),
		EscalationRole:         strPtr("cfo"),
		AutoEscalate:           true,
		NotificationTemplate:   strPtr("needs your sign-off"),
		PositionX:              f64Ptr(120),
		PositionY:              f64Ptr(340),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stageFromNode mismatch (-want +got):\n%s", diff)
	}
}

func TestStageFromNodeDefaults(t *testing.T) {
	node := graphNode{ID: "n1", Type: "mystery", Data: map[string]any{}}

	got := stageFromNode(1, 0, node)

	if got.NodeType != model.NodeTypeApproval {
		t.Errorf("unknown node type must default to approval, got %s", got.NodeType)
	}
	if got.Name != "Stage 1" {
		t.Errorf("expected default name Stage 1, got %q", got.Name)
	}
	if got.ApprovalType != model.ApprovalSequential {
		t.Errorf("expected default sequential approval, got %s", got.ApprovalType)
	}
	if got.RequiredRole != nil || got.RequiredRoles != nil || got.SpecificUsers != nil {
		t.Error("approver fields must stay nil when absent from node data")
	}
	if got.PositionX != nil || got.PositionY != nil {
		t.Error("position must stay nil when the node has none")
	}
}
