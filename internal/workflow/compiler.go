// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/model"
)

// compileStages replaces a workflow's derived stage and route records
// with a fresh projection of the graph. Must run inside the caller's
// transaction: routes are removed before the stages they reference, the
// stage set is rebuilt in node order, and a second pass wires default
// successors and conditional routes from the edges.
func compileStages(tx *gorm.DB, workflowID uint, doc *graphDoc) error {
	var staleIDs []uint
	err := tx.Model(&model.WorkflowStage{}).
		Where("workflow_id = ?", workflowID).
		Pluck("id", &staleIDs).Error
	if err != nil {
		return fmt.Errorf("failed to collect stages: %w", err)
	}

	if len(staleIDs) > 0 {
		if err := tx.Where("from_stage_id IN ?", staleIDs).Delete(&model.ConditionalRoute{}).Error; err != nil {
			return fmt.Errorf("failed to delete routes: %w", err)
		}
	}
	if err := tx.Where("workflow_id = ?", workflowID).Delete(&model.WorkflowStage{}).Error; err != nil {
		return fmt.Errorf("failed to delete stages: %w", err)
	}

	stagesByNode := make(map[string]*model.WorkflowStage, len(doc.Nodes))
	for idx, node := range doc.Nodes {
		stage := stageFromNode(workflowID, idx, node)
		if err := tx.Create(stage).Error; err != nil {
			return fmt.Errorf("failed to create stage for node %q: %w", node.ID, err)
		}
		stagesByNode[node.ID] = stage
	}

	for _, edge := range doc.Edges {
		source, ok := stagesByNode[edge.Source]
		if !ok {
			continue
		}
		target, ok := stagesByNode[edge.Target]
		if !ok {
			continue
		}

		if truthy(edge.Data["condition"]) {
			route := &model.ConditionalRoute{
				FromStageID:    source.ID,
				ToStageID:      target.ID,
				ConditionLabel: dataString(edge.Data, "label"),
				ConditionField: dataStringOr(edge.Data, "condition_field", ""),
				Operator:       dataStringOr(edge.Data, "operator", ""),
				ConditionValue: dataStringOr(edge.Data, "condition_value", ""),
				Priority:       dataIntOr(edge.Data, "priority", 0),
			}
			if err := tx.Create(route).Error; err != nil {
				return fmt.Errorf("failed to create route %s -> %s: %w", edge.Source, edge.Target, err)
			}
			continue
		}

		// First unconditional edge from a node is its default
		// successor; further ones are accepted as implicit-else.
		if source.NextStageID == nil {
			id := target.ID
			source.NextStageID = &id
			err := tx.Model(&model.WorkflowStage{}).
				Where("id = ?", source.ID).
				Update("next_stage_id", id).Error
			if err != nil {
				return fmt.Errorf("failed to link stage %q: %w", edge.Source, err)
			}
		}
	}

	return nil
}

// stageFromNode maps one graph node to its compiled stage record.
func stageFromNode(workflowID uint, idx int, node graphNode) *model.WorkflowStage {
	data := node.Data

	stage := &model.WorkflowStage{
		WorkflowID: workflowID,
		NodeID:     node.ID,
		NodeType:   model.ParseNodeType(node.Type),
		Name:       dataStringOr(data, "label", fmt.Sprintf("Stage %d", idx+1)),
		OrderIndex: idx,

		RequiredRole:           dataString(data, "required_role"),
		RequiredRoles:          dataStringList(data, "required_roles"),
		SpecificUsers:          dataInt64List(data, "specific_users"),
		ApprovalType:           model.ApprovalType(dataStringOr(data, "approval_type", string(model.ApprovalSequential))),
		RequiredApprovalsCount: dataInt(data, "required_approvals_count"),

		ConditionField:    dataString(data, "condition_field"),
		ConditionOperator: dataString(data, "condition_operator"),
		ConditionValue:    dataString(data, "condition_value"),

		SLAHours:       dataInt(data, "sla_hours"),
		EscalationRole: dataString(data, "escalation_role"),
		AutoEscalate:   truthy(data["auto_escalate"]),

		NotificationTemplate: dataString(data, "notification_template"),
		CustomAction:         dataString(data, "custom_action"),
	}

	if v := dataInt(data, "escalation_user_id"); v != nil && *v >= 0 {
		id := uint(*v)
		stage.EscalationUserID = &id
	}
	if node.Position != nil {
		x, y := node.Position.X, node.Position.Y
		stage.PositionX = &x
		stage.PositionY = &y
	}

	return stage
}

// truthy applies JSON truthiness: false, nil, zero, and empty string
// are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func dataString(data map[string]any, key string) *string {
	if s, ok := data[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func dataStringOr(data map[string]any, key, fallback string) string {
	if s, ok := data[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func dataStringList(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	list := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		return nil
	}
	return list
}

func dataInt64List(data map[string]any, key string) []int64 {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	list := make([]int64, 0, len(raw))
	for _, item := range raw {
		if f, ok := item.(float64); ok {
			list = append(list, int64(f))
		}
	}
	if len(list) == 0 {
		return nil
	}
	return list
}

func dataInt(data map[string]any, key string) *int {
	if f, ok := data[key].(float64); ok {
		n := int(f)
		return &n
	}
	return nil
}

func dataIntOr(data map[string]any, key string, fallback int) int {
	if f, ok := data[key].(float64); ok {
		return int(f)
	}
	return fallback
}
