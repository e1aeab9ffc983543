// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowgate/flowgate/internal/model"
)

// ErrTemplateNotFound is returned for an unknown template id.
var ErrTemplateNotFound = errors.New("workflow template not found")

// TemplateInfo describes a built-in workflow template.
type TemplateInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ListTemplates returns the built-in template catalog.
func ListTemplates() []TemplateInfo {
	return []TemplateInfo{
		{ID: "employee_onboarding", Name: "Employee Onboarding", Description: "Multi-stage approval for new employee profiles", Category: "HR"},
		{ID: "leave_request", Name: "Leave Request", Description: "Manager and HR approval for leave applications", Category: "HR"},
		{ID: "purchase_order", Name: "Purchase Order", Description: "Department, finance, and executive approval based on amount", Category: "Finance"},
		{ID: "expense_approval", Name: "Expense Approval", Description: "Manager approval for employee expenses", Category: "Finance"},
		{ID: "budget_revision", Name: "Budget Revision", Description: "Multi-level approval for budget changes", Category: "Finance"},
	}
}

// Template returns the graph document of a built-in template.
func Template(id string) (map[string]any, error) {
	switch id {
	case "employee_onboarding":
		return employeeOnboardingTemplate(), nil
	case "leave_request":
		return leaveRequestTemplate(), nil
	case "purchase_order":
		return purchaseOrderTemplate(), nil
	case "expense_approval":
		return expenseApprovalTemplate(), nil
	case "budget_revision":
		return budgetRevisionTemplate(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
}

// CreateFromTemplate instantiates a built-in template as a new draft
// owned by the caller.
func (s *Service) CreateFromTemplate(ctx context.Context, templateID, name string, subject *model.Subject) (*model.WorkflowDefinition, error) {
	graph, err := Template(templateID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		graph["name"] = name
	}
	return s.SaveWorkflowGraph(ctx, nil, graph, subject, "")
}

func node(id, nodeType string, x, y float64, data map[string]any) map[string]any {
	return map[string]any{
		"id":       id,
		"type":     nodeType,
		"position": map[string]any{"x": x, "y": y},
		"data":     data,
	}
}

func edge(id, source, target string) map[string]any {
	return map[string]any{"id": id, "source": source, "target": target}
}

func conditionalEdge(id, source, target, label string) map[string]any {
	return map[string]any{
		"id":     id,
		"source": source,
		"target": target,
		"data":   map[string]any{"label": label, "condition": true},
	}
}

func employeeOnboardingTemplate() map[string]any {
	return map[string]any{
		"name":        "Employee Onboarding",
		"description": "New employee approval workflow",
		"model_name":  "EmployeeProfile",
		"nodes": []any{
			node("start-1", "start", 250, 50, map[string]any{"label": "Start"}),
			node("approval-1", "approval", 250, 150, map[string]any{
				"label":                 "HR Manager Review",
				"required_role":         "hr_manager",
				"approval_type":         "sequential",
				"sla_hours":             24,
				"notification_template": "New employee profile requires your review",
			}),
			node("approval-2", "approval", 250, 300, map[string]any{
				"label":         "Department Head Approval",
				"required_role": "department_head",
				"approval_type": "sequential",
				"sla_hours":     48,
			}),
			node("end-1", "end", 250, 450, map[string]any{"label": "Complete"}),
		},
		"edges": []any{
			edge("e1", "start-1", "approval-1"),
			edge("e2", "approval-1", "approval-2"),
			edge("e3", "approval-2", "end-1"),
		},
	}
}

func leaveRequestTemplate() map[string]any {
	return map[string]any{
		"name":        "Leave Request",
		"description": "Employee leave approval",
		"model_name":  "LeaveRequest",
		"nodes": []any{
			node("start-1", "start", 250, 50, map[string]any{"label": "Submit Leave"}),
			node("approval-1", "approval", 250, 200, map[string]any{
				"label":         "Manager Approval",
				"required_role": "manager",
				"approval_type": "sequential",
				"sla_hours":     24,
			}),
			node("condition-1", "condition", 250, 350, map[string]any{
				"label":              "Check Duration",
				"condition_field":    "days",
				"condition_operator": ">",
				"condition_value":    "5",
			}),
			node("approval-2", "approval", 100, 500, map[string]any{
				"label":         "HR Approval",
				"required_role": "hr_manager",
				"approval_type": "sequential",
				"sla_hours":     48,
			}),
			node("end-1", "end", 250, 650, map[string]any{"label": "Approved"}),
		},
		"edges": []any{
			edge("e1", "start-1", "approval-1"),
			edge("e2", "approval-1", "condition-1"),
			conditionalEdge("e3", "condition-1", "approval-2", "> 5 days"),
			conditionalEdge("e4", "condition-1", "end-1", "≤ 5 days"),
			edge("e5", "approval-2", "end-1"),
		},
	}
}

func purchaseOrderTemplate() map[string]any {
	return map[string]any{
		"name":        "Purchase Order Approval",
		"description": "Amount-based approval routing",
		"model_name":  "PurchaseOrder",
		"nodes": []any{
			node("start-1", "start", 300, 50, map[string]any{"label": "Start"}),
			node("approval-1", "approval", 300, 150, map[string]any{
				"label":         "Department Manager",
				"required_role": "department_manager",
				"approval_type": "sequential",
				"sla_hours":     24,
			}),
			node("condition-1", "condition", 300, 300, map[string]any{
				"label":              "Check Amount",
				"condition_field":    "total_amount",
				"condition_operator": ">",
				"condition_value":    "10000",
			}),
			node("approval-2", "approval", 150, 450, map[string]any{
				"label":         "CFO Approval",
				"required_role": "cfo",
				"approval_type": "sequential",
				"sla_hours":     72,
			}),
			node("approval-3", "approval", 450, 450, map[string]any{
				"label":         "Finance Manager",
				"required_role": "finance_manager",
				"approval_type": "sequential",
				"sla_hours":     48,
			}),
			node("end-1", "end", 300, 600, map[string]any{"label": "Approved"}),
		},
		"edges": []any{
			edge("e1", "start-1", "approval-1"),
			edge("e2", "approval-1", "condition-1"),
			conditionalEdge("e3", "condition-1", "approval-2", "> $10,000"),
			conditionalEdge("e4", "condition-1", "approval-3", "≤ $10,000"),
			edge("e5", "approval-2", "end-1"),
			edge("e6", "approval-3", "end-1"),
		},
	}
}

func expenseApprovalTemplate() map[string]any {
	return map[string]any{
		"name":        "Expense Approval",
		"description": "Manager approval for employee expenses",
		"model_name":  "ExpenseReport",
		"nodes": []any{
			node("start-1", "start", 250, 50, map[string]any{"label": "Submit Expense"}),
			node("approval-1", "approval", 250, 200, map[string]any{
				"label":         "Manager Approval",
				"required_role": "manager",
				"approval_type": "sequential",
				"sla_hours":     48,
			}),
			node("end-1", "end", 250, 350, map[string]any{"label": "Approved"}),
		},
		"edges": []any{
			edge("e1", "start-1", "approval-1"),
			edge("e2", "approval-1", "end-1"),
		},
	}
}

func budgetRevisionTemplate() map[string]any {
	return map[string]any{
		"name":        "Budget Revision",
		"description": "Multi-level approval for budget changes",
		"model_name":  "BudgetRevision",
		"nodes": []any{
			node("start-1", "start", 300, 50, map[string]any{"label": "Start"}),
			node("approval-1", "approval", 300, 150, map[string]any{
				"label":         "Department Manager",
				"required_role": "department_manager",
				"approval_type": "sequential",
				"sla_hours":     24,
			}),
			node("condition-1", "condition", 300, 300, map[string]any{
				"label":              "Check Amount",
				"condition_field":    "revision_amount",
				"condition_operator": ">",
				"condition_value":    "5000",
			}),
			node("approval-2", "approval", 150, 450, map[string]any{
				"label":         "CFO Approval",
				"required_role": "cfo",
				"approval_type": "sequential",
				"sla_hours":     72,
			}),
			node("approval-3", "approval", 450, 450, map[string]any{
				"label":         "Finance Manager",
				"required_role": "finance_manager",
				"approval_type": "sequential",
				"sla_hours":     48,
			}),
			node("end-1", "end", 300, 600, map[string]any{"label": "Approved"}),
		},
		"edges": []any{
			edge("e1", "start-1", "approval-1"),
			edge("e2", "approval-1", "condition-1"),
			conditionalEdge("e3", "condition-1", "approval-2", "> $5,000"),
			conditionalEdge("e4", "condition-1", "approval-3", "≤ $5,000"),
			edge("e5", "approval-2", "end-1"),
			edge("e6", "approval-3", "end-1"),
		},
	}
}
