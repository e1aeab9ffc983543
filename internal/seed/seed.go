// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

// Package seed loads the built-in policy set and optional demo
// subjects. Seeding is idempotent: rows are matched by their unique
// names and never overwritten.
package seed

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/model"
)

func allOf(conds ...model.Condition) *model.ConditionGroup {
	return &model.ConditionGroup{All: conds}
}

func anyOf(conds ...model.Condition) *model.ConditionGroup {
	return &model.ConditionGroup{Any: conds}
}

func cond(attribute, operator string, value any) model.Condition {
	return model.Condition{Attribute: attribute, Operator: operator, Value: value}
}

// defaultPolicies is the built-in policy set covering invoices,
// employee onboarding, purchase orders, leave, budget revisions, a
// business-hours deny, and the admin override.
func defaultPolicies() []model.Policy {
	return []model.Policy{
		{
			Name:             "Finance Manager - Approve Own Department Invoices",
			Description:      "Finance managers can approve invoices from their department under $10,000",
			Effect:           model.PolicyEffectAllow,
			Priority:         100,
			Action:           "approve",
			ResourceType:     "Invoice",
			RoleRequirements: []string{"finance_manager"},
			Conditions: allOf(
				cond("user.department_id", model.OpEq, "{{resource.department_id}}"),
				cond("resource.amount", model.OpLte, 10000),
				cond("resource.status", model.OpEq, "pending"),
			),
		},
		{
			Name:             "CFO - Approve High Value Invoices",
			Description:      "CFO can approve any invoice over $10,000",
			Effect:           model.PolicyEffectAllow,
			Priority:         150,
			Action:           "approve",
			ResourceType:     "Invoice",
			RoleRequirements: []string{"cfo"},
			Conditions: allOf(
				cond("resource.amount", model.OpGt, 10000),
				cond("resource.status", model.OpIn, []any{"pending", "manager_approved"}),
			),
		},
		{
			Name:         "Prevent Self-Approval of Invoices",
			Description:  "Users cannot approve their own invoices",
			Effect:       model.PolicyEffectDeny,
			Priority:     200,
			Action:       "approve",
			ResourceType: "Invoice",
			Conditions: allOf(
				cond("user.id", model.OpEq, "{{resource.created_by}}"),
			),
		},
		{
			Name:             "HR Manager - Approve Department Employees",
			Description:      "HR managers can approve employees for their department",
			Effect:           model.PolicyEffectAllow,
			Priority:         100,
			Action:           "approve",
			ResourceType:     "EmployeeProfile",
			RoleRequirements: []string{"hr_manager"},
			Conditions: allOf(
				cond("user.department_id", model.OpEq, "{{resource.department_id}}"),
			),
		},
		{
			Name:             "Department Head - Approve Own Team",
			Description:      "Department heads approve employees joining their team",
			Effect:           model.PolicyEffectAllow,
			Priority:         100,
			Action:           "approve",
			ResourceType:     "EmployeeProfile",
			RoleRequirements: []string{"department_head"},
			Conditions: allOf(
				cond("user.department_id", model.OpEq, "{{resource.department_id}}"),
			),
		},
		{
			Name:             "Manager - Approve Small Purchase Orders",
			Description:      "Managers can approve POs under $5,000 for their department",
			Effect:           model.PolicyEffectAllow,
			Priority:         100,
			Action:           "approve",
			ResourceType:     "PurchaseOrder",
			RoleRequirements: []string{"manager", "department_manager"},
			Conditions: allOf(
				cond("user.department_id", model.OpEq, "{{resource.department_id}}"),
				cond("resource.total_amount", model.OpLte, 5000),
			),
		},
		{
			Name:             "Finance - Approve Medium Purchase Orders",
			Description:      "Finance can approve POs between $5,000 and $50,000",
			Effect:           model.PolicyEffectAllow,
			Priority:         110,
			Action:           "approve",
			ResourceType:     "PurchaseOrder",
			RoleRequirements: []string{"finance_manager"},
			Conditions: allOf(
				cond("resource.total_amount", model.OpBetween, []any{5000, 50000}),
			),
		},
		{
			Name:             "Executive - Approve Large Purchase Orders",
			Description:      "Executives approve POs over $50,000",
			Effect:           model.PolicyEffectAllow,
			Priority:         120,
			Action:           "approve",
			ResourceType:     "PurchaseOrder",
			RoleRequirements: []string{"cfo", "ceo"},
			Conditions: allOf(
				cond("resource.total_amount", model.OpGt, 50000),
			),
		},
		{
			Name:             "Manager - Approve Short Leave",
			Description:      "Managers can approve leave requests up to 5 days for their team",
			Effect:           model.PolicyEffectAllow,
			Priority:         100,
			Action:           "approve",
			ResourceType:     "LeaveRequest",
			RoleRequirements: []string{"manager", "supervisor"},
			Conditions: allOf(
				cond("user.department_id", model.OpEq, "{{resource.department_id}}"),
				cond("resource.days", model.OpLte, 5),
			),
		},
		{
			Name:             "HR - Approve Extended Leave",
			Description:      "HR must approve leave requests over 5 days",
			Effect:           model.PolicyEffectAllow,
			Priority:         110,
			Action:           "approve",
			ResourceType:     "LeaveRequest",
			RoleRequirements: []string{"hr_manager"},
			Conditions: allOf(
				cond("resource.days", model.OpGt, 5),
			),
		},
		{
			Name:             "Department Head - Minor Budget Revisions",
			Description:      "Department heads can approve budget revisions under 10%",
			Effect:           model.PolicyEffectAllow,
			Priority:         100,
			Action:           "approve",
			ResourceType:     "BudgetRevision",
			RoleRequirements: []string{"department_head"},
			Conditions: allOf(
				cond("user.department_id", model.OpEq, "{{resource.department_id}}"),
				cond("resource.variance_percentage", model.OpLte, 10),
			),
		},
		{
			Name:             "CFO - Major Budget Revisions",
			Description:      "CFO must approve budget revisions over 10%",
			Effect:           model.PolicyEffectAllow,
			Priority:         120,
			Action:           "approve",
			ResourceType:     "BudgetRevision",
			RoleRequirements: []string{"cfo"},
			Conditions: allOf(
				cond("resource.variance_percentage", model.OpGt, 10),
			),
		},
		{
			Name:         "Business Hours Only - Approvals",
			Description:  "Approvals can only be made during business hours",
			Effect:       model.PolicyEffectDeny,
			Priority:     90,
			Action:       "approve",
			ResourceType: "*",
			Conditions: anyOf(
				cond("environment.current_hour", model.OpLt, 8),
				cond("environment.current_hour", model.OpGt, 18),
				cond("environment.current_day_of_week", model.OpIn, []any{"Saturday", "Sunday"}),
			),
		},
		{
			Name:             "Admin - Full Access",
			Description:      "Admins have full access to all resources",
			Effect:           model.PolicyEffectAllow,
			Priority:         999,
			Action:           "*",
			ResourceType:     "*",
			RoleRequirements: []string{"admin"},
		},
	}
}

// Policies inserts any missing built-in policies, attributed to the
// given administrator subject.
func Policies(db *gorm.DB, adminID uint, logger *slog.Logger) error {
	for _, policy := range defaultPolicies() {
		var existing model.Policy
		err := db.Where("name = ?", policy.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check policy %q: %w", policy.Name, err)
		}

		policy.IsActive = true
		policy.CreatedBy = adminID
		if err := db.Create(&policy).Error; err != nil {
			return fmt.Errorf("failed to seed policy %q: %w", policy.Name, err)
		}
		logger.Info("seeded policy", "name", policy.Name)
	}
	return nil
}

// AdminID returns the id of an existing administrator for policy
// attribution, or 0 when the database holds none.
func AdminID(db *gorm.DB) uint {
	var admin model.Subject
	err := db.Where("is_superuser = ? OR role = ?", true, "admin").Order("id ASC").First(&admin).Error
	if err != nil {
		return 0
	}
	return admin.ID
}

func int64Ptr(v int64) *int64 { return &v }

// Demo inserts a small set of demo subjects and profiles for local
// development. Returns the admin subject for policy attribution.
func Demo(db *gorm.DB, logger *slog.Logger) (*model.Subject, error) {
	type demoSubject struct {
		subject model.Subject
		profile *model.SubjectProfile
	}

	demos := []demoSubject{
		{
			subject: model.Subject{
				Email: "admin@flowgate.local", Username: "admin",
				Role: "admin", IsActive: true, IsSuperuser: true,
			},
		},
		{
			subject: model.Subject{
				Email: "finance@flowgate.local", Username: "finance.manager",
				Role: "finance_manager", IsActive: true,
			},
			profile: &model.SubjectProfile{
				DepartmentID:            int64Ptr(1),
				ApprovalLimitAmount:     int64Ptr(10000),
				CanApproveOwnDepartment: true,
			},
		},
		{
			subject: model.Subject{
				Email: "cfo@flowgate.local", Username: "cfo",
				Role: "cfo", Roles: []string{"cfo", "manager"}, IsActive: true,
			},
			profile: &model.SubjectProfile{
				DivisionID:               int64Ptr(1),
				CanApproveAllDepartments: true,
			},
		},
		{
			subject: model.Subject{
				Email: "hr@flowgate.local", Username: "hr.manager",
				Role: "hr_manager", IsActive: true,
			},
			profile: &model.SubjectProfile{DepartmentID: int64Ptr(2)},
		},
		{
			subject: model.Subject{
				Email: "employee@flowgate.local", Username: "employee",
				Role: "employee", IsActive: true,
			},
		},
	}

	var admin *model.Subject
	for i := range demos {
		d := &demos[i]
		var existing model.Subject
		err := db.Where("username = ?", d.subject.Username).First(&existing).Error
		switch {
		case err == nil:
			d.subject = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&d.subject).Error; err != nil {
				return nil, fmt.Errorf("failed to seed subject %q: %w", d.subject.Username, err)
			}
			logger.Info("seeded subject", "username", d.subject.Username, "role", d.subject.Role)
		default:
			return nil, fmt.Errorf("failed to check subject %q: %w", d.subject.Username, err)
		}

		if d.profile != nil {
			var profile model.SubjectProfile
			if err := db.Where("subject_id = ?", d.subject.ID).First(&profile).Error; errors.Is(err, gorm.ErrRecordNotFound) {
				d.profile.SubjectID = d.subject.ID
				if err := db.Create(d.profile).Error; err != nil {
					return nil, fmt.Errorf("failed to seed profile for %q: %w", d.subject.Username, err)
				}
			}
		}

		if d.subject.Role == "admin" {
			admin = &d.subject
		}
	}

	return admin, nil
}
