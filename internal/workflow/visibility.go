// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"slices"

	"github.com/flowgate/flowgate/internal/model"
)

// Roles whose holders may publish workflows they created.
var publisherRoles = []string{"manager", "supervisor", "department_head"}

// canView reports whether the subject may read the workflow. Workflows
// with an empty view list are visible to everyone; otherwise visibility
// requires admin, authorship, a role intersection, or an organizational
// match on department or division.
func canView(subject *model.Subject, profile *model.SubjectProfile, w *model.WorkflowDefinition) bool {
	if isAdmin(subject) || w.CreatedBy == subject.ID {
		return true
	}
	if len(w.CanViewRoles) == 0 {
		return true
	}
	if rolesIntersect(subject.EffectiveRoles(), w.CanViewRoles) {
		return true
	}
	if profile != nil {
		if w.DepartmentID != nil && profile.DepartmentID != nil && *w.DepartmentID == *profile.DepartmentID {
			return true
		}
		if w.DivisionID != nil && profile.DivisionID != nil && *w.DivisionID == *profile.DivisionID {
			return true
		}
	}
	return false
}

// canEdit reports whether the subject may modify the workflow.
func canEdit(subject *model.Subject, w *model.WorkflowDefinition) bool {
	if isAdmin(subject) || w.CreatedBy == subject.ID {
		return true
	}
	return rolesIntersect(subject.EffectiveRoles(), w.CanEditRoles)
}

// canPublish reports whether the subject may activate the workflow.
// Non-admins must be the creator and hold a publisher role.
func canPublish(subject *model.Subject, w *model.WorkflowDefinition) bool {
	if isAdmin(subject) {
		return true
	}
	return w.CreatedBy == subject.ID && rolesIntersect(subject.EffectiveRoles(), publisherRoles)
}

// canUse reports whether the subject may start an instance of the
// workflow. Only active workflows are usable; unlike viewing, an empty
// use list does not open the workflow to everyone.
func canUse(subject *model.Subject, profile *model.SubjectProfile, w *model.WorkflowDefinition) bool {
	if w.Status != model.WorkflowStatusActive {
		return false
	}
	if isAdmin(subject) {
		return true
	}
	if rolesIntersect(subject.EffectiveRoles(), w.CanUseRoles) {
		return true
	}
	return profile != nil && w.DepartmentID != nil && profile.DepartmentID != nil &&
		*w.DepartmentID == *profile.DepartmentID
}

func isAdmin(subject *model.Subject) bool {
	return subject.IsSuperuser || slices.Contains(subject.EffectiveRoles(), "admin")
}

func rolesIntersect(roles, required []string) bool {
	for _, role := range roles {
		if slices.Contains(required, role) {
			return true
		}
	}
	return false
}
