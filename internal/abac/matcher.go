// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package abac

import (
	"fmt"
	"slices"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/model"
)

// candidatePolicies selects the policies that might apply to (action,
// resource_type, subject), ordered by priority descending with ties
// broken by ascending id. The action and resource_type filters are an
// explicit OR against the literal "*"; no other glob forms exist.
//
// Scope filters require a SubjectProfile: a policy scoped by department
// or division is dropped when the subject has no profile.
func candidatePolicies(tx *gorm.DB, action, resourceType string, subject *model.Subject) ([]model.Policy, error) {
	var policies []model.Policy
	err := tx.
		Where("is_active = ?", true).
		Where("action = ? OR action = ?", action, "*").
		Where("resource_type = ? OR resource_type = ?", resourceType, "*").
		Order("priority DESC").
		Order("id ASC").
		Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}

	subjectRoles := subject.EffectiveRoles()

	var profile *model.SubjectProfile
	var p model.SubjectProfile
	if err := tx.Where("subject_id = ?", subject.ID).First(&p).Error; err == nil {
		profile = &p
	}

	applicable := policies[:0]
	for _, policy := range policies {
		if len(policy.RoleRequirements) > 0 && !rolesIntersect(subjectRoles, policy.RoleRequirements) {
			continue
		}
		if len(policy.DepartmentIDs) > 0 {
			if profile == nil || profile.DepartmentID == nil ||
				!slices.Contains(policy.DepartmentIDs, *profile.DepartmentID) {
				continue
			}
		}
		if len(policy.DivisionIDs) > 0 {
			if profile == nil || profile.DivisionID == nil ||
				!slices.Contains(policy.DivisionIDs, *profile.DivisionID) {
				continue
			}
		}
		applicable = append(applicable, policy)
	}

	return applicable, nil
}

// rolesIntersect reports whether any subject role appears in required.
func rolesIntersect(subjectRoles, required []string) bool {
	for _, role := range subjectRoles {
		if slices.Contains(required, role) {
			return true
		}
	}
	return false
}
