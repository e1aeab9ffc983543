// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package abac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/model"
)

var validate = validator.New()

// PolicyService manages the stored policy set, subject profiles, and the
// audit trail.
type PolicyService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPolicyService creates a policy management service.
func NewPolicyService(db *gorm.DB, logger *slog.Logger) *PolicyService {
	return &PolicyService{db: db, logger: logger}
}

// CreatePolicyInput carries the fields of a new policy.
type CreatePolicyInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`

	Effect   model.PolicyEffect `json:"effect" validate:"required,oneof=allow deny"`
	Priority int                `json:"priority"`

	Action       string `json:"action" validate:"required,max=100"`
	ResourceType string `json:"resource_type" validate:"required,max=100"`

	Conditions *model.ConditionGroup `json:"conditions"`

	DepartmentIDs    []int64  `json:"department_ids"`
	DivisionIDs      []int64  `json:"division_ids"`
	RoleRequirements []string `json:"role_requirements"`

	IsActive *bool `json:"is_active"`
}

// UpdatePolicyInput carries a partial update; nil fields are unchanged.
type UpdatePolicyInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`

	Effect   *model.PolicyEffect `json:"effect"`
	Priority *int                `json:"priority"`

	Action       *string `json:"action"`
	ResourceType *string `json:"resource_type"`

	Conditions *model.ConditionGroup `json:"conditions"`

	DepartmentIDs    []int64  `json:"department_ids"`
	DivisionIDs      []int64  `json:"division_ids"`
	RoleRequirements []string `json:"role_requirements"`

	IsActive *bool `json:"is_active"`
}

// PolicyFilter narrows a policy listing.
type PolicyFilter struct {
	ResourceType string
	Action       string
	ActiveOnly   bool
}

// AuditFilter narrows an audit log listing. Limit is clamped to 1000 and
// defaults to 100.
type AuditFilter struct {
	SubjectID    *uint
	ResourceType string
	Action       string
	Decision     string
	Limit        int
}

// CreatePolicy validates and stores a new policy.
func (s *PolicyService) CreatePolicy(ctx context.Context, createdBy uint, input *CreatePolicyInput) (*model.Policy, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	var existing model.Policy
	err := s.db.WithContext(ctx).Where("name = ?", input.Name).First(&existing).Error
	if err == nil {
		return nil, ErrPolicyNameConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check policy name: %w", err)
	}

	policy := &model.Policy{
		Name:             input.Name,
		Description:      input.Description,
		Effect:           input.Effect,
		Priority:         input.Priority,
		Action:           input.Action,
		ResourceType:     input.ResourceType,
		Conditions:       input.Conditions,
		DepartmentIDs:    input.DepartmentIDs,
		DivisionIDs:      input.DivisionIDs,
		RoleRequirements: input.RoleRequirements,
		IsActive:         true,
		CreatedBy:        createdBy,
	}
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Create(policy).Error; err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	s.logger.Info("policy created", "policy_id", policy.ID, "name", policy.Name, "effect", policy.Effect)
	return policy, nil
}

// GetPolicy fetches a policy by id.
func (s *PolicyService) GetPolicy(ctx context.Context, id uint) (*model.Policy, error) {
	var policy model.Policy
	err := s.db.WithContext(ctx).First(&policy, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch policy: %w", err)
	}
	return &policy, nil
}

// UpdatePolicy applies a partial update to an existing policy.
func (s *PolicyService) UpdatePolicy(ctx context.Context, id uint, input *UpdatePolicyInput) (*model.Policy, error) {
	var policy model.Policy
	err := s.db.WithContext(ctx).First(&policy, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch policy: %w", err)
	}

	if input.Name != nil && *input.Name != policy.Name {
		var clash model.Policy
		err := s.db.WithContext(ctx).Where("name = ? AND id <> ?", *input.Name, id).First(&clash).Error
		if err == nil {
			return nil, ErrPolicyNameConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check policy name: %w", err)
		}
		policy.Name = *input.Name
	}
	if input.Description != nil {
		policy.Description = *input.Description
	}
	if input.Effect != nil {
		if *input.Effect != model.PolicyEffectAllow && *input.Effect != model.PolicyEffectDeny {
			return nil, fmt.Errorf("%w: unknown effect %q", ErrInvalidPolicy, *input.Effect)
		}
		policy.Effect = *input.Effect
	}
	if input.Priority != nil {
		policy.Priority = *input.Priority
	}
	if input.Action != nil {
		policy.Action = *input.Action
	}
	if input.ResourceType != nil {
		policy.ResourceType = *input.ResourceType
	}
	if input.Conditions != nil {
		policy.Conditions = input.Conditions
	}
	if input.DepartmentIDs != nil {
		policy.DepartmentIDs = input.DepartmentIDs
	}
	if input.DivisionIDs != nil {
		policy.DivisionIDs = input.DivisionIDs
	}
	if input.RoleRequirements != nil {
		policy.RoleRequirements = input.RoleRequirements
	}
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Save(&policy).Error; err != nil {
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}

	s.logger.Info("policy updated", "policy_id", policy.ID, "name", policy.Name)
	return &policy, nil
}

// DeletePolicy removes a policy.
func (s *PolicyService) DeletePolicy(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Policy{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete policy: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPolicyNotFound
	}
	s.logger.Info("policy deleted", "policy_id", id)
	return nil
}

// ListPolicies returns policies matching the filter, highest priority
// first.
func (s *PolicyService) ListPolicies(ctx context.Context, filter *PolicyFilter) ([]model.Policy, error) {
	query := s.db.WithContext(ctx).Model(&model.Policy{})
	if filter != nil {
		if filter.ResourceType != "" {
			query = query.Where("resource_type = ?", filter.ResourceType)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.ActiveOnly {
			query = query.Where("is_active = ?", true)
		}
	}

	var policies []model.Policy
	if err := query.Order("priority DESC").Order("id ASC").Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

// ListAuditLogs returns audit records matching the filter, newest first.
func (s *PolicyService) ListAuditLogs(ctx context.Context, filter *AuditFilter) ([]model.AccessLog, error) {
	limit := 100
	query := s.db.WithContext(ctx).Model(&model.AccessLog{})
	if filter != nil {
		if filter.Limit < 0 {
			return nil, fmt.Errorf("%w: negative limit", ErrInvalidAuditFilter)
		}
		if filter.Limit > 0 {
			limit = min(filter.Limit, 1000)
		}
		if filter.SubjectID != nil {
			query = query.Where("subject_id = ?", *filter.SubjectID)
		}
		if filter.ResourceType != "" {
			query = query.Where("resource_type = ?", filter.ResourceType)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.Decision != "" {
			if filter.Decision != "allow" && filter.Decision != "deny" {
				return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidAuditFilter, filter.Decision)
			}
			query = query.Where("decision = ?", filter.Decision)
		}
	}

	var logs []model.AccessLog
	if err := query.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

// GetSubjectProfile fetches the profile for a subject.
func (s *PolicyService) GetSubjectProfile(ctx context.Context, subjectID uint) (*model.SubjectProfile, error) {
	var profile model.SubjectProfile
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subject profile: %w", err)
	}
	return &profile, nil
}

// UpdateSubjectProfileInput carries a partial profile update; nil fields
// are unchanged.
type UpdateSubjectProfileInput struct {
	DepartmentID *int64 `json:"department_id"`
	DivisionID   *int64 `json:"division_id"`
	TeamID       *int64 `json:"team_id"`

	JobTitle   *string `json:"job_title"`
	JobLevel   *int    `json:"job_level"`
	CostCenter *string `json:"cost_center"`

	ApprovalLimitAmount      *int64 `json:"approval_limit_amount"`
	CanApproveOwnDepartment  *bool  `json:"can_approve_own_department"`
	CanApproveAllDepartments *bool  `json:"can_approve_all_departments"`

	CustomAttributes map[string]any `json:"custom_attributes"`

	OfficeLocation *string `json:"office_location"`
	CountryCode    *string `json:"country_code"`
	Timezone       *string `json:"timezone"`
}

// UpdateSubjectProfile upserts the profile for a subject.
func (s *PolicyService) UpdateSubjectProfile(ctx context.Context, subjectID uint, input *UpdateSubjectProfileInput) (*model.SubjectProfile, error) {
	var profile model.SubjectProfile
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = model.SubjectProfile{SubjectID: subjectID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch subject profile: %w", err)
	}

	if input.DepartmentID != nil {
		profile.DepartmentID = input.DepartmentID
	}
	if input.DivisionID != nil {
		profile.DivisionID = input.DivisionID
	}
	if input.TeamID != nil {
		profile.TeamID = input.TeamID
	}
	if input.JobTitle != nil {
		profile.JobTitle = input.JobTitle
	}
	if input.JobLevel != nil {
		profile.JobLevel = input.JobLevel
	}
	if input.CostCenter != nil {
		profile.CostCenter = input.CostCenter
	}
	if input.ApprovalLimitAmount != nil {
		profile.ApprovalLimitAmount = input.ApprovalLimitAmount
	}
	if input.CanApproveOwnDepartment != nil {
		profile.CanApproveOwnDepartment = *input.CanApproveOwnDepartment
	}
	if input.CanApproveAllDepartments != nil {
		profile.CanApproveAllDepartments = *input.CanApproveAllDepartments
	}
	if input.CustomAttributes != nil {
		profile.CustomAttributes = input.CustomAttributes
	}
	if input.OfficeLocation != nil {
		profile.OfficeLocation = input.OfficeLocation
	}
	if input.CountryCode != nil {
		profile.CountryCode = input.CountryCode
	}
	if input.Timezone != nil {
		profile.Timezone = input.Timezone
	}

	if err := s.db.WithContext(ctx).Save(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to save subject profile: %w", err)
	}

	s.logger.Info("subject profile updated", "subject_id", subjectID)
	return &profile, nil
}

// SetResourceAttribute upserts a dynamic attribute for a resource
// instance.
func (s *PolicyService) SetResourceAttribute(ctx context.Context, attr *model.ResourceAttribute) (*model.ResourceAttribute, error) {
	var existing model.ResourceAttribute
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND attribute_name = ?",
			attr.ResourceType, attr.ResourceID, attr.AttributeName).
		First(&existing).Error
	switch {
	case err == nil:
		existing.AttributeValue = attr.AttributeValue
		existing.AttributeType = attr.AttributeType
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update resource attribute: %w", err)
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(attr).Error; err != nil {
			return nil, fmt.Errorf("failed to create resource attribute: %w", err)
		}
		return attr, nil
	default:
		return nil, fmt.Errorf("failed to fetch resource attribute: %w", err)
	}
}
