// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package abac

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/model"
)

// Resource names whose values are copied into the resource bag when a
// live resource object is supplied.
var wellKnownResourceAttrs = []string{
	"status", "amount", "total_amount", "created_by",
	"department_id", "division_id", "created_at",
	"priority", "category", "assigned_to",
}

// resolveSubjectBag assembles the subject attribute bag from the subject
// record and its profile. Custom attributes are merged last and win on
// key collision.
func resolveSubjectBag(tx *gorm.DB, subject *model.Subject) map[string]any {
	attrs := map[string]any{
		"id":           int64(subject.ID),
		"email":        subject.Email,
		"username":     subject.Username,
		"role":         subject.Role,
		"is_active":    subject.IsActive,
		"is_superuser": subject.IsSuperuser,
	}
	if roles := subject.EffectiveRoles(); roles != nil {
		attrs["roles"] = roles
	}

	var profile model.SubjectProfile
	if err := tx.Where("subject_id = ?", subject.ID).First(&profile).Error; err == nil {
		if profile.DepartmentID != nil {
			attrs["department_id"] = *profile.DepartmentID
		}
		if profile.DivisionID != nil {
			attrs["division_id"] = *profile.DivisionID
		}
		if profile.TeamID != nil {
			attrs["team_id"] = *profile.TeamID
		}
		if profile.JobTitle != nil {
			attrs["job_title"] = *profile.JobTitle
		}
		if profile.JobLevel != nil {
			attrs["job_level"] = *profile.JobLevel
		}
		if profile.ApprovalLimitAmount != nil {
			attrs["approval_limit_amount"] = *profile.ApprovalLimitAmount
		}
		attrs["can_approve_own_department"] = profile.CanApproveOwnDepartment
		attrs["can_approve_all_departments"] = profile.CanApproveAllDepartments
		if profile.OfficeLocation != nil {
			attrs["office_location"] = *profile.OfficeLocation
		}
		if profile.CountryCode != nil {
			attrs["country_code"] = *profile.CountryCode
		}

		for k, v := range profile.CustomAttributes {
			attrs[k] = v
		}
	}

	return attrs
}

// resolveResourceBag assembles the resource attribute bag. Well-known
// attributes of a supplied resource object are copied first; persisted
// dynamic attributes for (type, id) then overlay them.
func resolveResourceBag(tx *gorm.DB, resourceType string, resourceID *int64, resourceObj map[string]any) map[string]any {
	attrs := map[string]any{
		"type": resourceType,
	}
	if resourceID != nil {
		attrs["id"] = *resourceID
	} else {
		attrs["id"] = nil
	}

	if resourceObj != nil {
		for _, name := range wellKnownResourceAttrs {
			if v, ok := resourceObj[name]; ok {
				attrs[name] = v
			}
		}
	}

	if resourceID != nil {
		var dynamic []model.ResourceAttribute
		if err := tx.Where("resource_type = ? AND resource_id = ?", resourceType, *resourceID).
			Find(&dynamic).Error; err == nil {
			for _, attr := range dynamic {
				attrs[attr.AttributeName] = parseAttributeValue(attr.AttributeValue, attr.AttributeType)
			}
		}
	}

	return attrs
}

// resolveEnvironmentBag assembles the environment attribute bag from
// wall-clock UTC plus any supplied request context.
func resolveEnvironmentBag(now time.Time, reqCtx *RequestContext) map[string]any {
	now = now.UTC()
	attrs := map[string]any{
		"current_time":        now.Format(time.RFC3339),
		"current_date":        now.Format("2006-01-02"),
		"current_hour":        now.Hour(),
		"current_day_of_week": now.Weekday().String(),
		"current_month":       int(now.Month()),
		"current_year":        now.Year(),
	}

	if reqCtx != nil {
		attrs["ip_address"] = reqCtx.IPAddress
		attrs["user_agent"] = reqCtx.UserAgent
		attrs["endpoint"] = reqCtx.Endpoint
	}

	return attrs
}

// parseAttributeValue converts a stored dynamic attribute value per its
// type tag, falling back to the raw string when parsing fails.
func parseAttributeValue(value, valueType string) any {
	switch valueType {
	case "number":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return value
		}
		return f
	case "boolean":
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		default:
			return false
		}
	case "json":
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			return value
		}
		return parsed
	default:
		return value
	}
}
