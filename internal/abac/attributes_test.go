// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package abac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/internal/model"
)

func TestResolveSubjectBagMergesProfileAndCustomAttrs(t *testing.T) {
	db := testDB(t)

	subject := createSubject(t, db, &model.Subject{
		Username: "merge", Email: "m@x", Role: "manager",
		Roles: []string{"manager", "reviewer"}, IsActive: true,
	})
	deptID := int64(4)
	jobTitle := "Team Lead"
	require.NoError(t, db.Create(&model.SubjectProfile{
		SubjectID:    subject.ID,
		DepartmentID: &deptID,
		JobTitle:     &jobTitle,
		CustomAttributes: map[string]any{
			"clearance": "secret",
			"job_title": "Overridden",
		},
	}).Error)

	bag := resolveSubjectBag(db, subject)

	require.Equal(t, int64(subject.ID), bag["id"])
	require.Equal(t, deptID, bag["department_id"])
	require.Equal(t, "secret", bag["clearance"])
	// Custom attributes win on collision.
	require.Equal(t, "Overridden", bag["job_title"])
	require.Equal(t, []string{"manager", "reviewer"}, bag["roles"])
	// Absent profile fields stay absent, not zero-valued.
	_, ok := bag["division_id"]
	require.False(t, ok)
}

func TestResolveSubjectBagWithoutProfile(t *testing.T) {
	db := testDB(t)
	subject := createSubject(t, db, &model.Subject{Username: "plain", Email: "p@x", Role: "employee", IsActive: true})

	bag := resolveSubjectBag(db, subject)
	require.Equal(t, "employee", bag["role"])
	_, ok := bag["department_id"]
	require.False(t, ok)
}

func TestResolveResourceBagOverlaysDynamicAttributes(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.Create(&model.ResourceAttribute{
		ResourceType: "Invoice", ResourceID: 7,
		AttributeName: "amount", AttributeValue: "1234.5", AttributeType: "number",
	}).Error)
	require.NoError(t, db.Create(&model.ResourceAttribute{
		ResourceType: "Invoice", ResourceID: 7,
		AttributeName: "flagged", AttributeValue: "yes", AttributeType: "boolean",
	}).Error)

	rid := int64(7)
	bag := resolveResourceBag(db, "Invoice", &rid, map[string]any{
		"status": "pending",
		"amount": float64(999),
		"extra":  "ignored",
	})

	require.Equal(t, "Invoice", bag["type"])
	require.Equal(t, rid, bag["id"])
	require.Equal(t, "pending", bag["status"])
	// Persisted dynamic attributes overlay the supplied object.
	require.Equal(t, 1234.5, bag["amount"])
	require.Equal(t, true, bag["flagged"])
	// Only well-known attributes copy from the resource object.
	_, ok := bag["extra"]
	require.False(t, ok)
}

func TestResolveEnvironmentBag(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC) // a Monday

	bag := resolveEnvironmentBag(now, &RequestContext{IPAddress: "1.2.3.4", UserAgent: "ua", Endpoint: "/x"})

	require.Equal(t, "2026-03-02T09:30:00Z", bag["current_time"])
	require.Equal(t, "2026-03-02", bag["current_date"])
	require.Equal(t, 9, bag["current_hour"])
	require.Equal(t, "Monday", bag["current_day_of_week"])
	require.Equal(t, 3, bag["current_month"])
	require.Equal(t, 2026, bag["current_year"])
	require.Equal(t, "1.2.3.4", bag["ip_address"])
}

func TestParseAttributeValue(t *testing.T) {
	tests := []struct {
		value     string
		valueType string
		want      any
	}{
		{"42.5", "number", 42.5},
		{"not a number", "number", "not a number"},
		{"true", "boolean", true},
		{"1", "boolean", true},
		{"no", "boolean", false},
		{`{"a":1}`, "json", map[string]any{"a": float64(1)}},
		{"{broken", "json", "{broken"},
		{"plain", "string", "plain"},
	}

	for _, tt := range tests {
		got := parseAttributeValue(tt.value, tt.valueType)
		require.Equal(t, tt.want, got, "parseAttributeValue(%q, %q)", tt.value, tt.valueType)
	}
}
