// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package seed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/internal/logging"
	"github.com/flowgate/flowgate/internal/model"
	"github.com/flowgate/flowgate/internal/storage"
)

func TestSeedIsIdempotent(t *testing.T) {
	log := logging.New(logging.Config{Level: "error"})
	db, err := storage.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	admin, err := Demo(db, log)
	require.NoError(t, err)
	require.NotNil(t, admin)
	require.Equal(t, "admin", admin.Role)

	require.NoError(t, Policies(db, admin.ID, log))

	var policyCount, subjectCount int64
	require.NoError(t, db.Model(&model.Policy{}).Count(&policyCount).Error)
	require.NoError(t, db.Model(&model.Subject{}).Count(&subjectCount).Error)
	require.Equal(t, int64(len(defaultPolicies())), policyCount)

	// A second run adds nothing.
	_, err = Demo(db, log)
	require.NoError(t, err)
	require.NoError(t, Policies(db, admin.ID, log))

	var policyCount2, subjectCount2 int64
	require.NoError(t, db.Model(&model.Policy{}).Count(&policyCount2).Error)
	require.NoError(t, db.Model(&model.Subject{}).Count(&subjectCount2).Error)
	require.Equal(t, policyCount, policyCount2)
	require.Equal(t, subjectCount, subjectCount2)
}

func TestPoliciesWithoutDemoSubjects(t *testing.T) {
	log := logging.New(logging.Config{Level: "error"})
	db, err := storage.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	// Policy-only seeding must not create any subjects.
	require.NoError(t, Policies(db, AdminID(db), log))

	var subjectCount int64
	require.NoError(t, db.Model(&model.Subject{}).Count(&subjectCount).Error)
	require.Zero(t, subjectCount)

	var policy model.Policy
	require.NoError(t, db.Where("name = ?", "Admin - Full Access").First(&policy).Error)
	require.Zero(t, policy.CreatedBy)
}

func TestAdminIDFindsExistingAdmin(t *testing.T) {
	log := logging.New(logging.Config{Level: "error"})
	db, err := storage.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	require.Zero(t, AdminID(db))

	operator := &model.Subject{Username: "ops", Email: "ops@x", Role: "admin", IsActive: true}
	require.NoError(t, db.Create(operator).Error)
	require.Equal(t, operator.ID, AdminID(db))
}

func TestSeededDenyPoliciesCarryConditions(t *testing.T) {
	for _, policy := range defaultPolicies() {
		if policy.Effect == model.PolicyEffectDeny {
			require.NotNil(t, policy.Conditions, "deny policy %q must be conditional", policy.Name)
		}
	}
}
