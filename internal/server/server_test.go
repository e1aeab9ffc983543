// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/abac"
	"github.com/flowgate/flowgate/internal/logging"
	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/internal/model"
	"github.com/flowgate/flowgate/internal/storage"
	"github.com/flowgate/flowgate/internal/workflow"
)

func testServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	log := logging.New(logging.Config{Level: "error"})
	db, err := storage.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	m := metrics.New()
	engine := abac.NewEngine(db, log, m)
	policies := abac.NewPolicyService(db, log)
	workflows := workflow.NewService(db, log, m)

	srv := New(Config{Addr: ":0"}, db, engine, policies, workflows, m, log)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, db
}

func doJSON(t *testing.T, method, url string, subjectID uint, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if subjectID != 0 {
		req.Header.Set("X-Subject-ID", fmt.Sprintf("%d", subjectID))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubjectMiddlewareRejectsAnonymous(t *testing.T) {
	ts, _ := testServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/policies", 0, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	require.Equal(t, CodeUnauthorized, envelope["code"])
}

func TestCheckAccessEndpoint(t *testing.T) {
	ts, db := testServer(t)

	subject := &model.Subject{Username: "api", Email: "api@x", Role: "employee", IsActive: true}
	require.NoError(t, db.Create(subject).Error)
	require.NoError(t, db.Create(&model.Policy{
		Name: "read docs", Effect: model.PolicyEffectAllow, Priority: 1,
		Action: "read", ResourceType: "Doc", IsActive: true,
	}).Error)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/access/check", subject.ID, map[string]any{
		"action": "read", "resource_type": "Doc",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]any)
	require.Equal(t, true, data["allowed"])

	// A deny is still HTTP 200 with allowed=false.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/access/check", subject.ID, map[string]any{
		"action": "delete", "resource_type": "Doc",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	envelope = decodeEnvelope(t, resp)
	data = envelope["data"].(map[string]any)
	require.Equal(t, false, data["allowed"])
	require.Equal(t, "No matching policy found", data["reason"])
}

func TestPolicyManagementRequiresAdmin(t *testing.T) {
	ts, db := testServer(t)

	employee := &model.Subject{Username: "emp", Email: "emp@x", Role: "employee", IsActive: true}
	admin := &model.Subject{Username: "root", Email: "root@x", Role: "admin", IsActive: true, IsSuperuser: true}
	require.NoError(t, db.Create(employee).Error)
	require.NoError(t, db.Create(admin).Error)

	body := map[string]any{
		"name": "new policy", "effect": "allow",
		"action": "read", "resource_type": "Doc",
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/policies", employee.ID, body)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/policies", admin.ID, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Conflict surfaces as 409.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/policies", admin.ID, body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	require.Equal(t, CodeConflict, envelope["code"])
}

func TestWorkflowEndpoints(t *testing.T) {
	ts, db := testServer(t)

	creator := &model.Subject{Username: "wfm", Email: "wfm@x", Role: "manager", IsActive: true}
	require.NoError(t, db.Create(creator).Error)

	graph := map[string]any{
		"name": "API Flow",
		"nodes": []any{
			map[string]any{"id": "s", "type": "start", "data": map[string]any{"label": "Start"}},
			map[string]any{"id": "a", "type": "approval", "data": map[string]any{"label": "OK", "required_role": "hr"}},
		},
		"edges": []any{
			map[string]any{"id": "e", "source": "s", "target": "a"},
		},
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/workflows/graph", creator.ID, map[string]any{"graph": graph})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	wfID := uint(envelope["data"].(map[string]any)["id"].(float64))

	// Invalid graphs surface the diagnostics as 400.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/workflows/graph", creator.ID, map[string]any{
		"graph": map[string]any{"nodes": []any{}, "edges": []any{}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope = decodeEnvelope(t, resp)
	require.Equal(t, CodeInvalid, envelope["code"])

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/workflows/%d", ts.URL, wfID), creator.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/workflows/%d/publish", ts.URL, wfID), creator.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/workflow-templates", creator.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/workflows/%d", ts.URL, 99999), creator.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
