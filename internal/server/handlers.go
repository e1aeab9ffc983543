// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/flowgate/flowgate/internal/abac"
	"github.com/flowgate/flowgate/internal/model"
	"github.com/flowgate/flowgate/internal/workflow"
)

// Handlers carries the services the HTTP layer fronts.
type Handlers struct {
	engine    *abac.Engine
	policies  *abac.PolicyService
	workflows *workflow.Service
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(engine *abac.Engine, policies *abac.PolicyService, workflows *workflow.Service) *Handlers {
	return &Handlers{engine: engine, policies: policies, workflows: workflows}
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 32)
	return uint(id), err == nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body", CodeInvalid)
		return false
	}
	return true
}

// ListPolicies handles GET /api/v1/policies.
func (h *Handlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &abac.PolicyFilter{
		ResourceType: q.Get("resource_type"),
		Action:       q.Get("action"),
		ActiveOnly:   q.Get("active") == "true",
	}
	policies, err := h.policies.ListPolicies(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListResponse(w, policies)
}

// CreatePolicy handles POST /api/v1/policies.
func (h *Handlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var input abac.CreatePolicyInput
	if !decodeBody(w, r, &input) {
		return
	}
	policy, err := h.policies.CreatePolicy(r.Context(), subjectFrom(r.Context()).ID, &input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusCreated, policy)
}

// GetPolicy handles GET /api/v1/policies/{id}.
func (h *Handlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid policy id", CodeInvalid)
		return
	}
	policy, err := h.policies.GetPolicy(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, policy)
}

// UpdatePolicy handles PUT /api/v1/policies/{id}.
func (h *Handlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid policy id", CodeInvalid)
		return
	}
	var input abac.UpdatePolicyInput
	if !decodeBody(w, r, &input) {
		return
	}
	policy, err := h.policies.UpdatePolicy(r.Context(), id, &input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, policy)
}

// DeletePolicy handles DELETE /api/v1/policies/{id}.
func (h *Handlers) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid policy id", CodeInvalid)
		return
	}
	if err := h.policies.DeletePolicy(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type checkAccessRequest struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *int64         `json:"resource_id,omitempty"`
	Resource     map[string]any `json:"resource,omitempty"`
}

// CheckAccess handles POST /api/v1/access/check. A deny is a successful
// response with allowed=false, not an error.
func (h *Handlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req checkAccessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Action == "" || req.ResourceType == "" {
		writeErrorResponse(w, http.StatusBadRequest, "action and resource_type are required", CodeInvalid)
		return
	}

	decision, err := h.engine.CheckAccess(
		r.Context(), subjectFrom(r.Context()),
		req.Action, req.ResourceType, req.ResourceID, req.Resource,
		requestContext(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, decision)
}

// ListAuditLogs handles GET /api/v1/audit-logs.
func (h *Handlers) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &abac.AuditFilter{
		ResourceType: q.Get("resource_type"),
		Action:       q.Get("action"),
		Decision:     q.Get("decision"),
	}
	if raw := q.Get("subject_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid subject_id", CodeInvalid)
			return
		}
		sid := uint(id)
		filter.SubjectID = &sid
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid limit", CodeInvalid)
			return
		}
		filter.Limit = limit
	}

	logs, err := h.policies.ListAuditLogs(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListResponse(w, logs)
}

// GetSubjectProfile handles GET /api/v1/subjects/{id}/profile.
func (h *Handlers) GetSubjectProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid subject id", CodeInvalid)
		return
	}
	profile, err := h.policies.GetSubjectProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, profile)
}

// UpdateSubjectProfile handles PUT /api/v1/subjects/{id}/profile.
func (h *Handlers) UpdateSubjectProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid subject id", CodeInvalid)
		return
	}
	var input abac.UpdateSubjectProfileInput
	if !decodeBody(w, r, &input) {
		return
	}
	profile, err := h.policies.UpdateSubjectProfile(r.Context(), id, &input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, profile)
}

type setResourceAttributeRequest struct {
	AttributeName  string `json:"attribute_name"`
	AttributeValue string `json:"attribute_value"`
	AttributeType  string `json:"attribute_type"`
}

// SetResourceAttribute handles PUT /api/v1/resources/{type}/{id}/attributes.
func (h *Handlers) SetResourceAttribute(w http.ResponseWriter, r *http.Request) {
	resourceID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid resource id", CodeInvalid)
		return
	}
	var req setResourceAttributeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AttributeName == "" {
		writeErrorResponse(w, http.StatusBadRequest, "attribute_name is required", CodeInvalid)
		return
	}
	if req.AttributeType == "" {
		req.AttributeType = "string"
	}

	attr, err := h.policies.SetResourceAttribute(r.Context(), &model.ResourceAttribute{
		ResourceType:   r.PathValue("type"),
		ResourceID:     resourceID,
		AttributeName:  req.AttributeName,
		AttributeValue: req.AttributeValue,
		AttributeType:  req.AttributeType,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, attr)
}

// ListWorkflows handles GET /api/v1/workflows.
func (h *Handlers) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &workflow.ListFilter{Status: q.Get("status")}
	if raw := q.Get("department_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid department_id", CodeInvalid)
			return
		}
		filter.DepartmentID = &id
	}

	workflows, err := h.workflows.ListWorkflows(r.Context(), subjectFrom(r.Context()), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListResponse(w, workflows)
}

type saveGraphRequest struct {
	WorkflowID  *uint          `json:"workflow_id,omitempty"`
	Graph       map[string]any `json:"graph"`
	Description string         `json:"description,omitempty"`
}

// SaveWorkflowGraph handles POST /api/v1/workflows/graph.
func (h *Handlers) SaveWorkflowGraph(w http.ResponseWriter, r *http.Request) {
	var req saveGraphRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Graph == nil {
		writeErrorResponse(w, http.StatusBadRequest, "graph is required", CodeInvalid)
		return
	}

	wf, err := h.workflows.SaveWorkflowGraph(r.Context(), req.WorkflowID, req.Graph, subjectFrom(r.Context()), req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if req.WorkflowID == nil {
		status = http.StatusCreated
	}
	writeSuccessResponse(w, status, wf)
}

// GetWorkflow handles GET /api/v1/workflows/{id}.
func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid workflow id", CodeInvalid)
		return
	}
	wf, err := h.workflows.GetWorkflow(r.Context(), id, subjectFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, wf)
}

// DeleteWorkflow handles DELETE /api/v1/workflows/{id}.
func (h *Handlers) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid workflow id", CodeInvalid)
		return
	}
	if err := h.workflows.DeleteWorkflow(r.Context(), id, subjectFrom(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PublishWorkflow handles POST /api/v1/workflows/{id}/publish.
func (h *Handlers) PublishWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid workflow id", CodeInvalid)
		return
	}
	wf, err := h.workflows.PublishWorkflow(r.Context(), id, subjectFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, wf)
}

type cloneWorkflowRequest struct {
	Name string `json:"name"`
}

// CloneWorkflow handles POST /api/v1/workflows/{id}/clone.
func (h *Handlers) CloneWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid workflow id", CodeInvalid)
		return
	}
	var req cloneWorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeErrorResponse(w, http.StatusBadRequest, "name is required", CodeInvalid)
		return
	}

	wf, err := h.workflows.CloneWorkflow(r.Context(), id, req.Name, subjectFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusCreated, wf)
}

// ListVersions handles GET /api/v1/workflows/{id}/versions.
func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid workflow id", CodeInvalid)
		return
	}
	versions, err := h.workflows.ListVersions(r.Context(), id, subjectFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListResponse(w, versions)
}

// ListStages handles GET /api/v1/workflows/{id}/stages.
func (h *Handlers) ListStages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "invalid workflow id", CodeInvalid)
		return
	}
	stages, err := h.workflows.ListStages(r.Context(), id, subjectFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeListResponse(w, stages)
}

// ListTemplates handles GET /api/v1/workflow-templates.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeListResponse(w, workflow.ListTemplates())
}

// GetTemplate handles GET /api/v1/workflow-templates/{id}.
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	graph, err := workflow.Template(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, graph)
}

type createFromTemplateRequest struct {
	Name string `json:"name,omitempty"`
}

// CreateFromTemplate handles POST /api/v1/workflow-templates/{id}.
func (h *Handlers) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req createFromTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wf, err := h.workflows.CreateFromTemplate(r.Context(), r.PathValue("id"), req.Name, subjectFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusCreated, wf)
}
