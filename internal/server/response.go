// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flowgate/flowgate/internal/abac"
	"github.com/flowgate/flowgate/internal/workflow"
)

// API error codes carried in the response envelope.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeInvalid       = "INVALID"
	CodeForbidden     = "FORBIDDEN"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInternalError = "INTERNAL_ERROR"
)

// APIResponse is the standard response wrapper.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ListResponse wraps list payloads with a total count.
type ListResponse[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
}

// writeSuccessResponse writes a successful API response.
func writeSuccessResponse[T any](w http.ResponseWriter, statusCode int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{Success: true, Data: data})
}

// writeListResponse writes a list response.
func writeListResponse[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeSuccessResponse(w, http.StatusOK, ListResponse[T]{Items: items, TotalCount: len(items)})
}

// writeErrorResponse writes an error API response.
func writeErrorResponse(w http.ResponseWriter, statusCode int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse[any]{Success: false, Error: message, Code: code})
}

// writeServiceError maps a service error to its HTTP status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *workflow.ValidationError
	switch {
	case errors.Is(err, abac.ErrPolicyNotFound),
		errors.Is(err, abac.ErrProfileNotFound),
		errors.Is(err, workflow.ErrWorkflowNotFound),
		errors.Is(err, workflow.ErrVersionNotFound),
		errors.Is(err, workflow.ErrTemplateNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, abac.ErrPolicyNameConflict),
		errors.Is(err, workflow.ErrNameConflict):
		writeErrorResponse(w, http.StatusConflict, err.Error(), CodeConflict)
	case errors.As(err, &validationErr),
		errors.Is(err, abac.ErrInvalidPolicy),
		errors.Is(err, abac.ErrInvalidPolicyFilter),
		errors.Is(err, abac.ErrInvalidAuditFilter):
		writeErrorResponse(w, http.StatusBadRequest, err.Error(), CodeInvalid)
	case errors.Is(err, workflow.ErrForbidden),
		errors.Is(err, abac.ErrAccessDenied):
		writeErrorResponse(w, http.StatusForbidden, err.Error(), CodeForbidden)
	case errors.Is(err, abac.ErrSubjectRequired):
		writeErrorResponse(w, http.StatusUnauthorized, err.Error(), CodeUnauthorized)
	default:
		writeErrorResponse(w, http.StatusInternalServerError, "internal server error", CodeInternalError)
	}
}
