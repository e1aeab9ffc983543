// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net"
	"net/http"

	"github.com/flowgate/flowgate/internal/abac"
)

// requestContext captures transport metadata for the environment bag
// and the audit trail.
func requestContext(r *http.Request) *abac.RequestContext {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return &abac.RequestContext{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		Endpoint:  r.URL.Path,
	}
}

// RequireAccess gates a route behind a policy decision on (action,
// resourceType). A deny becomes 403 FORBIDDEN carrying the decision's
// reason; the deny is still audited by the engine.
func RequireAccess(engine *abac.Engine, action, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := subjectFrom(r.Context())
			if subject == nil {
				writeErrorResponse(w, http.StatusUnauthorized, "subject not resolved", CodeUnauthorized)
				return
			}

			decision, err := engine.CheckAccess(r.Context(), subject, action, resourceType, nil, nil, requestContext(r))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if !decision.Allowed {
				writeErrorResponse(w, http.StatusForbidden, decision.Reason, CodeForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles gates a route behind the hybrid check: role membership
// or, with requireAll, role membership plus a policy decision.
func RequireRoles(engine *abac.Engine, roles []string, requireAll bool, action, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := subjectFrom(r.Context())
			if subject == nil {
				writeErrorResponse(w, http.StatusUnauthorized, "subject not resolved", CodeUnauthorized)
				return
			}

			decision, err := engine.EvaluateHybrid(r.Context(), subject, roles, requireAll, action, resourceType, nil, nil, requestContext(r))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if !decision.Allowed {
				writeErrorResponse(w, http.StatusForbidden, decision.Reason, CodeForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
