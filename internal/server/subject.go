// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/model"
)

type contextKey string

const subjectContextKey contextKey = "subject"

// SubjectMiddleware resolves the calling subject from the X-Subject-ID
// header. Authentication happens upstream; this trusts the gateway's
// header. Requests without a resolvable active subject are rejected.
func SubjectMiddleware(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-Subject-ID")
			if raw == "" {
				writeErrorResponse(w, http.StatusUnauthorized, "missing X-Subject-ID header", CodeUnauthorized)
				return
			}
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				writeErrorResponse(w, http.StatusUnauthorized, "invalid X-Subject-ID header", CodeUnauthorized)
				return
			}

			var subject model.Subject
			if err := db.WithContext(r.Context()).First(&subject, uint(id)).Error; err != nil {
				writeErrorResponse(w, http.StatusUnauthorized, "unknown subject", CodeUnauthorized)
				return
			}
			if !subject.IsActive {
				writeErrorResponse(w, http.StatusForbidden, "subject is inactive", CodeForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey, &subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subjectFrom returns the resolved subject, or nil outside the subject
// middleware.
func subjectFrom(ctx context.Context) *model.Subject {
	subject, _ := ctx.Value(subjectContextKey).(*model.Subject)
	return subject
}
