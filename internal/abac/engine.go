// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package abac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/internal/model"
)

// Engine evaluates access requests against the stored policy set and
// records every decision in the audit trail.
type Engine struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a decision engine.
func NewEngine(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		db:      db,
		logger:  logger,
		metrics: m,
	}
}

// CheckAccess evaluates whether subject may perform action on the given
// resource. The decision and its audit record are committed atomically:
// if the audit record cannot be written the decision is discarded and an
// error is returned.
//
// Arbitration is deny-overrides: candidates are walked in priority order,
// a matching deny terminates evaluation immediately, and a matching allow
// is retained while lower-priority policies are still scanned for a deny.
// When nothing matches the request is denied.
func (e *Engine) CheckAccess(
	ctx context.Context,
	subject *model.Subject,
	action, resourceType string,
	resourceID *int64,
	resourceObj map[string]any,
	reqCtx *RequestContext,
) (*Decision, error) {
	if subject == nil {
		return nil, ErrSubjectRequired
	}

	start := time.Now()
	decision := &Decision{Allowed: false, Reason: defaultReason}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bags := Bags{
			Subject:     resolveSubjectBag(tx, subject),
			Resource:    resolveResourceBag(tx, resourceType, resourceID, resourceObj),
			Environment: resolveEnvironmentBag(start, reqCtx),
		}

		candidates, err := candidatePolicies(tx, action, resourceType, subject)
		if err != nil {
			return err
		}

		evaluated := make([]uint, 0, len(candidates))
		for _, policy := range candidates {
			evaluated = append(evaluated, policy.ID)
			if !evaluateGroup(policy.Conditions, bags) {
				continue
			}

			id := policy.ID
			if policy.Effect == model.PolicyEffectDeny {
				decision.Allowed = false
				decision.Reason = fmt.Sprintf("Policy '%s' matched", policy.Name)
				decision.PolicyID = &id
				decision.PolicyName = policy.Name
				break
			}
			// First matching allow wins the attribution; iteration
			// continues so a lower-priority deny can still override.
			if !decision.Allowed {
				decision.Allowed = true
				decision.Reason = fmt.Sprintf("Policy '%s' matched", policy.Name)
				decision.PolicyID = &id
				decision.PolicyName = policy.Name
			}
		}

		record := &model.AccessLog{
			SubjectID:             subject.ID,
			Action:                action,
			ResourceType:          resourceType,
			ResourceID:            resourceID,
			Decision:              decisionLabel(decision.Allowed),
			PolicyID:              decision.PolicyID,
			SubjectAttributes:     bags.Subject,
			ResourceAttributes:    bags.Resource,
			EnvironmentAttributes: bags.Environment,
			EvaluatedPolicies:     evaluated,
			EvaluationTimeMS:      time.Since(start).Milliseconds(),
			Reason:                decision.Reason,
		}
		if reqCtx != nil {
			record.IPAddress = reqCtx.IPAddress
			record.UserAgent = reqCtx.UserAgent
			record.Endpoint = reqCtx.Endpoint
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("access check failed",
			"subject_id", subject.ID,
			"action", action,
			"resource_type", resourceType,
			"error", err)
		return nil, err
	}

	e.metrics.ObserveDecision(decision.Allowed, time.Since(start).Seconds())
	e.logger.Debug("access decision",
		"subject_id", subject.ID,
		"action", action,
		"resource_type", resourceType,
		"allowed", decision.Allowed,
		"reason", decision.Reason)

	return decision, nil
}

// EvaluateHybrid combines a role membership check with a policy decision.
// With requireAll set both checks must pass; otherwise either suffices.
// Superusers satisfy the role check outright. An empty role list makes
// the role check vacuously true under requireAll and false otherwise, so
// a pure-policy gate degrades to CheckAccess. An empty action or resource
// type means no policy check was requested and the role check alone
// decides.
func (e *Engine) EvaluateHybrid(
	ctx context.Context,
	subject *model.Subject,
	requiredRoles []string,
	requireAll bool,
	action, resourceType string,
	resourceID *int64,
	resourceObj map[string]any,
	reqCtx *RequestContext,
) (*Decision, error) {
	if subject == nil {
		return nil, ErrSubjectRequired
	}

	roleOK := subject.IsSuperuser || rolesIntersect(subject.EffectiveRoles(), requiredRoles)
	if len(requiredRoles) == 0 {
		roleOK = requireAll
	}

	if !requireAll && roleOK {
		return &Decision{
			Allowed: true,
			Reason:  "Allowed by role membership",
		}, nil
	}
	if requireAll && !roleOK {
		return &Decision{
			Allowed: false,
			Reason:  "Required role missing",
		}, nil
	}

	if action == "" || resourceType == "" {
		if roleOK {
			return &Decision{
				Allowed: true,
				Reason:  "Allowed by role membership",
			}, nil
		}
		return &Decision{
			Allowed: false,
			Reason:  "Required role missing",
		}, nil
	}

	return e.CheckAccess(ctx, subject, action, resourceType, resourceID, resourceObj, reqCtx)
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
