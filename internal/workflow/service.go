// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/internal/model"
)

// Service manages visual workflow definitions.
type Service struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a workflow service.
func NewService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{db: db, logger: logger, metrics: m}
}

// SaveWorkflowGraph creates or updates a workflow from an authored
// graph. Updates snapshot the pre-save graph under the pre-save version
// number, bump the version, and recompile the derived stages and routes;
// everything commits in one transaction.
func (s *Service) SaveWorkflowGraph(
	ctx context.Context,
	workflowID *uint,
	graph map[string]any,
	subject *model.Subject,
	description string,
) (*model.WorkflowDefinition, error) {
	doc, err := validateGraph(graph)
	if err != nil {
		s.metrics.ObserveCompilation(false)
		return nil, err
	}

	var workflow model.WorkflowDefinition

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if workflowID != nil {
			if err := tx.First(&workflow, *workflowID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrWorkflowNotFound
				}
				return fmt.Errorf("failed to fetch workflow: %w", err)
			}
			if !canEdit(subject, &workflow) {
				return ErrForbidden
			}

			snapshot := &model.WorkflowVersion{
				WorkflowID:        workflow.ID,
				VersionNumber:     workflow.Version,
				Graph:             workflow.Graph,
				ChangeDescription: description,
				CreatedBy:         subject.ID,
			}
			if err := tx.Create(snapshot).Error; err != nil {
				return fmt.Errorf("failed to snapshot version: %w", err)
			}

			workflow.Graph = graph
			workflow.Version++
			if err := tx.Save(&workflow).Error; err != nil {
				return fmt.Errorf("failed to update workflow: %w", err)
			}
		} else {
			workflow = model.WorkflowDefinition{
				Name:        graphStringOr(graph, "name", "New Workflow"),
				Description: graphStringOr(graph, "description", ""),
				ModelName:   graphStringOr(graph, "model_name", "GenericModel"),
				Graph:       graph,
				Version:     1,
				Status:      model.WorkflowStatusDraft,
				CreatedBy:   subject.ID,
			}
			if err := tx.Create(&workflow).Error; err != nil {
				if isUniqueViolation(tx, err, workflow.Name) {
					return ErrNameConflict
				}
				return fmt.Errorf("failed to create workflow: %w", err)
			}
		}

		return compileStages(tx, workflow.ID, doc)
	})
	if err != nil {
		s.metrics.ObserveCompilation(false)
		return nil, err
	}

	s.metrics.ObserveCompilation(true)
	s.logger.Info("workflow saved",
		"workflow_id", workflow.ID,
		"name", workflow.Name,
		"version", workflow.Version,
		"subject_id", subject.ID)
	return &workflow, nil
}

// PublishWorkflow activates a workflow after a completeness check: the
// graph must revalidate and every approval stage needs at least one
// approver source configured.
func (s *Service) PublishWorkflow(ctx context.Context, id uint, subject *model.Subject) (*model.WorkflowDefinition, error) {
	var workflow model.WorkflowDefinition

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&workflow, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWorkflowNotFound
			}
			return fmt.Errorf("failed to fetch workflow: %w", err)
		}
		if !canPublish(subject, &workflow) {
			return ErrForbidden
		}

		if _, err := validateGraph(workflow.Graph); err != nil {
			return err
		}

		var diagnostics []string
		var stages []model.WorkflowStage
		if err := tx.Where("workflow_id = ?", id).Order("order_index ASC").Find(&stages).Error; err != nil {
			return fmt.Errorf("failed to fetch stages: %w", err)
		}
		if len(stages) == 0 {
			diagnostics = append(diagnostics, "no stages defined")
		}
		for _, stage := range stages {
			if stage.NodeType != model.NodeTypeApproval {
				continue
			}
			if stage.RequiredRole == nil && len(stage.RequiredRoles) == 0 && len(stage.SpecificUsers) == 0 {
				diagnostics = append(diagnostics, fmt.Sprintf("stage '%s' missing required approvers", stage.Name))
			}
		}
		if len(diagnostics) > 0 {
			return &ValidationError{Diagnostics: diagnostics}
		}

		now := time.Now().UTC()
		workflow.Status = model.WorkflowStatusActive
		workflow.PublishedAt = &now
		return tx.Save(&workflow).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("workflow published",
		"workflow_id", workflow.ID,
		"name", workflow.Name,
		"subject_id", subject.ID)
	return &workflow, nil
}

// CloneWorkflow copies a viewable workflow into a fresh draft owned by
// the caller, recompiling stages from the source graph.
func (s *Service) CloneWorkflow(ctx context.Context, id uint, newName string, subject *model.Subject) (*model.WorkflowDefinition, error) {
	var cloned model.WorkflowDefinition

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source model.WorkflowDefinition
		if err := tx.First(&source, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWorkflowNotFound
			}
			return fmt.Errorf("failed to fetch workflow: %w", err)
		}
		if !canView(subject, s.profileFor(tx, subject), &source) {
			return ErrForbidden
		}

		doc, err := validateGraph(source.Graph)
		if err != nil {
			return err
		}

		cloned = model.WorkflowDefinition{
			Name:        newName,
			Description: fmt.Sprintf("Cloned from: %s", source.Name),
			ModelName:   source.ModelName,
			Graph:       source.Graph,
			Version:     1,
			Status:      model.WorkflowStatusDraft,
			CreatedBy:   subject.ID,
		}
		if err := tx.Create(&cloned).Error; err != nil {
			if isUniqueViolation(tx, err, newName) {
				return ErrNameConflict
			}
			return fmt.Errorf("failed to create clone: %w", err)
		}

		return compileStages(tx, cloned.ID, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("workflow cloned", "source_id", id, "workflow_id", cloned.ID, "subject_id", subject.ID)
	return &cloned, nil
}

// ListWorkflows returns the workflows visible to the subject, filtered
// by status and department when supplied.
func (s *Service) ListWorkflows(ctx context.Context, subject *model.Subject, filter *ListFilter) ([]model.WorkflowDefinition, error) {
	query := s.db.WithContext(ctx).Model(&model.WorkflowDefinition{})
	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.DepartmentID != nil {
			query = query.Where("department_id = ?", *filter.DepartmentID)
		}
	}

	var all []model.WorkflowDefinition
	if err := query.Order("id ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	profile := s.profileFor(s.db.WithContext(ctx), subject)
	visible := make([]model.WorkflowDefinition, 0, len(all))
	for _, w := range all {
		if canView(subject, profile, &w) {
			visible = append(visible, w)
		}
	}
	return visible, nil
}

// GetWorkflow fetches a workflow the subject may view.
func (s *Service) GetWorkflow(ctx context.Context, id uint, subject *model.Subject) (*model.WorkflowDefinition, error) {
	var workflow model.WorkflowDefinition
	err := s.db.WithContext(ctx).First(&workflow, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow: %w", err)
	}
	if !canView(subject, s.profileFor(s.db.WithContext(ctx), subject), &workflow) {
		return nil, ErrForbidden
	}
	return &workflow, nil
}

// DeleteWorkflow removes a workflow and all of its derived and
// versioned state.
func (s *Service) DeleteWorkflow(ctx context.Context, id uint, subject *model.Subject) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var workflow model.WorkflowDefinition
		if err := tx.First(&workflow, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWorkflowNotFound
			}
			return fmt.Errorf("failed to fetch workflow: %w", err)
		}
		if !canEdit(subject, &workflow) {
			return ErrForbidden
		}

		var stageIDs []uint
		if err := tx.Model(&model.WorkflowStage{}).Where("workflow_id = ?", id).Pluck("id", &stageIDs).Error; err != nil {
			return fmt.Errorf("failed to collect stages: %w", err)
		}
		if len(stageIDs) > 0 {
			if err := tx.Where("from_stage_id IN ?", stageIDs).Delete(&model.ConditionalRoute{}).Error; err != nil {
				return fmt.Errorf("failed to delete routes: %w", err)
			}
		}
		if err := tx.Where("workflow_id = ?", id).Delete(&model.WorkflowStage{}).Error; err != nil {
			return fmt.Errorf("failed to delete stages: %w", err)
		}
		if err := tx.Where("workflow_id = ?", id).Delete(&model.WorkflowVersion{}).Error; err != nil {
			return fmt.Errorf("failed to delete versions: %w", err)
		}
		return tx.Delete(&workflow).Error
	})
	if err != nil {
		return err
	}

	s.logger.Info("workflow deleted", "workflow_id", id, "subject_id", subject.ID)
	return nil
}

// ListVersions returns a viewable workflow's snapshot history, newest
// first.
func (s *Service) ListVersions(ctx context.Context, id uint, subject *model.Subject) ([]model.WorkflowVersion, error) {
	if _, err := s.GetWorkflow(ctx, id, subject); err != nil {
		return nil, err
	}

	var versions []model.WorkflowVersion
	err := s.db.WithContext(ctx).
		Where("workflow_id = ?", id).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// CanUse reports whether the subject may start an instance of the
// workflow.
func (s *Service) CanUse(ctx context.Context, id uint, subject *model.Subject) (bool, error) {
	var workflow model.WorkflowDefinition
	err := s.db.WithContext(ctx).First(&workflow, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrWorkflowNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch workflow: %w", err)
	}
	return canUse(subject, s.profileFor(s.db.WithContext(ctx), subject), &workflow), nil
}

// ListStages returns the compiled stages of a viewable workflow in
// execution order.
func (s *Service) ListStages(ctx context.Context, id uint, subject *model.Subject) ([]model.WorkflowStage, error) {
	if _, err := s.GetWorkflow(ctx, id, subject); err != nil {
		return nil, err
	}

	var stages []model.WorkflowStage
	err := s.db.WithContext(ctx).
		Where("workflow_id = ?", id).
		Order("order_index ASC").
		Find(&stages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	return stages, nil
}

func (s *Service) profileFor(tx *gorm.DB, subject *model.Subject) *model.SubjectProfile {
	var profile model.SubjectProfile
	if err := tx.Where("subject_id = ?", subject.ID).First(&profile).Error; err != nil {
		return nil
	}
	return &profile
}

// isUniqueViolation reports whether a create failed on the workflow
// name's unique index by probing for an existing row with that name.
func isUniqueViolation(tx *gorm.DB, err error, name string) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var existing model.WorkflowDefinition
	return tx.Where("name = ?", name).First(&existing).Error == nil
}

func graphStringOr(graph map[string]any, key, fallback string) string {
	if s, ok := graph[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
