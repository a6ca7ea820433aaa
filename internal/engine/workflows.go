package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shiftflow/internal/domain"
	"shiftflow/internal/recurrence"
	"shiftflow/internal/repo"
)

// RecurringWorkflowOptions are parameters for creating a recurring
// definition. Config is the raw recurrence config JSON; it is validated
// against Pattern before anything is stored.
type RecurringWorkflowOptions struct {
	TemplateID string
	Name       string
	Pattern    string
	Config     string
	AssignedTo []string
	ActorID    string
}

// CreateRecurringWorkflow validates the recurrence rule and recipients, then
// stores the definition with its first fire time computed from now.
func (e Engine) CreateRecurringWorkflow(ctx context.Context, opts RecurringWorkflowOptions) (domain.RecurringWorkflow, error) {
	if _, err := e.requireManager(ctx, opts.ActorID, "workflow.create"); err != nil {
		return domain.RecurringWorkflow{}, err
	}
	rule, err := recurrence.Parse(opts.Pattern, opts.Config)
	if err != nil {
		return domain.RecurringWorkflow{}, err
	}
	tpl, err := e.Repo.GetTemplate(ctx, opts.TemplateID)
	if err != nil {
		return domain.RecurringWorkflow{}, fmt.Errorf("template %s: %w", opts.TemplateID, err)
	}
	if len(opts.AssignedTo) == 0 {
		return domain.RecurringWorkflow{}, errors.New("assigned_to is required")
	}
	for _, id := range opts.AssignedTo {
		if _, err := e.Repo.GetEmployee(ctx, id); err != nil {
			return domain.RecurringWorkflow{}, fmt.Errorf("employee %s: %w", id, err)
		}
	}
	name := opts.Name
	if name == "" {
		name = tpl.Name
	}
	next := recurrence.NextOccurrence(rule, e.nowLocal())
	w := domain.RecurringWorkflow{
		ID:             uuid.New().String(),
		TemplateID:     tpl.ID,
		Name:           name,
		Pattern:        rule.Pattern,
		ConfigJSON:     rule.ConfigJSON(),
		AssignedTo:     opts.AssignedTo,
		AssignedBy:     opts.ActorID,
		NextAssignment: next.UTC().Format(time.RFC3339),
		IsActive:       true,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertRecurringWorkflow(ctx, w); err != nil {
		return domain.RecurringWorkflow{}, fmt.Errorf("insert recurring workflow: %w", err)
	}
	return w, nil
}

// SetRecurringWorkflowActive pauses or resumes a definition. Resuming
// recomputes next_assignment from now so a long pause does not cause a burst
// of immediately-due fires.
func (e Engine) SetRecurringWorkflowActive(ctx context.Context, id string, active bool, actorID string) (domain.RecurringWorkflow, error) {
	if _, err := e.requireManager(ctx, actorID, "workflow.pause"); err != nil {
		return domain.RecurringWorkflow{}, err
	}
	w, err := e.Repo.GetRecurringWorkflow(ctx, id)
	if err != nil {
		return w, err
	}
	if w.IsActive == active {
		return w, nil
	}
	if active {
		rule, err := recurrence.Parse(w.Pattern, w.ConfigJSON)
		if err != nil {
			return w, err
		}
		next := recurrence.NextOccurrence(rule, e.nowLocal()).UTC().Format(time.RFC3339)
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return w, err
		}
		defer tx.Rollback()
		last := ""
		if w.LastAssigned != nil {
			last = *w.LastAssigned
		}
		if err := e.Repo.AdvanceRecurringWorkflow(ctx, tx, w.ID, w.NextAssignment, next, last); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return w, err
		}
		if err := tx.Commit(); err != nil {
			return w, err
		}
		w.NextAssignment = next
	}
	if err := e.Repo.SetRecurringWorkflowActive(ctx, id, active); err != nil {
		return w, err
	}
	w.IsActive = active
	return w, nil
}

// UpdateRecurringWorkflowRecipients replaces the definition's recipient set.
func (e Engine) UpdateRecurringWorkflowRecipients(ctx context.Context, id string, assignedTo []string, actorID string) (domain.RecurringWorkflow, error) {
	if _, err := e.requireManager(ctx, actorID, "workflow.recipients"); err != nil {
		return domain.RecurringWorkflow{}, err
	}
	w, err := e.Repo.GetRecurringWorkflow(ctx, id)
	if err != nil {
		return w, err
	}
	if len(assignedTo) == 0 {
		return w, errors.New("assigned_to is required")
	}
	for _, empID := range assignedTo {
		if _, err := e.Repo.GetEmployee(ctx, empID); err != nil {
			return w, fmt.Errorf("employee %s: %w", empID, err)
		}
	}
	if err := e.Repo.UpdateRecurringWorkflowRecipients(ctx, id, assignedTo); err != nil {
		return w, err
	}
	w.AssignedTo = assignedTo
	return w, nil
}
