package engine

import (
	"context"
	"errors"
	"time"

	"shiftflow/internal/domain"
	"shiftflow/internal/recurrence"
	"shiftflow/internal/repo"
)

// ScheduleResult records what happened to one due definition during a
// scheduler run.
type ScheduleResult struct {
	WorkflowID    string   `json:"workflow_id"`
	Name          string   `json:"name"`
	AssignmentIDs []string `json:"assignment_ids,omitempty"`
	Skipped       []string `json:"skipped,omitempty"` // recipient ids skipped as missing or inactive
	Error         string   `json:"error,omitempty"`
}

// SchedulerSummary is one full scheduler run.
type SchedulerSummary struct {
	RanAt    string           `json:"ran_at" format:"date-time"`
	Due      int              `json:"due"`
	Created  int              `json:"created"`
	Failures int              `json:"failures"`
	Results  []ScheduleResult `json:"results,omitempty"`
}

// RunScheduler fires every active recurring definition whose next_assignment
// is at or before now. Each definition runs in its own transaction, so one
// failing definition never blocks the rest; the compare-and-swap advance of
// next_assignment inside the same transaction makes overlapping runs fire a
// definition at most once.
func (e Engine) RunScheduler(ctx context.Context) (SchedulerSummary, error) {
	now := e.now().UTC()
	summary := SchedulerSummary{RanAt: now.Format(time.RFC3339)}
	due, err := e.Repo.ListDueRecurringWorkflows(ctx, now.Format(time.RFC3339))
	if err != nil {
		return summary, err
	}
	summary.Due = len(due)
	for _, w := range due {
		res := e.fireWorkflow(ctx, w)
		if res.Error != "" {
			summary.Failures++
		}
		summary.Created += len(res.AssignmentIDs)
		summary.Results = append(summary.Results, res)
	}
	if summary.Due > 0 {
		e.logf("scheduler: %d due, %d assignments created, %d failures", summary.Due, summary.Created, summary.Failures)
	}
	return summary, nil
}

func (e Engine) fireWorkflow(ctx context.Context, w domain.RecurringWorkflow) ScheduleResult {
	res := ScheduleResult{WorkflowID: w.ID, Name: w.Name}
	rule, err := recurrence.Parse(w.Pattern, w.ConfigJSON)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	tpl, err := e.Repo.GetTemplate(ctx, w.TemplateID)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	local := e.nowLocal()
	due := recurrence.DueDate(rule.Pattern, local).UTC().Format(time.RFC3339)
	next := recurrence.NextOccurrence(rule, local).UTC().Format(time.RFC3339)
	firedAt := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer tx.Rollback()

	// Advance first. Losing the compare-and-swap means another run already
	// fired this definition; that is not an error.
	if err := e.Repo.AdvanceRecurringWorkflow(ctx, tx, w.ID, w.NextAssignment, next, firedAt); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			e.logf("scheduler: workflow %s already advanced, skipping", w.ID)
			return res
		}
		res.Error = err.Error()
		return res
	}
	for _, empID := range w.AssignedTo {
		emp, err := e.Repo.GetEmployee(ctx, empID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !emp.IsActive) {
			e.logf("scheduler: workflow %s: skipping recipient %s (missing or inactive)", w.ID, empID)
			res.Skipped = append(res.Skipped, empID)
			continue
		}
		if err != nil {
			res.Error = err.Error()
			return res
		}
		a, err := e.createAssignment(ctx, tx, tpl, &w.ID, w.Name, empID, w.AssignedBy, due)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.AssignmentIDs = append(res.AssignmentIDs, a.ID)
	}
	if err := tx.Commit(); err != nil {
		res.AssignmentIDs = nil
		res.Error = err.Error()
		return res
	}
	return res
}
