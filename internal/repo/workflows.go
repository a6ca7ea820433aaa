package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"shiftflow/internal/domain"
)

func marshalRecipients(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func scanRecurring(scan func(dest ...any) error) (domain.RecurringWorkflow, error) {
	var (
		w        domain.RecurringWorkflow
		assigned string
		last     sql.NullString
	)
	err := scan(&w.ID, &w.TemplateID, &w.Name, &w.Pattern, &w.ConfigJSON, &assigned, &w.AssignedBy, &w.NextAssignment, &last, &w.IsActive, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.LastAssigned = optString(last)
	if err := json.Unmarshal([]byte(assigned), &w.AssignedTo); err != nil {
		return w, fmt.Errorf("decode assigned_to for workflow %s: %w", w.ID, err)
	}
	return w, nil
}

const recurringColumns = `id,template_id,name,recurrence_pattern,recurrence_config,assigned_to,assigned_by,next_assignment,last_assigned,is_active,created_at`

func (r Repo) InsertRecurringWorkflow(ctx context.Context, w domain.RecurringWorkflow) error {
	assigned, err := marshalRecipients(w.AssignedTo)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO recurring_workflows(`+recurringColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.TemplateID, w.Name, w.Pattern, w.ConfigJSON, assigned, w.AssignedBy, w.NextAssignment, nullableStr(w.LastAssigned), w.IsActive, w.CreatedAt)
	return err
}

func (r Repo) GetRecurringWorkflow(ctx context.Context, id string) (domain.RecurringWorkflow, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_workflows WHERE id=?`, id)
	return scanRecurring(row.Scan)
}

func (r Repo) ListRecurringWorkflows(ctx context.Context, activeOnly bool) ([]domain.RecurringWorkflow, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_workflows`
	if activeOnly {
		query += ` WHERE is_active=1`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RecurringWorkflow
	for rows.Next() {
		w, err := scanRecurring(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// ListDueRecurringWorkflows returns active definitions whose next_assignment
// is at or before now (RFC3339 strings compare lexicographically).
func (r Repo) ListDueRecurringWorkflows(ctx context.Context, now string) ([]domain.RecurringWorkflow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring_workflows WHERE is_active=1 AND next_assignment<=? ORDER BY next_assignment`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RecurringWorkflow
	for rows.Next() {
		w, err := scanRecurring(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// AdvanceRecurringWorkflow moves next_assignment forward with a compare-and-
// swap on the previously observed value, so two overlapping scheduler runs
// advance a definition at most once. Returns ErrNotFound when the row was
// already advanced by a concurrent run. An empty lastAssigned keeps the
// column NULL for definitions that have never fired.
func (r Repo) AdvanceRecurringWorkflow(ctx context.Context, tx *sql.Tx, id, observedNext, newNext, lastAssigned string) error {
	res, err := tx.ExecContext(ctx, `UPDATE recurring_workflows SET next_assignment=?, last_assigned=? WHERE id=? AND next_assignment=?`,
		newNext, nullable(lastAssigned), id, observedNext)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetRecurringWorkflowActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE recurring_workflows SET is_active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateRecurringWorkflowRecipients(ctx context.Context, id string, assignedTo []string) error {
	assigned, err := marshalRecipients(assignedTo)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE recurring_workflows SET assigned_to=? WHERE id=?`, assigned, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
