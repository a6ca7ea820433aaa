package repo

import (
	"context"
	"database/sql"
	"strings"

	"shiftflow/internal/domain"
)

const assignmentColumns = `id,recurring_workflow_id,template_id,name,assigned_to,assigned_by,status,due_date,started_at,completed_at,created_at`

func scanAssignment(scan func(dest ...any) error) (domain.Assignment, error) {
	var (
		a         domain.Assignment
		recurring sql.NullString
		started   sql.NullString
		completed sql.NullString
	)
	err := scan(&a.ID, &recurring, &a.TemplateID, &a.Name, &a.AssignedTo, &a.AssignedBy, &a.Status, &a.DueDate, &started, &completed, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.RecurringWorkflowID = optString(recurring)
	a.StartedAt = optString(started)
	a.CompletedAt = optString(completed)
	return a, nil
}

func (r Repo) InsertAssignment(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assignments(`+assignmentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, nullableStr(a.RecurringWorkflowID), a.TemplateID, a.Name, a.AssignedTo, a.AssignedBy, a.Status, a.DueDate,
		nullableStr(a.StartedAt), nullableStr(a.CompletedAt), a.CreatedAt)
	return err
}

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

// AssignmentFilters narrows ListAssignments.
type AssignmentFilters struct {
	AssignedTo string
	Status     string
	Limit      int
}

func (r Repo) ListAssignments(ctx context.Context, f AssignmentFilters) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	var (
		conds []string
		args  []any
	)
	if f.AssignedTo != "" {
		conds = append(conds, `assigned_to=?`)
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		conds = append(conds, `status=?`)
		args = append(args, f.Status)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY due_date, created_at`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAssignment(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET assigned_to=?, status=?, due_date=?, started_at=?, completed_at=? WHERE id=?`,
		a.AssignedTo, a.Status, a.DueDate, nullableStr(a.StartedAt), nullableStr(a.CompletedAt), a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAssignment removes a live assignment row; task instances cascade.
func (r Repo) DeleteAssignment(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id=?`, id)
	return err
}

// --- task instances ---

const taskColumns = `id,assignment_id,title,COALESCE(description,''),sort_order,required,status,assigned_to,COALESCE(completion_note,''),COALESCE(photo_ref,''),actual_minutes,completed_at`

func scanTask(scan func(dest ...any) error) (domain.TaskInstance, error) {
	var (
		t         domain.TaskInstance
		minutes   sql.NullInt64
		completed sql.NullString
	)
	err := scan(&t.ID, &t.AssignmentID, &t.Title, &t.Description, &t.SortOrder, &t.Required, &t.Status, &t.AssignedTo, &t.CompletionNote, &t.PhotoRef, &minutes, &completed)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.ActualMinutes = optInt(minutes)
	t.CompletedAt = optString(completed)
	return t, nil
}

func (r Repo) InsertTaskInstance(ctx context.Context, tx *sql.Tx, t domain.TaskInstance) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_instances(id,assignment_id,title,description,sort_order,required,status,assigned_to,completion_note,photo_ref,actual_minutes,completed_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.AssignmentID, t.Title, nullable(t.Description), t.SortOrder, t.Required, t.Status, t.AssignedTo,
		nullable(t.CompletionNote), nullable(t.PhotoRef), nullableInt(t.ActualMinutes), nullableStr(t.CompletedAt))
	return err
}

func (r Repo) GetTaskInstance(ctx context.Context, id string) (domain.TaskInstance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task_instances WHERE id=?`, id)
	return scanTask(row.Scan)
}

// ListAssignmentTasks returns an assignment's tasks in checklist order.
func (r Repo) ListAssignmentTasks(ctx context.Context, assignmentID string) ([]domain.TaskInstance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM task_instances WHERE assignment_id=? ORDER BY sort_order, id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskInstance
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTaskInstance(ctx context.Context, tx *sql.Tx, t domain.TaskInstance) error {
	res, err := tx.ExecContext(ctx, `UPDATE task_instances SET status=?, assigned_to=?, completion_note=?, photo_ref=?, actual_minutes=?, completed_at=? WHERE id=?`,
		t.Status, t.AssignedTo, nullable(t.CompletionNote), nullable(t.PhotoRef), nullableInt(t.ActualMinutes), nullableStr(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
