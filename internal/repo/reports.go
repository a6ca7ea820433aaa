package repo

import (
	"context"
	"database/sql"

	"shiftflow/internal/domain"
)

// CompletedAssignmentsBetween returns completed assignments created inside
// the [start, end] window, RFC3339 bounds inclusive.
func (r Repo) CompletedAssignmentsBetween(ctx context.Context, start, end string) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE status='completed' AND created_at>=? AND created_at<=? ORDER BY created_at`, start, end)
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

// WeekCounts holds one employee's assigned/completed totals for a window.
type WeekCounts struct {
	Assigned  int
	Completed int
}

// AssignmentWeekCounts aggregates per-employee assignment counts for
// assignments created inside the window.
func (r Repo) AssignmentWeekCounts(ctx context.Context, start, end string) (map[string]WeekCounts, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT assigned_to, COUNT(*), SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END) FROM assignments WHERE created_at>=? AND created_at<=? GROUP BY assigned_to`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]WeekCounts{}
	for rows.Next() {
		var (
			id string
			c  WeekCounts
		)
		if err := rows.Scan(&id, &c.Assigned, &c.Completed); err != nil {
			return nil, err
		}
		res[id] = c
	}
	return res, rows.Err()
}

// OverdueCounts aggregates per-employee counts of live, non-terminal
// assignments already past the given deadline.
func (r Repo) OverdueCounts(ctx context.Context, deadline string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT assigned_to, COUNT(*) FROM assignments WHERE status IN ('pending','in_progress') AND due_date<? GROUP BY assigned_to`, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}
	return res, rows.Err()
}

func (r Repo) InsertArchivedAssignment(ctx context.Context, tx *sql.Tx, a domain.ArchivedAssignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO archived_assignments(id,assignment_id,recurring_workflow_id,name,assigned_to,assigned_by,due_date,started_at,completed_at,created_at,week_ending,task_summary_json,archived_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.AssignmentID, nullableStr(a.RecurringWorkflowID), a.Name, a.AssignedTo, a.AssignedBy, a.DueDate,
		nullableStr(a.StartedAt), nullableStr(a.CompletedAt), a.CreatedAt, a.WeekEnding, nullable(a.TaskSummaryJSON), a.ArchivedAt)
	return err
}

func (r Repo) ListArchivedAssignments(ctx context.Context, weekEnding string) ([]domain.ArchivedAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,assignment_id,recurring_workflow_id,name,assigned_to,assigned_by,due_date,started_at,completed_at,created_at,week_ending,COALESCE(task_summary_json,''),archived_at FROM archived_assignments WHERE week_ending=? ORDER BY created_at`, weekEnding)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ArchivedAssignment
	for rows.Next() {
		var (
			a         domain.ArchivedAssignment
			recurring sql.NullString
			started   sql.NullString
			completed sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.AssignmentID, &recurring, &a.Name, &a.AssignedTo, &a.AssignedBy, &a.DueDate, &started, &completed, &a.CreatedAt, &a.WeekEnding, &a.TaskSummaryJSON, &a.ArchivedAt); err != nil {
			return nil, err
		}
		a.RecurringWorkflowID = optString(recurring)
		a.StartedAt = optString(started)
		a.CompletedAt = optString(completed)
		res = append(res, a)
	}
	return res, rows.Err()
}

func scanWeeklyReport(scan func(dest ...any) error) (domain.WeeklyReport, error) {
	var (
		w   domain.WeeklyReport
		top sql.NullString
	)
	err := scan(&w.WeekEnding, &w.WeekStart, &w.TotalAssigned, &w.TotalCompleted, &w.CompletionRate, &w.ActiveEmployees, &top, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if top.Valid {
		w.TopPerformer = top.String
	}
	return w, err
}

const weeklyReportColumns = `week_ending,week_start,total_assigned,total_completed,completion_rate,active_employees,top_performer,created_at`

func (r Repo) GetWeeklyReport(ctx context.Context, weekEnding string) (domain.WeeklyReport, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+weeklyReportColumns+` FROM weekly_reports WHERE week_ending=?`, weekEnding)
	return scanWeeklyReport(row.Scan)
}

func (r Repo) LatestWeeklyReport(ctx context.Context) (domain.WeeklyReport, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+weeklyReportColumns+` FROM weekly_reports ORDER BY week_ending DESC LIMIT 1`)
	return scanWeeklyReport(row.Scan)
}

func (r Repo) ListWeeklyReports(ctx context.Context, limit int) ([]domain.WeeklyReport, error) {
	query := `SELECT ` + weeklyReportColumns + ` FROM weekly_reports ORDER BY week_ending DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WeeklyReport
	for rows.Next() {
		w, err := scanWeeklyReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) InsertWeeklyReport(ctx context.Context, tx *sql.Tx, w domain.WeeklyReport) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO weekly_reports(`+weeklyReportColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		w.WeekEnding, w.WeekStart, w.TotalAssigned, w.TotalCompleted, w.CompletionRate, w.ActiveEmployees, nullable(w.TopPerformer), w.CreatedAt)
	return err
}

func (r Repo) UpsertEmployeeWeekStat(ctx context.Context, tx *sql.Tx, s domain.EmployeeWeekStat) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO employee_week_stats(week_ending,employee_id,tasks_assigned,tasks_completed,completion_rate,tasks_overdue) VALUES (?,?,?,?,?,?)
		ON CONFLICT(week_ending,employee_id) DO UPDATE SET tasks_assigned=excluded.tasks_assigned, tasks_completed=excluded.tasks_completed, completion_rate=excluded.completion_rate, tasks_overdue=excluded.tasks_overdue`,
		s.WeekEnding, s.EmployeeID, s.TasksAssigned, s.TasksCompleted, s.CompletionRate, s.TasksOverdue)
	return err
}

func (r Repo) ListEmployeeWeekStats(ctx context.Context, weekEnding string) ([]domain.EmployeeWeekStat, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT week_ending,employee_id,tasks_assigned,tasks_completed,completion_rate,tasks_overdue FROM employee_week_stats WHERE week_ending=? ORDER BY employee_id`, weekEnding)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EmployeeWeekStat
	for rows.Next() {
		var s domain.EmployeeWeekStat
		if err := rows.Scan(&s.WeekEnding, &s.EmployeeID, &s.TasksAssigned, &s.TasksCompleted, &s.CompletionRate, &s.TasksOverdue); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
