package repo

import (
	"context"
	"database/sql"
	"errors"

	"shiftflow/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func optString(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}

func optInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

// --- employees ---

func (r Repo) InsertEmployee(ctx context.Context, e domain.Employee) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO employees(id,name,role,is_active,created_at) VALUES (?,?,?,?,?)`,
		e.ID, e.Name, e.Role, e.IsActive, e.CreatedAt)
	return err
}

func (r Repo) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,role,is_active,created_at FROM employees WHERE id=?`, id)
	var e domain.Employee
	err := row.Scan(&e.ID, &e.Name, &e.Role, &e.IsActive, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) ListEmployees(ctx context.Context, activeOnly bool) ([]domain.Employee, error) {
	query := `SELECT id,name,role,is_active,created_at FROM employees`
	if activeOnly {
		query += ` WHERE is_active=1`
	}
	query += ` ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Employee
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Role, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) SetEmployeeActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE employees SET is_active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- workflow templates ---

func (r Repo) InsertTemplate(ctx context.Context, tx *sql.Tx, t domain.WorkflowTemplate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflow_templates(id,name,description,created_by,created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.Name, nullable(t.Description), t.CreatedBy, t.CreatedAt)
	return err
}

func (r Repo) InsertTemplateTask(ctx context.Context, tx *sql.Tx, tt domain.TemplateTask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO template_tasks(id,template_id,title,description,sort_order,required,estimated_minutes) VALUES (?,?,?,?,?,?,?)`,
		tt.ID, tt.TemplateID, tt.Title, nullable(tt.Description), tt.SortOrder, tt.Required, nullableInt(tt.EstimatedMinutes))
	return err
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.WorkflowTemplate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),created_by,created_at FROM workflow_templates WHERE id=?`, id)
	var t domain.WorkflowTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Tasks, err = r.ListTemplateTasks(ctx, id)
	return t, err
}

func (r Repo) ListTemplates(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(description,''),created_by,created_at FROM workflow_templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowTemplate
	for rows.Next() {
		var t domain.WorkflowTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListTemplateTasks returns a template's tasks in checklist order.
func (r Repo) ListTemplateTasks(ctx context.Context, templateID string) ([]domain.TemplateTask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,template_id,title,COALESCE(description,''),sort_order,required,estimated_minutes FROM template_tasks WHERE template_id=? ORDER BY sort_order, id`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TemplateTask
	for rows.Next() {
		var tt domain.TemplateTask
		var est sql.NullInt64
		if err := rows.Scan(&tt.ID, &tt.TemplateID, &tt.Title, &tt.Description, &tt.SortOrder, &tt.Required, &est); err != nil {
			return nil, err
		}
		tt.EstimatedMinutes = optInt(est)
		res = append(res, tt)
	}
	return res, rows.Err()
}

// --- audit log ---

func (r Repo) ListAuditEntries(ctx context.Context, entityKind, entityID string, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT id,ts,entity_kind,entity_id,action,COALESCE(old_value,''),COALESCE(new_value,''),performed_by FROM audit_log`
	var (
		conds []string
		args  []any
	)
	if entityKind != "" {
		conds = append(conds, `entity_kind=?`)
		args = append(args, entityKind)
	}
	if entityID != "" {
		conds = append(conds, `entity_id=?`)
		args = append(args, entityID)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEntry
	for rows.Next() {
		var a domain.AuditEntry
		if err := rows.Scan(&a.ID, &a.TS, &a.EntityKind, &a.EntityID, &a.Action, &a.OldValue, &a.NewValue, &a.PerformedBy); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
