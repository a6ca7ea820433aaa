package repo

import (
	"context"
	"database/sql"
	"strings"

	"shiftflow/internal/domain"
)

const transferColumns = `id,task_id,assignment_id,from_employee,to_employee,COALESCE(reason,''),status,requested_at,transferee_responded_at,manager_responded_at,manager_id,COALESCE(reject_reason,'')`

func scanTransfer(scan func(dest ...any) error) (domain.TransferRequest, error) {
	var (
		tr         domain.TransferRequest
		transferee sql.NullString
		manager    sql.NullString
		managerID  sql.NullString
	)
	err := scan(&tr.ID, &tr.TaskID, &tr.AssignmentID, &tr.FromEmployee, &tr.ToEmployee, &tr.Reason, &tr.Status, &tr.RequestedAt, &transferee, &manager, &managerID, &tr.RejectReason)
	if err == sql.ErrNoRows {
		return tr, ErrNotFound
	}
	if err != nil {
		return tr, err
	}
	tr.TransfereeRespondedAt = optString(transferee)
	tr.ManagerRespondedAt = optString(manager)
	tr.ManagerID = optString(managerID)
	return tr, nil
}

func (r Repo) InsertTransferRequest(ctx context.Context, tx *sql.Tx, tr domain.TransferRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO transfer_requests(id,task_id,assignment_id,from_employee,to_employee,reason,status,requested_at,transferee_responded_at,manager_responded_at,manager_id,reject_reason) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		tr.ID, tr.TaskID, tr.AssignmentID, tr.FromEmployee, tr.ToEmployee, nullable(tr.Reason), tr.Status, tr.RequestedAt,
		nullableStr(tr.TransfereeRespondedAt), nullableStr(tr.ManagerRespondedAt), nullableStr(tr.ManagerID), nullable(tr.RejectReason))
	return err
}

func (r Repo) GetTransferRequest(ctx context.Context, id string) (domain.TransferRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfer_requests WHERE id=?`, id)
	return scanTransfer(row.Scan)
}

// OpenTransferForTask returns the single open (non-terminal) request for a
// task, or ErrNotFound when none exists.
func (r Repo) OpenTransferForTask(ctx context.Context, taskID string) (domain.TransferRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfer_requests WHERE task_id=? AND status IN ('pending_transferee','pending_manager') LIMIT 1`, taskID)
	return scanTransfer(row.Scan)
}

func (r Repo) UpdateTransferRequest(ctx context.Context, tx *sql.Tx, tr domain.TransferRequest) error {
	res, err := tx.ExecContext(ctx, `UPDATE transfer_requests SET status=?, transferee_responded_at=?, manager_responded_at=?, manager_id=?, reject_reason=? WHERE id=?`,
		tr.Status, nullableStr(tr.TransfereeRespondedAt), nullableStr(tr.ManagerRespondedAt), nullableStr(tr.ManagerID), nullable(tr.RejectReason), tr.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransferFilters narrows ListTransferRequests.
type TransferFilters struct {
	Employee string // matches either side of the handoff
	Status   string
	Limit    int
}

func (r Repo) ListTransferRequests(ctx context.Context, f TransferFilters) ([]domain.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests`
	var (
		conds []string
		args  []any
	)
	if f.Employee != "" {
		conds = append(conds, `(from_employee=? OR to_employee=?)`)
		args = append(args, f.Employee, f.Employee)
	}
	if f.Status != "" {
		conds = append(conds, `status=?`)
		args = append(args, f.Status)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY requested_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TransferRequest
	for rows.Next() {
		tr, err := scanTransfer(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, tr)
	}
	return res, rows.Err()
}
