package audit

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends entries to the audit log. Callers pass the transaction the
// state change itself runs in so the entry and the change commit together.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Entry kinds.
const (
	KindAssignment = "assignment"
	KindTask       = "task"
	KindTransfer   = "transfer"
	KindWorkflow   = "workflow"
)

func (w Writer) Append(ctx context.Context, tx *sql.Tx, entityKind, entityID, action, oldValue, newValue, performedBy string) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_log(ts,entity_kind,entity_id,action,old_value,new_value,performed_by) VALUES (?,?,?,?,?,?,?)`,
		ts, entityKind, entityID, action, nullable(oldValue), nullable(newValue), performedBy)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
