package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shiftflow/internal/audit"
	"shiftflow/internal/domain"
	"shiftflow/internal/engine/auth"
	"shiftflow/internal/repo"
)

// TransferOptions are parameters for opening a task handoff.
type TransferOptions struct {
	TaskID     string
	ToEmployee string
	Reason     string
	ActorID    string
}

// RequestTransfer opens the three-party handoff for a task. Only the task's
// current holder may initiate, the target must be a different active
// employee, and at most one open request may exist per task.
func (e Engine) RequestTransfer(ctx context.Context, opts TransferOptions) (domain.TransferRequest, error) {
	t, err := e.Repo.GetTaskInstance(ctx, opts.TaskID)
	if err != nil {
		return domain.TransferRequest{}, err
	}
	if _, err := e.actor(ctx, opts.ActorID, "transfer.request"); err != nil {
		return domain.TransferRequest{}, err
	}
	if t.AssignedTo != opts.ActorID {
		return domain.TransferRequest{}, auth.ForbiddenError{ActorID: opts.ActorID, Action: "transfer.request"}
	}
	if t.Status == "completed" {
		return domain.TransferRequest{}, auth.PreconditionError{Reason: "cannot transfer a completed task"}
	}
	if opts.ToEmployee == opts.ActorID {
		return domain.TransferRequest{}, auth.PreconditionError{Reason: "cannot transfer a task to its current holder"}
	}
	target, err := e.Repo.GetEmployee(ctx, opts.ToEmployee)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.TransferRequest{}, auth.PreconditionError{Reason: fmt.Sprintf("employee %s does not exist", opts.ToEmployee)}
	}
	if err != nil {
		return domain.TransferRequest{}, err
	}
	if !target.IsActive {
		return domain.TransferRequest{}, auth.PreconditionError{Reason: fmt.Sprintf("employee %s is not active", opts.ToEmployee)}
	}
	if open, err := e.Repo.OpenTransferForTask(ctx, t.ID); err == nil {
		return domain.TransferRequest{}, auth.PreconditionError{Reason: fmt.Sprintf("task already has open transfer %s", open.ID)}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.TransferRequest{}, err
	}
	tr := domain.TransferRequest{
		ID:           uuid.New().String(),
		TaskID:       t.ID,
		AssignmentID: t.AssignmentID,
		FromEmployee: opts.ActorID,
		ToEmployee:   opts.ToEmployee,
		Reason:       opts.Reason,
		Status:       "pending_transferee",
		RequestedAt:  e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return tr, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTransferRequest(ctx, tx, tr); err != nil {
		return tr, fmt.Errorf("insert transfer request: %w", err)
	}
	e.appendAudit(ctx, tx, audit.KindTransfer, tr.ID, "requested", "", tr.Status, opts.ActorID)
	if err := tx.Commit(); err != nil {
		return tr, err
	}
	return tr, nil
}

// RespondTransferee records the proposed recipient's answer. Accepting moves
// the request to the manager's queue; declining terminates it. The task does
// not move either way.
func (e Engine) RespondTransferee(ctx context.Context, transferID string, accept bool, reason, actorID string) (domain.TransferRequest, error) {
	tr, err := e.Repo.GetTransferRequest(ctx, transferID)
	if err != nil {
		return tr, err
	}
	if _, err := e.actor(ctx, actorID, "transfer.respond"); err != nil {
		return tr, err
	}
	if tr.ToEmployee != actorID {
		return tr, auth.ForbiddenError{ActorID: actorID, Action: "transfer.respond"}
	}
	if tr.Status != "pending_transferee" {
		return tr, auth.PreconditionError{Reason: fmt.Sprintf("transfer is %s, not pending_transferee", tr.Status)}
	}
	old := tr.Status
	now := e.now().UTC().Format(time.RFC3339)
	tr.TransfereeRespondedAt = &now
	if accept {
		tr.Status = "pending_manager"
	} else {
		tr.Status = "rejected"
		tr.RejectReason = reason
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return tr, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTransferRequest(ctx, tx, tr); err != nil {
		return tr, err
	}
	e.appendAudit(ctx, tx, audit.KindTransfer, tr.ID, "transferee_responded", old, tr.Status, actorID)
	if err := tx.Commit(); err != nil {
		return tr, err
	}
	return tr, nil
}

// RespondManager records the manager's ruling on an accepted request.
// Approval moves the task to the transferee in the same transaction that
// closes the request; rejection leaves the task where it was.
func (e Engine) RespondManager(ctx context.Context, transferID string, approve bool, reason, actorID string) (domain.TransferRequest, error) {
	tr, err := e.Repo.GetTransferRequest(ctx, transferID)
	if err != nil {
		return tr, err
	}
	if _, err := e.requireManager(ctx, actorID, "transfer.decide"); err != nil {
		return tr, err
	}
	if tr.Status != "pending_manager" {
		return tr, auth.PreconditionError{Reason: fmt.Sprintf("transfer is %s, not pending_manager", tr.Status)}
	}
	old := tr.Status
	now := e.now().UTC().Format(time.RFC3339)
	tr.ManagerRespondedAt = &now
	tr.ManagerID = &actorID
	if approve {
		tr.Status = "approved"
	} else {
		tr.Status = "rejected"
		tr.RejectReason = reason
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return tr, err
	}
	defer tx.Rollback()
	if approve {
		t, err := e.Repo.GetTaskInstance(ctx, tr.TaskID)
		if err != nil {
			return tr, err
		}
		oldHolder := t.AssignedTo
		t.AssignedTo = tr.ToEmployee
		if err := e.Repo.UpdateTaskInstance(ctx, tx, t); err != nil {
			return tr, err
		}
		e.appendAudit(ctx, tx, audit.KindTask, t.ID, "transferred", oldHolder, tr.ToEmployee, actorID)
	}
	if err := e.Repo.UpdateTransferRequest(ctx, tx, tr); err != nil {
		return tr, err
	}
	e.appendAudit(ctx, tx, audit.KindTransfer, tr.ID, "manager_responded", old, tr.Status, actorID)
	if err := tx.Commit(); err != nil {
		return tr, err
	}
	return tr, nil
}
