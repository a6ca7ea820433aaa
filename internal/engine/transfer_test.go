package engine_test

import (
	"testing"

	"shiftflow/internal/engine"
)

func TestTransferApprovedPath(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	task := a.Tasks[0]

	tr, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{
		TaskID:     task.ID,
		ToEmployee: "bob",
		Reason:     "leaving early",
		ActorID:    "alice",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if tr.Status != "pending_transferee" || tr.FromEmployee != "alice" || tr.ToEmployee != "bob" {
		t.Fatalf("unexpected request: %+v", tr)
	}

	// the task does not move before final approval
	tr, err = env.Engine.RespondTransferee(env.Ctx, tr.ID, true, "", "bob")
	if err != nil || tr.Status != "pending_manager" {
		t.Fatalf("transferee accept: %v status=%s", err, tr.Status)
	}
	if tr.TransfereeRespondedAt == nil {
		t.Fatalf("expected transferee_responded_at")
	}
	got, _ := env.Engine.Repo.GetTaskInstance(env.Ctx, task.ID)
	if got.AssignedTo != "alice" {
		t.Fatalf("task moved before approval: %s", got.AssignedTo)
	}

	tr, err = env.Engine.RespondManager(env.Ctx, tr.ID, true, "", "mgr")
	if err != nil || tr.Status != "approved" {
		t.Fatalf("manager approve: %v status=%s", err, tr.Status)
	}
	if tr.ManagerID == nil || *tr.ManagerID != "mgr" {
		t.Fatalf("manager not recorded: %v", tr.ManagerID)
	}
	got, _ = env.Engine.Repo.GetTaskInstance(env.Ctx, task.ID)
	if got.AssignedTo != "bob" {
		t.Fatalf("task did not move on approval: %s", got.AssignedTo)
	}
	// the assignment itself keeps its owner
	owner, _ := env.Engine.Repo.GetAssignment(env.Ctx, a.ID)
	if owner.AssignedTo != "alice" {
		t.Fatalf("assignment owner changed: %s", owner.AssignedTo)
	}
}

func TestTransferDeclinedByTransferee(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	task := a.Tasks[0]

	tr, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	tr, err = env.Engine.RespondTransferee(env.Ctx, tr.ID, false, "too busy", "bob")
	if err != nil || tr.Status != "rejected" || tr.RejectReason != "too busy" {
		t.Fatalf("decline: %v %+v", err, tr)
	}
	got, _ := env.Engine.Repo.GetTaskInstance(env.Ctx, task.ID)
	if got.AssignedTo != "alice" {
		t.Fatalf("declined transfer moved the task: %s", got.AssignedTo)
	}

	// a terminal request frees the task for a new one
	if _, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "alice"}); err != nil {
		t.Fatalf("expected new request after rejection: %v", err)
	}
}

func TestTransferRejectedByManager(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	task := a.Tasks[0]

	tr, _ := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "alice"})
	tr, _ = env.Engine.RespondTransferee(env.Ctx, tr.ID, true, "", "bob")
	tr, err := env.Engine.RespondManager(env.Ctx, tr.ID, false, "coverage needed", "mgr")
	if err != nil || tr.Status != "rejected" || tr.RejectReason != "coverage needed" {
		t.Fatalf("manager reject: %v %+v", err, tr)
	}
	got, _ := env.Engine.Repo.GetTaskInstance(env.Ctx, task.ID)
	if got.AssignedTo != "alice" {
		t.Fatalf("rejected transfer moved the task: %s", got.AssignedTo)
	}
}

func TestTransferGuards(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	task := a.Tasks[0]

	// only the current holder may initiate
	if _, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "bob"}); err == nil {
		t.Fatalf("expected request forbidden for non-holder")
	}
	// not to yourself, not to a ghost, not to the inactive
	if _, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "alice", ActorID: "alice"}); err == nil {
		t.Fatalf("expected self-transfer rejected")
	}
	if _, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "ghost", ActorID: "alice"}); err == nil {
		t.Fatalf("expected unknown target rejected")
	}
	if err := env.Engine.Repo.SetEmployeeActive(env.Ctx, "bob", false); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "alice"}); err == nil {
		t.Fatalf("expected inactive target rejected")
	}
	if err := env.Engine.Repo.SetEmployeeActive(env.Ctx, "bob", true); err != nil {
		t.Fatal(err)
	}

	tr, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	// one open request per task
	if _, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "alice"}); err == nil {
		t.Fatalf("expected duplicate open transfer rejected")
	}
	// only the named transferee answers the first stage
	if _, err := env.Engine.RespondTransferee(env.Ctx, tr.ID, true, "", "alice"); err == nil {
		t.Fatalf("expected transferee response forbidden for requester")
	}
	// the manager cannot rule before the transferee accepts
	if _, err := env.Engine.RespondManager(env.Ctx, tr.ID, true, "", "mgr"); err == nil {
		t.Fatalf("expected manager response rejected while pending_transferee")
	}
	tr, err = env.Engine.RespondTransferee(env.Ctx, tr.ID, true, "", "bob")
	if err != nil {
		t.Fatal(err)
	}
	// approval is manager-only
	if _, err := env.Engine.RespondManager(env.Ctx, tr.ID, true, "", "bob"); err == nil {
		t.Fatalf("expected approval forbidden for employee")
	}
	// each stage answers once
	if _, err := env.Engine.RespondTransferee(env.Ctx, tr.ID, true, "", "bob"); err == nil {
		t.Fatalf("expected second transferee response rejected")
	}
}

func TestTransferOfCompletedTaskRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	task := a.Tasks[0]
	status := "completed"
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &status, ActorID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: task.ID, ToEmployee: "bob", ActorID: "alice"}); err == nil {
		t.Fatalf("expected completed task not transferable")
	}
}
