package engine_test

import (
	"context"
	"testing"
	"time"

	"shiftflow/internal/config"
	"shiftflow/internal/db"
	"shiftflow/internal/domain"
	"shiftflow/internal/engine"
	"shiftflow/internal/migrate"
)

type testEnv struct {
	Engine   engine.Engine
	Ctx      context.Context
	Template domain.WorkflowTemplate
}

// newTestEnv builds an engine over a temp-dir database with the clock frozen
// at Monday 2024-01-08 08:00 UTC, seeded with one manager and two employees.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("testhouse")
	cfg.Business.Timezone = "UTC"
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, e := range []struct{ id, name, role string }{
		{"mgr", "Morgan", domain.RoleManager},
		{"alice", "Alice", domain.RoleEmployee},
		{"bob", "Bob", domain.RoleEmployee},
	} {
		if _, err := eng.CreateEmployee(ctx, e.id, e.name, e.role); err != nil {
			t.Fatalf("seed employee %s: %v", e.id, err)
		}
	}
	min30 := 30
	tpl, err := eng.CreateTemplate(ctx, "Opening Checklist", "open the shop", "mgr", []engine.TemplateTaskSpec{
		{Title: "Unlock doors", Required: true, EstimatedMinutes: &min30},
		{Title: "Wipe menus", Required: false},
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return &testEnv{Engine: eng, Ctx: ctx, Template: tpl}
}

func (env *testEnv) setNow(t *testing.T, ts time.Time) {
	t.Helper()
	env.Engine.Now = func() time.Time { return ts }
}

func (env *testEnv) adHoc(t *testing.T, assignee string) domain.Assignment {
	t.Helper()
	a, err := env.Engine.CreateAdHocAssignment(env.Ctx, engine.AdHocAssignmentOptions{
		TemplateID: env.Template.ID,
		AssignedTo: assignee,
		ActorID:    "mgr",
	})
	if err != nil {
		t.Fatalf("ad hoc assignment: %v", err)
	}
	return a
}

// finish walks an assignment through its happy path as its assignee.
func (env *testEnv) finish(t *testing.T, a domain.Assignment, actor string) domain.Assignment {
	t.Helper()
	if _, err := env.Engine.StartAssignment(env.Ctx, a.ID, actor); err != nil {
		t.Fatalf("start: %v", err)
	}
	status := "completed"
	for _, task := range a.Tasks {
		if !task.Required {
			continue
		}
		if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &status, ActorID: actor}); err != nil {
			t.Fatalf("complete task %s: %v", task.Title, err)
		}
	}
	done, err := env.Engine.CompleteAssignment(env.Ctx, a.ID, actor)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return done
}

func TestAssignmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	if a.Status != "pending" || len(a.Tasks) != 2 {
		t.Fatalf("unexpected fresh assignment: %+v", a)
	}
	tasks := a.Tasks

	a, err := env.Engine.StartAssignment(env.Ctx, a.ID, "alice")
	if err != nil || a.Status != "in_progress" {
		t.Fatalf("start: %v status=%s", err, a.Status)
	}
	if a.StartedAt == nil {
		t.Fatalf("expected started_at")
	}
	first := *a.StartedAt

	// starting again is a no-op and started_at does not move
	env.setNow(t, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC))
	a, err = env.Engine.StartAssignment(env.Ctx, a.ID, "alice")
	if err != nil || *a.StartedAt != first {
		t.Fatalf("restart changed started_at: %v %v", err, a.StartedAt)
	}

	// completion is gated on required tasks
	if _, err := env.Engine.CompleteAssignment(env.Ctx, a.ID, "alice"); err == nil {
		t.Fatalf("expected completion blocked by required task")
	}
	status := "completed"
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: tasks[0].ID, Status: &status, ActorID: "alice"}); err != nil {
		t.Fatalf("complete required task: %v", err)
	}
	a, err = env.Engine.CompleteAssignment(env.Ctx, a.ID, "alice")
	if err != nil || a.Status != "completed" {
		t.Fatalf("complete: %v status=%s", err, a.Status)
	}
	if a.CompletedAt == nil {
		t.Fatalf("expected completed_at")
	}

	// terminal status rejects further transitions
	if _, err := env.Engine.CancelAssignment(env.Ctx, a.ID, "mgr"); err == nil {
		t.Fatalf("expected cancel of completed assignment to fail")
	}
}

func TestAssignmentAuthority(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")

	// a bystander cannot start someone else's assignment; a manager can
	if _, err := env.Engine.StartAssignment(env.Ctx, a.ID, "bob"); err == nil {
		t.Fatalf("expected forbidden for non-assignee")
	}
	if _, err := env.Engine.StartAssignment(env.Ctx, a.ID, "mgr"); err != nil {
		t.Fatalf("manager start: %v", err)
	}

	// cancel is manager-only
	b := env.adHoc(t, "bob")
	if _, err := env.Engine.CancelAssignment(env.Ctx, b.ID, "bob"); err == nil {
		t.Fatalf("expected cancel forbidden for employee")
	}
	b, err := env.Engine.CancelAssignment(env.Ctx, b.ID, "mgr")
	if err != nil || b.Status != "cancelled" {
		t.Fatalf("manager cancel: %v status=%s", err, b.Status)
	}

	// unknown actors are rejected outright
	if _, err := env.Engine.StartAssignment(env.Ctx, a.ID, "ghost"); err == nil {
		t.Fatalf("expected unknown actor rejected")
	}
}

func TestTaskUpdateMetadataAndGuards(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	task := a.Tasks[0]

	note := "wiped and restocked"
	minutes := 25
	status := "completed"
	got, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:             task.ID,
		Status:         &status,
		CompletionNote: &note,
		ActualMinutes:  &minutes,
		ActorID:        "alice",
	})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if got.CompletionNote != note || got.ActualMinutes == nil || *got.ActualMinutes != 25 {
		t.Fatalf("metadata not applied: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completed_at on task")
	}

	// completed is terminal for tasks
	back := "pending"
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &back, ActorID: "alice"}); err == nil {
		t.Fatalf("expected terminal task status to reject transition")
	}

	// an uninvolved employee cannot touch the task
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: a.Tasks[1].ID, CompletionNote: &note, ActorID: "bob"}); err == nil {
		t.Fatalf("expected forbidden for uninvolved employee")
	}
}

func TestReassignMovesHeldTasksOnly(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")

	// hand one task to bob through the transfer protocol first
	tr, err := env.Engine.RequestTransfer(env.Ctx, engine.TransferOptions{TaskID: a.Tasks[1].ID, ToEmployee: "bob", ActorID: "alice"})
	if err != nil {
		t.Fatalf("request transfer: %v", err)
	}
	if _, err := env.Engine.RespondTransferee(env.Ctx, tr.ID, true, "", "bob"); err != nil {
		t.Fatalf("transferee accept: %v", err)
	}
	if _, err := env.Engine.RespondManager(env.Ctx, tr.ID, true, "", "mgr"); err != nil {
		t.Fatalf("manager approve: %v", err)
	}

	// employees cannot reassign
	if _, err := env.Engine.ReassignAssignment(env.Ctx, a.ID, "bob", "alice"); err == nil {
		t.Fatalf("expected reassign forbidden for employee")
	}
	a, err = env.Engine.ReassignAssignment(env.Ctx, a.ID, "bob", "mgr")
	if err != nil || a.AssignedTo != "bob" {
		t.Fatalf("reassign: %v assigned_to=%s", err, a.AssignedTo)
	}
	tasks, err := env.Engine.Repo.ListAssignmentTasks(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	for _, task := range tasks {
		if task.AssignedTo != "bob" {
			t.Fatalf("task %s still held by %s", task.Title, task.AssignedTo)
		}
	}
}

func TestAuditTrailOnTransitions(t *testing.T) {
	env := newTestEnv(t)
	a := env.adHoc(t, "alice")
	env.finish(t, a, "alice")

	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT action FROM audit_log WHERE entity_kind='assignment' AND entity_id=? ORDER BY id`, a.ID)
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	defer rows.Close()
	var actions []string
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			t.Fatal(err)
		}
		actions = append(actions, action)
	}
	// created, pending->in_progress, in_progress->completed
	if len(actions) != 3 || actions[0] != "created" || actions[1] != "status_change" || actions[2] != "status_change" {
		t.Fatalf("unexpected audit trail: %v", actions)
	}
}

func TestCreateEmployeeValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateEmployee(env.Ctx, "", "", domain.RoleEmployee); err == nil {
		t.Fatalf("expected name required")
	}
	if _, err := env.Engine.CreateEmployee(env.Ctx, "", "Zed", "owner"); err == nil {
		t.Fatalf("expected invalid role rejected")
	}
	emp, err := env.Engine.CreateEmployee(env.Ctx, "", "Zed", "")
	if err != nil || emp.Role != domain.RoleEmployee || !emp.IsActive {
		t.Fatalf("default role: %v %+v", err, emp)
	}
}

func TestCreateTemplateRequiresManager(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTemplate(env.Ctx, "Closing", "", "alice", []engine.TemplateTaskSpec{{Title: "Lock up", Required: true}})
	if err == nil {
		t.Fatalf("expected template creation forbidden for employee")
	}
	_, err = env.Engine.CreateTemplate(env.Ctx, "Closing", "", "mgr", nil)
	if err == nil {
		t.Fatalf("expected at least one task required")
	}
}
