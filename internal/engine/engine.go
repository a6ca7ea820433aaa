package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shiftflow/internal/audit"
	"shiftflow/internal/config"
	"shiftflow/internal/domain"
	"shiftflow/internal/engine/auth"
	"shiftflow/internal/repo"
)

// Engine owns the orchestration core: the workflow scheduler, the
// assignment/task state machine, the transfer-approval protocol and the
// weekly archive job. Every mutation runs as one transaction with its audit
// entry appended in the same unit of work.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Audit  audit.Writer
	Config *config.Config
	Now    func() time.Time
	Logger *log.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Audit:  audit.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// nowLocal returns the current instant in the business timezone. Recurrence
// and week-boundary math must run there, not in the host's zone.
func (e Engine) nowLocal() time.Time {
	return e.now().In(e.Config.Location())
}

func (e Engine) logf(format string, args ...any) {
	l := e.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}

// appendAudit is best-effort: a failed audit write is logged but never rolls
// back the state transition it describes.
func (e Engine) appendAudit(ctx context.Context, tx *sql.Tx, kind, id, action, oldValue, newValue, actorID string) {
	if err := e.Audit.Append(ctx, tx, kind, id, action, oldValue, newValue, actorID); err != nil {
		e.logf("audit append %s %s %s: %v", kind, id, action, err)
	}
}

// actor resolves the acting employee. An unknown actor is forbidden, not
// not-found: the id came from credentials, not from a request path.
func (e Engine) actor(ctx context.Context, actorID, action string) (domain.Employee, error) {
	emp, err := e.Repo.GetEmployee(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return emp, auth.ForbiddenError{ActorID: actorID, Action: action}
	}
	return emp, err
}

func (e Engine) requireManager(ctx context.Context, actorID, action string) (domain.Employee, error) {
	emp, err := e.actor(ctx, actorID, action)
	if err != nil {
		return emp, err
	}
	if emp.Role != domain.RoleManager {
		return emp, auth.ForbiddenError{ActorID: actorID, Action: action}
	}
	return emp, nil
}

// --- employees / templates ---

func (e Engine) CreateEmployee(ctx context.Context, id, name, role string) (domain.Employee, error) {
	if name == "" {
		return domain.Employee{}, errors.New("name is required")
	}
	if role == "" {
		role = domain.RoleEmployee
	}
	if role != domain.RoleManager && role != domain.RoleEmployee {
		return domain.Employee{}, fmt.Errorf("invalid role %q", role)
	}
	if id == "" {
		id = uuid.New().String()
	}
	emp := domain.Employee{
		ID:        id,
		Name:      name,
		Role:      role,
		IsActive:  true,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertEmployee(ctx, emp); err != nil {
		return domain.Employee{}, fmt.Errorf("insert employee: %w", err)
	}
	return emp, nil
}

// TemplateTaskSpec is one checklist line of a template being created.
type TemplateTaskSpec struct {
	Title            string
	Description      string
	Required         bool
	EstimatedMinutes *int
}

func (e Engine) CreateTemplate(ctx context.Context, name, description, actorID string, tasks []TemplateTaskSpec) (domain.WorkflowTemplate, error) {
	if name == "" {
		return domain.WorkflowTemplate{}, errors.New("name is required")
	}
	if len(tasks) == 0 {
		return domain.WorkflowTemplate{}, errors.New("at least one task is required")
	}
	if _, err := e.requireManager(ctx, actorID, "template.create"); err != nil {
		return domain.WorkflowTemplate{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.WorkflowTemplate{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedBy:   actorID,
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowTemplate{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTemplate(ctx, tx, t); err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("insert template: %w", err)
	}
	for i, spec := range tasks {
		if spec.Title == "" {
			return domain.WorkflowTemplate{}, fmt.Errorf("task %d: title is required", i+1)
		}
		tt := domain.TemplateTask{
			ID:               uuid.New().String(),
			TemplateID:       t.ID,
			Title:            spec.Title,
			Description:      spec.Description,
			SortOrder:        i,
			Required:         spec.Required,
			EstimatedMinutes: spec.EstimatedMinutes,
		}
		if err := e.Repo.InsertTemplateTask(ctx, tx, tt); err != nil {
			return domain.WorkflowTemplate{}, fmt.Errorf("insert template task: %w", err)
		}
		t.Tasks = append(t.Tasks, tt)
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkflowTemplate{}, err
	}
	return t, nil
}

// --- assignment state machine ---

func ensureAssignmentTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "in_progress" || newStatus == "cancelled" {
			return nil
		}
	case "in_progress":
		if newStatus == "completed" || newStatus == "cancelled" {
			return nil
		}
	}
	return auth.PreconditionError{Reason: fmt.Sprintf("invalid assignment status transition %s -> %s", oldStatus, newStatus)}
}

func ensureTaskTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "in_progress" || newStatus == "completed" {
			return nil
		}
	case "in_progress":
		if newStatus == "completed" {
			return nil
		}
	}
	return auth.PreconditionError{Reason: fmt.Sprintf("invalid task status transition %s -> %s", oldStatus, newStatus)}
}

// StartAssignment moves a pending assignment to in_progress. Starting an
// assignment already in progress is a no-op; started_at is set once and
// never reset.
func (e Engine) StartAssignment(ctx context.Context, assignmentID, actorID string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return a, err
	}
	actor, err := e.actor(ctx, actorID, "assignment.start")
	if err != nil {
		return a, err
	}
	if a.AssignedTo != actorID && actor.Role != domain.RoleManager {
		return a, auth.ForbiddenError{ActorID: actorID, Action: "assignment.start"}
	}
	if a.Status == "in_progress" {
		return a, nil
	}
	if err := ensureAssignmentTransition(a.Status, "in_progress"); err != nil {
		return a, err
	}
	old := a.Status
	a.Status = "in_progress"
	if a.StartedAt == nil {
		now := e.now().UTC().Format(time.RFC3339)
		a.StartedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAssignment(ctx, tx, a); err != nil {
		return a, err
	}
	e.appendAudit(ctx, tx, audit.KindAssignment, a.ID, "status_change", old, a.Status, actorID)
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

// CompleteAssignment moves an in-progress assignment to completed. The
// transition is permitted only when every required task instance is
// completed; task instances never leave completed, so the check cannot go
// stale before the commit.
func (e Engine) CompleteAssignment(ctx context.Context, assignmentID, actorID string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return a, err
	}
	actor, err := e.actor(ctx, actorID, "assignment.complete")
	if err != nil {
		return a, err
	}
	if a.AssignedTo != actorID && actor.Role != domain.RoleManager {
		return a, auth.ForbiddenError{ActorID: actorID, Action: "assignment.complete"}
	}
	if err := ensureAssignmentTransition(a.Status, "completed"); err != nil {
		return a, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	tasks, err := e.Repo.ListAssignmentTasks(ctx, a.ID)
	if err != nil {
		return a, err
	}
	for _, t := range tasks {
		if t.Required && t.Status != "completed" {
			return a, auth.PreconditionError{Reason: fmt.Sprintf("required task %q is %s", t.Title, t.Status)}
		}
	}
	old := a.Status
	a.Status = "completed"
	if a.CompletedAt == nil {
		now := e.now().UTC().Format(time.RFC3339)
		a.CompletedAt = &now
	}
	if err := e.Repo.UpdateAssignment(ctx, tx, a); err != nil {
		return a, err
	}
	e.appendAudit(ctx, tx, audit.KindAssignment, a.ID, "status_change", old, a.Status, actorID)
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Tasks = tasks
	return a, nil
}

// CancelAssignment is manager-only and reaches cancelled from pending or
// in_progress.
func (e Engine) CancelAssignment(ctx context.Context, assignmentID, actorID string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return a, err
	}
	if _, err := e.requireManager(ctx, actorID, "assignment.cancel"); err != nil {
		return a, err
	}
	if err := ensureAssignmentTransition(a.Status, "cancelled"); err != nil {
		return a, err
	}
	old := a.Status
	a.Status = "cancelled"
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAssignment(ctx, tx, a); err != nil {
		return a, err
	}
	e.appendAudit(ctx, tx, audit.KindAssignment, a.ID, "status_change", old, a.Status, actorID)
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

// ReassignAssignment is the manager-only direct handoff, bypassing the
// transfer-approval protocol. Task instances still held by the previous
// assignee follow the assignment; individually transferred tasks keep their
// holder.
func (e Engine) ReassignAssignment(ctx context.Context, assignmentID, newEmployeeID, actorID string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return a, err
	}
	if _, err := e.requireManager(ctx, actorID, "assignment.reassign"); err != nil {
		return a, err
	}
	target, err := e.Repo.GetEmployee(ctx, newEmployeeID)
	if err != nil {
		return a, fmt.Errorf("target employee %s: %w", newEmployeeID, err)
	}
	if !target.IsActive {
		return a, auth.PreconditionError{Reason: fmt.Sprintf("employee %s is not active", newEmployeeID)}
	}
	if a.Status == "completed" || a.Status == "cancelled" {
		return a, auth.PreconditionError{Reason: fmt.Sprintf("cannot reassign %s assignment", a.Status)}
	}
	old := a.AssignedTo
	if old == newEmployeeID {
		return a, nil
	}
	a.AssignedTo = newEmployeeID
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAssignment(ctx, tx, a); err != nil {
		return a, err
	}
	tasks, err := e.Repo.ListAssignmentTasks(ctx, a.ID)
	if err != nil {
		return a, err
	}
	for _, t := range tasks {
		if t.AssignedTo != old {
			continue
		}
		t.AssignedTo = newEmployeeID
		if err := e.Repo.UpdateTaskInstance(ctx, tx, t); err != nil {
			return a, err
		}
	}
	e.appendAudit(ctx, tx, audit.KindAssignment, a.ID, "reassigned", old, newEmployeeID, actorID)
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

// TaskUpdateOptions carries the fields an actor may change on a task
// instance. Nil fields are left untouched.
type TaskUpdateOptions struct {
	ID             string
	Status         *string
	CompletionNote *string
	PhotoRef       *string
	ActualMinutes  *int
	ActorID        string
}

// UpdateTask applies completion metadata and guarded status changes to a
// task instance. Permitted to the task's current assignee, the assignment's
// assignee, or any manager.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.TaskInstance, error) {
	t, err := e.Repo.GetTaskInstance(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	a, err := e.Repo.GetAssignment(ctx, t.AssignmentID)
	if err != nil {
		return t, err
	}
	actor, err := e.actor(ctx, opts.ActorID, "task.update")
	if err != nil {
		return t, err
	}
	if t.AssignedTo != opts.ActorID && a.AssignedTo != opts.ActorID && actor.Role != domain.RoleManager {
		return t, auth.ForbiddenError{ActorID: opts.ActorID, Action: "task.update"}
	}
	oldStatus := t.Status
	if opts.CompletionNote != nil {
		t.CompletionNote = *opts.CompletionNote
	}
	if opts.PhotoRef != nil {
		t.PhotoRef = *opts.PhotoRef
	}
	if opts.ActualMinutes != nil {
		t.ActualMinutes = opts.ActualMinutes
	}
	if opts.Status != nil && *opts.Status != t.Status {
		if err := ensureTaskTransition(t.Status, *opts.Status); err != nil {
			return t, err
		}
		t.Status = *opts.Status
		if t.Status == "completed" && t.CompletedAt == nil {
			now := e.now().UTC().Format(time.RFC3339)
			t.CompletedAt = &now
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskInstance(ctx, tx, t); err != nil {
		return t, err
	}
	if t.Status != oldStatus {
		e.appendAudit(ctx, tx, audit.KindTask, t.ID, "status_change", oldStatus, t.Status, opts.ActorID)
	} else {
		e.appendAudit(ctx, tx, audit.KindTask, t.ID, "updated", "", "", opts.ActorID)
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// AdHocAssignmentOptions are parameters for a manager-created one-off
// assignment.
type AdHocAssignmentOptions struct {
	TemplateID string
	AssignedTo string
	Name       string
	DueDate    string // RFC3339; defaults to end of the current business day
	ActorID    string
}

// CreateAdHocAssignment fires a template once for one employee, outside any
// recurring definition.
func (e Engine) CreateAdHocAssignment(ctx context.Context, opts AdHocAssignmentOptions) (domain.Assignment, error) {
	if _, err := e.requireManager(ctx, opts.ActorID, "assignment.create"); err != nil {
		return domain.Assignment{}, err
	}
	tpl, err := e.Repo.GetTemplate(ctx, opts.TemplateID)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("template %s: %w", opts.TemplateID, err)
	}
	target, err := e.Repo.GetEmployee(ctx, opts.AssignedTo)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("employee %s: %w", opts.AssignedTo, err)
	}
	if !target.IsActive {
		return domain.Assignment{}, auth.PreconditionError{Reason: fmt.Sprintf("employee %s is not active", opts.AssignedTo)}
	}
	name := opts.Name
	if name == "" {
		name = tpl.Name
	}
	due := opts.DueDate
	if due == "" {
		local := e.nowLocal()
		due = time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, local.Location()).UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, due); err != nil {
		return domain.Assignment{}, fmt.Errorf("invalid due_date: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback()
	a, err := e.createAssignment(ctx, tx, tpl, nil, name, opts.AssignedTo, opts.ActorID, due)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

// createAssignment inserts one assignment plus its task instances copied
// from the template, all inside the caller's transaction.
func (e Engine) createAssignment(ctx context.Context, tx *sql.Tx, tpl domain.WorkflowTemplate, recurringID *string, name, assignedTo, assignedBy, dueDate string) (domain.Assignment, error) {
	now := e.now().UTC().Format(time.RFC3339)
	a := domain.Assignment{
		ID:                  uuid.New().String(),
		RecurringWorkflowID: recurringID,
		TemplateID:          tpl.ID,
		Name:                name,
		AssignedTo:          assignedTo,
		AssignedBy:          assignedBy,
		Status:              "pending",
		DueDate:             dueDate,
		CreatedAt:           now,
	}
	if err := e.Repo.InsertAssignment(ctx, tx, a); err != nil {
		return a, fmt.Errorf("insert assignment: %w", err)
	}
	for _, tt := range tpl.Tasks {
		ti := domain.TaskInstance{
			ID:           uuid.New().String(),
			AssignmentID: a.ID,
			Title:        tt.Title,
			Description:  tt.Description,
			SortOrder:    tt.SortOrder,
			Required:     tt.Required,
			Status:       "pending",
			AssignedTo:   assignedTo,
		}
		if err := e.Repo.InsertTaskInstance(ctx, tx, ti); err != nil {
			return a, fmt.Errorf("insert task instance: %w", err)
		}
		a.Tasks = append(a.Tasks, ti)
	}
	e.appendAudit(ctx, tx, audit.KindAssignment, a.ID, "created", "", a.Status, assignedBy)
	return a, nil
}

// AssignmentWithTasks loads an assignment and its ordered task instances.
func (e Engine) AssignmentWithTasks(ctx context.Context, id string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, id)
	if err != nil {
		return a, err
	}
	a.Tasks, err = e.Repo.ListAssignmentTasks(ctx, id)
	return a, err
}
