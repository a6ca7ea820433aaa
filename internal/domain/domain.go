package domain

// Employee roles.
const (
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

type Employee struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role" enum:"manager,employee"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type WorkflowTemplate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
	Tasks       []TemplateTask `json:"tasks,omitempty"`
}

type TemplateTask struct {
	ID               string `json:"id"`
	TemplateID       string `json:"template_id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	SortOrder        int    `json:"sort_order"`
	Required         bool   `json:"required"`
	EstimatedMinutes *int   `json:"estimated_minutes,omitempty"`
}

// RecurringWorkflow is a manager-configured rule describing when and to whom a
// template fires. Only the scheduler advances NextAssignment/LastAssigned.
type RecurringWorkflow struct {
	ID             string   `json:"id"`
	TemplateID     string   `json:"template_id"`
	Name           string   `json:"name"`
	Pattern        string   `json:"recurrence_pattern" enum:"daily,weekly,monthly"`
	ConfigJSON     string   `json:"recurrence_config"`
	AssignedTo     []string `json:"assigned_to"`
	AssignedBy     string   `json:"assigned_by"`
	NextAssignment string   `json:"next_assignment" format:"date-time"`
	LastAssigned   *string  `json:"last_assigned,omitempty" format:"date-time"`
	IsActive       bool     `json:"is_active"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
}

// Assignment is one fired instance of a workflow, owned by one employee.
// RecurringWorkflowID is nil for ad hoc assignments.
type Assignment struct {
	ID                  string  `json:"id"`
	RecurringWorkflowID *string `json:"recurring_workflow_id,omitempty"`
	TemplateID          string  `json:"template_id"`
	Name                string  `json:"name"`
	AssignedTo          string  `json:"assigned_to"`
	AssignedBy          string  `json:"assigned_by"`
	Status              string  `json:"status" enum:"pending,in_progress,completed,cancelled"`
	DueDate             string  `json:"due_date" format:"date-time"`
	StartedAt           *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt         *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt           string  `json:"created_at" format:"date-time"`

	Tasks []TaskInstance `json:"tasks,omitempty"`
}

// TaskInstance is one unit of work within an assignment. AssignedTo may
// diverge from the assignment's assignee after an approved transfer.
type TaskInstance struct {
	ID             string  `json:"id"`
	AssignmentID   string  `json:"assignment_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	SortOrder      int     `json:"sort_order"`
	Required       bool    `json:"required"`
	Status         string  `json:"status" enum:"pending,in_progress,completed"`
	AssignedTo     string  `json:"assigned_to"`
	CompletionNote string  `json:"completion_note,omitempty"`
	PhotoRef       string  `json:"photo_ref,omitempty"`
	ActualMinutes  *int    `json:"actual_minutes,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty" format:"date-time"`
}

// TransferRequest is the three-party handoff protocol for a task. At most one
// open (non-terminal) request may exist per task at a time.
type TransferRequest struct {
	ID                    string  `json:"id"`
	TaskID                string  `json:"task_id"`
	AssignmentID          string  `json:"assignment_id"`
	FromEmployee          string  `json:"from_employee"`
	ToEmployee            string  `json:"to_employee"`
	Reason                string  `json:"reason,omitempty"`
	Status                string  `json:"status" enum:"pending_transferee,pending_manager,approved,rejected"`
	RequestedAt           string  `json:"requested_at" format:"date-time"`
	TransfereeRespondedAt *string `json:"transferee_responded_at,omitempty" format:"date-time"`
	ManagerRespondedAt    *string `json:"manager_responded_at,omitempty" format:"date-time"`
	ManagerID             *string `json:"manager_id,omitempty"`
	RejectReason          string  `json:"reject_reason,omitempty"`
}

// AuditEntry is an append-only record of a state change. Never updated or
// deleted.
type AuditEntry struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id"`
	Action      string `json:"action"`
	OldValue    string `json:"old_value,omitempty"`
	NewValue    string `json:"new_value,omitempty"`
	PerformedBy string `json:"performed_by"`
}

// ArchivedAssignment is an immutable snapshot of a completed assignment taken
// by the weekly archive job.
type ArchivedAssignment struct {
	ID                  string  `json:"id"`
	AssignmentID        string  `json:"assignment_id"`
	RecurringWorkflowID *string `json:"recurring_workflow_id,omitempty"`
	Name                string  `json:"name"`
	AssignedTo          string  `json:"assigned_to"`
	AssignedBy          string  `json:"assigned_by"`
	DueDate             string  `json:"due_date" format:"date-time"`
	StartedAt           *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt         *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	WeekEnding          string  `json:"week_ending" format:"date"`
	TaskSummaryJSON     string  `json:"task_summary_json,omitempty"`
	ArchivedAt          string  `json:"archived_at" format:"date-time"`
}

// WeeklyReport is the single rollup row produced once per business week,
// keyed uniquely by WeekEnding.
type WeeklyReport struct {
	WeekEnding      string  `json:"week_ending" format:"date"`
	WeekStart       string  `json:"week_start" format:"date"`
	TotalAssigned   int     `json:"total_assigned"`
	TotalCompleted  int     `json:"total_completed"`
	CompletionRate  float64 `json:"completion_rate"`
	ActiveEmployees int     `json:"active_employees"`
	TopPerformer    string  `json:"top_performer,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

type EmployeeWeekStat struct {
	WeekEnding     string  `json:"week_ending" format:"date"`
	EmployeeID     string  `json:"employee_id"`
	TasksAssigned  int     `json:"tasks_assigned"`
	TasksCompleted int     `json:"tasks_completed"`
	CompletionRate float64 `json:"completion_rate"`
	TasksOverdue   int     `json:"tasks_overdue"`
}

type APIKey struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
	KeyHash    string `json:"key_hash"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}
