package server

// Request bodies. Responses reuse the domain types, which already carry the
// JSON shape of the API.

type CreateEmployeeRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Role string `json:"role,omitempty" enum:"manager,employee"`
}

type UpdateEmployeeRequest struct {
	IsActive *bool `json:"is_active,omitempty"`
}

type TemplateTaskRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Required         bool   `json:"required,omitempty"`
	EstimatedMinutes *int   `json:"estimated_minutes,omitempty"`
}

type CreateTemplateRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Tasks       []TemplateTaskRequest `json:"tasks"`
}

type CreateWorkflowRequest struct {
	TemplateID string   `json:"template_id"`
	Name       string   `json:"name,omitempty"`
	Pattern    string   `json:"recurrence_pattern" enum:"daily,weekly,monthly"`
	Config     string   `json:"recurrence_config,omitempty"`
	AssignedTo []string `json:"assigned_to"`
}

type UpdateWorkflowRequest struct {
	IsActive   *bool    `json:"is_active,omitempty"`
	AssignedTo []string `json:"assigned_to,omitempty"`
}

type CreateAssignmentRequest struct {
	TemplateID string `json:"template_id"`
	AssignedTo string `json:"assigned_to"`
	Name       string `json:"name,omitempty"`
	DueDate    string `json:"due_date,omitempty" format:"date-time"`
}

type ReassignRequest struct {
	AssignedTo string `json:"assigned_to"`
}

type UpdateTaskRequest struct {
	Status         *string `json:"status,omitempty" enum:"pending,in_progress,completed"`
	CompletionNote *string `json:"completion_note,omitempty"`
	PhotoRef       *string `json:"photo_ref,omitempty"`
	ActualMinutes  *int    `json:"actual_minutes,omitempty"`
}

type CreateTransferRequest struct {
	TaskID     string `json:"task_id"`
	ToEmployee string `json:"to_employee"`
	Reason     string `json:"reason,omitempty"`
}

type TransfereeResponseRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason,omitempty"`
}

type ManagerResponseRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

type CreateAPIKeyRequest struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
}

// APIKeyCreatedResponse carries the plaintext key exactly once.
type APIKeyCreatedResponse struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
	Key        string `json:"key"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}
