package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"shiftflow/internal/domain"
	"shiftflow/internal/engine"
	"shiftflow/internal/engine/auth"
	"shiftflow/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"actor alice not permitted to assignment.cancel"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Shiftflow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Shiftflow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerEmployees(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerWorkflows(group, cfg.Engine)
	registerAssignments(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerTransfers(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerAudit(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerJobs(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"action": fe.Action})
	}
	var pe auth.PreconditionError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusUnprocessableEntity, "precondition_failed", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown") || strings.Contains(lowered, "out of range") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "precondition_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requireJobCaller admits the job-secret principal or a manager.
func requireJobCaller(ctx context.Context, e engine.Engine) huma.StatusError {
	p, ok := principalFromContext(ctx)
	if !ok {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	if p.Source == "job" {
		return nil
	}
	emp, err := e.Repo.GetEmployee(ctx, p.ActorID)
	if err != nil || emp.Role != domain.RoleManager {
		return newAPIError(http.StatusForbidden, "forbidden", "job endpoints require the job secret or a manager", nil)
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Shiftflow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerEmployees(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-employee",
		Method:        http.MethodPost,
		Path:          "/employees",
		Summary:       "Create employee",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateEmployeeRequest `json:"body"`
	}) (*struct {
		Body domain.Employee `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		emp, err := e.CreateEmployee(ctx, input.Body.ID, input.Body.Name, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Employee `json:"body"`
		}{Body: emp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-employees",
		Method:      http.MethodGet,
		Path:        "/employees",
		Summary:     "List employees",
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active" doc:"Only active employees"`
	}) (*struct {
		Body []domain.Employee `json:"body"`
	}, error) {
		items, err := e.Repo.ListEmployees(ctx, input.Active)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Employee `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-employee",
		Method:      http.MethodGet,
		Path:        "/employees/{employee_id}",
		Summary:     "Get employee",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EmployeeID string `path:"employee_id"`
	}) (*struct {
		Body domain.Employee `json:"body"`
	}, error) {
		emp, err := e.Repo.GetEmployee(ctx, input.EmployeeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Employee `json:"body"`
		}{Body: emp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-employee",
		Method:      http.MethodPatch,
		Path:        "/employees/{employee_id}",
		Summary:     "Update employee",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EmployeeID string                `path:"employee_id"`
		Body       UpdateEmployeeRequest `json:"body"`
	}) (*struct {
		Body domain.Employee `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.IsActive != nil {
			actor, err := e.Repo.GetEmployee(ctx, actorID)
			if err != nil || actor.Role != domain.RoleManager {
				return nil, handleError(auth.ForbiddenError{ActorID: actorID, Action: "employee.update"})
			}
			if err := e.Repo.SetEmployeeActive(ctx, input.EmployeeID, *input.Body.IsActive); err != nil {
				return nil, handleError(err)
			}
		}
		emp, err := e.Repo.GetEmployee(ctx, input.EmployeeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Employee `json:"body"`
		}{Body: emp}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Create workflow template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowTemplate `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		specs := make([]engine.TemplateTaskSpec, 0, len(input.Body.Tasks))
		for _, t := range input.Body.Tasks {
			specs = append(specs, engine.TemplateTaskSpec{
				Title:            t.Title,
				Description:      t.Description,
				Required:         t.Required,
				EstimatedMinutes: t.EstimatedMinutes,
			})
		}
		tpl, err := e.CreateTemplate(ctx, input.Body.Name, input.Body.Description, actorID, specs)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowTemplate `json:"body"`
		}{Body: tpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List workflow templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.WorkflowTemplate `json:"body"`
	}, error) {
		items, err := e.Repo.ListTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkflowTemplate `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{template_id}",
		Summary:     "Get workflow template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*struct {
		Body domain.WorkflowTemplate `json:"body"`
	}, error) {
		tpl, err := e.Repo.GetTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowTemplate `json:"body"`
		}{Body: tpl}, nil
	})
}

func registerWorkflows(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workflow",
		Method:        http.MethodPost,
		Path:          "/workflows",
		Summary:       "Create recurring workflow",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkflowRequest `json:"body"`
	}) (*struct {
		Body domain.RecurringWorkflow `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.CreateRecurringWorkflow(ctx, engine.RecurringWorkflowOptions{
			TemplateID: input.Body.TemplateID,
			Name:       input.Body.Name,
			Pattern:    input.Body.Pattern,
			Config:     input.Body.Config,
			AssignedTo: input.Body.AssignedTo,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RecurringWorkflow `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workflows",
		Method:      http.MethodGet,
		Path:        "/workflows",
		Summary:     "List recurring workflows",
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active" doc:"Only active workflows"`
	}) (*struct {
		Body []domain.RecurringWorkflow `json:"body"`
	}, error) {
		items, err := e.Repo.ListRecurringWorkflows(ctx, input.Active)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.RecurringWorkflow `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow",
		Method:      http.MethodGet,
		Path:        "/workflows/{workflow_id}",
		Summary:     "Get recurring workflow",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkflowID string `path:"workflow_id"`
	}) (*struct {
		Body domain.RecurringWorkflow `json:"body"`
	}, error) {
		w, err := e.Repo.GetRecurringWorkflow(ctx, input.WorkflowID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RecurringWorkflow `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workflow",
		Method:      http.MethodPatch,
		Path:        "/workflows/{workflow_id}",
		Summary:     "Pause, resume or retarget a recurring workflow",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkflowID string                `path:"workflow_id"`
		Body       UpdateWorkflowRequest `json:"body"`
	}) (*struct {
		Body domain.RecurringWorkflow `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(input.Body.AssignedTo) > 0 {
			if _, err := e.UpdateRecurringWorkflowRecipients(ctx, input.WorkflowID, input.Body.AssignedTo, actorID); err != nil {
				return nil, handleError(err)
			}
		}
		if input.Body.IsActive != nil {
			if _, err := e.SetRecurringWorkflowActive(ctx, input.WorkflowID, *input.Body.IsActive, actorID); err != nil {
				return nil, handleError(err)
			}
		}
		w, err := e.Repo.GetRecurringWorkflow(ctx, input.WorkflowID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RecurringWorkflow `json:"body"`
		}{Body: w}, nil
	})
}

func registerAssignments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-assignment",
		Method:        http.MethodPost,
		Path:          "/assignments",
		Summary:       "Create ad hoc assignment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateAssignmentRequest `json:"body"`
	}) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAdHocAssignment(ctx, engine.AdHocAssignmentOptions{
			TemplateID: input.Body.TemplateID,
			AssignedTo: input.Body.AssignedTo,
			Name:       input.Body.Name,
			DueDate:    input.Body.DueDate,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-assignments",
		Method:      http.MethodGet,
		Path:        "/assignments",
		Summary:     "List assignments",
	}, func(ctx context.Context, input *struct {
		AssignedTo string `query:"assigned_to"`
		Status     string `query:"status" enum:",pending,in_progress,completed,cancelled"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.Assignment `json:"body"`
	}, error) {
		items, err := e.Repo.ListAssignments(ctx, repo.AssignmentFilters{
			AssignedTo: input.AssignedTo,
			Status:     input.Status,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Assignment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-assignment",
		Method:      http.MethodGet,
		Path:        "/assignments/{assignment_id}",
		Summary:     "Get assignment with tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssignmentID string `path:"assignment_id"`
	}) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		a, err := e.AssignmentWithTasks(ctx, input.AssignmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})

	type assignmentAction struct {
		AssignmentID string `path:"assignment_id"`
	}
	actions := []struct {
		id, pathSuffix, summary string
		run                     func(ctx context.Context, id, actorID string) (domain.Assignment, error)
	}{
		{"start-assignment", "start", "Start assignment", e.StartAssignment},
		{"complete-assignment", "complete", "Complete assignment", e.CompleteAssignment},
		{"cancel-assignment", "cancel", "Cancel assignment", e.CancelAssignment},
	}
	for _, act := range actions {
		run := act.run
		huma.Register(api, huma.Operation{
			OperationID: act.id,
			Method:      http.MethodPost,
			Path:        "/assignments/{assignment_id}/" + act.pathSuffix,
			Summary:     act.summary,
			Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
		}, func(ctx context.Context, input *assignmentAction) (*struct {
			Body domain.Assignment `json:"body"`
		}, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			a, err := run(ctx, input.AssignmentID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Assignment `json:"body"`
			}{Body: a}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "reassign-assignment",
		Method:      http.MethodPost,
		Path:        "/assignments/{assignment_id}/reassign",
		Summary:     "Reassign assignment to another employee",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		AssignmentID string          `path:"assignment_id"`
		Body         ReassignRequest `json:"body"`
	}) (*struct {
		Body domain.Assignment `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.ReassignAssignment(ctx, input.AssignmentID, input.Body.AssignedTo, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assignment `json:"body"`
		}{Body: a}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task instance",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.TaskInstance `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:             input.TaskID,
			Status:         input.Body.Status,
			CompletionNote: input.Body.CompletionNote,
			PhotoRef:       input.Body.PhotoRef,
			ActualMinutes:  input.Body.ActualMinutes,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskInstance `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task instance",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.TaskInstance `json:"body"`
	}, error) {
		t, err := e.Repo.GetTaskInstance(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskInstance `json:"body"`
		}{Body: t}, nil
	})
}

func registerTransfers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-transfer",
		Method:        http.MethodPost,
		Path:          "/transfers",
		Summary:       "Request task transfer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateTransferRequest `json:"body"`
	}) (*struct {
		Body domain.TransferRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tr, err := e.RequestTransfer(ctx, engine.TransferOptions{
			TaskID:     input.Body.TaskID,
			ToEmployee: input.Body.ToEmployee,
			Reason:     input.Body.Reason,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TransferRequest `json:"body"`
		}{Body: tr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-transfers",
		Method:      http.MethodGet,
		Path:        "/transfers",
		Summary:     "List transfer requests",
	}, func(ctx context.Context, input *struct {
		Employee string `query:"employee" doc:"Matches either side of the handoff"`
		Status   string `query:"status" enum:",pending_transferee,pending_manager,approved,rejected"`
		Limit    int    `query:"limit"`
	}) (*struct {
		Body []domain.TransferRequest `json:"body"`
	}, error) {
		items, err := e.Repo.ListTransferRequests(ctx, repo.TransferFilters{
			Employee: input.Employee,
			Status:   input.Status,
			Limit:    input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TransferRequest `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transfer",
		Method:      http.MethodGet,
		Path:        "/transfers/{transfer_id}",
		Summary:     "Get transfer request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TransferID string `path:"transfer_id"`
	}) (*struct {
		Body domain.TransferRequest `json:"body"`
	}, error) {
		tr, err := e.Repo.GetTransferRequest(ctx, input.TransferID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TransferRequest `json:"body"`
		}{Body: tr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-transfer",
		Method:      http.MethodPost,
		Path:        "/transfers/{transfer_id}/respond",
		Summary:     "Transferee accepts or declines",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TransferID string                    `path:"transfer_id"`
		Body       TransfereeResponseRequest `json:"body"`
	}) (*struct {
		Body domain.TransferRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tr, err := e.RespondTransferee(ctx, input.TransferID, input.Body.Accept, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TransferRequest `json:"body"`
		}{Body: tr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-transfer",
		Method:      http.MethodPost,
		Path:        "/transfers/{transfer_id}/decide",
		Summary:     "Manager approves or rejects",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TransferID string                 `path:"transfer_id"`
		Body       ManagerResponseRequest `json:"body"`
	}) (*struct {
		Body domain.TransferRequest `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tr, err := e.RespondManager(ctx, input.TransferID, input.Body.Approve, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TransferRequest `json:"body"`
		}{Body: tr}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-weekly-reports",
		Method:      http.MethodGet,
		Path:        "/reports/weekly",
		Summary:     "List weekly reports",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []domain.WeeklyReport `json:"body"`
	}, error) {
		items, err := e.Repo.ListWeeklyReports(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WeeklyReport `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-weekly-report",
		Method:      http.MethodGet,
		Path:        "/reports/weekly/{week_ending}",
		Summary:     "Get weekly report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WeekEnding string `path:"week_ending" doc:"Sunday, YYYY-MM-DD"`
	}) (*struct {
		Body domain.WeeklyReport `json:"body"`
	}, error) {
		w, err := e.Repo.GetWeeklyReport(ctx, input.WeekEnding)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WeeklyReport `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-weekly-stats",
		Method:      http.MethodGet,
		Path:        "/reports/weekly/{week_ending}/stats",
		Summary:     "Per-employee stats for a week",
	}, func(ctx context.Context, input *struct {
		WeekEnding string `path:"week_ending" doc:"Sunday, YYYY-MM-DD"`
	}) (*struct {
		Body []domain.EmployeeWeekStat `json:"body"`
	}, error) {
		items, err := e.Repo.ListEmployeeWeekStats(ctx, input.WeekEnding)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.EmployeeWeekStat `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-archived-assignments",
		Method:      http.MethodGet,
		Path:        "/reports/archive/{week_ending}",
		Summary:     "Archived assignments for a week",
	}, func(ctx context.Context, input *struct {
		WeekEnding string `path:"week_ending" doc:"Sunday, YYYY-MM-DD"`
	}) (*struct {
		Body []domain.ArchivedAssignment `json:"body"`
	}, error) {
		items, err := e.Repo.ListArchivedAssignments(ctx, input.WeekEnding)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ArchivedAssignment `json:"body"`
		}{Body: items}, nil
	})
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-entries",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "List audit log entries",
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:",assignment,task,transfer,workflow"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.AuditEntry `json:"body"`
	}, error) {
		items, err := e.Repo.ListAuditEntries(ctx, input.EntityKind, input.EntityID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AuditEntry `json:"body"`
		}{Body: items}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyCreatedResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, plaintext, err := e.CreateAPIKey(ctx, input.Body.EmployeeID, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyCreatedResponse `json:"body"`
		}{Body: APIKeyCreatedResponse{
			ID:         key.ID,
			EmployeeID: key.EmployeeID,
			Name:       key.Name,
			Key:        plaintext,
			CreatedAt:  key.CreatedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EmployeeID string `query:"employee_id"`
	}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAPIKeys(ctx, input.EmployeeID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/api-keys/{key_id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAPIKey(ctx, input.KeyID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "run-scheduler",
		Method:      http.MethodPost,
		Path:        "/jobs/scheduler/run",
		Summary:     "Run the workflow scheduler once",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.SchedulerSummary `json:"body"`
	}, error) {
		if authErr := requireJobCaller(ctx, e); authErr != nil {
			return nil, authErr
		}
		sum, err := e.RunScheduler(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.SchedulerSummary `json:"body"`
		}{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-archive",
		Method:      http.MethodPost,
		Path:        "/jobs/archive/run",
		Summary:     "Run the weekly archive once",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.ArchiveResult `json:"body"`
	}, error) {
		if authErr := requireJobCaller(ctx, e); authErr != nil {
			return nil, authErr
		}
		res, err := e.RunWeeklyArchive(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ArchiveResult `json:"body"`
		}{Body: res}, nil
	})
}
