package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shiftflow/internal/app"
	croncmd "shiftflow/internal/cron"
	"shiftflow/internal/db"
	"shiftflow/internal/domain"
	"shiftflow/internal/engine"
	"shiftflow/internal/repo"
	"shiftflow/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sf",
	Short: "Shiftflow CLI",
	Long: `Shiftflow runs recurring shift workflows for a restaurant or shop.
Managers define checklist templates and recurrence rules; the scheduler turns
them into per-employee assignments; task handoffs pass through a three-party
transfer approval; a weekly archive job rolls the closed week into reports.
State lives in the workspace's .shiftflow directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SHIFTFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting employee id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(assignmentCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(transferCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cronCmd())
}

func actorID() string {
	return viper.GetString("actor-id")
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	c, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c.Engine)
}

// --- employees ---

func employeeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "employee", Short: "Manage employees"}
	cmd.AddCommand(employeeCreateCmd())
	cmd.AddCommand(employeeListCmd())
	cmd.AddCommand(employeeShowCmd())
	cmd.AddCommand(employeeSetActiveCmd("activate", "Activate employee", true))
	cmd.AddCommand(employeeSetActiveCmd("deactivate", "Deactivate employee", false))
	return cmd
}

func employeeCreateCmd() *cobra.Command {
	var id, name, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				emp, err := e.CreateEmployee(ctx, id, name, role)
				if err != nil {
					return err
				}
				return printJSONOrValue(emp)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "employee id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "employee", "role (manager, employee)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func employeeListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListEmployees(ctx, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Active"})
				for _, emp := range items {
					tw.AppendRow(table.Row{emp.ID, emp.Name, emp.Role, emp.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active employees")
	return cmd
}

func employeeShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				emp, err := e.Repo.GetEmployee(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(emp)
			})
		},
	}
	return cmd
}

func employeeSetActiveCmd(use, short string, active bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.SetEmployeeActive(ctx, args[0], active); err != nil {
					return err
				}
				emp, err := e.Repo.GetEmployee(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(emp)
			})
		},
	}
	return cmd
}

// --- templates ---

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Manage workflow templates"}
	cmd.AddCommand(templateCreateCmd())
	cmd.AddCommand(templateListCmd())
	cmd.AddCommand(templateShowCmd())
	return cmd
}

// parseTaskSpec parses a --task value of the form
// "title|required|minutes|description" where only title is mandatory.
func parseTaskSpec(raw string) (engine.TemplateTaskSpec, error) {
	parts := strings.Split(raw, "|")
	spec := engine.TemplateTaskSpec{Title: strings.TrimSpace(parts[0])}
	if spec.Title == "" {
		return spec, fmt.Errorf("task %q: title is required", raw)
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		req, err := strconv.ParseBool(strings.TrimSpace(parts[1]))
		if err != nil {
			return spec, fmt.Errorf("task %q: required must be true/false", raw)
		}
		spec.Required = req
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		mins, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return spec, fmt.Errorf("task %q: minutes must be a number", raw)
		}
		spec.EstimatedMinutes = &mins
	}
	if len(parts) > 3 {
		spec.Description = strings.TrimSpace(strings.Join(parts[3:], "|"))
	}
	return spec, nil
}

func templateCreateCmd() *cobra.Command {
	var name, desc string
	var tasks []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create workflow template",
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]engine.TemplateTaskSpec, 0, len(tasks))
			for _, raw := range tasks {
				spec, err := parseTaskSpec(raw)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tpl, err := e.CreateTemplate(ctx, name, desc, actorID(), specs)
				if err != nil {
					return err
				}
				return printJSONOrValue(tpl)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringArrayVar(&tasks, "task", nil, `checklist line: "title|required|minutes|description"`)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func templateListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTemplates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created By", "Created"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.CreatedBy, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func templateShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show template with its checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tpl, err := e.Repo.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(tpl)
			})
		},
	}
	return cmd
}

// --- recurring workflows ---

func workflowCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "workflow", Short: "Manage recurring workflows"}
	cmd.AddCommand(workflowCreateCmd())
	cmd.AddCommand(workflowListCmd())
	cmd.AddCommand(workflowShowCmd())
	cmd.AddCommand(workflowSetActiveCmd("pause", "Pause recurring workflow", false))
	cmd.AddCommand(workflowSetActiveCmd("resume", "Resume recurring workflow", true))
	cmd.AddCommand(workflowRecipientsCmd())
	return cmd
}

func workflowCreateCmd() *cobra.Command {
	var templateID, name, pattern, cfg string
	var assignedTo []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create recurring workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.CreateRecurringWorkflow(ctx, engine.RecurringWorkflowOptions{
					TemplateID: templateID,
					Name:       name,
					Pattern:    pattern,
					Config:     cfg,
					AssignedTo: assignedTo,
					ActorID:    actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrValue(w)
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "template id")
	cmd.Flags().StringVar(&name, "name", "", "workflow name (defaults to template name)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "recurrence pattern (daily, weekly, monthly)")
	cmd.Flags().StringVar(&cfg, "config", "", `recurrence config JSON, e.g. {"time":"09:00","daysOfWeek":[1,3,5]}`)
	cmd.Flags().StringSliceVar(&assignedTo, "assign", nil, "recipient employee ids")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("assign")
	return cmd
}

func workflowListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListRecurringWorkflows(ctx, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Pattern", "Next", "Recipients", "Active"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, w.Pattern, w.NextAssignment, strings.Join(w.AssignedTo, ","), w.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active workflows")
	return cmd
}

func workflowShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show recurring workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Repo.GetRecurringWorkflow(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(w)
			})
		},
	}
	return cmd
}

func workflowSetActiveCmd(use, short string, active bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.SetRecurringWorkflowActive(ctx, args[0], active, actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(w)
			})
		},
	}
	return cmd
}

func workflowRecipientsCmd() *cobra.Command {
	var assignedTo []string
	cmd := &cobra.Command{
		Use:   "recipients <id>",
		Short: "Replace recipient set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.UpdateRecurringWorkflowRecipients(ctx, args[0], assignedTo, actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(w)
			})
		},
	}
	cmd.Flags().StringSliceVar(&assignedTo, "assign", nil, "recipient employee ids")
	_ = cmd.MarkFlagRequired("assign")
	return cmd
}

// --- assignments ---

func assignmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assignment", Short: "Manage assignments"}
	cmd.AddCommand(assignmentCreateCmd())
	cmd.AddCommand(assignmentListCmd())
	cmd.AddCommand(assignmentShowCmd())
	cmd.AddCommand(assignmentActionCmd("start", "Start assignment", func(e engine.Engine) func(context.Context, string, string) (domain.Assignment, error) {
		return e.StartAssignment
	}))
	cmd.AddCommand(assignmentActionCmd("complete", "Complete assignment", func(e engine.Engine) func(context.Context, string, string) (domain.Assignment, error) {
		return e.CompleteAssignment
	}))
	cmd.AddCommand(assignmentActionCmd("cancel", "Cancel assignment", func(e engine.Engine) func(context.Context, string, string) (domain.Assignment, error) {
		return e.CancelAssignment
	}))
	cmd.AddCommand(assignmentReassignCmd())
	return cmd
}

func assignmentCreateCmd() *cobra.Command {
	var templateID, assignee, name, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create ad hoc assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAdHocAssignment(ctx, engine.AdHocAssignmentOptions{
					TemplateID: templateID,
					AssignedTo: assignee,
					Name:       name,
					DueDate:    due,
					ActorID:    actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrValue(a)
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "template id")
	cmd.Flags().StringVar(&assignee, "assign", "", "employee id")
	cmd.Flags().StringVar(&name, "name", "", "assignment name (defaults to template name)")
	cmd.Flags().StringVar(&due, "due", "", "due date, RFC3339 (defaults to end of today)")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("assign")
	return cmd
}

func assignmentListCmd() *cobra.Command {
	var assignee, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAssignments(ctx, repo.AssignmentFilters{
					AssignedTo: assignee,
					Status:     status,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Assignee", "Status", "Due"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Name, a.AssignedTo, a.Status, a.DueDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by employee id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func assignmentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show assignment with tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AssignmentWithTasks(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(a)
			})
		},
	}
	return cmd
}

func assignmentActionCmd(use, short string, pick func(engine.Engine) func(context.Context, string, string) (domain.Assignment, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := pick(e)(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(a)
			})
		},
	}
	return cmd
}

func assignmentReassignCmd() *cobra.Command {
	var assignee string
	cmd := &cobra.Command{
		Use:   "reassign <id>",
		Short: "Reassign assignment to another employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.ReassignAssignment(ctx, args[0], assignee, actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(a)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "to", "", "new employee id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// --- task instances ---

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage task instances"}
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskUpdateCmd())
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTaskInstance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var status, note, photo string
	var minutes int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{ID: args[0], ActorID: actorID()}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("note") {
				opts.CompletionNote = &note
			}
			if cmd.Flags().Changed("photo") {
				opts.PhotoRef = &photo
			}
			if cmd.Flags().Changed("minutes") {
				opts.ActualMinutes = &minutes
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrValue(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status (pending, in_progress, completed)")
	cmd.Flags().StringVar(&note, "note", "", "completion note")
	cmd.Flags().StringVar(&photo, "photo", "", "photo reference")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "actual minutes spent")
	return cmd
}

// --- transfers ---

func transferCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "transfer", Short: "Manage task transfers"}
	cmd.AddCommand(transferRequestCmd())
	cmd.AddCommand(transferListCmd())
	cmd.AddCommand(transferShowCmd())
	cmd.AddCommand(transferRespondCmd())
	cmd.AddCommand(transferDecideCmd())
	return cmd
}

func transferRequestCmd() *cobra.Command {
	var taskID, to, reason string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a task handoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tr, err := e.RequestTransfer(ctx, engine.TransferOptions{
					TaskID:     taskID,
					ToEmployee: to,
					Reason:     reason,
					ActorID:    actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrValue(tr)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task instance id")
	cmd.Flags().StringVar(&to, "to", "", "proposed recipient employee id")
	cmd.Flags().StringVar(&reason, "reason", "", "why the handoff is needed")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func transferListCmd() *cobra.Command {
	var employee, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transfer requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTransferRequests(ctx, repo.TransferFilters{
					Employee: employee,
					Status:   status,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Task", "From", "To", "Status", "Requested"})
				for _, tr := range items {
					tw.AppendRow(table.Row{tr.ID, tr.TaskID, tr.FromEmployee, tr.ToEmployee, tr.Status, tr.RequestedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&employee, "employee", "", "matches either side of the handoff")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func transferShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show transfer request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tr, err := e.Repo.GetTransferRequest(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(tr)
			})
		},
	}
	return cmd
}

func transferRespondCmd() *cobra.Command {
	var accept bool
	var reason string
	cmd := &cobra.Command{
		Use:   "respond <id>",
		Short: "Accept or decline as the proposed recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tr, err := e.RespondTransferee(ctx, args[0], accept, reason, actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(tr)
			})
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept the handoff")
	cmd.Flags().StringVar(&reason, "reason", "", "decline reason")
	return cmd
}

func transferDecideCmd() *cobra.Command {
	var approve bool
	var reason string
	cmd := &cobra.Command{
		Use:   "decide <id>",
		Short: "Approve or reject as manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tr, err := e.RespondManager(ctx, args[0], approve, reason, actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(tr)
			})
		},
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "approve the handoff")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

// --- reports / audit ---

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Weekly reports and archive"}
	cmd.AddCommand(reportListCmd())
	cmd.AddCommand(reportShowCmd())
	cmd.AddCommand(reportStatsCmd())
	cmd.AddCommand(reportArchiveCmd())
	return cmd
}

func reportListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List weekly reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListWeeklyReports(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Week Ending", "Assigned", "Completed", "Rate", "Top Performer"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.WeekEnding, w.TotalAssigned, w.TotalCompleted, fmt.Sprintf("%.0f%%", w.CompletionRate*100), w.TopPerformer})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func reportShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [week-ending]",
		Short: "Show a weekly report (latest when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					w   domain.WeeklyReport
					err error
				)
				if len(args) == 1 {
					w, err = e.Repo.GetWeeklyReport(ctx, args[0])
				} else {
					w, err = e.Repo.LatestWeeklyReport(ctx)
				}
				if err != nil {
					return err
				}
				return printJSONOrValue(w)
			})
		},
	}
	return cmd
}

func reportStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <week-ending>",
		Short: "Per-employee stats for a week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListEmployeeWeekStats(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Employee", "Assigned", "Completed", "Rate", "Overdue"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.EmployeeID, s.TasksAssigned, s.TasksCompleted, fmt.Sprintf("%.0f%%", s.CompletionRate*100), s.TasksOverdue})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <week-ending>",
		Short: "Archived assignments for a week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListArchivedAssignments(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrValue(items)
			})
		},
	}
	return cmd
}

func auditCmd() *cobra.Command {
	var entityKind, entityID string
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAuditEntries(ctx, entityKind, entityID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Kind", "Entity", "Action", "Old", "New", "By"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.TS, a.EntityKind, a.EntityID, a.Action, a.OldValue, a.NewValue, a.PerformedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityKind, "kind", "", "entity kind (assignment, task, transfer, workflow)")
	cmd.Flags().StringVar(&entityID, "entity", "", "entity id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var employeeID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plaintext, err := e.CreateAPIKey(ctx, employeeID, name, actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(map[string]string{
					"id":          key.ID,
					"employee_id": key.EmployeeID,
					"name":        key.Name,
					"key":         plaintext,
				})
			})
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee id the key acts as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var employeeID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAPIKeys(ctx, employeeID, actorID())
				if err != nil {
					return err
				}
				return printJSONOrValue(items)
			})
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee", "", "filter by employee id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAPIKey(ctx, args[0], actorID())
			})
		},
	}
	return cmd
}

// --- jobs / serve ---

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Run background jobs once"}
	cmd.AddCommand(&cobra.Command{
		Use:   "scheduler",
		Short: "Run the workflow scheduler once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.RunScheduler(ctx)
				if err != nil {
					return err
				}
				return printJSONOrValue(sum)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "archive",
		Short: "Run the weekly archive once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.RunWeeklyArchive(ctx)
				if err != nil {
					return err
				}
				return printJSONOrValue(res)
			})
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var withCron bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer c.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              firstNonEmpty(os.Getenv("SHIFTFLOW_JWT_SECRET"), c.Config.Auth.JWTSecret),
				JobSecret:              firstNonEmpty(os.Getenv("SHIFTFLOW_JOB_SECRET"), c.Config.Auth.JobSecret),
				AllowLegacyActorHeader: c.Config.Auth.AllowLegacyActorHeader,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("SHIFTFLOW_JWT_SECRET or auth.jwt_secret is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: c.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			if withCron {
				runner := croncmd.New(c.Engine, nil)
				if err := runner.Start(); err != nil {
					return err
				}
				defer runner.Stop()
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Shiftflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8422", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&withCron, "with-cron", true, "run scheduler/archive cron jobs in-process")
	return cmd
}

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Run the scheduler and archive job timers without the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer c.Close()
			runner := croncmd.New(c.Engine, nil)
			if err := runner.Start(); err != nil {
				return err
			}
			fmt.Printf("Running jobs: scheduler %q, archive %q (Ctrl-C to stop)\n",
				c.Config.Jobs.SchedulerCron, c.Config.Jobs.ArchiveCron)
			<-cmd.Context().Done()
			runner.Stop()
			return nil
		},
	}
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printJSONOrValue(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
