package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"shiftflow/internal/domain"
	"shiftflow/internal/repo"
)

// ArchiveResult is one weekly archive run.
type ArchiveResult struct {
	WeekEnding     string `json:"week_ending" format:"date"`
	AlreadyDone    bool   `json:"already_done"`
	Archived       int    `json:"archived"`
	Pruned         int    `json:"pruned"`
	TotalAssigned  int    `json:"total_assigned"`
	TotalCompleted int    `json:"total_completed"`
	TopPerformer   string `json:"top_performer,omitempty"`
}

type taskSummary struct {
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	AssignedTo     string  `json:"assigned_to"`
	CompletionNote string  `json:"completion_note,omitempty"`
	PhotoRef       string  `json:"photo_ref,omitempty"`
	ActualMinutes  *int    `json:"actual_minutes,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty"`
}

// weekBounds returns the business week that most recently finished relative
// to ref: Monday 00:00:00 through Sunday 23:59:59 in ref's location. A run on
// Sunday still closes the previous week; the current one is not over.
func weekBounds(ref time.Time) (start, end time.Time) {
	offset := int(ref.Weekday())
	if offset == 0 {
		offset = 7
	}
	sunday := ref.AddDate(0, 0, -offset)
	end = time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, 0, ref.Location())
	start = time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 0, 0, 0, 0, ref.Location()).AddDate(0, 0, -6)
	return start, end
}

// RunWeeklyArchive snapshots the most recently completed business week:
// completed assignments move to the archive, per-employee stats are rolled
// up, and a single report row is written for the week. The report row is the
// idempotency guard; a rerun for an already-closed week does nothing.
func (e Engine) RunWeeklyArchive(ctx context.Context) (ArchiveResult, error) {
	start, end := weekBounds(e.nowLocal())
	res := ArchiveResult{WeekEnding: end.Format("2006-01-02")}

	if _, err := e.Repo.GetWeeklyReport(ctx, res.WeekEnding); err == nil {
		res.AlreadyDone = true
		e.logf("archive: week %s already closed, skipping", res.WeekEnding)
		return res, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return res, err
	}

	startUTC := start.UTC().Format(time.RFC3339)
	endUTC := end.UTC().Format(time.RFC3339)
	completed, err := e.Repo.CompletedAssignmentsBetween(ctx, startUTC, endUTC)
	if err != nil {
		return res, err
	}
	counts, err := e.Repo.AssignmentWeekCounts(ctx, startUTC, endUTC)
	if err != nil {
		return res, err
	}
	overdue, err := e.Repo.OverdueCounts(ctx, endUTC)
	if err != nil {
		return res, err
	}
	active, err := e.Repo.ListEmployees(ctx, true)
	if err != nil {
		return res, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	var archivedIDs []string
	for _, a := range completed {
		tasks, err := e.Repo.ListAssignmentTasks(ctx, a.ID)
		if err != nil {
			return res, err
		}
		summaries := make([]taskSummary, 0, len(tasks))
		for _, t := range tasks {
			summaries = append(summaries, taskSummary{
				Title:          t.Title,
				Status:         t.Status,
				AssignedTo:     t.AssignedTo,
				CompletionNote: t.CompletionNote,
				PhotoRef:       t.PhotoRef,
				ActualMinutes:  t.ActualMinutes,
				CompletedAt:    t.CompletedAt,
			})
		}
		blob, err := json.Marshal(summaries)
		if err != nil {
			return res, err
		}
		arch := domain.ArchivedAssignment{
			ID:                  uuid.New().String(),
			AssignmentID:        a.ID,
			RecurringWorkflowID: a.RecurringWorkflowID,
			Name:                a.Name,
			AssignedTo:          a.AssignedTo,
			AssignedBy:          a.AssignedBy,
			DueDate:             a.DueDate,
			StartedAt:           a.StartedAt,
			CompletedAt:         a.CompletedAt,
			CreatedAt:           a.CreatedAt,
			WeekEnding:          res.WeekEnding,
			TaskSummaryJSON:     string(blob),
			ArchivedAt:          now,
		}
		if err := e.Repo.InsertArchivedAssignment(ctx, tx, arch); err != nil {
			return res, err
		}
		archivedIDs = append(archivedIDs, a.ID)
	}
	res.Archived = len(archivedIDs)

	// Every active employee gets a stat row for the week, zeroes included;
	// a quiet week still carries their backlog of overdue assignments.
	// Employees deactivated mid-week keep a row when they had assignments.
	ids := make(map[string]struct{}, len(active)+len(counts))
	for _, emp := range active {
		ids[emp.ID] = struct{}{}
	}
	for id := range counts {
		ids[id] = struct{}{}
	}
	employees := make([]string, 0, len(ids))
	for id := range ids {
		employees = append(employees, id)
	}
	sort.Strings(employees)

	var totalAssigned, totalCompleted int
	topID, topCount := "", -1
	for _, id := range employees {
		c := counts[id]
		totalAssigned += c.Assigned
		totalCompleted += c.Completed
		rate := 0.0
		if c.Assigned > 0 {
			rate = float64(c.Completed) / float64(c.Assigned)
		}
		stat := domain.EmployeeWeekStat{
			WeekEnding:     res.WeekEnding,
			EmployeeID:     id,
			TasksAssigned:  c.Assigned,
			TasksCompleted: c.Completed,
			CompletionRate: rate,
			TasksOverdue:   overdue[id],
		}
		if err := e.Repo.UpsertEmployeeWeekStat(ctx, tx, stat); err != nil {
			return res, err
		}
		// ties break on the lexically smaller employee id
		if c.Completed > topCount {
			topID, topCount = id, c.Completed
		}
	}
	if topCount <= 0 {
		topID = ""
	}

	report := domain.WeeklyReport{
		WeekEnding:      res.WeekEnding,
		WeekStart:       start.Format("2006-01-02"),
		TotalAssigned:   totalAssigned,
		TotalCompleted:  totalCompleted,
		ActiveEmployees: len(active),
		TopPerformer:    topID,
		CreatedAt:       now,
	}
	if totalAssigned > 0 {
		report.CompletionRate = float64(totalCompleted) / float64(totalAssigned)
	}
	if err := e.Repo.InsertWeeklyReport(ctx, tx, report); err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	res.TotalAssigned = totalAssigned
	res.TotalCompleted = totalCompleted
	res.TopPerformer = topID

	// Pruning is best-effort and runs after the archive committed. A failure
	// here leaves duplicates in the live table, never a hole in the archive.
	pruneTx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		e.logf("archive: prune begin: %v", err)
		return res, nil
	}
	defer pruneTx.Rollback()
	for _, id := range archivedIDs {
		if err := e.Repo.DeleteAssignment(ctx, pruneTx, id); err != nil {
			e.logf("archive: prune assignment %s: %v", id, err)
			return res, nil
		}
	}
	if err := pruneTx.Commit(); err != nil {
		e.logf("archive: prune commit: %v", err)
		return res, nil
	}
	res.Pruned = len(archivedIDs)
	e.logf("archive: week %s closed, %d archived, %d pruned", res.WeekEnding, res.Archived, res.Pruned)
	return res, nil
}
