package engine_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shiftflow/internal/domain"
	"shiftflow/internal/repo"
)

// seedWeek populates one business week of activity: alice completes two
// assignments, bob leaves one pending past its due date.
func seedWeek(t *testing.T, env *testEnv) (completed []domain.Assignment, open domain.Assignment) {
	t.Helper()
	env.setNow(t, time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)) // Wednesday
	a1 := env.adHoc(t, "alice")
	a2 := env.adHoc(t, "alice")
	open = env.adHoc(t, "bob")
	completed = append(completed, env.finish(t, a1, "alice"), env.finish(t, a2, "alice"))
	return completed, open
}

func TestWeeklyArchiveRollup(t *testing.T) {
	env := newTestEnv(t)
	completed, open := seedWeek(t, env)

	// the job runs the following Monday at 02:00
	env.setNow(t, time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC))
	res, err := env.Engine.RunWeeklyArchive(env.Ctx)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if res.AlreadyDone {
		t.Fatalf("first run reported already done")
	}
	if res.WeekEnding != "2024-01-14" {
		t.Fatalf("unexpected week ending %s", res.WeekEnding)
	}
	if res.Archived != 2 || res.Pruned != 2 {
		t.Fatalf("unexpected archive counts: %+v", res)
	}
	if res.TotalAssigned != 3 || res.TotalCompleted != 2 || res.TopPerformer != "alice" {
		t.Fatalf("unexpected rollup: %+v", res)
	}

	report, err := env.Engine.Repo.GetWeeklyReport(env.Ctx, "2024-01-14")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.WeekStart != "2024-01-08" || report.ActiveEmployees != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.CompletionRate < 0.66 || report.CompletionRate > 0.67 {
		t.Fatalf("unexpected completion rate %f", report.CompletionRate)
	}

	// one row per active employee, quiet ones included
	stats, err := env.Engine.Repo.ListEmployeeWeekStats(env.Ctx, "2024-01-14")
	if err != nil || len(stats) != 3 {
		t.Fatalf("stats: %v n=%d", err, len(stats))
	}
	byID := map[string]domain.EmployeeWeekStat{}
	for _, s := range stats {
		byID[s.EmployeeID] = s
	}
	if s := byID["alice"]; s.TasksAssigned != 2 || s.TasksCompleted != 2 || s.TasksOverdue != 0 {
		t.Fatalf("alice stats: %+v", s)
	}
	if s := byID["bob"]; s.TasksAssigned != 1 || s.TasksCompleted != 0 || s.TasksOverdue != 1 {
		t.Fatalf("bob stats: %+v", s)
	}
	if s := byID["mgr"]; s.TasksAssigned != 0 || s.TasksCompleted != 0 || s.CompletionRate != 0 {
		t.Fatalf("mgr stats: %+v", s)
	}

	// completed assignments moved to the archive with their task snapshots
	archived, err := env.Engine.Repo.ListArchivedAssignments(env.Ctx, "2024-01-14")
	if err != nil || len(archived) != 2 {
		t.Fatalf("archived: %v n=%d", err, len(archived))
	}
	var summary []map[string]any
	if err := json.Unmarshal([]byte(archived[0].TaskSummaryJSON), &summary); err != nil || len(summary) != 2 {
		t.Fatalf("task summary: %v %v", err, summary)
	}
	for _, a := range completed {
		if _, err := env.Engine.Repo.GetAssignment(env.Ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("expected completed assignment pruned, got %v", err)
		}
	}
	// the open assignment stays live
	if _, err := env.Engine.Repo.GetAssignment(env.Ctx, open.ID); err != nil {
		t.Fatalf("open assignment pruned: %v", err)
	}
}

func TestWeeklyArchiveIdempotent(t *testing.T) {
	env := newTestEnv(t)
	seedWeek(t, env)
	env.setNow(t, time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC))
	first, err := env.Engine.RunWeeklyArchive(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}

	// a retried or duplicated run changes nothing
	second, err := env.Engine.RunWeeklyArchive(env.Ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.AlreadyDone || second.Archived != 0 {
		t.Fatalf("second run was not a no-op: %+v", second)
	}
	archived, err := env.Engine.Repo.ListArchivedAssignments(env.Ctx, first.WeekEnding)
	if err != nil || len(archived) != first.Archived {
		t.Fatalf("archive grew on rerun: %v n=%d", err, len(archived))
	}
	reports, err := env.Engine.Repo.ListWeeklyReports(env.Ctx, 0)
	if err != nil || len(reports) != 1 {
		t.Fatalf("expected one report row: %v n=%d", err, len(reports))
	}
}

func TestArchiveOnSundayClosesPreviousWeek(t *testing.T) {
	env := newTestEnv(t)
	// Sunday night run: the current week is not over yet
	env.setNow(t, time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC))
	res, err := env.Engine.RunWeeklyArchive(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.WeekEnding != "2024-01-07" {
		t.Fatalf("unexpected week ending %s", res.WeekEnding)
	}
}

func TestArchiveEmptyWeek(t *testing.T) {
	env := newTestEnv(t)
	env.setNow(t, time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC))
	res, err := env.Engine.RunWeeklyArchive(env.Ctx)
	if err != nil {
		t.Fatalf("empty week: %v", err)
	}
	if res.Archived != 0 || res.TopPerformer != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	report, err := env.Engine.Repo.GetWeeklyReport(env.Ctx, "2024-01-14")
	if err != nil {
		t.Fatalf("report row missing for empty week: %v", err)
	}
	if report.TotalAssigned != 0 || report.CompletionRate != 0 || report.TopPerformer != "" {
		t.Fatalf("unexpected empty report: %+v", report)
	}
	// active employees still get their zero rows
	stats, err := env.Engine.Repo.ListEmployeeWeekStats(env.Ctx, "2024-01-14")
	if err != nil || len(stats) != 3 {
		t.Fatalf("stats for empty week: %v n=%d", err, len(stats))
	}
	for _, s := range stats {
		if s.TasksAssigned != 0 || s.TasksCompleted != 0 || s.TasksOverdue != 0 {
			t.Fatalf("nonzero stat in empty week: %+v", s)
		}
	}
}

func TestArchiveRowsForIdleEmployees(t *testing.T) {
	env := newTestEnv(t)
	// bob's assignment was created and fell due the week before; he does
	// nothing during the week being closed
	env.setNow(t, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC))
	stale := env.adHoc(t, "bob")
	env.setNow(t, time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC))
	env.finish(t, env.adHoc(t, "alice"), "alice")

	env.setNow(t, time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC))
	res, err := env.Engine.RunWeeklyArchive(env.Ctx)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if res.TotalAssigned != 1 || res.TotalCompleted != 1 {
		t.Fatalf("unexpected rollup: %+v", res)
	}

	stats, err := env.Engine.Repo.ListEmployeeWeekStats(env.Ctx, "2024-01-14")
	if err != nil || len(stats) != 3 {
		t.Fatalf("stats: %v n=%d", err, len(stats))
	}
	byID := map[string]domain.EmployeeWeekStat{}
	for _, s := range stats {
		byID[s.EmployeeID] = s
	}
	// no assignments this week, but the backlog still counts against him
	if s := byID["bob"]; s.TasksAssigned != 0 || s.TasksCompleted != 0 || s.TasksOverdue != 1 {
		t.Fatalf("bob stats: %+v", s)
	}
	if s := byID["alice"]; s.TasksAssigned != 1 || s.TasksCompleted != 1 {
		t.Fatalf("alice stats: %+v", s)
	}
	// the stale assignment is still live, only completed ones are archived
	if _, err := env.Engine.Repo.GetAssignment(env.Ctx, stale.ID); err != nil {
		t.Fatalf("stale assignment pruned: %v", err)
	}
}
