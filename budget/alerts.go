/*
alerts.go - Threshold alert engine

PURPOSE:
  Evaluates the three alert rules on demand (POST /api/alerts/check):
  1. budget_overrun  - per sub-project, spent/budget against the
     yellow (80%) and red (90%) thresholds
  2. schedule_delay  - per sub-project, expected progress from the
     planned window vs reported progress
  3. burn_rate       - project-wide, projects the average monthly burn
     over the remaining months

DEDUPLICATION:
  For each (alert_type, related_type, related_id) the checker looks for
  the most recent unresolved row. If one exists its level and message
  are updated in place ("updated"); otherwise a new row is inserted
  ("generated"). Running the check twice on unchanged data therefore
  produces zero new rows.

RESOLUTION:
  Alerts are never auto-resolved when a ratio drops back under the
  threshold; marking resolved stays a manual operation on the store.
*/
package budget

import (
	"context"
	"fmt"
	"time"
)

// Thresholds holds the alert tuning knobs, loaded from config.
type Thresholds struct {
	Yellow        float64 // budget usage ratio for yellow, default 0.80
	Red           float64 // budget usage ratio for red, default 0.90
	ProgressDelay float64 // progress gap ratio for schedule alerts, default 0.10
}

func DefaultThresholds() Thresholds {
	return Thresholds{Yellow: 0.80, Red: 0.90, ProgressDelay: 0.10}
}

// AlertStore is the persistence surface the checker needs.
type AlertStore interface {
	ListSubProjects(ctx context.Context) ([]SubProject, error)
	FirstProject(ctx context.Context) (*Project, error)
	TotalExpenditure(ctx context.Context) (float64, error)
	FirstExpenditureDate(ctx context.Context) (*time.Time, error)

	FindUnresolvedAlert(ctx context.Context, alertType AlertType, relatedType RelatedKind, relatedID int64) (*AlertLog, error)
	InsertAlert(ctx context.Context, a *AlertLog) error
	UpdateAlert(ctx context.Context, a *AlertLog) error
}

// AlertChecker runs the alert rules against a store.
type AlertChecker struct {
	Store      AlertStore
	Thresholds Thresholds

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewAlertChecker(store AlertStore, th Thresholds) *AlertChecker {
	return &AlertChecker{Store: store, Thresholds: th, Now: time.Now}
}

// CheckResult lists the titles of alerts touched by one run.
type CheckResult struct {
	Generated []string
	Updated   []string
}

// Check evaluates all rules once. Errors abort the run; partial writes
// are the caller's transaction concern.
func (c *AlertChecker) Check(ctx context.Context) (*CheckResult, error) {
	res := &CheckResult{Generated: []string{}, Updated: []string{}}
	today := dateOnly(c.Now())

	subProjects, err := c.Store.ListSubProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sub-projects: %w", err)
	}

	if err := c.checkBudgetOverrun(ctx, subProjects, res); err != nil {
		return nil, err
	}
	if err := c.checkScheduleDelay(ctx, subProjects, today, res); err != nil {
		return nil, err
	}
	if err := c.checkBurnRate(ctx, today, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *AlertChecker) checkBudgetOverrun(ctx context.Context, subProjects []SubProject, res *CheckResult) error {
	for i := range subProjects {
		sp := &subProjects[i]
		if sp.AllocatedBudget <= 0 {
			continue
		}
		ratio := Ratio(sp.ActualSpent, sp.AllocatedBudget)

		var level AlertLevel
		var title, msg string
		switch {
		case ratio >= c.Thresholds.Red:
			level = LevelRed
			title = "概算严重超支预警"
			msg = fmt.Sprintf("子工程「%s」概算使用率已达 %.1f%%，概算 %.2f万元，已支出 %.2f万元",
				sp.Name, ratio*100, sp.AllocatedBudget, sp.ActualSpent)
		case ratio >= c.Thresholds.Yellow:
			level = LevelYellow
			title = "概算超支预警"
			msg = fmt.Sprintf("子工程「%s」概算使用率已达 %.1f%%，请注意控制支出", sp.Name, ratio*100)
		default:
			continue
		}

		if err := c.upsert(ctx, res, &AlertLog{
			AlertType:   AlertBudgetOverrun,
			Level:       level,
			Title:       title,
			Message:     msg,
			RelatedType: RelatedSubProject,
			RelatedID:   sp.ID,
			RelatedName: sp.Name,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *AlertChecker) checkScheduleDelay(ctx context.Context, subProjects []SubProject, today time.Time, res *CheckResult) error {
	for i := range subProjects {
		sp := &subProjects[i]
		if sp.PlannedStart == nil || sp.PlannedEnd == nil {
			continue
		}
		if sp.Status != SubProjectInProgress && sp.Status != SubProjectNotStarted {
			continue
		}

		totalDays := daysBetween(*sp.PlannedStart, *sp.PlannedEnd)
		if totalDays == 0 {
			totalDays = 1
		}
		elapsedDays := daysBetween(*sp.PlannedStart, today)
		expected := float64(elapsedDays) / float64(totalDays) * 100
		if expected > 100 {
			expected = 100
		}

		gap := expected - sp.ProgressPercent
		if gap <= c.Thresholds.ProgressDelay*100 {
			continue
		}
		level := LevelRed
		if gap < 20 {
			level = LevelYellow
		}
		msg := fmt.Sprintf("子工程「%s」期望进度 %.1f%%，实际进度 %.1f%%，落后 %.1f%%",
			sp.Name, expected, sp.ProgressPercent, gap)

		if err := c.upsert(ctx, res, &AlertLog{
			AlertType:   AlertScheduleDelay,
			Level:       level,
			Title:       "工期延误预警",
			Message:     msg,
			RelatedType: RelatedSubProject,
			RelatedID:   sp.ID,
			RelatedName: sp.Name,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *AlertChecker) checkBurnRate(ctx context.Context, today time.Time, res *CheckResult) error {
	project, err := c.Store.FirstProject(ctx)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if project == nil || project.EndDate == nil {
		return nil
	}

	remainingMonths := float64(daysBetween(today, *project.EndDate)) / 30
	if remainingMonths < 1 {
		remainingMonths = 1
	}

	totalSpent, err := c.Store.TotalExpenditure(ctx)
	if err != nil {
		return fmt.Errorf("sum expenditures: %w", err)
	}
	firstDate, err := c.Store.FirstExpenditureDate(ctx)
	if err != nil {
		return fmt.Errorf("first expenditure date: %w", err)
	}
	if firstDate == nil {
		// No spend history yet, nothing to project.
		return nil
	}

	monthsElapsed := float64(daysBetween(*firstDate, today)) / 30
	if monthsElapsed < 1 {
		monthsElapsed = 1
	}
	monthlyBurn := totalSpent / monthsElapsed
	projected := totalSpent + monthlyBurn*remainingMonths

	if projected <= project.TotalBudget {
		return nil
	}
	level := LevelYellow
	if projected > project.TotalBudget*1.1 {
		level = LevelRed
	}
	msg := fmt.Sprintf("按当前月均消耗 %.2f万元/月，预计总支出将达 %.2f万元，超出概算 %.2f万元",
		monthlyBurn, projected, projected-project.TotalBudget)

	return c.upsert(ctx, res, &AlertLog{
		AlertType:   AlertBurnRate,
		Level:       level,
		Title:       "消耗速率预警",
		Message:     msg,
		RelatedType: RelatedProject,
		RelatedID:   project.ID,
		RelatedName: project.Name,
	})
}

// upsert applies the dedup rule: update the unresolved row for this
// target if one exists, insert otherwise.
func (c *AlertChecker) upsert(ctx context.Context, res *CheckResult, a *AlertLog) error {
	existing, err := c.Store.FindUnresolvedAlert(ctx, a.AlertType, a.RelatedType, a.RelatedID)
	if err != nil {
		return fmt.Errorf("find unresolved alert: %w", err)
	}
	if existing != nil {
		existing.Level = a.Level
		existing.Message = a.Message
		if err := c.Store.UpdateAlert(ctx, existing); err != nil {
			return fmt.Errorf("update alert: %w", err)
		}
		res.Updated = append(res.Updated, existing.Title)
		return nil
	}
	if err := c.Store.InsertAlert(ctx, a); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	res.Generated = append(res.Generated, a.Title)
	return nil
}

// daysBetween counts calendar days from a to b; negative when b is
// before a.
func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
