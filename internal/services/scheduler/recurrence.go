package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"content-panel/internal/models"
)

// Recurrence handling. Recurring schedules are expressed as standard
// five-field cron specs with a CRON_TZ prefix, so occurrence times follow
// the schedule's timezone rules across daylight-saving transitions instead
// of a fixed UTC offset.

// Validate rejects a schedule whose recurrence can never be registered.
// Called at create and update time; a schedule that fails here must never
// reach the registry.
func Validate(sched *models.AutomationSchedule) error {
	if _, err := time.LoadLocation(sched.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", sched.Timezone, err)
	}

	switch sched.Kind {
	case models.ScheduleKindOnce:
		if sched.RunAt == nil {
			return fmt.Errorf("one-shot schedule requires run_at")
		}
		return nil
	case models.ScheduleKindDaily:
		if _, err := time.Parse("15:04", sched.TimeOfDay); err != nil {
			return fmt.Errorf("invalid time_of_day %q: %w", sched.TimeOfDay, err)
		}
	case models.ScheduleKindWeekly:
		if _, err := time.Parse("15:04", sched.TimeOfDay); err != nil {
			return fmt.Errorf("invalid time_of_day %q: %w", sched.TimeOfDay, err)
		}
		if sched.Weekday < 0 || sched.Weekday > 6 {
			return fmt.Errorf("invalid weekday %d", sched.Weekday)
		}
	case models.ScheduleKindCustom:
		if sched.CronExpr == "" {
			return fmt.Errorf("custom schedule requires cron_expr")
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", sched.Kind)
	}

	spec, err := CronSpec(sched)
	if err != nil {
		return err
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid recurrence: %w", err)
	}
	return nil
}

// CronSpec renders the recurring kinds as a cron spec. One-shot schedules
// have no spec; they run off a plain timer.
func CronSpec(sched *models.AutomationSchedule) (string, error) {
	prefix := fmt.Sprintf("CRON_TZ=%s ", sched.Timezone)
	switch sched.Kind {
	case models.ScheduleKindDaily:
		t, err := time.Parse("15:04", sched.TimeOfDay)
		if err != nil {
			return "", fmt.Errorf("invalid time_of_day %q: %w", sched.TimeOfDay, err)
		}
		return fmt.Sprintf("%s%d %d * * *", prefix, t.Minute(), t.Hour()), nil
	case models.ScheduleKindWeekly:
		t, err := time.Parse("15:04", sched.TimeOfDay)
		if err != nil {
			return "", fmt.Errorf("invalid time_of_day %q: %w", sched.TimeOfDay, err)
		}
		return fmt.Sprintf("%s%d %d * * %d", prefix, t.Minute(), t.Hour(), sched.Weekday), nil
	case models.ScheduleKindCustom:
		return prefix + sched.CronExpr, nil
	default:
		return "", fmt.Errorf("kind %q has no cron spec", sched.Kind)
	}
}

// NextRun computes the first occurrence strictly after the given instant.
// One-shot schedules return their fixed run time, or nil once it has
// passed.
func NextRun(sched *models.AutomationSchedule, after time.Time) (*time.Time, error) {
	if sched.Kind == models.ScheduleKindOnce {
		if sched.RunAt == nil {
			return nil, fmt.Errorf("one-shot schedule requires run_at")
		}
		if sched.RunAt.After(after) {
			t := sched.RunAt.UTC()
			return &t, nil
		}
		return nil, nil
	}

	spec, err := CronSpec(sched)
	if err != nil {
		return nil, err
	}
	parsed, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence: %w", err)
	}
	next := parsed.Next(after).UTC()
	return &next, nil
}
