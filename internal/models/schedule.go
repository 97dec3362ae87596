package models

import "time"

type ScheduleKind string

const (
	ScheduleKindOnce   ScheduleKind = "once"
	ScheduleKindDaily  ScheduleKind = "daily"
	ScheduleKindWeekly ScheduleKind = "weekly"
	ScheduleKindCustom ScheduleKind = "custom"
)

// AutomationSchedule is a one-shot or recurring rule that triggers the
// content pipeline. Exactly one of {RunAt, recurrence fields} is meaningful
// depending on Kind: once uses RunAt; daily uses TimeOfDay; weekly uses
// TimeOfDay+Weekday; custom uses CronExpr. All recurrence is evaluated in
// Timezone, so daylight-saving shifts follow the zone rules.
type AutomationSchedule struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	UserID      uint   `json:"user_id" gorm:"index;not null"`
	SiteID      uint   `json:"site_id" gorm:"index;not null"`
	Name        string `json:"name" gorm:"size:200;not null"`
	Description string `json:"description" gorm:"type:text"`

	Kind      ScheduleKind `json:"kind" gorm:"size:20;not null"`
	TimeOfDay string       `json:"time_of_day" gorm:"size:5"` // "15:04", daily/weekly
	Weekday   int          `json:"weekday"`                   // 0=Sunday, weekly only
	CronExpr  string       `json:"cron_expr" gorm:"size:100"` // custom only
	Timezone  string       `json:"timezone" gorm:"size:64;not null"`
	RunAt     *time.Time   `json:"run_at"` // once only

	// Source: a feed URL to pull items from, or a topic generated as the
	// single item when no feed is configured.
	FeedURL        string `json:"feed_url" gorm:"size:1000"`
	Topic          string `json:"topic" gorm:"size:500"`
	MaxItemsPerRun int    `json:"max_items_per_run"`

	AutoPublish  bool   `json:"auto_publish"`
	PublishState string `json:"publish_state" gorm:"size:20;default:'draft'"`

	IsActive    bool       `json:"is_active" gorm:"index;default:true"`
	LastRunAt   *time.Time `json:"last_run_at"`
	NextRunAt   *time.Time `json:"next_run_at" gorm:"index"`
	TotalRuns   int        `json:"total_runs"`
	SuccessRuns int        `json:"success_runs"`
	FailedRuns  int        `json:"failed_runs"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
