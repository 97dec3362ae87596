package models

import (
	"time"

	"gorm.io/datatypes"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// AutomationExecution is the audit record of one firing of a schedule,
// whether from a timer or a manual run-now. At most one running execution
// exists per schedule; the record never changes after it closes.
type AutomationExecution struct {
	ID             string                    `json:"id" gorm:"primaryKey;size:36"`
	ScheduleID     uint                      `json:"schedule_id" gorm:"index;not null"`
	Status         ExecutionStatus           `json:"status" gorm:"size:20;index;default:'running'"`
	GeneratedCount int                       `json:"generated_count"`
	PublishedCount int                       `json:"published_count"`
	DraftIDs       datatypes.JSONSlice[uint] `json:"draft_ids"`
	ErrorMessage   string                    `json:"error_message" gorm:"type:text"`
	StartedAt      time.Time                 `json:"started_at"`
	CompletedAt    *time.Time                `json:"completed_at"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}
