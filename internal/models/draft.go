package models

import (
	"time"

	"gorm.io/datatypes"
)

type DraftStatus string

const (
	DraftStatusPending   DraftStatus = "pending"   // generated, awaiting review
	DraftStatusPublished DraftStatus = "published" // auto-published by the pipeline
	DraftStatusFailed    DraftStatus = "failed"    // generation or publish failed
)

// ContentDraft is one article produced by a pipeline run. Every attempted
// item gets a draft row, including failed ones, so an execution's draft-ID
// list always matches the number of items attempted.
type ContentDraft struct {
	ID             uint                        `json:"id" gorm:"primaryKey"`
	UserID         uint                        `json:"user_id" gorm:"index;not null"`
	SiteID         uint                        `json:"site_id" gorm:"index;not null"`
	ScheduleID     *uint                       `json:"schedule_id" gorm:"index"`
	ExecutionID    string                      `json:"execution_id" gorm:"size:36;index"`
	SourceTitle    string                      `json:"source_title" gorm:"size:500"`
	SourceLink     string                      `json:"source_link" gorm:"size:1000"`
	Title          string                      `json:"title" gorm:"size:500"`
	Body           string                      `json:"body" gorm:"type:text"`
	Excerpt        string                      `json:"excerpt" gorm:"type:text"`
	Categories     datatypes.JSONSlice[string] `json:"categories"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	SEODescription string                      `json:"seo_description" gorm:"size:500"`
	SEOKeywords    datatypes.JSONSlice[string] `json:"seo_keywords"`
	FeaturedImage  string                      `json:"featured_image" gorm:"size:1000"`
	Status         DraftStatus                 `json:"status" gorm:"size:20;index;default:'pending'"`
	FailureReason  string                      `json:"failure_reason" gorm:"type:text"`
	RemotePostID   int64                       `json:"remote_post_id"`
	RemoteURL      string                      `json:"remote_url" gorm:"size:1000"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}
