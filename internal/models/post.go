package models

import (
	"time"

	"gorm.io/datatypes"
)

type ScheduledPostStatus string

const (
	PostStatusPending    ScheduledPostStatus = "pending"
	PostStatusPublishing ScheduledPostStatus = "publishing"
	PostStatusPublished  ScheduledPostStatus = "published"
	PostStatusFailed     ScheduledPostStatus = "failed"
	PostStatusCancelled  ScheduledPostStatus = "cancelled"
)

// ScheduledPost is one future publish action. The content snapshot is
// denormalized so the post still publishes if its source draft is deleted.
// DueAt is stored in UTC; AuthorTimezone is display-only.
type ScheduledPost struct {
	ID             uint                        `json:"id" gorm:"primaryKey"`
	UserID         uint                        `json:"user_id" gorm:"index;not null"`
	SiteID         uint                        `json:"site_id" gorm:"index;not null"`
	DraftID        *uint                       `json:"draft_id"`
	Title          string                      `json:"title" gorm:"size:500;not null"`
	Body           string                      `json:"body" gorm:"type:text"`
	Excerpt        string                      `json:"excerpt" gorm:"type:text"`
	Categories     datatypes.JSONSlice[string] `json:"categories"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	FeaturedImage  string                      `json:"featured_image" gorm:"size:1000"`
	DueAt          time.Time                   `json:"due_at" gorm:"index;not null"`
	AuthorTimezone string                      `json:"author_timezone" gorm:"size:64"`
	Status         ScheduledPostStatus         `json:"status" gorm:"size:20;index;default:'pending'"`
	Attempts       int                         `json:"attempts"`
	LastError      string                      `json:"last_error" gorm:"type:text"`
	RemotePostID   int64                       `json:"remote_post_id"`
	RemoteURL      string                      `json:"remote_url" gorm:"size:1000"`
	PublishedAt    *time.Time                  `json:"published_at"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}
