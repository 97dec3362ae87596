package models

import (
	"time"

	"gorm.io/datatypes"
)

type BulkOperationStatus string

const (
	BulkStatusPending    BulkOperationStatus = "pending"
	BulkStatusProcessing BulkOperationStatus = "processing"
	BulkStatusCompleted  BulkOperationStatus = "completed"
	BulkStatusFailed     BulkOperationStatus = "failed"
	BulkStatusCancelled  BulkOperationStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s BulkOperationStatus) Terminal() bool {
	return s == BulkStatusCompleted || s == BulkStatusFailed || s == BulkStatusCancelled
}

type BulkOperationKind string

const (
	BulkKindPublish        BulkOperationKind = "publish"
	BulkKindUnpublish      BulkOperationKind = "unpublish"
	BulkKindDelete         BulkOperationKind = "delete"
	BulkKindUpdateMetadata BulkOperationKind = "update-metadata"
)

// BulkItemError records one failed target inside a bulk operation.
type BulkItemError struct {
	TargetID int64  `json:"target_id"`
	Message  string `json:"message"`
}

// BulkOperation is a single "apply one action to N targets" request. It is
// created pending, mutated only by the bulk queue while processing, and
// immutable once terminal. processed == success + failure holds at every
// durable write.
type BulkOperation struct {
	ID              string                             `json:"id" gorm:"primaryKey;size:36"`
	UserID          uint                               `json:"user_id" gorm:"index;not null"`
	SiteID          uint                               `json:"site_id" gorm:"index;not null"`
	Kind            BulkOperationKind                  `json:"kind" gorm:"size:30;not null"`
	TargetType      string                             `json:"target_type" gorm:"size:30;not null"`
	TargetIDs       datatypes.JSONSlice[int64]         `json:"target_ids"`
	Payload         datatypes.JSON                     `json:"payload,omitempty"`
	Status          BulkOperationStatus                `json:"status" gorm:"size:20;index;default:'pending'"`
	TotalItems      int                                `json:"total_items"`
	ProcessedItems  int                                `json:"processed_items"`
	SuccessCount    int                                `json:"success_count"`
	FailureCount    int                                `json:"failure_count"`
	Errors          datatypes.JSONSlice[BulkItemError] `json:"errors"`
	CancelRequested bool                               `json:"cancel_requested"`
	StartedAt       *time.Time                         `json:"started_at"`
	CompletedAt     *time.Time                         `json:"completed_at"`
	CreatedAt       time.Time                          `json:"created_at"`
	UpdatedAt       time.Time                          `json:"updated_at"`
}
