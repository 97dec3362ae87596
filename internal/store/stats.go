package store

import "content-panel/internal/models"

// EngineCounts is the store-side half of the engine snapshot.
type EngineCounts struct {
	PendingPosts      int64 `json:"pending_posts"`
	PublishingPosts   int64 `json:"publishing_posts"`
	PublishedPosts    int64 `json:"published_posts"`
	ActiveSchedules   int64 `json:"active_schedules"`
	RunningExecutions int64 `json:"running_executions"`
	PendingBulkOps    int64 `json:"pending_bulk_ops"`
	ProcessingBulkOps int64 `json:"processing_bulk_ops"`
	Drafts            int64 `json:"drafts"`
}

func (s *Store) CountEngine() (*EngineCounts, error) {
	var c EngineCounts
	type q struct {
		dest  *int64
		model interface{}
		where string
		arg   interface{}
	}
	queries := []q{
		{&c.PendingPosts, &models.ScheduledPost{}, "status = ?", models.PostStatusPending},
		{&c.PublishingPosts, &models.ScheduledPost{}, "status = ?", models.PostStatusPublishing},
		{&c.PublishedPosts, &models.ScheduledPost{}, "status = ?", models.PostStatusPublished},
		{&c.ActiveSchedules, &models.AutomationSchedule{}, "is_active = ?", true},
		{&c.RunningExecutions, &models.AutomationExecution{}, "status = ?", models.ExecutionStatusRunning},
		{&c.PendingBulkOps, &models.BulkOperation{}, "status = ?", models.BulkStatusPending},
		{&c.ProcessingBulkOps, &models.BulkOperation{}, "status = ?", models.BulkStatusProcessing},
		{&c.Drafts, &models.ContentDraft{}, "", nil},
	}
	for _, query := range queries {
		tx := s.db.Model(query.model)
		if query.where != "" {
			tx = tx.Where(query.where, query.arg)
		}
		if err := tx.Count(query.dest).Error; err != nil {
			return nil, err
		}
	}
	return &c, nil
}
