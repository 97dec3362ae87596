package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"content-panel/internal/models"
)

func (s *Store) CreateScheduledPost(post *models.ScheduledPost) error {
	return s.db.Create(post).Error
}

func (s *Store) GetScheduledPost(id, userID uint) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	if err := s.db.First(&post, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (s *Store) ListScheduledPosts(userID uint) ([]models.ScheduledPost, error) {
	var posts []models.ScheduledPost
	err := s.db.Where("user_id = ?", userID).Order("due_at asc").Find(&posts).Error
	return posts, err
}

// DuePosts returns pending posts whose due time has passed, oldest first.
// A post long overdue is still eligible; it simply publishes on the next
// sweep.
func (s *Store) DuePosts(now time.Time) ([]models.ScheduledPost, error) {
	var posts []models.ScheduledPost
	err := s.db.Where("status = ? AND due_at <= ?", models.PostStatusPending, now.UTC()).
		Order("due_at asc").Find(&posts).Error
	return posts, err
}

// ClaimDuePost atomically moves one post from pending to publishing. The
// conditional WHERE is what stops two overlapping sweeps from publishing
// the same row twice: only the sweep whose UPDATE matched proceeds.
func (s *Store) ClaimDuePost(id uint) error {
	res := s.db.Model(&models.ScheduledPost{}).
		Where("id = ? AND status = ?", id, models.PostStatusPending).
		Update("status", models.PostStatusPublishing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (s *Store) MarkPostPublished(id uint, remoteID int64, remoteURL string, at time.Time) error {
	at = at.UTC()
	return s.db.Model(&models.ScheduledPost{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         models.PostStatusPublished,
			"remote_post_id": remoteID,
			"remote_url":     remoteURL,
			"published_at":   at,
			"last_error":     "",
		}).Error
}

// RecordPostFailure bumps the attempt counter and either parks the post for
// the next sweep or, at the attempt cap, fails it terminally.
func (s *Store) RecordPostFailure(id uint, maxAttempts int, message string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var post models.ScheduledPost
		if err := tx.First(&post, id).Error; err != nil {
			return err
		}
		post.Attempts++
		post.LastError = message
		if post.Attempts >= maxAttempts {
			post.Status = models.PostStatusFailed
		} else {
			post.Status = models.PostStatusPending
		}
		return tx.Save(&post).Error
	})
}

// CancelScheduledPost cancels a post that has not been claimed yet. Posts
// already publishing or terminal are rejected.
func (s *Store) CancelScheduledPost(id, userID uint) error {
	res := s.db.Model(&models.ScheduledPost{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.PostStatusPending).
		Update("status", models.PostStatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	return nil
}

// ReschedulePost moves the due time of a still-pending post. Once the post
// has left pending, the due time is immutable.
func (s *Store) ReschedulePost(id, userID uint, dueAt time.Time) error {
	res := s.db.Model(&models.ScheduledPost{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.PostStatusPending).
		Update("due_at", dueAt.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	return nil
}
