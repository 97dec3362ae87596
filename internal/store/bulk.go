package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"content-panel/internal/models"
)

func (s *Store) CreateBulkOperation(op *models.BulkOperation) error {
	return s.db.Create(op).Error
}

func (s *Store) GetBulkOperation(id string) (*models.BulkOperation, error) {
	var op models.BulkOperation
	if err := s.db.First(&op, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

func (s *Store) ListBulkOperations(userID uint) ([]models.BulkOperation, error) {
	var ops []models.BulkOperation
	err := s.db.Where("user_id = ?", userID).Order("created_at desc").Find(&ops).Error
	return ops, err
}

// StartBulkOperation claims an operation for processing. Both pending and
// processing rows are claimable: a row still processing at claim time was
// orphaned by a crash mid-run and resumes from its persisted progress, so
// started_at keeps its original value. Reports ErrNotClaimed when the
// operation is terminal, e.g. cancelled before a worker picked it up.
func (s *Store) StartBulkOperation(id string) error {
	res := s.db.Model(&models.BulkOperation{}).
		Where("id = ? AND status IN ?", id,
			[]models.BulkOperationStatus{models.BulkStatusPending, models.BulkStatusProcessing}).
		Updates(map[string]interface{}{
			"status":     models.BulkStatusProcessing,
			"started_at": gorm.Expr("COALESCE(started_at, ?)", time.Now().UTC()),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	return nil
}

// BumpBulkProgress records the outcome of one processed item. It reloads,
// increments and saves in one transaction so processed == success + failure
// holds at every durable write.
func (s *Store) BumpBulkProgress(id string, itemErr *models.BulkItemError) (*models.BulkOperation, error) {
	var op models.BulkOperation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&op, "id = ?", id).Error; err != nil {
			return err
		}
		op.ProcessedItems++
		if itemErr != nil {
			op.FailureCount++
			op.Errors = append(op.Errors, *itemErr)
		} else {
			op.SuccessCount++
		}
		return tx.Save(&op).Error
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// FinishBulkOperation moves a processing operation to a terminal status.
func (s *Store) FinishBulkOperation(id string, status models.BulkOperationStatus, synthetic string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var op models.BulkOperation
		if err := tx.First(&op, "id = ?", id).Error; err != nil {
			return err
		}
		if op.Status.Terminal() {
			return ErrTerminal
		}
		if synthetic != "" {
			updates["errors"] = append(op.Errors, models.BulkItemError{Message: synthetic})
		}
		return tx.Model(&op).Updates(updates).Error
	})
}

// RequestBulkCancel cancels a pending operation outright, or flags a
// processing one so the worker stops before the next item. Terminal
// operations are rejected.
func (s *Store) RequestBulkCancel(id string, userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var op models.BulkOperation
		if err := tx.First(&op, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if op.Status.Terminal() {
			return ErrTerminal
		}
		if op.Status == models.BulkStatusPending {
			now := time.Now().UTC()
			return tx.Model(&op).Updates(map[string]interface{}{
				"status":           models.BulkStatusCancelled,
				"cancel_requested": true,
				"completed_at":     now,
			}).Error
		}
		return tx.Model(&op).Update("cancel_requested", true).Error
	})
}

// BulkCancelRequested re-reads just the cancel flag; the worker checks it
// between items.
func (s *Store) BulkCancelRequested(id string) (bool, error) {
	var op models.BulkOperation
	if err := s.db.Select("cancel_requested").First(&op, "id = ?", id).Error; err != nil {
		return false, err
	}
	return op.CancelRequested, nil
}

// ResumableBulkOperations returns non-terminal operations, oldest first.
// Used on startup to re-enqueue work the last process left behind: pending
// rows were never picked up, processing rows were interrupted mid-run and
// resume from their persisted progress.
func (s *Store) ResumableBulkOperations() ([]models.BulkOperation, error) {
	var ops []models.BulkOperation
	err := s.db.Where("status IN ?",
		[]models.BulkOperationStatus{models.BulkStatusPending, models.BulkStatusProcessing}).
		Order("created_at asc").Find(&ops).Error
	return ops, err
}
