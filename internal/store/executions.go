package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"content-panel/internal/models"
)

// BeginExecution opens a running execution record for a schedule. At most
// one execution may be running per schedule; a second Begin while one is
// open returns ErrExecutionRunning. The check and insert share one
// transaction, which is atomic under sqlite's single writer.
func (s *Store) BeginExecution(scheduleID uint) (*models.AutomationExecution, error) {
	exec := &models.AutomationExecution{
		ID:         uuid.NewString(),
		ScheduleID: scheduleID,
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var running int64
		if err := tx.Model(&models.AutomationExecution{}).
			Where("schedule_id = ? AND status = ?", scheduleID, models.ExecutionStatusRunning).
			Count(&running).Error; err != nil {
			return err
		}
		if running > 0 {
			return ErrExecutionRunning
		}
		return tx.Create(exec).Error
	})
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// CloseExecution finalizes an execution exactly once; the record is
// immutable afterwards.
func (s *Store) CloseExecution(exec *models.AutomationExecution, status models.ExecutionStatus, errMsg string) error {
	now := time.Now().UTC()
	exec.Status = status
	exec.ErrorMessage = errMsg
	exec.CompletedAt = &now
	res := s.db.Model(&models.AutomationExecution{}).
		Where("id = ? AND status = ?", exec.ID, models.ExecutionStatusRunning).
		Updates(map[string]interface{}{
			"status":          status,
			"error_message":   errMsg,
			"completed_at":    now,
			"generated_count": exec.GeneratedCount,
			"published_count": exec.PublishedCount,
			"draft_ids":       exec.DraftIDs,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTerminal
	}
	return nil
}

// FailOrphanExecutions closes every execution still marked running. Run
// liveness is process-local, so at startup any running row was orphaned by
// a crash; left open it would block that schedule's firings forever.
func (s *Store) FailOrphanExecutions() (int64, error) {
	res := s.db.Model(&models.AutomationExecution{}).
		Where("status = ?", models.ExecutionStatusRunning).
		Updates(map[string]interface{}{
			"status":        models.ExecutionStatusFailed,
			"error_message": "interrupted by restart",
			"completed_at":  time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (s *Store) GetExecution(id string) (*models.AutomationExecution, error) {
	var exec models.AutomationExecution
	if err := s.db.First(&exec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &exec, nil
}

func (s *Store) ListExecutions(scheduleID uint) ([]models.AutomationExecution, error) {
	var execs []models.AutomationExecution
	err := s.db.Where("schedule_id = ?", scheduleID).Order("started_at desc").Find(&execs).Error
	return execs, err
}
