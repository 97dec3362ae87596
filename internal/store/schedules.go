package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"content-panel/internal/models"
)

func (s *Store) CreateSchedule(sched *models.AutomationSchedule) error {
	return s.db.Create(sched).Error
}

func (s *Store) SaveSchedule(sched *models.AutomationSchedule) error {
	return s.db.Save(sched).Error
}

func (s *Store) GetSchedule(id uint) (*models.AutomationSchedule, error) {
	var sched models.AutomationSchedule
	if err := s.db.First(&sched, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sched, nil
}

func (s *Store) GetScheduleForUser(id, userID uint) (*models.AutomationSchedule, error) {
	var sched models.AutomationSchedule
	if err := s.db.First(&sched, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sched, nil
}

func (s *Store) ListSchedules(userID uint) ([]models.AutomationSchedule, error) {
	var scheds []models.AutomationSchedule
	err := s.db.Where("user_id = ?", userID).Order("created_at desc").Find(&scheds).Error
	return scheds, err
}

// ActiveSchedules is the reconcile source for the schedule registry at
// process start.
func (s *Store) ActiveSchedules() ([]models.AutomationSchedule, error) {
	var scheds []models.AutomationSchedule
	err := s.db.Where("is_active = ?", true).Find(&scheds).Error
	return scheds, err
}

func (s *Store) SetScheduleActive(id uint, active bool, nextRun *time.Time) error {
	updates := map[string]interface{}{
		"is_active":   active,
		"next_run_at": nextRun,
	}
	return s.db.Model(&models.AutomationSchedule{}).Where("id = ?", id).Updates(updates).Error
}

// RecordScheduleRun updates the run bookkeeping after an execution closes.
func (s *Store) RecordScheduleRun(id uint, ranAt time.Time, succeeded bool, nextRun *time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var sched models.AutomationSchedule
		if err := tx.First(&sched, id).Error; err != nil {
			return err
		}
		ranAt = ranAt.UTC()
		sched.LastRunAt = &ranAt
		sched.NextRunAt = nextRun
		sched.TotalRuns++
		if succeeded {
			sched.SuccessRuns++
		} else {
			sched.FailedRuns++
		}
		return tx.Save(&sched).Error
	})
}

// DeleteSchedule removes the schedule and, by policy, its execution history
// and leaves drafts in place (they stand alone once generated).
func (s *Store) DeleteSchedule(id, userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.AutomationSchedule{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("schedule_id = ?", id).Delete(&models.AutomationExecution{}).Error
	})
}
