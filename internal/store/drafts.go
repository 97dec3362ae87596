package store

import (
	"errors"

	"gorm.io/gorm"

	"content-panel/internal/models"
)

func (s *Store) CreateDraft(draft *models.ContentDraft) error {
	return s.db.Create(draft).Error
}

func (s *Store) SaveDraft(draft *models.ContentDraft) error {
	return s.db.Save(draft).Error
}

func (s *Store) GetDraft(id, userID uint) (*models.ContentDraft, error) {
	var draft models.ContentDraft
	if err := s.db.First(&draft, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &draft, nil
}

func (s *Store) ListDrafts(userID uint) ([]models.ContentDraft, error) {
	var drafts []models.ContentDraft
	err := s.db.Where("user_id = ?", userID).Order("created_at desc").Find(&drafts).Error
	return drafts, err
}
