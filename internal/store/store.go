// Package store is the durable job store. It owns every query and mutation
// the engine performs against the database; services never touch gorm
// directly. All methods are safe for concurrent use.
package store

import (
	"errors"

	"gorm.io/gorm"

	"content-panel/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrTerminal is returned when a mutation targets a record whose status
	// can no longer change.
	ErrTerminal = errors.New("record is in a terminal status")
	// ErrExecutionRunning is returned when a schedule already has a running
	// execution; it is the re-entrancy guard for pipeline runs.
	ErrExecutionRunning = errors.New("schedule already has a running execution")
	// ErrNotClaimed is returned when a conditional status transition found
	// the row already claimed by someone else.
	ErrNotClaimed = errors.New("row was not in the expected status")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for composition-root wiring (migrations,
// handlers that only need plain CRUD).
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) GetSite(id uint) (*models.Site, error) {
	var site models.Site
	if err := s.db.First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &site, nil
}
