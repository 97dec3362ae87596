package models

import (
	"time"

	"gorm.io/gorm"
)

// Site is an external publishing target managed by the console. Engine
// entities reference a site; the publisher collaborator is invoked with its
// credentials.
type Site struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	UserID              uint           `json:"user_id" gorm:"index;not null"`
	Name                string         `json:"name" gorm:"size:200;not null"`
	BaseURL             string         `json:"base_url" gorm:"size:1000;not null"`
	APIUsername         string         `json:"api_username" gorm:"size:200"`
	APIToken            string         `json:"-" gorm:"size:500"`
	DefaultPublishState string         `json:"default_publish_state" gorm:"size:20;default:'draft'"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`
}
