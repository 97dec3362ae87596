package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Console roles. Editors own their sites, schedules and drafts; admins
// additionally manage other accounts.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// User is one console account. Timezone, when set, becomes the default zone
// for schedules the user creates without an explicit one.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Username         string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email            string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password         string         `gorm:"size:255;not null" json:"-"`
	DisplayName      string         `gorm:"size:100" json:"display_name"`
	Role             string         `gorm:"size:20;default:'editor'" json:"role"`
	Timezone         string         `gorm:"size:50" json:"timezone"`
	TwoFactorEnabled bool           `gorm:"default:false" json:"two_factor_enabled"`
	TwoFactorSecret  string         `gorm:"size:100" json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
