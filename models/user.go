// Package models contains domain entities and persistence models for the shortener
package models

import (
	"time"
)

// User is an account that can own short links
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	CreatedAt    time.Time `gorm:"not null;index:idx_users_created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint
	Email         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
