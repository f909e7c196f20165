// Package domain contains core types for the identity service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. Role decides who may call tickets.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Username     string       `gorm:"type:text;not null;uniqueIndex" json:"username"`
	PasswordHash string       `gorm:"column:password_hash;type:text;not null" json:"-"`
	FullName     string       `gorm:"column:full_name;type:text;not null" json:"full_name"`
	PhoneNumber  string       `gorm:"column:phone_number;type:text" json:"phone_number,omitempty"`
	Email        string       `gorm:"column:email;type:text" json:"email,omitempty"`
	Role         string       `gorm:"type:text;not null;default:user;index" json:"role"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
