package models

import (
	"time"
)

// User is an account that can log in. Poll data never references it.
type User struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Password   string     `json:"-"`
	IsStaff    bool       `json:"is_staff"`
	IsActive   bool       `json:"is_active"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	IsStaff    bool       `json:"is_staff"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:         u.ID,
		Username:   u.Username,
		IsStaff:    u.IsStaff,
		DateJoined: u.DateJoined,
		LastLogin:  u.LastLogin,
	}
}
